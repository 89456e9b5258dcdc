// Package events fans change notifications out to webhook, Redis and Kafka
// sinks. Delivery is retried with exponential backoff and events that still
// fail are parked in a dead-letter queue.
package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/faciam-dev/docmeta/internal/logger"
	"github.com/faciam-dev/docmeta/pkg/util"
)

// Event names.
const (
	DatabaseCreated   = "docmeta.database.created"
	CollectionCreated = "docmeta.collection.created"
	DocumentUpserted  = "docmeta.document.upserted"
	MetadataSaved     = "docmeta.metadata.saved"
)

// Default is the global dispatcher used by Emit.
var Default *Dispatcher

// Event is a change in one database.
type Event struct {
	ID   string    `json:"id"`
	Name string    `json:"name"`
	DB   string    `json:"db"`
	Time time.Time `json:"time"`
	Data any       `json:"data,omitempty"`
}

// New stamps an event with a fresh id and the current time.
func New(name, db string, data any) Event {
	return Event{ID: uuid.NewString(), Name: name, DB: db, Time: time.Now().UTC(), Data: data}
}

// Sink publishes events.
type Sink interface {
	Emit(ctx context.Context, e Event) error
}

// DLQ stores failed events.
type DLQ interface {
	Store(ctx context.Context, e Event, attempts int, lastErr string) error
}

// Dispatcher broadcasts events to multiple sinks with retries.
type Dispatcher struct {
	sinks        []Sink
	maxAttempts  int
	initialDelay time.Duration
	dlq          DLQ
	wg           sync.WaitGroup
}

// Config provides dispatcher settings.
type Config struct {
	Sinks struct {
		Webhook WebhookConfig `yaml:"webhook"`
		Redis   RedisConfig   `yaml:"redis"`
		Kafka   KafkaConfig   `yaml:"kafka"`
	} `yaml:"sinks"`
	Retry RetryConfig `yaml:"retry"`
}

type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
}

// NewDispatcher creates a dispatcher from sinks and retry config.
func NewDispatcher(cfg Config, dlq DLQ, sinks ...Sink) *Dispatcher {
	d := &Dispatcher{maxAttempts: 3, initialDelay: time.Second}
	if cfg.Retry.MaxAttempts > 0 {
		d.maxAttempts = cfg.Retry.MaxAttempts
	}
	if cfg.Retry.InitialDelay > 0 {
		d.initialDelay = cfg.Retry.InitialDelay
	}
	d.sinks = append(d.sinks, sinks...)
	d.dlq = dlq
	return d
}

// Emit sends an event using the global dispatcher if set.
func Emit(ctx context.Context, e Event) {
	if Default != nil {
		Default.Dispatch(ctx, e)
	}
}

// Dispatch sends the event to all sinks asynchronously. Delivery outlives
// the caller's cancellation so a finished request still gets its events out.
func (d *Dispatcher) Dispatch(ctx context.Context, e Event) {
	ctx = context.WithoutCancel(ctx)
	for _, s := range d.sinks {
		d.wg.Go(func() { d.retrySend(ctx, s, e) })
	}
}

// Wait blocks until every dispatched event is delivered or parked.
func (d *Dispatcher) Wait() { d.wg.Wait() }

func (d *Dispatcher) retrySend(ctx context.Context, s Sink, e Event) {
	delay := d.initialDelay
	var err error
	for i := 1; i <= d.maxAttempts; i++ {
		if err = s.Emit(ctx, e); err == nil {
			return
		}
		if i == d.maxAttempts {
			break
		}
		time.Sleep(delay)
		delay *= 2
	}
	logger.L.Warn("event delivery failed", "event", e.Name, "id", e.ID, "err", err)
	if d.dlq != nil {
		if derr := d.dlq.Store(ctx, e, d.maxAttempts, err.Error()); derr != nil {
			logger.L.Error("dead-letter event", "id", e.ID, "err", derr)
		}
	}
}

// SQLDLQ stores failed events in the database.
type SQLDLQ struct {
	DB          *sql.DB
	Driver      string
	TablePrefix string
}

// Store inserts the failed event.
func (q *SQLDLQ) Store(ctx context.Context, e Event, attempts int, lastErr string) error {
	if q == nil || q.DB == nil {
		return nil
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	ph := func(n int) string { return util.Placeholder(q.Driver, n) }
	stmt := fmt.Sprintf("INSERT INTO %sevents_failed(name, payload, attempts, last_error) VALUES (%s, %s, %s, %s)",
		q.TablePrefix, ph(1), ph(2), ph(3), ph(4))
	_, err = q.DB.ExecContext(ctx, stmt, e.Name, string(data), attempts, lastErr)
	return err
}
