package events

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures RedisSink.
type RedisConfig struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
	Channel string `yaml:"channel"`
}

// DefaultChannel is used when the config names none.
const DefaultChannel = "docmeta:events"

// RedisSink publishes events via Redis Pub/Sub. A "{db}" in the channel is
// replaced by the event's database, giving one channel per database.
type RedisSink struct {
	Client  *redis.Client
	Channel string
}

// NewRedisSink returns a RedisSink based on config.
func NewRedisSink(c RedisConfig) (*RedisSink, error) {
	if !c.Enabled || c.DSN == "" {
		return nil, nil
	}
	opt, err := redis.ParseURL(c.DSN)
	if err != nil {
		return nil, err
	}
	ch := c.Channel
	if ch == "" {
		ch = DefaultChannel
	}
	return &RedisSink{Client: redis.NewClient(opt), Channel: ch}, nil
}

func (s *RedisSink) Emit(ctx context.Context, e Event) error {
	if s == nil || s.Client == nil {
		return nil
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.Client.Publish(ctx, s.channel(e), data).Err()
}

func (s *RedisSink) channel(e Event) string {
	return strings.ReplaceAll(s.Channel, "{db}", e.DB)
}
