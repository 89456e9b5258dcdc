package server

import (
	"github.com/faciam-dev/docmeta/internal/events"
	"github.com/faciam-dev/docmeta/internal/logger"
)

// initEvents initializes the global events dispatcher.
func initEvents(cfg Config) error {
	evtConf, err := events.LoadConfig(cfg.EventsConfig)
	if err != nil {
		return err
	}
	sinks, errs := evtConf.BuildSinks()
	for _, err := range errs {
		logger.L.Error("event sink", "err", err)
	}
	var dlq events.DLQ
	if cfg.SQL != nil {
		dlq = &events.SQLDLQ{DB: cfg.SQL.DB(), Driver: cfg.SQL.Driver(), TablePrefix: cfg.SQL.Prefix()}
	}
	events.Default = events.NewDispatcher(evtConf, dlq, sinks...)
	return nil
}
