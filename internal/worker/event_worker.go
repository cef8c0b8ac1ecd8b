// Package worker turns ledger events from the broker into activity rows.
package worker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"ledger/internal/cache"
	"ledger/internal/events"
	"ledger/internal/log"
	"ledger/internal/sheets"
)

const (
	seenCacheSize = 1024
	seenCacheTTL  = time.Hour
)

// Stats are cumulative counters since start.
type Stats struct {
	Processed  uint64
	Duplicates uint64
	Failed     uint64
}

// EventWorker appends each ledger event to an activity sink. Redeliveries
// of an event it already wrote are acknowledged without writing again.
type EventWorker struct {
	sink   sheets.ActivityWriter
	seen   *cache.LRUCache[string]
	logger *log.Logger

	processed  atomic.Uint64
	duplicates atomic.Uint64
	failed     atomic.Uint64
}

func NewEventWorker(sink sheets.ActivityWriter, logger *log.Logger) *EventWorker {
	return &EventWorker{
		sink:   sink,
		seen:   cache.NewLRUCache[string](seenCacheSize, seenCacheTTL),
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// Handle is the consumer callback; a returned error requeues the message.
func (w *EventWorker) Handle(ctx context.Context, e *events.Event) error {
	if err := e.Validate(); err != nil {
		w.failed.Add(1)
		return err
	}

	key := e.EventID.String()
	if ref, ok := w.seen.Get(key); ok {
		w.duplicates.Add(1)
		w.logger.InfoContext(ctx, "Skipping already recorded event",
			log.FieldEventID, key,
			"row", ref)
		return nil
	}

	ref, err := w.sink.AppendActivity(ctx, e)
	if err != nil {
		w.failed.Add(1)
		w.logger.ErrorContext(ctx, "Failed to record ledger event",
			log.FieldEventID, key,
			log.FieldTxID, e.ID,
			log.FieldOperation, log.OpAppend,
			log.FieldError, err)
		return fmt.Errorf("append activity for event %s: %w", key, err)
	}

	w.seen.Set(key, ref)
	w.processed.Add(1)
	w.logger.InfoContext(ctx, "Ledger event recorded",
		log.FieldEventID, key,
		log.FieldEventType, string(e.Type),
		log.FieldTxID, e.ID,
		"row", ref)
	return nil
}

func (w *EventWorker) Stats() Stats {
	return Stats{
		Processed:  w.processed.Load(),
		Duplicates: w.duplicates.Load(),
		Failed:     w.failed.Load(),
	}
}

// SeenCache exposes the dedupe cache so it can be registered for periodic expiry.
func (w *EventWorker) SeenCache() cache.Cleaner {
	return w.seen
}
