package backend

import (
	"context"
	"errors"
	"fmt"

	"ledger/internal/events"
	"ledger/internal/ledger"
	"ledger/internal/log"
	"ledger/internal/storage"
)

// Open creates the store selected by config and, when AMQP is configured,
// an event publisher. A broker that cannot be reached is logged and replaced
// by a publisher that discards events.
func Open(ctx context.Context, config Config, logger *log.Logger) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentApp)

	res := &Result{}
	switch config.Type {
	case SQLiteStore:
		store, err := storage.NewSQLiteStore(config.SQLiteDSN, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
		}
		res.Store = store
		res.Ready = store.Ping
		res.Cleanup = store.Close
		logger.InfoContext(ctx, "Initialized SQLite store", "dsn", config.SQLiteDSN)
	default:
		res.Store = ledger.NewMemoryStore()
		logger.InfoContext(ctx, "Initialized memory store")
	}

	res.Publisher = events.NopPublisher{}
	if config.AMQPURL == "" {
		logger.InfoContext(ctx, "AMQP disabled - no AMQP_URL provided")
		return res, nil
	}

	client, err := events.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, logger)
	if err != nil {
		logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events",
			log.FieldError, err,
			log.FieldErrorType, log.ErrorTypeNetwork)
		return res, nil
	}
	logger.InfoContext(ctx, "Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)

	res.Publisher = client
	storeCleanup := res.Cleanup
	res.Cleanup = func() error {
		err := client.Close()
		if storeCleanup != nil {
			err = errors.Join(err, storeCleanup())
		}
		return err
	}
	return res, nil
}
