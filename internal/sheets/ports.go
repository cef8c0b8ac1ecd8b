package sheets

import (
	"context"

	"ledger/internal/events"
)

// Ports for outbound adapters.
type (
	// ActivityWriter records one ledger event as a row of an append-only log.
	ActivityWriter interface {
		AppendActivity(ctx context.Context, e *events.Event) (rowRef string, err error)
	}
)
