package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ledger/internal/core"
)

var ErrInvalidEvent = errors.New("invalid ledger event")

// Event is the wire form of a committed ledger change.
// It carries the full transaction so consumers never read back from the ledger.
type Event struct {
	EventID   uuid.UUID       `json:"event_id"`
	Type      core.ChangeType `json:"type"`
	ID        int64           `json:"id"`
	Text      string          `json:"text"`
	Amount    string          `json:"amount"`
	Kind      core.Kind       `json:"kind"`
	CreatedAt time.Time       `json:"created_at"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEvent builds the event for a change with a fresh id.
func NewEvent(c core.Change) *Event {
	ts := c.At
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return &Event{
		EventID:   uuid.New(),
		Type:      c.Type,
		ID:        c.Transaction.ID,
		Text:      c.Transaction.Text,
		Amount:    c.Transaction.Amount.String(),
		Kind:      c.Transaction.Kind,
		CreatedAt: c.Transaction.CreatedAt,
		Timestamp: ts,
	}
}

// ToJSON converts the event to JSON bytes
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// EventFromJSON decodes and validates an event.
func EventFromJSON(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}

func (e *Event) Validate() error {
	if e.EventID == uuid.Nil {
		return fmt.Errorf("%w: missing event id", ErrInvalidEvent)
	}
	switch e.Type {
	case core.ChangeCreated, core.ChangeUpdated, core.ChangeDeleted:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, e.Type)
	}
	if e.ID <= 0 {
		return fmt.Errorf("%w: transaction id %d", ErrInvalidEvent, e.ID)
	}
	if _, err := e.Transaction(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	return nil
}

// Transaction rebuilds the domain record carried by the event.
func (e *Event) Transaction() (core.Transaction, error) {
	amount, err := decimal.NewFromString(e.Amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("amount %q: %w", e.Amount, core.ErrInvalidAmount)
	}
	tx := core.Transaction{
		ID:        e.ID,
		Text:      e.Text,
		Amount:    amount,
		Kind:      e.Kind,
		CreatedAt: e.CreatedAt,
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}
