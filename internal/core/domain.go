package core

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Credit Kind = "credit"
	Debit  Kind = "debit"
)

const (
	ChangeCreated ChangeType = "created"
	ChangeUpdated ChangeType = "updated"
	ChangeDeleted ChangeType = "deleted"
)

type (
	// Kind carries the sign of a transaction; amounts themselves are never negative.
	Kind string

	Transaction struct {
		ID        int64
		Text      string
		Amount    decimal.Decimal
		Kind      Kind
		CreatedAt time.Time
	}

	ChangeType string

	// Change describes one committed ledger mutation.
	Change struct {
		Type        ChangeType
		Transaction Transaction
		At          time.Time
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidKind   = errors.New("invalid transaction type")
)

// KindFromEarning maps the submit trigger to a kind: earnings are credits.
func KindFromEarning(isEarning bool) Kind {
	if isEarning {
		return Credit
	}
	return Debit
}

func (k Kind) Validate() error {
	switch k {
	case Credit, Debit:
		return nil
	default:
		return ErrInvalidKind
	}
}

// Badge returns the single-letter marker shown next to a row.
func (k Kind) Badge() string {
	if k == Credit {
		return "C"
	}
	return "D"
}

// Sign returns "+" for credits and "-" for debits.
func (k Kind) Sign() string {
	if k == Credit {
		return "+"
	}
	return "-"
}

func (t Transaction) Validate() error {
	if err := t.Kind.Validate(); err != nil {
		return err
	}
	if t.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

// IsCredit reports whether the transaction counts towards earnings.
func (t Transaction) IsCredit() bool {
	return t.Kind == Credit
}
