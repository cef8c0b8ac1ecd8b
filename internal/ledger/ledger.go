// Package ledger implements the transaction ledger: an ordered list of
// credits and debits, the edit-mode state of the entry form, and the
// render projection over both.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
	"ledger/internal/log"
)

// ErrNotFound is returned when an operation targets an id the ledger no longer holds.
var ErrNotFound = errors.New("transaction not found")

// Input is a submitted entry form.
type Input struct {
	Text      string
	Amount    string
	IsEarning bool
}

// Result describes a successful Submit.
type Result struct {
	Transaction core.Transaction
	Updated     bool
}

// EditState is the form state: Idle, or Editing a specific id.
type EditState struct {
	Editing bool
	ID      int64
}

// Ledger owns the transaction list, the id counter and the edit state.
// All methods are safe for concurrent use; mutations are serialized.
type Ledger struct {
	mu        sync.Mutex
	store     Store
	publisher Publisher
	logger    *log.Logger
	now       func() time.Time

	lastID  int64
	edit    EditState
	version uint64
}

type Option func(*Ledger)

// WithPublisher forwards every committed change to p.
func WithPublisher(p Publisher) Option {
	return func(l *Ledger) { l.publisher = p }
}

func WithLogger(logger *log.Logger) Option {
	return func(l *Ledger) { l.logger = logger.WithComponent(log.ComponentLedger) }
}

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New builds a ledger over store. Ids continue after the highest id already stored.
func New(ctx context.Context, store Store, opts ...Option) (*Ledger, error) {
	l := &Ledger{
		store:  store,
		logger: log.New(log.DefaultConfig()).WithComponent(log.ComponentLedger),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}

	lastID, err := store.MaxID(ctx)
	if err != nil {
		return nil, fmt.Errorf("read highest transaction id: %w", err)
	}
	l.lastID = lastID
	return l, nil
}

// Submit adds a new transaction, or replaces the one being edited.
//
// An invalid amount changes nothing, edit mode included. If the edit target
// disappeared in the meantime the list is left untouched, edit mode ends and
// ErrNotFound is returned.
func (l *Ledger) Submit(ctx context.Context, in Input) (Result, error) {
	amount, err := core.ParseAmount(in.Amount)
	if err != nil {
		l.logger.WarnContext(ctx, "Rejected submission",
			log.FieldOperation, log.OpCreate,
			log.FieldAmount, in.Amount,
			log.FieldErrorType, log.ErrorTypeValidation)
		return Result{}, err
	}

	res, err := l.submit(ctx, in.Text, amount, core.KindFromEarning(in.IsEarning))
	if err != nil {
		return Result{}, err
	}

	change := core.Change{Type: core.ChangeCreated, Transaction: res.Transaction, At: l.now().UTC()}
	op := log.OpCreate
	if res.Updated {
		change.Type = core.ChangeUpdated
		op = log.OpUpdate
	}
	l.logger.InfoContext(ctx, "Transaction saved",
		log.NewFields().
			WithOperation(op).
			WithTransaction(res.Transaction.ID, string(res.Transaction.Kind), res.Transaction.Text, res.Transaction.Amount.String()).
			ToSlice()...)
	l.publish(ctx, change)
	return res, nil
}

func (l *Ledger) submit(ctx context.Context, text string, amount decimal.Decimal, kind core.Kind) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx := core.Transaction{Text: text, Amount: amount, Kind: kind}

	if l.edit.Editing {
		id := l.edit.ID
		existing, ok, err := l.store.Get(ctx, id)
		if err != nil {
			return Result{}, fmt.Errorf("load transaction %d: %w", id, err)
		}
		if !ok {
			l.edit = EditState{}
			l.logger.WarnContext(ctx, "Edit target no longer exists",
				log.FieldTxID, id,
				log.FieldOperation, log.OpUpdate,
				log.FieldErrorType, log.ErrorTypeNotFound)
			return Result{}, fmt.Errorf("update transaction %d: %w", id, ErrNotFound)
		}

		tx.ID = id
		tx.CreatedAt = existing.CreatedAt
		if err := tx.Validate(); err != nil {
			return Result{}, err
		}
		replaced, err := l.store.Replace(ctx, tx)
		if err != nil {
			return Result{}, fmt.Errorf("replace transaction %d: %w", id, err)
		}
		if !replaced {
			l.edit = EditState{}
			return Result{}, fmt.Errorf("update transaction %d: %w", id, ErrNotFound)
		}
		l.edit = EditState{}
		l.version++
		return Result{Transaction: tx, Updated: true}, nil
	}

	tx.ID = l.lastID + 1
	tx.CreatedAt = l.now().UTC()
	if err := tx.Validate(); err != nil {
		return Result{}, err
	}
	if err := l.store.Append(ctx, tx); err != nil {
		return Result{}, fmt.Errorf("append transaction: %w", err)
	}
	l.lastID = tx.ID
	l.version++
	return Result{Transaction: tx}, nil
}

// Delete removes the transaction with id. A missing id leaves the list
// unchanged and returns ErrNotFound, which callers treat as a no-op.
func (l *Ledger) Delete(ctx context.Context, id int64) error {
	tx, err := l.remove(ctx, id)
	if errors.Is(err, ErrNotFound) {
		l.logger.WarnContext(ctx, "Delete of unknown transaction ignored",
			log.FieldTxID, id,
			log.FieldOperation, log.OpDelete,
			log.FieldErrorType, log.ErrorTypeNotFound)
		return err
	}
	if err != nil {
		return err
	}

	l.logger.InfoContext(ctx, "Transaction deleted",
		log.FieldTxID, id,
		log.FieldOperation, log.OpDelete)
	l.publish(ctx, core.Change{Type: core.ChangeDeleted, Transaction: tx, At: l.now().UTC()})
	return nil
}

func (l *Ledger) remove(ctx context.Context, id int64) (core.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, ok, err := l.store.Get(ctx, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("load transaction %d: %w", id, err)
	}
	if !ok {
		return core.Transaction{}, fmt.Errorf("delete transaction %d: %w", id, ErrNotFound)
	}
	removed, err := l.store.Remove(ctx, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("remove transaction %d: %w", id, err)
	}
	if !removed {
		return core.Transaction{}, fmt.Errorf("delete transaction %d: %w", id, ErrNotFound)
	}
	if l.edit.Editing && l.edit.ID == id {
		l.edit = EditState{}
	}
	l.version++
	return tx, nil
}

// BeginEdit switches the form into Editing(id) and returns the record to pre-fill it.
func (l *Ledger) BeginEdit(ctx context.Context, id int64) (core.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, ok, err := l.store.Get(ctx, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("load transaction %d: %w", id, err)
	}
	if !ok {
		l.logger.WarnContext(ctx, "Edit requested for unknown transaction",
			log.FieldTxID, id,
			log.FieldOperation, log.OpBeginEdit,
			log.FieldErrorType, log.ErrorTypeNotFound)
		return core.Transaction{}, fmt.Errorf("edit transaction %d: %w", id, ErrNotFound)
	}
	l.edit = EditState{Editing: true, ID: id}
	return tx, nil
}

// CancelEdit returns the form to Idle.
func (l *Ledger) CancelEdit() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.edit = EditState{}
}

// EditState reports the current form state.
func (l *Ledger) EditState() EditState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.edit
}

// Lookup returns the transaction with id, if present.
func (l *Ledger) Lookup(ctx context.Context, id int64) (core.Transaction, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.Get(ctx, id)
}

// Version increases with every committed mutation.
func (l *Ledger) Version() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.version
}

// Render projects the current list with opt and returns the version it reflects.
func (l *Ledger) Render(ctx context.Context, opt core.SortOption) (core.View, uint64, error) {
	l.mu.Lock()
	txs, err := l.store.All(ctx)
	version := l.version
	l.mu.Unlock()
	if err != nil {
		return core.View{}, 0, fmt.Errorf("list transactions: %w", err)
	}
	return core.Render(txs, opt), version, nil
}

func (l *Ledger) publish(ctx context.Context, change core.Change) {
	if l.publisher == nil {
		return
	}
	if err := l.publisher.Publish(ctx, change); err != nil {
		l.logger.ErrorContext(ctx, "Failed to publish ledger change",
			log.FieldTxID, change.Transaction.ID,
			log.FieldEventType, string(change.Type),
			log.FieldError, err)
	}
}
