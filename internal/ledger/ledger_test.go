package ledger

import (
	"context"
	"errors"
	"math/rand"
	"slices"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
	"ledger/internal/log"
)

type recordingPublisher struct {
	mu      sync.Mutex
	changes []core.Change
	err     error
}

func (p *recordingPublisher) Publish(_ context.Context, c core.Change) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, c)
	return p.err
}

func newTestLedger(t *testing.T, opts ...Option) *Ledger {
	t.Helper()
	tick := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	opts = append([]Option{WithLogger(log.NewNop()), WithClock(clock)}, opts...)
	l, err := New(context.Background(), NewMemoryStore(), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return l
}

func mustSubmit(t *testing.T, l *Ledger, text, amount string, earning bool) core.Transaction {
	t.Helper()
	res, err := l.Submit(context.Background(), Input{Text: text, Amount: amount, IsEarning: earning})
	if err != nil {
		t.Fatalf("Submit(%q, %q): %v", text, amount, err)
	}
	return res.Transaction
}

func mustRender(t *testing.T, l *Ledger, opt core.SortOption) core.View {
	t.Helper()
	v, _, err := l.Render(context.Background(), opt)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	return v
}

func assertTotals(t *testing.T, v core.View, earnings, expenses, net int64) {
	t.Helper()
	if !v.Totals.Earnings.Equal(decimal.NewFromInt(earnings)) ||
		!v.Totals.Expenses.Equal(decimal.NewFromInt(expenses)) ||
		!v.Totals.Net.Equal(decimal.NewFromInt(net)) {
		t.Fatalf("totals = %s/%s/%s, want %d/%d/%d",
			v.Totals.Earnings, v.Totals.Expenses, v.Totals.Net, earnings, expenses, net)
	}
}

func TestSalaryRentScenario(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	salary := mustSubmit(t, l, "Salary", "5000", true)
	assertTotals(t, mustRender(t, l, core.SortNone), 5000, 0, 5000)

	rent := mustSubmit(t, l, "Rent", "1200", false)
	assertTotals(t, mustRender(t, l, core.SortNone), 5000, 1200, 3800)

	if _, err := l.BeginEdit(ctx, rent.ID); err != nil {
		t.Fatalf("BeginEdit: %v", err)
	}
	res, err := l.Submit(ctx, Input{Text: "Rent", Amount: "1500"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !res.Updated || res.Transaction.ID != rent.ID {
		t.Fatalf("expected in-place update of %d, got %+v", rent.ID, res)
	}
	assertTotals(t, mustRender(t, l, core.SortNone), 5000, 1500, 3500)

	if err := l.Delete(ctx, salary.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	v := mustRender(t, l, core.SortNone)
	assertTotals(t, v, 0, 1500, -1500)
	if v.Net != "₹ -1500" {
		t.Fatalf("net string = %q", v.Net)
	}
}

func TestSubmitCreditAndDebitMoveOneAggregate(t *testing.T) {
	l := newTestLedger(t)
	mustSubmit(t, l, "a", "100", true)
	mustSubmit(t, l, "b", "40", false)
	before := mustRender(t, l, core.SortNone).Totals

	mustSubmit(t, l, "c", "12.5", true)
	after := mustRender(t, l, core.SortNone).Totals
	if !after.Earnings.Sub(before.Earnings).Equal(decimal.RequireFromString("12.5")) || !after.Expenses.Equal(before.Expenses) {
		t.Fatalf("credit changed the wrong aggregate: %+v -> %+v", before, after)
	}

	mustSubmit(t, l, "d", "7", false)
	final := mustRender(t, l, core.SortNone).Totals
	if !final.Expenses.Sub(after.Expenses).Equal(decimal.NewFromInt(7)) || !final.Earnings.Equal(after.Earnings) {
		t.Fatalf("debit changed the wrong aggregate: %+v -> %+v", after, final)
	}
}

func TestSubmitInvalidAmount(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	tx := mustSubmit(t, l, "a", "10", true)
	if _, err := l.BeginEdit(ctx, tx.ID); err != nil {
		t.Fatalf("BeginEdit: %v", err)
	}
	version := l.Version()

	_, err := l.Submit(ctx, Input{Text: "bad", Amount: "ten"})
	if !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if l.Version() != version {
		t.Fatalf("invalid submission mutated the ledger")
	}
	if st := l.EditState(); !st.Editing || st.ID != tx.ID {
		t.Fatalf("invalid submission should keep edit mode, got %+v", st)
	}
}

func TestUpdateKeepsIDCountAndCreatedAt(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	first := mustSubmit(t, l, "first", "10", true)
	mustSubmit(t, l, "second", "20", false)

	if _, err := l.BeginEdit(ctx, first.ID); err != nil {
		t.Fatalf("BeginEdit: %v", err)
	}
	res, err := l.Submit(ctx, Input{Text: "renamed", Amount: "3", IsEarning: false})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	got := res.Transaction
	if got.ID != first.ID || !got.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("update changed identity: %+v vs %+v", got, first)
	}
	if got.Kind != core.Debit || got.Text != "renamed" {
		t.Fatalf("update did not apply new values: %+v", got)
	}

	v := mustRender(t, l, core.SortNone)
	if len(v.Rows) != 2 {
		t.Fatalf("count changed: %d", len(v.Rows))
	}
	assertTotals(t, v, 0, 23, -23)
	if st := l.EditState(); st.Editing {
		t.Fatalf("edit mode should end after a successful submit")
	}

	// The next submission is a plain add again.
	res, err = l.Submit(ctx, Input{Text: "third", Amount: "1", IsEarning: true})
	if err != nil || res.Updated {
		t.Fatalf("expected add after update, got %+v err=%v", res, err)
	}
}

func TestSubmitWithStaleEditTarget(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	a := mustSubmit(t, l, "a", "10", true)
	b := mustSubmit(t, l, "b", "20", true)

	if _, err := l.BeginEdit(ctx, a.ID); err != nil {
		t.Fatalf("BeginEdit: %v", err)
	}
	// Remove the target behind the ledger's back.
	if _, err := l.store.Remove(ctx, a.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	_, err := l.Submit(ctx, Input{Text: "x", Amount: "99", IsEarning: true})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	v := mustRender(t, l, core.SortNone)
	if len(v.Rows) != 1 || v.Rows[0].ID != b.ID {
		t.Fatalf("stale update must not write anything: %+v", v.Rows)
	}
	if l.EditState().Editing {
		t.Fatalf("stale edit should return to idle")
	}
}

func TestDeleteClearsPendingEdit(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	a := mustSubmit(t, l, "a", "10", true)
	if _, err := l.BeginEdit(ctx, a.ID); err != nil {
		t.Fatalf("BeginEdit: %v", err)
	}
	if err := l.Delete(ctx, a.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if l.EditState().Editing {
		t.Fatalf("deleting the edit target should end edit mode")
	}
	res, err := l.Submit(ctx, Input{Text: "b", Amount: "5", IsEarning: true})
	if err != nil || res.Updated {
		t.Fatalf("expected a plain add, got %+v err=%v", res, err)
	}
}

func TestDeleteMissingIsNoOp(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	mustSubmit(t, l, "a", "10", true)
	version := l.Version()

	if err := l.Delete(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if l.Version() != version || len(mustRender(t, l, core.SortNone).Rows) != 1 {
		t.Fatalf("deleting a missing id changed the ledger")
	}
}

func TestBeginEditMissing(t *testing.T) {
	l := newTestLedger(t)
	if _, err := l.BeginEdit(context.Background(), 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if l.EditState().Editing {
		t.Fatalf("failed BeginEdit must stay idle")
	}
}

func TestCancelEdit(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	a := mustSubmit(t, l, "a", "10", true)
	if _, err := l.BeginEdit(ctx, a.ID); err != nil {
		t.Fatalf("BeginEdit: %v", err)
	}
	l.CancelEdit()
	res, err := l.Submit(ctx, Input{Text: "b", Amount: "1", IsEarning: true})
	if err != nil || res.Updated || res.Transaction.ID == a.ID {
		t.Fatalf("expected a new transaction after cancel, got %+v err=%v", res, err)
	}
}

func TestIDsAreNeverReused(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	a := mustSubmit(t, l, "a", "1", true)
	b := mustSubmit(t, l, "b", "1", true)
	if err := l.Delete(ctx, b.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	c := mustSubmit(t, l, "c", "1", true)
	if c.ID <= b.ID || a.ID >= b.ID {
		t.Fatalf("ids not monotonic: a=%d b=%d c=%d", a.ID, b.ID, c.ID)
	}
}

func TestNewContinuesAfterStoredIDs(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_ = store.Append(ctx, core.Transaction{ID: 41, Amount: decimal.NewFromInt(1), Kind: core.Credit})

	l, err := New(ctx, store, WithLogger(log.NewNop()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tx := mustSubmit(t, l, "next", "1", false)
	if tx.ID != 42 {
		t.Fatalf("expected id 42, got %d", tx.ID)
	}
}

func TestLookup(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	a := mustSubmit(t, l, "a", "1", true)
	if got, ok, err := l.Lookup(ctx, a.ID); err != nil || !ok || got.Text != "a" {
		t.Fatalf("Lookup(%d) = %+v %v %v", a.ID, got, ok, err)
	}
	if _, ok, _ := l.Lookup(ctx, 1000); ok {
		t.Fatalf("Lookup of missing id reported present")
	}
}

func TestPublisherReceivesChanges(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	l := newTestLedger(t, WithPublisher(pub))

	a := mustSubmit(t, l, "a", "1", true)
	if _, err := l.BeginEdit(ctx, a.ID); err != nil {
		t.Fatalf("BeginEdit: %v", err)
	}
	mustSubmit(t, l, "a2", "2", true)
	if err := l.Delete(ctx, a.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_ = l.Delete(ctx, a.ID) // missing: no event

	want := []core.ChangeType{core.ChangeCreated, core.ChangeUpdated, core.ChangeDeleted}
	if len(pub.changes) != len(want) {
		t.Fatalf("got %d changes, want %d", len(pub.changes), len(want))
	}
	for i, c := range pub.changes {
		if c.Type != want[i] || c.Transaction.ID != a.ID {
			t.Fatalf("change %d = %+v", i, c)
		}
	}
}

func TestPublisherFailureDoesNotFailMutation(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	l := newTestLedger(t, WithPublisher(pub))
	mustSubmit(t, l, "a", "1", true)
	if len(mustRender(t, l, core.SortNone).Rows) != 1 {
		t.Fatalf("transaction should be stored even when publishing fails")
	}
}

// TestRandomOperationsKeepInvariants replays random add/update/delete
// sequences against a simple model and checks the aggregates after each step.
func TestRandomOperationsKeepInvariants(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))
	l := newTestLedger(t)
	model := map[int64]core.Transaction{}

	for step := 0; step < 500; step++ {
		amount := strconv.Itoa(rng.Intn(1000)) + "." + strconv.Itoa(rng.Intn(100))
		earning := rng.Intn(2) == 0

		switch op := rng.Intn(3); {
		case op == 0 || len(model) == 0:
			tx := mustSubmit(t, l, "t", amount, earning)
			model[tx.ID] = tx
		case op == 1:
			id := pick(rng, model)
			if _, err := l.BeginEdit(ctx, id); err != nil {
				t.Fatalf("BeginEdit(%d): %v", id, err)
			}
			tx := mustSubmit(t, l, "u", amount, earning)
			if tx.ID != id {
				t.Fatalf("update changed id %d -> %d", id, tx.ID)
			}
			model[id] = tx
		default:
			id := pick(rng, model)
			if err := l.Delete(ctx, id); err != nil {
				t.Fatalf("Delete(%d): %v", id, err)
			}
			delete(model, id)
		}

		v := mustRender(t, l, core.SortOptions[rng.Intn(len(core.SortOptions))])
		want := decimal.Zero
		for _, tx := range model {
			if tx.IsCredit() {
				want = want.Add(tx.Amount)
			} else {
				want = want.Sub(tx.Amount)
			}
		}
		if !v.Totals.Net.Equal(v.Totals.Earnings.Sub(v.Totals.Expenses)) {
			t.Fatalf("step %d: net != earnings - expenses", step)
		}
		if !v.Totals.Net.Equal(want) || len(v.Rows) != len(model) {
			t.Fatalf("step %d: net %s rows %d, want %s rows %d", step, v.Totals.Net, len(v.Rows), want, len(model))
		}
	}
}

func pick(rng *rand.Rand, m map[int64]core.Transaction) int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids[rng.Intn(len(ids))]
}
