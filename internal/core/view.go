package core

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	SortNone   SortOption = ""
	SortDate   SortOption = "date"
	SortAmount SortOption = "amount"
	SortType   SortOption = "type"
)

// SortOption selects the display order of a rendered ledger.
type SortOption string

// SortOptions lists the selectable orderings in the order the UI offers them.
var SortOptions = []SortOption{SortDate, SortAmount, SortType}

// ParseSortOption maps a request value to a SortOption; unknown values mean no sort.
func ParseSortOption(s string) SortOption {
	switch opt := SortOption(strings.ToLower(strings.TrimSpace(s))); opt {
	case SortDate, SortAmount, SortType:
		return opt
	default:
		return SortNone
	}
}

// Totals are derived from a transaction list and never stored.
type Totals struct {
	Earnings decimal.Decimal
	Expenses decimal.Decimal
	Net      decimal.Decimal
}

// Row is one display line of the rendered ledger.
type Row struct {
	ID        int64
	Text      string
	Amount    string
	Value     decimal.Decimal
	Badge     string
	Kind      Kind
	CreatedAt time.Time
}

// View is the full rendered ledger: ordered rows plus formatted aggregates.
type View struct {
	Sort     SortOption
	Rows     []Row
	Totals   Totals
	Earnings string
	Expenses string
	Net      string
}

// Sum recomputes the aggregates from scratch.
func Sum(txs []Transaction) Totals {
	t := Totals{Earnings: decimal.Zero, Expenses: decimal.Zero}
	for _, tx := range txs {
		if tx.IsCredit() {
			t.Earnings = t.Earnings.Add(tx.Amount)
		} else {
			t.Expenses = t.Expenses.Add(tx.Amount)
		}
	}
	t.Net = t.Earnings.Sub(t.Expenses)
	return t
}

// Sort returns a reordered copy of txs; the input slice is not modified.
//
// SortDate shows the newest creation time first, SortAmount is ascending,
// SortType puts credits before debits. Amount and type orderings are stable
// with respect to insertion order. SortNone shows the newest insertion first.
func Sort(txs []Transaction, opt SortOption) []Transaction {
	out := slices.Clone(txs)
	switch opt {
	case SortDate:
		slices.Reverse(out)
		slices.SortStableFunc(out, func(a, b Transaction) int {
			return b.CreatedAt.Compare(a.CreatedAt)
		})
	case SortAmount:
		slices.SortStableFunc(out, func(a, b Transaction) int {
			return a.Amount.Cmp(b.Amount)
		})
	case SortType:
		slices.SortStableFunc(out, func(a, b Transaction) int {
			return kindRank(a.Kind) - kindRank(b.Kind)
		})
	default:
		slices.Reverse(out)
	}
	return out
}

func kindRank(k Kind) int {
	if k == Credit {
		return 0
	}
	return 1
}

// Render projects a transaction list into display rows and aggregate strings.
func Render(txs []Transaction, opt SortOption) View {
	totals := Sum(txs)
	sorted := Sort(txs, opt)

	v := View{
		Sort:     opt,
		Rows:     make([]Row, 0, len(sorted)),
		Totals:   totals,
		Earnings: FormatCurrency(totals.Earnings),
		Expenses: FormatCurrency(totals.Expenses),
		Net:      FormatCurrency(totals.Net),
	}
	for _, tx := range sorted {
		v.Rows = append(v.Rows, Row{
			ID:        tx.ID,
			Text:      tx.Text,
			Amount:    FormatSigned(tx.Kind, tx.Amount),
			Value:     tx.Amount,
			Badge:     tx.Kind.Badge(),
			Kind:      tx.Kind,
			CreatedAt: tx.CreatedAt,
		})
	}
	return v
}
