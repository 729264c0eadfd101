// Package credits prices generation work and debits an owner's prepaid balance.
package credits

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/p-n-ai/pai-quiz/internal/quiz"
)

// Places is the fixed precision of every charge.
const Places = 2

// ErrInsufficientCredits is returned when a balance does not cover an amount.
var ErrInsufficientCredits = errors.New("insufficient credits")

// Rates holds the unit prices used for estimates and charges.
type Rates struct {
	TextPerPage  decimal.Decimal
	ImagePerPage decimal.Decimal
	PerQuestion  decimal.Decimal
}

// DefaultRates returns the built-in rate card.
func DefaultRates() Rates {
	return Rates{
		TextPerPage:  decimal.RequireFromString("0.5"),
		ImagePerPage: decimal.RequireFromString("1.5"),
		PerQuestion:  decimal.RequireFromString("0.1"),
	}
}

// PageRate returns the per-page price for a provenance.
func (r Rates) PageRate(p quiz.Provenance) decimal.Decimal {
	if p == quiz.ProvenanceImage {
		return r.ImagePerPage
	}
	return r.TextPerPage
}

// Estimate prices a document from its page count alone.
func (r Rates) Estimate(pages int, p quiz.Provenance) (decimal.Decimal, error) {
	if pages <= 0 {
		return decimal.Zero, fmt.Errorf("page count must be positive, got %d", pages)
	}
	return r.PageRate(p).Mul(decimal.NewFromInt(int64(pages))).Round(Places), nil
}

// QuizPreflight is the amount a quiz request must be able to cover before any generation:
// the page estimate plus the per-question rate for every requested question.
func (r Rates) QuizPreflight(base decimal.Decimal, requested int) decimal.Decimal {
	return Finalize(base, r.PerQuestion, requested)
}

// Finalize computes the true charge from the accepted question count, rounded half-up to
// two places. Pass perQuestion = 0 for pipelines billed on pages only.
func Finalize(base, perQuestion decimal.Decimal, accepted int) decimal.Decimal {
	return base.Add(perQuestion.Mul(decimal.NewFromInt(int64(accepted)))).Round(Places)
}

// CheckBalance is the preflight gate.
func CheckBalance(amount, balance decimal.Decimal) error {
	if balance.LessThan(amount) {
		return fmt.Errorf("%w: need %s, have %s", ErrInsufficientCredits, amount.StringFixed(Places), balance.StringFixed(Places))
	}
	return nil
}

// BalanceStore reads and atomically decrements balances. Debit must only succeed when the
// balance covers the amount, and return ErrInsufficientCredits otherwise.
type BalanceStore interface {
	Balance(ctx context.Context, ownerID string) (decimal.Decimal, error)
	Debit(ctx context.Context, ownerID string, amount decimal.Decimal) error
}

// Ledger applies Rates against a BalanceStore.
type Ledger struct {
	store BalanceStore
	rates Rates
}

// NewLedger creates a ledger.
func NewLedger(store BalanceStore, rates Rates) *Ledger {
	return &Ledger{store: store, rates: rates}
}

// Rates returns the ledger's rate card.
func (l *Ledger) Rates() Rates {
	return l.rates
}

// Balance returns an owner's current balance.
func (l *Ledger) Balance(ctx context.Context, ownerID string) (decimal.Decimal, error) {
	b, err := l.store.Balance(ctx, ownerID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("read balance: %w", err)
	}
	return b, nil
}

// Preflight fails with ErrInsufficientCredits unless the owner's balance covers amount.
func (l *Ledger) Preflight(ctx context.Context, ownerID string, amount decimal.Decimal) error {
	balance, err := l.Balance(ctx, ownerID)
	if err != nil {
		return err
	}
	return CheckBalance(amount, balance)
}

// Commit debits the final charge. Call it only after the record is persisted.
func (l *Ledger) Commit(ctx context.Context, ownerID string, charge decimal.Decimal) error {
	if charge.IsNegative() {
		return fmt.Errorf("charge must not be negative, got %s", charge)
	}
	if err := l.store.Debit(ctx, ownerID, charge.Round(Places)); err != nil {
		return fmt.Errorf("debit %s: %w", ownerID, err)
	}
	return nil
}
