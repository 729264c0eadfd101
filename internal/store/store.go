// Package store persists quiz records, credit balances and analytics events.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/p-n-ai/pai-quiz/internal/quiz"
)

// PageSize is the number of records per history page.
const PageSize = 10

const dbTimeout = 5 * time.Second

// ErrNotFound is returned when a record does not exist or belongs to another owner.
var ErrNotFound = errors.New("record not found")

// RecordStore persists quiz records. Every read and delete is scoped to an owner.
type RecordStore interface {
	// Insert assigns ID and CreatedAt when empty and stores the record.
	Insert(ctx context.Context, rec *quiz.Record) error
	Get(ctx context.Context, ownerID, id string) (quiz.Record, error)
	// List returns one page of records, newest first. Pages start at 0.
	List(ctx context.Context, ownerID string, page int) ([]quiz.Record, error)
	Count(ctx context.Context, ownerID string) (int, error)
	Delete(ctx context.Context, ownerID, id string) error
}

// Store is the full persistence surface: records plus balances.
type Store interface {
	RecordStore
	Balance(ctx context.Context, ownerID string) (decimal.Decimal, error)
	// Debit decrements the balance only if it covers amount, otherwise it returns
	// credits.ErrInsufficientCredits and leaves the balance untouched.
	Debit(ctx context.Context, ownerID string, amount decimal.Decimal) error
	SetBalance(ctx context.Context, ownerID string, amount decimal.Decimal) error
}
