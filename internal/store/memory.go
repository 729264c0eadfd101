package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/p-n-ai/pai-quiz/internal/credits"
	"github.com/p-n-ai/pai-quiz/internal/quiz"
)

// MemoryStore is an in-memory Store for development and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	records  []quiz.Record // insertion order
	balances map[string]decimal.Decimal
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		balances: make(map[string]decimal.Decimal),
	}
}

func (s *MemoryStore) Insert(_ context.Context, rec *quiz.Record) error {
	if rec.OwnerID == "" {
		return fmt.Errorf("owner id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	s.records = append(s.records, cloneRecord(*rec))
	return nil
}

func (s *MemoryStore) Get(_ context.Context, ownerID, id string) (quiz.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.records {
		if r.ID == id && r.OwnerID == ownerID {
			return cloneRecord(r), nil
		}
	}
	return quiz.Record{}, ErrNotFound
}

func (s *MemoryStore) List(_ context.Context, ownerID string, page int) ([]quiz.Record, error) {
	if page < 0 {
		return nil, fmt.Errorf("page must not be negative, got %d", page)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	skip := page * PageSize
	out := []quiz.Record{}
	for i := len(s.records) - 1; i >= 0 && len(out) < PageSize; i-- {
		r := s.records[i]
		if r.OwnerID != ownerID {
			continue
		}
		if skip > 0 {
			skip--
			continue
		}
		out = append(out, cloneRecord(r))
	}
	return out, nil
}

func (s *MemoryStore) Count(_ context.Context, ownerID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, r := range s.records {
		if r.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Delete(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.records {
		if r.ID == id && r.OwnerID == ownerID {
			s.records = append(s.records[:i], s.records[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) Balance(_ context.Context, ownerID string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[ownerID], nil
}

func (s *MemoryStore) Debit(_ context.Context, ownerID string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("debit amount must not be negative, got %s", amount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.balances[ownerID]
	if current.LessThan(amount) {
		return credits.ErrInsufficientCredits
	}
	s.balances[ownerID] = current.Sub(amount)
	return nil
}

func (s *MemoryStore) SetBalance(_ context.Context, ownerID string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("balance must not be negative, got %s", amount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[ownerID] = amount
	return nil
}

func cloneRecord(r quiz.Record) quiz.Record {
	r.QuestionTypes = append([]quiz.QuestionType(nil), r.QuestionTypes...)
	r.Questions = append([]quiz.Question(nil), r.Questions...)
	for i := range r.Questions {
		q := &r.Questions[i]
		q.Choices = append([]quiz.Choice(nil), q.Choices...)
		q.TruthOptions = append([]quiz.TruthOption(nil), q.TruthOptions...)
		q.Answers = append([]string(nil), q.Answers...)
	}
	return r
}
