package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/p-n-ai/pai-quiz/internal/credits"
	"github.com/p-n-ai/pai-quiz/internal/quiz"
)

//go:embed schema.sql
var schemaSQL string

// Migrate creates the tables the store needs. It is safe to run on every start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return fmt.Errorf("pool is nil")
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// PostgresStore is a PostgreSQL-backed Store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

const recordColumns = `id::text, owner_id, kind, provenance, question_types, difficulty, title,
	question_count, credits::text, skipped_segments, questions, created_at`

func (s *PostgresStore) Insert(ctx context.Context, rec *quiz.Record) error {
	if rec.OwnerID == "" {
		return fmt.Errorf("owner id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	questions := rec.Questions
	if questions == nil {
		questions = []quiz.Question{}
	}
	data, err := json.Marshal(questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}

	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	types := make([]string, len(rec.QuestionTypes))
	for i, t := range rec.QuestionTypes {
		types[i] = string(t)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO quiz_records
		   (id, owner_id, kind, provenance, question_types, difficulty, title,
		    question_count, credits, skipped_segments, questions, created_at)
		 VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9::numeric, $10, $11::jsonb, $12)`,
		id,
		rec.OwnerID,
		string(rec.Kind),
		string(rec.Provenance),
		types,
		string(rec.Difficulty),
		rec.Title,
		rec.QuestionCount,
		rec.CreditsCharged.StringFixed(credits.Places),
		rec.SkippedSegments,
		string(data),
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}

	rec.ID = id
	rec.CreatedAt = createdAt
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, ownerID, id string) (quiz.Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return quiz.Record{}, ErrNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rec, err := scanRecord(s.pool.QueryRow(ctx,
		`SELECT `+recordColumns+`
		 FROM quiz_records
		 WHERE id = $1::uuid AND owner_id = $2`,
		id,
		ownerID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return quiz.Record{}, ErrNotFound
	}
	if err != nil {
		return quiz.Record{}, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) List(ctx context.Context, ownerID string, page int) ([]quiz.Record, error) {
	if page < 0 {
		return nil, fmt.Errorf("page must not be negative, got %d", page)
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT `+recordColumns+`
		 FROM quiz_records
		 WHERE owner_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2 OFFSET $3`,
		ownerID,
		PageSize,
		page*PageSize,
	)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	out := []quiz.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Count(ctx context.Context, ownerID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var n int
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM quiz_records WHERE owner_id = $1`,
		ownerID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	cmd, err := s.pool.Exec(ctx,
		`DELETE FROM quiz_records WHERE id = $1::uuid AND owner_id = $2`,
		id,
		ownerID,
	)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Balance returns zero for owners that have never been credited.
func (s *PostgresStore) Balance(ctx context.Context, ownerID string) (decimal.Decimal, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var raw string
	err := s.pool.QueryRow(ctx,
		`SELECT credits::text FROM owners WHERE id = $1`,
		ownerID,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("get balance: %w", err)
	}

	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse balance %q: %w", raw, err)
	}
	return d, nil
}

// Debit is a single conditional UPDATE, so concurrent debits can never overdraw.
func (s *PostgresStore) Debit(ctx context.Context, ownerID string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("debit amount must not be negative, got %s", amount)
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	cmd, err := s.pool.Exec(ctx,
		`UPDATE owners
		 SET credits = credits - $2::numeric, updated_at = NOW()
		 WHERE id = $1 AND credits >= $2::numeric`,
		ownerID,
		amount.StringFixed(credits.Places),
	)
	if err != nil {
		return fmt.Errorf("debit balance: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return credits.ErrInsufficientCredits
	}
	return nil
}

func (s *PostgresStore) SetBalance(ctx context.Context, ownerID string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("balance must not be negative, got %s", amount)
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO owners (id, credits) VALUES ($1, $2::numeric)
		 ON CONFLICT (id) DO UPDATE SET credits = EXCLUDED.credits, updated_at = NOW()`,
		ownerID,
		amount.StringFixed(credits.Places),
	)
	if err != nil {
		return fmt.Errorf("set balance: %w", err)
	}
	return nil
}

func scanRecord(row pgx.Row) (quiz.Record, error) {
	var (
		rec        quiz.Record
		kind       string
		provenance string
		types      []string
		difficulty string
		rawCredits string
		questions  []byte
	)
	if err := row.Scan(
		&rec.ID,
		&rec.OwnerID,
		&kind,
		&provenance,
		&types,
		&difficulty,
		&rec.Title,
		&rec.QuestionCount,
		&rawCredits,
		&rec.SkippedSegments,
		&questions,
		&rec.CreatedAt,
	); err != nil {
		return quiz.Record{}, err
	}

	rec.Kind = quiz.Kind(kind)
	rec.Provenance = quiz.Provenance(provenance)
	rec.Difficulty = quiz.Difficulty(difficulty)
	rec.QuestionTypes = make([]quiz.QuestionType, len(types))
	for i, t := range types {
		rec.QuestionTypes[i] = quiz.QuestionType(t)
	}

	c, err := decimal.NewFromString(rawCredits)
	if err != nil {
		return quiz.Record{}, fmt.Errorf("parse credits %q: %w", rawCredits, err)
	}
	rec.CreditsCharged = c

	if err := json.Unmarshal(questions, &rec.Questions); err != nil {
		return quiz.Record{}, fmt.Errorf("unmarshal questions: %w", err)
	}
	return rec, nil
}
