package credits

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/p-n-ai/pai-quiz/internal/quiz"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakeBalances struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
	debits   []decimal.Decimal
	err      error
}

func newFakeBalances(owner, balance string) *fakeBalances {
	return &fakeBalances{balances: map[string]decimal.Decimal{owner: d(balance)}}
}

func (f *fakeBalances) Balance(_ context.Context, owner string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return decimal.Zero, f.err
	}
	return f.balances[owner], nil
}

func (f *fakeBalances) Debit(_ context.Context, owner string, amount decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.balances[owner].LessThan(amount) {
		return ErrInsufficientCredits
	}
	f.balances[owner] = f.balances[owner].Sub(amount)
	f.debits = append(f.debits, amount)
	return nil
}

func TestRates_Estimate(t *testing.T) {
	rates := Rates{TextPerPage: d("0.5"), ImagePerPage: d("1.5"), PerQuestion: d("0.1")}

	tests := []struct {
		name  string
		pages int
		prov  quiz.Provenance
		want  string
	}{
		{"text", 4, quiz.ProvenanceText, "2"},
		{"image", 3, quiz.ProvenanceImage, "4.5"},
		{"single page", 1, quiz.ProvenanceText, "0.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := rates.Estimate(tt.pages, tt.prov)
			if err != nil {
				t.Fatalf("Estimate() error = %v", err)
			}
			if !got.Equal(d(tt.want)) {
				t.Errorf("Estimate() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRates_Estimate_RejectsNonPositivePages(t *testing.T) {
	if _, err := DefaultRates().Estimate(0, quiz.ProvenanceText); err == nil {
		t.Error("Estimate(0) should fail")
	}
}

func TestFinalize(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		perQ     string
		accepted int
		want     string
	}{
		{"quiz", "2", "0.1", 43, "6.3"},
		{"clear-up has no per-question part", "4.5", "0", 17, "4.5"},
		{"rounds half up", "0.333", "0.001", 2, "0.34"},
		{"zero accepted", "1.25", "0.1", 0, "1.25"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Finalize(d(tt.base), d(tt.perQ), tt.accepted)
			if !got.Equal(d(tt.want)) {
				t.Errorf("Finalize() = %s, want %s", got, tt.want)
			}
			if again := Finalize(d(tt.base), d(tt.perQ), tt.accepted); !again.Equal(got) {
				t.Errorf("Finalize() not deterministic: %s then %s", got, again)
			}
			if got.Exponent() < -Places {
				t.Errorf("Finalize() = %s has more than %d places", got, Places)
			}
		})
	}
}

func TestRates_QuizPreflight(t *testing.T) {
	rates := Rates{PerQuestion: d("0.1")}
	got := rates.QuizPreflight(d("2"), 45)
	if !got.Equal(d("6.5")) {
		t.Errorf("QuizPreflight() = %s, want 6.5", got)
	}
}

func TestCheckBalance(t *testing.T) {
	if err := CheckBalance(d("12"), d("10")); !errors.Is(err, ErrInsufficientCredits) {
		t.Errorf("CheckBalance(12, 10) = %v, want ErrInsufficientCredits", err)
	}
	if err := CheckBalance(d("10"), d("10")); err != nil {
		t.Errorf("CheckBalance(10, 10) = %v, want nil (exact balance is enough)", err)
	}
}

func TestLedger_PreflightAndCommit(t *testing.T) {
	store := newFakeBalances("u1", "10")
	ledger := NewLedger(store, DefaultRates())
	ctx := context.Background()

	if err := ledger.Preflight(ctx, "u1", d("12")); !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("Preflight() = %v, want ErrInsufficientCredits", err)
	}
	if err := ledger.Preflight(ctx, "u1", d("6.3")); err != nil {
		t.Fatalf("Preflight() error = %v", err)
	}
	if err := ledger.Commit(ctx, "u1", d("6.3")); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	balance, err := ledger.Balance(ctx, "u1")
	if err != nil {
		t.Fatalf("Balance() error = %v", err)
	}
	if !balance.Equal(d("3.7")) {
		t.Errorf("balance = %s, want 3.7", balance)
	}
	if len(store.debits) != 1 {
		t.Errorf("debits = %d, want exactly 1", len(store.debits))
	}
}

func TestLedger_CommitRejectsOverdraw(t *testing.T) {
	store := newFakeBalances("u1", "1")
	ledger := NewLedger(store, DefaultRates())

	err := ledger.Commit(context.Background(), "u1", d("5"))
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Errorf("Commit() = %v, want ErrInsufficientCredits", err)
	}
}

func TestLedger_CommitRejectsNegative(t *testing.T) {
	ledger := NewLedger(newFakeBalances("u1", "1"), DefaultRates())
	if err := ledger.Commit(context.Background(), "u1", d("-1")); err == nil {
		t.Error("Commit() with a negative charge should fail")
	}
}

func TestLedger_StoreFailure(t *testing.T) {
	store := newFakeBalances("u1", "10")
	store.err = errors.New("connection reset")
	ledger := NewLedger(store, DefaultRates())

	err := ledger.Preflight(context.Background(), "u1", d("1"))
	if err == nil || errors.Is(err, ErrInsufficientCredits) {
		t.Errorf("Preflight() = %v, want a read failure", err)
	}
}

func TestLocalLocker_Serializes(t *testing.T) {
	locker := NewLocalLocker()
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "u1")
	if err != nil {
		t.Fatalf("Lock() error = %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		unlock2, err := locker.Lock(ctx, "u1")
		if err != nil {
			return
		}
		close(acquired)
		unlock2()
	}()

	select {
	case <-acquired:
		t.Fatal("second Lock() acquired while the first was held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("second Lock() never acquired after unlock")
	}
}

func TestLocalLocker_IndependentKeys(t *testing.T) {
	locker := NewLocalLocker()
	ctx := context.Background()

	unlock1, err := locker.Lock(ctx, "u1")
	if err != nil {
		t.Fatalf("Lock(u1) error = %v", err)
	}
	defer unlock1()

	unlock2, err := locker.Lock(ctx, "u2")
	if err != nil {
		t.Fatalf("Lock(u2) error = %v", err)
	}
	unlock2()
}

func TestLocalLocker_ContextCancelled(t *testing.T) {
	locker := NewLocalLocker()

	unlock, err := locker.Lock(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := locker.Lock(ctx, "u1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Lock() = %v, want DeadlineExceeded", err)
	}
}

func TestLocalLocker_UnlockIsIdempotent(t *testing.T) {
	locker := NewLocalLocker()
	unlock, err := locker.Lock(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	unlock()
	unlock()

	if len(locker.slots) != 0 {
		t.Errorf("slots = %d, want 0 after release", len(locker.slots))
	}
}

func TestLoadRates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rates.yaml")
	content := "text_per_page: 0.25\nper_question: \"0.05\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	rates, err := LoadRates(path, DefaultRates())
	if err != nil {
		t.Fatalf("LoadRates() error = %v", err)
	}
	if !rates.TextPerPage.Equal(d("0.25")) {
		t.Errorf("TextPerPage = %s, want 0.25", rates.TextPerPage)
	}
	if !rates.PerQuestion.Equal(d("0.05")) {
		t.Errorf("PerQuestion = %s, want 0.05", rates.PerQuestion)
	}
	if !rates.ImagePerPage.Equal(DefaultRates().ImagePerPage) {
		t.Errorf("ImagePerPage = %s, want default", rates.ImagePerPage)
	}
}

func TestLoadRates_Invalid(t *testing.T) {
	dir := t.TempDir()
	tests := map[string]string{
		"not a number": "text_per_page: cheap\n",
		"negative":     "image_per_page: -1\n",
		"bad yaml":     "text_per_page: [\n",
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".yaml")
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadRates(path, DefaultRates()); err == nil {
				t.Error("LoadRates() should fail")
			}
		})
	}

	if _, err := LoadRates(filepath.Join(dir, "missing.yaml"), DefaultRates()); err == nil {
		t.Error("LoadRates() on a missing file should fail")
	}
}
