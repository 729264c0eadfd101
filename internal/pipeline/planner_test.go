package pipeline

import (
	"slices"
	"testing"
)

func TestPlan(t *testing.T) {
	tests := []struct {
		total int
		want  []int
	}{
		{5, []int{5}},
		{20, []int{20}},
		{21, []int{20, 1}},
		{45, []int{20, 20, 5}},
		{60, []int{20, 20, 20}},
		{100, []int{20, 20, 20, 20, 20}},
	}

	for _, tt := range tests {
		got, err := Plan(tt.total, 20)
		if err != nil {
			t.Fatalf("Plan(%d) error = %v", tt.total, err)
		}
		if !slices.Equal(got, tt.want) {
			t.Errorf("Plan(%d) = %v, want %v", tt.total, got, tt.want)
		}
	}
}

func TestPlan_Properties(t *testing.T) {
	const roundCap = 20
	for total := 5; total <= 100; total++ {
		plan, err := Plan(total, roundCap)
		if err != nil {
			t.Fatalf("Plan(%d) error = %v", total, err)
		}

		sum := 0
		for _, n := range plan {
			if n <= 0 || n > roundCap {
				t.Errorf("Plan(%d) has round of size %d", total, n)
			}
			sum += n
		}
		if sum != total {
			t.Errorf("sum(Plan(%d)) = %d", total, sum)
		}
		if want := (total + roundCap - 1) / roundCap; len(plan) != want {
			t.Errorf("len(Plan(%d)) = %d, want %d", total, len(plan), want)
		}
	}
}

func TestPlan_Invalid(t *testing.T) {
	if _, err := Plan(0, 20); err == nil {
		t.Error("Plan(0) should fail")
	}
	if _, err := Plan(10, 0); err == nil {
		t.Error("Plan with zero cap should fail")
	}
}
