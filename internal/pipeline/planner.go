package pipeline

import "fmt"

// Plan splits total into rounds of at most roundCap, full rounds first and the remainder
// last. The result always sums to total.
func Plan(total, roundCap int) ([]int, error) {
	if total <= 0 {
		return nil, fmt.Errorf("total must be positive, got %d", total)
	}
	if roundCap <= 0 {
		return nil, fmt.Errorf("round cap must be positive, got %d", roundCap)
	}

	full, remainder := total/roundCap, total%roundCap
	rounds := make([]int, 0, full+1)
	for range full {
		rounds = append(rounds, roundCap)
	}
	if remainder > 0 {
		rounds = append(rounds, remainder)
	}
	return rounds, nil
}
