package race

import (
	"RC/configs"
	"math"
	"math/rand"
)

// Schedule decides per item whether the interferer contends. It is built
// once, before the first wake, and only read afterwards.
type Schedule struct {
	shouldBeLocked []bool
	count          int
}

// BuildSchedule shuffles [0,total) and marks the first round(total*percent/100)
// indices as contended.
func BuildSchedule(total int, percent int, r *rand.Rand) (*Schedule, error) {
	if total <= 0 {
		return nil, configs.Errorf("schedule size must be positive, got %d", total)
	}
	if percent < 0 || percent > 100 {
		return nil, configs.Errorf("race probability must be within [0,100], got %d", percent)
	}
	numbers := make([]int, total)
	for i := range numbers {
		numbers[i] = i
	}
	r.Shuffle(total, func(i, j int) {
		numbers[i], numbers[j] = numbers[j], numbers[i]
	})
	count := int(math.Round(float64(total*percent) / 100))
	res := &Schedule{shouldBeLocked: make([]bool, total), count: count}
	for _, n := range numbers[:count] {
		res.shouldBeLocked[n] = true
	}
	return res, nil
}

func (s *Schedule) ShouldContend(index int) bool {
	configs.Assert(index >= 0 && index < len(s.shouldBeLocked), "schedule index out of range")
	return s.shouldBeLocked[index]
}

func (s *Schedule) Len() int {
	return len(s.shouldBeLocked)
}

// Count the number of contended items.
func (s *Schedule) Count() int {
	return s.count
}
