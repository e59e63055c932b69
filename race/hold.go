package race

import (
	"RC/configs"
	"math/rand"
	"time"

	"github.com/pingcap/go-ycsb/pkg/generator"
)

// HoldGenerator draws how long, in microseconds, the interferer keeps a
// contended lock after waking the driver.
type HoldGenerator interface {
	Next(r *rand.Rand) int64
}

func NewHoldGenerator(kind string, operationLength time.Duration) (HoldGenerator, error) {
	op := micros(operationLength)
	switch kind {
	case configs.UniformHold:
		return generator.NewUniform(0, op), nil
	case configs.ConstantHold:
		return generator.NewConstant(op), nil
	default:
		return nil, configs.Errorf("unknown hold distribution %q", kind)
	}
}
