package metrics

import (
	"math/rand"
	"strings"
	"unicode"
)

// sample reports whether an observation at rate should be recorded and the
// factor to scale it by.
func sample(rate float64, random func() float64) (bool, float64) {
	if rate <= 0 || rate >= 1 {
		return true, 1
	}
	if random == nil {
		random = rand.Float64
	}
	if random() >= rate {
		return false, 0
	}
	return true, 1 / rate
}

// promName converts a dotted metric name to a valid Prometheus name.
func promName(name string) string {
	return strings.Map(func(r rune) rune {
		if r == '_' || r == ':' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return '_'
	}, name)
}
