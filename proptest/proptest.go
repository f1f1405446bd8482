// Package proptest runs seeded property checks. Every trial gets its own
// Generator; a failing trial reports its seed so it can be replayed with
// PROPTEST_SEED.
//
//	func TestRenderIsDeterministic(t *testing.T) {
//	    proptest.QuickCheck(t, "render is deterministic", func(g *proptest.Generator) bool {
//	        v := g.Version(20)
//	        ...
//	    })
//	}
package proptest

import (
	"math/rand"
	"time"
)

// Generator is a seeded source of test inputs.
type Generator struct {
	rng  *rand.Rand
	seed int64
}

// New creates a Generator. A zero seed is taken from the clock.
func New(seed int64) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{
		rng:  rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Seed returns the generator's seed.
func (g *Generator) Seed() int64 { return g.seed }

// Intn returns an int in [0, n). It panics if n <= 0.
func (g *Generator) Intn(n int) int { return g.rng.Intn(n) }

// Int63n returns an int64 in [0, n). It panics if n <= 0.
func (g *Generator) Int63n(n int64) int64 { return g.rng.Int63n(n) }

// Float64 returns a float64 in [0.0, 1.0).
func (g *Generator) Float64() float64 { return g.rng.Float64() }

// Bool returns true or false with equal probability.
func (g *Generator) Bool() bool { return g.rng.Intn(2) == 1 }
