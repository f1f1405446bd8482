package proptest

import (
	"os"
	"strconv"
	"testing"
)

// DefaultTrials is the number of trials QuickCheck runs.
const DefaultTrials = 100

// Config controls a property check.
type Config struct {
	// NumTrials is the number of generated inputs. Zero means DefaultTrials.
	NumTrials int

	// Seed fixes the first trial's seed. Zero derives it from PROPTEST_SEED
	// or the clock. Trial i uses Seed+i.
	Seed int64
}

// QuickCheck runs prop with the default configuration.
func QuickCheck(t testing.TB, name string, prop func(g *Generator) bool) {
	t.Helper()
	Check(t, name, Config{}, prop)
}

// Check runs prop once per trial with a fresh seeded Generator and fails the
// test on the first trial that returns false. The failing seed is reported
// so the trial can be replayed with PROPTEST_SEED.
func Check(t testing.TB, name string, cfg Config, prop func(g *Generator) bool) {
	t.Helper()

	trials := cfg.NumTrials
	if trials <= 0 {
		trials = DefaultTrials
	}

	base := cfg.Seed
	if base == 0 {
		if env := os.Getenv("PROPTEST_SEED"); env != "" {
			seed, err := strconv.ParseInt(env, 10, 64)
			if err != nil {
				t.Fatalf("proptest: invalid PROPTEST_SEED %q: %v", env, err)
			}
			base = seed
			trials = 1
		} else {
			base = New(0).Seed()
		}
	}

	for i := 0; i < trials; i++ {
		g := New(base + int64(i))
		if !prop(g) {
			t.Fatalf("property %q failed on trial %d (seed %d; rerun with PROPTEST_SEED=%d)",
				name, i+1, g.Seed(), g.Seed())
			return
		}
	}
}
