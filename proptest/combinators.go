package proptest

import (
	"strconv"
	"strings"
)

// OneOf returns one of values. It panics if values is empty.
func OneOf[T any](g *Generator, values ...T) T {
	if len(values) == 0 {
		panic("proptest: OneOf called with no values")
	}
	return values[g.Intn(len(values))]
}

// Pick returns a random element of a non-empty slice.
func Pick[T any](g *Generator, slice []T) T {
	if len(slice) == 0 {
		panic("proptest: Pick called with empty slice")
	}
	return slice[g.Intn(len(slice))]
}

// Weighted returns an element of values chosen with probability proportional
// to its weight.
func Weighted[T any](g *Generator, weights []float64, values []T) T {
	if len(weights) != len(values) {
		panic("proptest: Weighted weights and values must have same length")
	}
	if len(values) == 0 {
		panic("proptest: Weighted called with no values")
	}

	var total float64
	for _, w := range weights {
		total += w
	}
	point := g.Float64() * total

	var cumulative float64
	for i, w := range weights {
		cumulative += w
		if point < cumulative {
			return values[i]
		}
	}
	return values[len(values)-1]
}

// SliceN generates a slice of length [minLen, maxLen].
func SliceN[T any](g *Generator, minLen, maxLen int, gen func(*Generator) T) []T {
	if minLen > maxLen {
		panic("proptest: SliceN minLen > maxLen")
	}
	result := make([]T, g.IntRange(minLen, maxLen))
	for i := range result {
		result[i] = gen(g)
	}
	return result
}

// Optional returns (zero, false) with probability nilChance, otherwise a
// generated value.
func Optional[T any](g *Generator, nilChance float64, gen func(*Generator) T) (T, bool) {
	if g.Float64() < nilChance {
		var zero T
		return zero, false
	}
	return gen(g), true
}

// UniqueIdentifiers returns up to n distinct lowercase identifiers.
func (g *Generator) UniqueIdentifiers(n, maxLen int) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, n)
	for i := 0; i < n*10 && len(result) < n; i++ {
		s := g.IdentifierLower(maxLen)
		if !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	return result
}

// Version returns a dotted server version with two or three segments, each
// segment at most max.
func (g *Generator) Version(max int) string {
	parts := SliceN(g, 2, 3, func(g *Generator) string {
		return strconv.Itoa(g.IntRange(0, max))
	})
	return strings.Join(parts, ".")
}
