package proptest

// Character sets for string generation.
const (
	CharsetAlpha      = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	CharsetAlphaLower = "abcdefghijklmnopqrstuvwxyz"
	CharsetDigits     = "0123456789"
	CharsetAlphaNum   = CharsetAlpha + CharsetDigits
	CharsetPrintable  = CharsetAlphaNum + " !\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"
)

// IntRange returns an int in [min, max].
func (g *Generator) IntRange(min, max int) int {
	if max <= min {
		return min
	}
	return min + g.Intn(max-min+1)
}

// Int64Range returns an int64 in [min, max].
func (g *Generator) Int64Range(min, max int64) int64 {
	if max <= min {
		return min
	}
	return min + g.Int63n(max-min+1)
}

// StringFromN returns a string of length [minLen, maxLen] drawn from charset.
func (g *Generator) StringFromN(charset string, minLen, maxLen int) string {
	n := g.IntRange(minLen, maxLen)
	b := make([]byte, n)
	for i := range b {
		b[i] = charset[g.Intn(len(charset))]
	}
	return string(b)
}

// String returns a printable string of length [0, maxLen].
func (g *Generator) String(maxLen int) string {
	return g.StringFromN(CharsetPrintable, 0, maxLen)
}

// StringAlphaNum returns an alphanumeric string of length [1, maxLen].
func (g *Generator) StringAlphaNum(maxLen int) string {
	return g.StringFromN(CharsetAlphaNum, 1, maxLen)
}

// IdentifierLower returns a lowercase SQL identifier of length [1, maxLen]:
// a letter followed by letters, digits or underscores.
func (g *Generator) IdentifierLower(maxLen int) string {
	if maxLen < 1 {
		maxLen = 1
	}
	first := g.StringFromN(CharsetAlphaLower, 1, 1)
	return first + g.StringFromN(CharsetAlphaLower+CharsetDigits+"_", 0, maxLen-1)
}
