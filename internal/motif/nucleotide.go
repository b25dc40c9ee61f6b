package motif

import (
	"fmt"
	"strings"
)

// Nucleotide codes. Complementary bases sum to 3.
const (
	A = iota
	C
	G
	T
)

const alphabet = "ACGT"

// Complement returns the code of the complementary base.
func Complement(code int) int {
	return 3 - code
}

// ReverseComplement returns a new slice holding the reverse complement of seq.
func ReverseComplement(seq []int) []int {
	n := len(seq)
	out := make([]int, n)
	for i := 0; i < n; i++ {
		out[i] = Complement(seq[n-1-i])
	}
	return out
}

// Encode converts an ACGT string (case-insensitive, U read as T) to codes.
func Encode(s string) ([]int, error) {
	out := make([]int, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case 'A', 'a':
			out = append(out, A)
		case 'C', 'c':
			out = append(out, C)
		case 'G', 'g':
			out = append(out, G)
		case 'T', 't', 'U', 'u':
			out = append(out, T)
		default:
			return nil, fmt.Errorf("invalid nucleotide %q at position %d", s[i], i)
		}
	}
	return out, nil
}

// Decode converts codes back to an ACGT string. Out-of-range codes become N.
func Decode(seq []int) string {
	var b strings.Builder
	b.Grow(len(seq))
	for _, code := range seq {
		if code < 0 || code >= len(alphabet) {
			b.WriteByte('N')
			continue
		}
		b.WriteByte(alphabet[code])
	}
	return b.String()
}
