// internal/mbim/signature.go
package mbim

import "strings"

// MaxNesting is the number of containers allowed below the root.
// Observed MBIM payloads never go past array-of-struct.
const MaxNesting = 2

// signatureEnd returns the index of the last token of the element starting at sig[i]:
// the matching ')' for structs, the end of the element for arrays, the 'y' of a
// fixed "<N>y" byte array, or i itself for basic tokens. -1 on invalid input.
func signatureEnd(sig string, i int) int {
	if i >= len(sig) {
		return -1
	}

	switch c := sig[i]; {
	case c == '(':
		j := i + 1
		for j < len(sig) && sig[j] != ')' {
			e := signatureEnd(sig, j)
			if e < 0 {
				return -1
			}
			j = e + 1
		}
		if j >= len(sig) {
			return -1
		}
		return j

	case c == 'a':
		return signatureEnd(sig, i+1)

	case c >= '0' && c <= '9':
		j := i
		for j < len(sig) && sig[j] >= '0' && sig[j] <= '9' {
			j++
		}
		if j >= len(sig) || sig[j] != 'y' {
			return -1
		}
		return j

	case isBasic(c), c == 'v', c == 'd':
		return i
	}

	return -1
}

// fixedCount parses the N of a "<N>y" token.
func fixedCount(tok string) (int, bool) {
	n := 0
	for i := 0; i < len(tok)-1; i++ {
		c := tok[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, len(tok) > 1 && tok[len(tok)-1] == 'y'
}

func isBasic(c byte) bool {
	switch c {
	case 'y', 'q', 'u', 't', 's':
		return true
	}
	return false
}

// alignment returns the wire alignment of a type tag.
func alignment(c byte) int {
	switch c {
	case 'y':
		return 1
	case 'q':
		return 2
	case 'u', 's', 'a', 'v', '(':
		return 4
	case 't':
		return 8
	}
	return 0
}

// basicSize returns the wire width of a basic type tag; strings count as their OL pair.
func basicSize(c byte) int {
	switch c {
	case 'y':
		return 1
	case 'q':
		return 2
	case 'u':
		return 4
	case 't', 's':
		return 8
	}
	return 0
}

// isFixedSize reports whether a signature range has a fixed wire size.
// Arrays of fixed-size elements are encoded as (offset, count); all others as
// count followed by inline offset/length pairs.
func isFixedSize(sig string) bool {
	return !strings.ContainsAny(sig, "asv")
}

func align(n, a int) int {
	if a <= 1 {
		return n
	}
	return (n + a - 1) &^ (a - 1)
}
