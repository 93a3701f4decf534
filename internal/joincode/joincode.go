// Package joincode generates and formats section join codes. Codes are 8
// characters from an alphabet with ambiguous glyphs removed (no 0/O, 1/I/L,
// or U), rendered as XXXX-XXXX for readability.
package joincode

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// alphabet excludes characters that are easy to misread on a projector.
const alphabet = "23456789ABCDEFGHJKMNPQRSTVWXYZ"

// Length is the number of code characters, excluding the separator.
const Length = 8

// Generate returns a new random join code in canonical XXXX-XXXX form.
func Generate() (string, error) {
	buf := make([]byte, Length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("joincode: %w", err)
	}
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(buf[:4]) + "-" + string(buf[4:]), nil
}

// Normalize folds a user-entered code to canonical form: uppercase, common
// separators stripped, re-hyphenated. Returns an empty string when the input
// cannot be a join code.
func Normalize(s string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '-', ' ', '_', '.':
			return -1
		}
		return r
	}, strings.ToUpper(strings.TrimSpace(s)))

	if len(cleaned) != Length {
		return ""
	}
	for _, r := range cleaned {
		if !strings.ContainsRune(alphabet, r) {
			return ""
		}
	}
	return cleaned[:4] + "-" + cleaned[4:]
}

// Valid reports whether s normalizes to a well-formed join code.
func Valid(s string) bool {
	return Normalize(s) != ""
}
