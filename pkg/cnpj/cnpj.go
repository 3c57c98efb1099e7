// Package cnpj normalizes Brazilian company registry numbers.
package cnpj

import (
	"errors"
	"strings"
	"unicode"
)

const Length = 14

var ErrInvalid = errors.New("cnpj must contain exactly 14 digits")

// Normalize strips punctuation, keeping only digits
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(Length)
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Parse normalizes raw and rejects anything that is not 14 digits.
// Letters are rejected rather than silently dropped.
func Parse(raw string) (string, error) {
	for _, r := range raw {
		if unicode.IsLetter(r) {
			return "", ErrInvalid
		}
	}
	digits := Normalize(raw)
	if len(digits) != Length {
		return "", ErrInvalid
	}
	return digits, nil
}

// Format renders a normalized CNPJ as 00.000.000/0000-00
func Format(digits string) string {
	if len(digits) != Length {
		return digits
	}
	return digits[0:2] + "." + digits[2:5] + "." + digits[5:8] + "/" + digits[8:12] + "-" + digits[12:14]
}
