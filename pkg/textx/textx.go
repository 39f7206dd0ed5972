// Package textx provides small text utilities used across the project.
package textx

import (
	"strings"
	"unicode"
)

// SanitizeText drops control characters other than tab, newline and carriage
// return, then trims surrounding whitespace. CRM payloads occasionally carry
// NUL and other control bytes from upstream form encoders.
func SanitizeText(s string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', '\t':
			return r
		}
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(cleaned)
}

// NormalizeSpace sanitizes s and collapses every run of whitespace into a
// single space, yielding a stable single-line form for field values.
func NormalizeSpace(s string) string {
	return strings.Join(strings.FieldsFunc(SanitizeText(s), unicode.IsSpace), " ")
}
