package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

const unknownToken = "unknown"

var foldCase = cases.Lower(language.Und)

// fileNameRune maps one rune of a file name. Path separators and wildcard
// characters become '-', characters Windows rejects are dropped. -1 drops.
func fileNameRune(r rune) rune {
	switch {
	case unicode.IsControl(r):
		return -1
	case strings.ContainsRune(`/\:*`, r):
		return '-'
	case strings.ContainsRune(`?"<>|`, r):
		return -1
	}
	return r
}

// SanitizeFileName makes name safe as a single path segment on Linux, macOS
// and Windows. The result is NFC so names from NFD hosts compare equal.
// Leading and trailing dots are removed.
func SanitizeFileName(name string) string {
	name = strings.Map(fileNameRune, norm.NFC.String(name))
	name = strings.Trim(strings.TrimSpace(name), ".")
	return strings.TrimSpace(name)
}

// SanitizeToken lower-cases value and keeps letters, digits, '-' and '_';
// every other rune becomes '_'. Values with nothing left map to "unknown".
func SanitizeToken(value string) string {
	folded := foldCase.String(norm.NFC.String(strings.TrimSpace(value)))
	token := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, folded)
	if token = strings.Trim(token, "_-"); token == "" {
		return unknownToken
	}
	return token
}
