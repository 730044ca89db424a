package notify

import (
	"strings"
	"unicode"
)

// formulaTriggers are the characters a spreadsheet program interprets as the
// start of a formula.
const formulaTriggers = "=+-@"

// GuardCell neutralizes spreadsheet formula injection: a value whose first
// non-whitespace character is a formula trigger is prefixed with an apostrophe
// so it renders as literal text. Applied to every field value before it is
// handed to the tabular export collaborator, which performs no sanitization
// itself.
func GuardCell(v string) string {
	trimmed := strings.TrimLeftFunc(v, unicode.IsSpace)
	if trimmed == "" {
		return v
	}
	if strings.ContainsRune(formulaTriggers, rune(trimmed[0])) {
		return "'" + v
	}
	return v
}

// GuardRow applies GuardCell to every cell of a row.
func GuardRow(row []string) []string {
	out := make([]string, len(row))
	for i, v := range row {
		out[i] = GuardCell(v)
	}
	return out
}
