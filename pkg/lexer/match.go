package lexer

import (
	"strings"

	"github.com/xplshn/sqltok/pkg/token"
)

// longestMatch returns the longest option that equals the source text at ic,
// or "" if none does. The probe grows one byte at a time; an option drops out
// once the probe is longer than it or stops being its prefix, and the scan
// ends when every option has dropped out. With fold set the comparison
// ignores ASCII case and the option's own spelling is returned.
func longestMatch(source string, ic token.Cursor, options []string, fold bool) string {
	rest := source[min(ic.Offset, uint(len(source))):]
	skipped := make([]bool, len(options))
	remaining := len(options)
	matched := ""

	for n := 1; n <= len(rest) && remaining > 0; n++ {
		probe := rest[:n]
		for idx, option := range options {
			if skipped[idx] {
				continue
			}
			if n > len(option) || !sameText(option[:n], probe, fold) {
				skipped[idx] = true
				remaining--
				continue
			}
			if n == len(option) {
				skipped[idx] = true
				remaining--
				if n > len(matched) {
					matched = option
				}
			}
		}
	}
	return matched
}

func sameText(a, b string, fold bool) bool {
	if fold {
		return strings.EqualFold(a, b)
	}
	return a == b
}
