package logger

import (
	"fmt"
	"strings"
)

// SanitizeForLog escapes control characters so file names and tool output
// cannot forge log lines or drive the terminal. Printable Unicode is kept.
func SanitizeForLog(s string) string {
	if strings.IndexFunc(s, isControl) < 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 8)
	for _, r := range s {
		switch r {
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if isControl(r) {
				fmt.Fprintf(&b, `\x%02x`, r)
				continue
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isControl(r rune) bool {
	return r < 32 || r == 127
}
