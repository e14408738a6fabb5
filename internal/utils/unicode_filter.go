package utils

import (
	"regexp"
	"strings"
)

var (
	controlChars = regexp.MustCompile(`[\x{0000}-\x{0008}\x{000B}\x{000C}\x{000E}-\x{001F}\x{007F}\x{200B}-\x{200D}\x{FEFF}]`)
	crlf         = regexp.MustCompile(`\r\n?`)
)

// CleanText normalizes user supplied free text: line endings become \n,
// control and zero-width characters are removed and surrounding space is
// trimmed. Accents and emoji are preserved.
func CleanText(input string) string {
	result := crlf.ReplaceAllString(input, "\n")
	result = controlChars.ReplaceAllString(result, "")
	return strings.TrimSpace(result)
}
