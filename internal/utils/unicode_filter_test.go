package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "plain", input: "Fuite d'eau", expected: "Fuite d'eau"},
		{name: "accents preserved", input: "Économat résumé", expected: "Économat résumé"},
		{name: "emoji preserved", input: "Merci 👍", expected: "Merci 👍"},
		{name: "crlf", input: "ligne 1\r\nligne 2\rligne 3", expected: "ligne 1\nligne 2\nligne 3"},
		{name: "control chars", input: "a\x00b\x07c\u200bd", expected: "abcd"},
		{name: "tabs kept", input: "\tA\tB  ", expected: "A\tB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanText(tt.input))
		})
	}
}
