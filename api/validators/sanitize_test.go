package validators

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeString(t *testing.T) {
	cases := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{name: "trims", input: "  Beras Premium  ", want: "Beras Premium"},
		{name: "folds whitespace", input: "CV\t Sumber \n Pangan", want: "CV Sumber Pangan"},
		{name: "drops control", input: "INV\x00-001", want: "INV-001"},
		{name: "truncates runes", input: "Ñasi Kuning", maxLen: 4, want: "Ñasi"},
		{name: "no trailing space at limit", input: "ab cd", maxLen: 3, want: "ab"},
		{name: "unlimited", input: "abc", maxLen: 0, want: "abc"},
		{name: "empty", input: "   ", want: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SanitizeString(tc.input, tc.maxLen))
		})
	}
}
