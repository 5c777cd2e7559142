package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		limit int
		want  string
	}{
		{name: "under limit", in: "hello", limit: 10, want: "hello"},
		{name: "exact limit", in: "hello", limit: 5, want: "hello"},
		{name: "over limit", in: "hello world", limit: 5, want: "hello"},
		{name: "zero limit", in: "hello", limit: 0, want: ""},
		{name: "multibyte", in: "🧠🧠🧠", limit: 2, want: "🧠🧠"},
		{name: "cuts mid word", in: "alpha beta", limit: 7, want: "alpha b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Truncate(tt.in, tt.limit))
		})
	}
}

func TestTruncateNeverExceedsLimit(t *testing.T) {
	body := strings.Repeat("é", 5000)
	for _, limit := range []int{1, 1800, 1900, 4999, 5000, 6000} {
		out := Truncate(body, limit)
		assert.LessOrEqual(t, CharCount(out), limit)
	}
}
