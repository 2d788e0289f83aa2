package alphavantage

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestTruncate(t *testing.T) {
	t.Parallel()

	require.Equal(t, "short", truncate("short", 10))
	require.Equal(t, "abc", truncate("abcdef", 3))

	// "é" is two bytes; cutting at byte 4 would split it.
	s := strings.Repeat("a", 3) + "é" + "z"
	got := truncate(s, 4)
	require.Equal(t, "aaa", got)
	require.True(t, utf8.ValidString(got))
}
