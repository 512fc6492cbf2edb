package roomid

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	for range 50 {
		id := Generate(nil)
		words := strings.Split(id, "-")
		require.Len(t, words, Words, id)
		assert.True(t, Valid(id), id)

		// Each word comes from a different list.
		seen := make(map[int]bool)
		for _, w := range words {
			li := listOf(w)
			require.NotEqual(t, -1, li, w)
			assert.False(t, seen[li], "two words from list %d in %s", li, id)
			seen[li] = true
		}
	}
}

func TestGenerate_SkipsInUse(t *testing.T) {
	first := Generate(nil)
	calls := 0
	id := Generate(func(candidate string) bool {
		calls++
		return calls == 1 || candidate == first
	})
	assert.GreaterOrEqual(t, calls, 2)
	assert.NotEqual(t, first, id)
}

func TestValid(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"hazy-otter-mochi-quill", true},
		{"room", true},
		{"", false},
		{"a--b", false},
		{"Hazy-otter", false},
		{"otter-42", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Valid(tt.id), tt.id)
	}
}

func listOf(word string) int {
	for i, list := range lists {
		for _, w := range list {
			if w == word {
				return i
			}
		}
	}
	return -1
}
