// Package roomid generates memorable room ids such as "hazy-otter-mochi-quill".
package roomid

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// Words is the number of words in a generated id.
const Words = 4

// Generate creates a random room id from Words distinct word lists. When
// inUse is non-nil, ids it reports as taken are skipped.
func Generate(inUse func(string) bool) string {
	for {
		id := generate()
		if inUse == nil || !inUse(id) {
			return id
		}
	}
}

func generate() string {
	// Pick Words lists without replacement, then one word from each.
	order := make([]int, len(lists))
	for i := range order {
		order[i] = i
	}
	for i := len(order) - 1; i > 0; i-- {
		j := randomIndex(i + 1)
		order[i], order[j] = order[j], order[i]
	}

	words := make([]string, 0, Words)
	for _, li := range order[:Words] {
		list := lists[li]
		words = append(words, list[randomIndex(len(list))])
	}
	return strings.Join(words, "-")
}

// randomIndex returns a cryptographically secure random index below max.
func randomIndex(max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		panic("roomid: reading random source: " + err.Error())
	}
	return int(n.Int64())
}

// Valid reports whether id looks like a room id: non-empty lowercase words
// joined by hyphens.
func Valid(id string) bool {
	if id == "" {
		return false
	}
	for _, word := range strings.Split(id, "-") {
		if word == "" {
			return false
		}
		for _, r := range word {
			if r < 'a' || r > 'z' {
				return false
			}
		}
	}
	return true
}
