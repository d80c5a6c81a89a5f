// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package recoverui

import (
	"slices"
	"strings"
	"sync"

	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"
	"github.com/tyler-smith/go-bip39/wordlists"
)

var wordSet = sync.OnceValue(func() map[string]bool {
	set := make(map[string]bool, len(wordlists.English))
	for _, word := range wordlists.English {
		set[word] = true
	}
	return set
})

// isWord reports whether word is in the mnemonic wordlist.
func isWord(word string) bool {
	return wordSet()[word]
}

// newSlab allocates the scratch memory fzf's matcher reuses across
// calls. One slab per model; the matcher is not called concurrently.
func newSlab() *util.Slab {
	return util.MakeSlab(100*1024, 2048)
}

type scoredWord struct {
	word  string
	score int
}

// suggest ranks the wordlist against the partial word the operator
// has typed and returns the best matches. An exact or prefix match
// naturally outranks scattered-letter matches under fzf's scoring.
func suggest(partial string, limit int, slab *util.Slab) []string {
	partial = strings.ToLower(strings.TrimSpace(partial))
	if partial == "" {
		return nil
	}
	pattern := []rune(partial)

	var scored []scoredWord
	for _, word := range wordlists.English {
		chars := util.ToChars([]byte(word))
		result, _ := algo.FuzzyMatchV2(false, true, true, &chars, pattern, false, slab)
		if result.Score <= 0 {
			continue
		}
		scored = append(scored, scoredWord{word: word, score: result.Score})
	}

	slices.SortFunc(scored, func(a, b scoredWord) int {
		if a.score != b.score {
			return b.score - a.score
		}
		return strings.Compare(a.word, b.word)
	})

	words := make([]string, 0, min(limit, len(scored)))
	for _, candidate := range scored[:min(limit, len(scored))] {
		words = append(words, candidate.word)
	}
	return words
}
