package tokenizer

import (
	"math"
	"sync"
)

// EndOfWord is appended to the last symbol of every word before merging.
const EndOfWord = "</w>"

// BPE splits byte-encoded words into sub-word symbols by greedy rank-ordered merging.
// Results are memoised per word; the cache only grows.
type BPE struct {
	vocab *Vocabulary

	mu    sync.RWMutex
	cache map[string][]string
}

func NewBPE(vocab *Vocabulary) *BPE {
	return &BPE{
		vocab: vocab,
		cache: make(map[string][]string),
	}
}

// Split returns the final symbol sequence for word. The returned slice is shared
// with the cache and must not be modified.
func (e *BPE) Split(word string) []string {
	if word == "" {
		return nil
	}
	e.mu.RLock()
	cached, ok := e.cache[word]
	e.mu.RUnlock()
	if ok {
		return cached
	}

	symbols := e.merge(word)

	e.mu.Lock()
	// another goroutine may have computed the same word; both results are equal
	if prev, ok := e.cache[word]; ok {
		symbols = prev
	} else {
		e.cache[word] = symbols
	}
	e.mu.Unlock()
	return symbols
}

// Cached reports how many words are memoised.
func (e *BPE) Cached() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.cache)
}

func (e *BPE) merge(word string) []string {
	symbols := splitRunes(word)
	symbols[len(symbols)-1] += EndOfWord

	for len(symbols) > 1 {
		best, ok := e.bestPair(symbols)
		if !ok {
			break
		}
		symbols = mergePair(symbols, best)
	}
	return symbols
}

// bestPair returns the lowest ranked adjacent pair. Pairs without a rank are
// never chosen.
func (e *BPE) bestPair(symbols []string) (Pair, bool) {
	bestRank := math.MaxInt
	var best Pair
	found := false
	for p := range getPairs(symbols) {
		if rank, ok := e.vocab.Rank(p); ok && rank < bestRank {
			bestRank = rank
			best = p
			found = true
		}
	}
	return best, found
}

func splitRunes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

func getPairs(word []string) map[Pair]struct{} {
	pairs := make(map[Pair]struct{}, len(word))
	for i := 1; i < len(word); i++ {
		pairs[Pair{A: word[i-1], B: word[i]}] = struct{}{}
	}
	return pairs
}

// mergePair joins every non-overlapping occurrence of pair in one left-to-right pass.
func mergePair(word []string, pair Pair) []string {
	out := make([]string, 0, len(word))
	for i := 0; i < len(word); i++ {
		if i < len(word)-1 && word[i] == pair.A && word[i+1] == pair.B {
			out = append(out, word[i]+word[i+1])
			i++
			continue
		}
		out = append(out, word[i])
	}
	return out
}
