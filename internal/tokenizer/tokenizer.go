package tokenizer

import (
	"strings"
	"sync/atomic"
)

// DefaultContextLength is the sequence length expected by CLIP-style text encoders.
const DefaultContextLength = 77

// Tokenizer turns text into fixed-length id sequences. It is safe for concurrent use.
type Tokenizer struct {
	vocab   *Vocabulary
	bytes   *ByteMap
	bpe     *BPE
	dropped atomic.Uint64
}

// New builds a Tokenizer around vocab. The BPE cache is owned by the Tokenizer.
func New(vocab *Vocabulary) *Tokenizer {
	return &Tokenizer{
		vocab: vocab,
		bytes: Bytes(),
		bpe:   NewBPE(vocab),
	}
}

// Load reads a tokenizer.json file and builds a Tokenizer from it.
func Load(path string) (*Tokenizer, error) {
	vocab, err := LoadVocabulary(path)
	if err != nil {
		return nil, err
	}
	return New(vocab), nil
}

// Encode returns exactly contextLength ids: BOS, the BPE ids of text, EOS, then
// zero padding. Overlong sequences are cut and end in EOS. Symbols missing from the
// vocabulary are skipped.
func (t *Tokenizer) Encode(text string, contextLength int) []int {
	if contextLength <= 0 {
		return []int{}
	}
	ids := make([]int, 0, contextLength)
	ids = append(ids, t.vocab.BOSID())
	for _, symbol := range t.Tokens(text) {
		id, ok := t.vocab.ID(symbol)
		if !ok {
			t.dropped.Add(1)
			continue
		}
		ids = append(ids, id)
	}
	ids = append(ids, t.vocab.EOSID())

	if len(ids) > contextLength {
		ids = ids[:contextLength]
		ids[contextLength-1] = t.vocab.EOSID()
		return ids
	}
	for len(ids) < contextLength {
		ids = append(ids, 0)
	}
	return ids
}

// Tokens returns the BPE symbols of text without id lookup or wrapping.
func (t *Tokenizer) Tokens(text string) []string {
	var out []string
	for _, run := range PreTokenize(Normalize(text)) {
		out = append(out, t.bpe.Split(t.bytes.Encode(run))...)
	}
	return out
}

// Decode maps ids back to text. It stops at the first EOS so padding is ignored;
// end-of-word markers become spaces.
func (t *Tokenizer) Decode(ids []int) string {
	var b strings.Builder
	for _, id := range ids {
		if id == t.vocab.EOSID() {
			break
		}
		if id == t.vocab.BOSID() {
			continue
		}
		tok, ok := t.vocab.Token(id)
		if !ok {
			continue
		}
		word, eow := strings.CutSuffix(tok, EndOfWord)
		b.Write(t.bytes.Decode(word))
		if eow {
			b.WriteByte(' ')
		}
	}
	return strings.TrimSpace(b.String())
}

// Dropped counts BPE symbols that had no vocabulary id since construction.
func (t *Tokenizer) Dropped() uint64 {
	return t.dropped.Load()
}

func (t *Tokenizer) Vocabulary() *Vocabulary { return t.vocab }
func (t *Tokenizer) BOSID() int               { return t.vocab.BOSID() }
func (t *Tokenizer) EOSID() int               { return t.vocab.EOSID() }
