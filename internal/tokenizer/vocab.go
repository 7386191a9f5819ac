package tokenizer

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-json"
)

const (
	BOSToken = "<|startoftext|>"
	EOSToken = "<|endoftext|>"

	// Fallback sentinel ids used when the vocabulary does not carry the markers.
	DefaultBOSID = 49406
	DefaultEOSID = 49407
)

// Pair represents a pair of adjacent BPE symbols.
type Pair struct {
	A string
	B string
}

// Vocabulary holds the token table and merge ranks of a tokenizer definition.
// It is immutable once built.
type Vocabulary struct {
	tokens map[string]int
	ids    map[int]string
	ranks  map[Pair]int
	bosID  int
	eosID  int
}

type definitionJSON struct {
	Model *struct {
		Type   string            `json:"type"`
		Vocab  map[string]int    `json:"vocab"`
		Merges []json.RawMessage `json:"merges"`
	} `json:"model"`
}

// LoadVocabulary reads a tokenizer.json file.
func LoadVocabulary(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseVocabulary(data)
}

// ParseVocabulary decodes a tokenizer definition of the form
// {"model":{"vocab":{...},"merges":[...]}}.
func ParseVocabulary(data []byte) (*Vocabulary, error) {
	var def definitionJSON
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if def.Model == nil {
		return nil, fmt.Errorf("%w: missing \"model\"", ErrConfig)
	}
	if typ := def.Model.Type; typ != "" && !strings.EqualFold(typ, "BPE") {
		return nil, fmt.Errorf("%w: unsupported model type %q", ErrConfig, typ)
	}
	if def.Model.Vocab == nil {
		return nil, fmt.Errorf("%w: missing \"model.vocab\"", ErrConfig)
	}
	if def.Model.Merges == nil {
		return nil, fmt.Errorf("%w: missing \"model.merges\"", ErrConfig)
	}

	merges := make([]string, 0, len(def.Model.Merges))
	for i, raw := range def.Model.Merges {
		line, err := mergeLine(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: merge %d: %v", ErrConfig, i, err)
		}
		merges = append(merges, line)
	}
	return NewVocabulary(def.Model.Vocab, merges)
}

// NewVocabulary builds a Vocabulary from a token table and an ordered merge list.
// Each merge is "left right", split at the last space. Position in the list is the rank.
func NewVocabulary(tokens map[string]int, merges []string) (*Vocabulary, error) {
	v := &Vocabulary{
		tokens: make(map[string]int, len(tokens)),
		ids:    make(map[int]string, len(tokens)),
		ranks:  make(map[Pair]int, len(merges)),
	}
	for tok, id := range tokens {
		if prev, dup := v.ids[id]; dup {
			return nil, fmt.Errorf("%w: id %d used by %q and %q", ErrConfig, id, prev, tok)
		}
		v.tokens[tok] = id
		v.ids[id] = tok
	}

	rank := 0
	for _, line := range merges {
		if strings.TrimSpace(line) == "" {
			continue
		}
		cut := strings.LastIndexByte(line, ' ')
		if cut < 0 {
			continue
		}
		// a repeated pair takes the later rank
		v.ranks[Pair{A: line[:cut], B: line[cut+1:]}] = rank
		rank++
	}

	v.bosID = DefaultBOSID
	if id, ok := v.tokens[BOSToken]; ok {
		v.bosID = id
	}
	v.eosID = DefaultEOSID
	if id, ok := v.tokens[EOSToken]; ok {
		v.eosID = id
	}
	return v, nil
}

func mergeLine(raw json.RawMessage) (string, error) {
	var line string
	if err := json.Unmarshal(raw, &line); err == nil {
		return line, nil
	}
	var pair []string
	if err := json.Unmarshal(raw, &pair); err != nil {
		return "", fmt.Errorf("expected string or [left, right] array")
	}
	if len(pair) != 2 {
		return "", fmt.Errorf("expected 2 symbols, got %d", len(pair))
	}
	return pair[0] + " " + pair[1], nil
}

// ID returns the id of tok.
func (v *Vocabulary) ID(tok string) (int, bool) {
	id, ok := v.tokens[tok]
	return id, ok
}

// Token returns the token string for id.
func (v *Vocabulary) Token(id int) (string, bool) {
	tok, ok := v.ids[id]
	return tok, ok
}

// Rank returns the merge rank of p. Lower ranks merge first.
func (v *Vocabulary) Rank(p Pair) (int, bool) {
	r, ok := v.ranks[p]
	return r, ok
}

func (v *Vocabulary) BOSID() int { return v.bosID }
func (v *Vocabulary) EOSID() int { return v.eosID }

// Size returns the number of tokens.
func (v *Vocabulary) Size() int { return len(v.tokens) }

// Merges returns the number of ranked merge pairs.
func (v *Vocabulary) Merges() int { return len(v.ranks) }
