package tokenizer

import "sync"

// ByteMap is the reversible byte <-> rune table used to run BPE over printable text.
type ByteMap struct {
	encode [256]rune
	decode map[rune]byte
}

var defaultByteMap = sync.OnceValue(newByteMap)

// Bytes returns the process-wide byte table.
func Bytes() *ByteMap {
	return defaultByteMap()
}

// newByteMap maps printable bytes (33-126, 161-172, 174-255) to themselves and
// every other byte to 256+n in ascending byte order.
func newByteMap() *ByteMap {
	m := &ByteMap{decode: make(map[rune]byte, 256)}
	n := 0
	for b := 0; b < 256; b++ {
		r := rune(b)
		if !isPrintableByte(b) {
			r = rune(256 + n)
			n++
		}
		m.encode[b] = r
		m.decode[r] = byte(b)
	}
	return m
}

func isPrintableByte(b int) bool {
	switch {
	case b >= '!' && b <= '~':
		return true
	case b >= 0xA1 && b <= 0xAC:
		return true
	case b >= 0xAE && b <= 0xFF:
		return true
	}
	return false
}

// Rune returns the printable rune standing in for b.
func (m *ByteMap) Rune(b byte) rune {
	return m.encode[b]
}

// Byte reverses Rune.
func (m *ByteMap) Byte(r rune) (byte, bool) {
	b, ok := m.decode[r]
	return b, ok
}

// Encode rewrites every byte of s as its stand-in rune.
func (m *ByteMap) Encode(s string) string {
	out := make([]rune, len(s))
	for i := 0; i < len(s); i++ {
		out[i] = m.encode[s[i]]
	}
	return string(out)
}

// Decode reverses Encode. Runes outside the table are kept as UTF-8.
func (m *ByteMap) Decode(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if b, ok := m.decode[r]; ok {
			out = append(out, b)
			continue
		}
		out = append(out, string(r)...)
	}
	return out
}
