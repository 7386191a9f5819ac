package embedstore

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// Wire layout, little-endian:
//
//	int32 count
//	count x {
//	    uvarint(7-bit) byte length, UTF-8 identifier
//	    int32 dim
//	    float32[dim]
//	}

const (
	maxPrefixBytes = 5
	// allocation chunk while reading vectors and identifiers of unknown size
	readChunk = 4096
)

// Encode writes idx to w.
func Encode(w io.Writer, idx *Index) error {
	bw := bufio.NewWriter(w)
	var scratch [4]byte

	if idx.Len() > math.MaxInt32 {
		return fmt.Errorf("embedstore: too many records: %d", idx.Len())
	}
	binary.LittleEndian.PutUint32(scratch[:], uint32(idx.Len()))
	if _, err := bw.Write(scratch[:]); err != nil {
		return err
	}
	for _, rec := range idx.Records() {
		if err := writeString(bw, rec.ID); err != nil {
			return err
		}
		if len(rec.Vector) > math.MaxInt32 {
			return fmt.Errorf("embedstore: record %q: vector too long", rec.ID)
		}
		binary.LittleEndian.PutUint32(scratch[:], uint32(len(rec.Vector)))
		if _, err := bw.Write(scratch[:]); err != nil {
			return err
		}
		for _, v := range rec.Vector {
			binary.LittleEndian.PutUint32(scratch[:], math.Float32bits(v))
			if _, err := bw.Write(scratch[:]); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// Marshal returns the binary form of idx.
func Marshal(idx *Index) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, idx); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads an index from r. Any failure wraps ErrCorrupt and no partial
// index is returned.
func Decode(r io.Reader) (*Index, error) {
	br := bufio.NewReader(r)

	count, err := readInt32(br)
	if err != nil {
		return nil, corruptf("record count: %v", err)
	}
	if count < 0 {
		return nil, corruptf("negative record count %d", count)
	}

	idx := New(min(int(count), readChunk))
	for i := 0; i < int(count); i++ {
		id, err := readString(br)
		if err != nil {
			return nil, corruptf("record %d identifier: %v", i, err)
		}
		dim, err := readInt32(br)
		if err != nil {
			return nil, corruptf("record %d dimension: %v", i, err)
		}
		if dim < 0 {
			return nil, corruptf("record %d: negative dimension %d", i, dim)
		}
		vec, err := readFloats(br, int(dim))
		if err != nil {
			return nil, corruptf("record %d vector: %v", i, err)
		}
		if err := idx.Add(id, vec); err != nil {
			return nil, corruptf("record %d: %v", i, err)
		}
	}
	return idx, nil
}

// Unmarshal decodes an index from b.
func Unmarshal(b []byte) (*Index, error) {
	return Decode(bytes.NewReader(b))
}

func writeString(w *bufio.Writer, s string) error {
	if len(s) > math.MaxInt32 {
		return fmt.Errorf("embedstore: identifier too long")
	}
	var prefix [binary.MaxVarintLen32]byte
	n := binary.PutUvarint(prefix[:], uint64(len(s)))
	if _, err := w.Write(prefix[:n]); err != nil {
		return err
	}
	_, err := w.WriteString(s)
	return err
}

func readString(r *bufio.Reader) (string, error) {
	n, err := readPrefix(r)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	buf.Grow(min(n, readChunk))
	if _, err := io.CopyN(&buf, r, int64(n)); err != nil {
		return "", unexpectedEOF(err)
	}
	return buf.String(), nil
}

// readPrefix reads a 7-bit encoded length of at most five bytes that fits in an int32.
func readPrefix(r *bufio.Reader) (int, error) {
	var v uint64
	for shift := 0; shift < 7*maxPrefixBytes; shift += 7 {
		b, err := r.ReadByte()
		if err != nil {
			return 0, unexpectedEOF(err)
		}
		v |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			if v > math.MaxInt32 {
				return 0, fmt.Errorf("string length %d out of range", v)
			}
			return int(v), nil
		}
	}
	return 0, errors.New("string length prefix too long")
}

func readInt32(r io.Reader) (int32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, unexpectedEOF(err)
	}
	return int32(binary.LittleEndian.Uint32(b[:])), nil
}

func readFloats(r io.Reader, n int) ([]float32, error) {
	out := make([]float32, 0, min(n, readChunk))
	buf := make([]byte, 4*min(n, readChunk))
	for len(out) < n {
		chunk := min(n-len(out), readChunk)
		b := buf[:4*chunk]
		if _, err := io.ReadFull(r, b); err != nil {
			return nil, unexpectedEOF(err)
		}
		for i := 0; i < chunk; i++ {
			out = append(out, math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:])))
		}
	}
	return out, nil
}

func unexpectedEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
