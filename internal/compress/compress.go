// Package compress detects and decodes compressed data file distributions.
//
// Data files may be shipped as a zstd, gzip, s2 (framed) or lz4 (frame)
// stream. Detection reads the stream's magic bytes; anything unrecognised is
// treated as an uncompressed data file.
package compress

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/hupe1980/ipintel/internal/format"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Algorithm identifies a compression container format.
type Algorithm uint8

const (
	None Algorithm = iota
	Zstd
	Gzip
	S2
	LZ4
)

func (a Algorithm) String() string {
	switch a {
	case None:
		return "none"
	case Zstd:
		return "zstd"
	case Gzip:
		return "gzip"
	case S2:
		return "s2"
	case LZ4:
		return "lz4"
	default:
		return fmt.Sprintf("algorithm(%d)", uint8(a))
	}
}

var (
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	gzipMagic = []byte{0x1f, 0x8b}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
	// s2 and snappy framed streams start with a stream identifier chunk.
	s2Magic     = []byte("\xff\x06\x00\x00S2sTwO")
	snappyMagic = []byte("\xff\x06\x00\x00sNaPpY")
)

// MagicLen is the number of leading bytes Detect needs.
const MagicLen = 10

// Detect returns the algorithm whose magic bytes prefix b.
func Detect(b []byte) Algorithm {
	switch {
	case bytes.HasPrefix(b, zstdMagic):
		return Zstd
	case bytes.HasPrefix(b, gzipMagic):
		return Gzip
	case bytes.HasPrefix(b, lz4Magic):
		return LZ4
	case bytes.HasPrefix(b, s2Magic), bytes.HasPrefix(b, snappyMagic):
		return S2
	default:
		return None
	}
}

// NewReader returns a reader that decodes r with alg.
func NewReader(alg Algorithm, r io.Reader) (io.ReadCloser, error) {
	switch alg {
	case None:
		return io.NopCloser(r), nil
	case Zstd:
		d, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, err
		}
		return d.IOReadCloser(), nil
	case Gzip:
		return gzip.NewReader(r)
	case S2:
		return io.NopCloser(s2.NewReader(r)), nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	default:
		return nil, fmt.Errorf("%w: unknown compression %s", format.ErrInvalidInput, alg)
	}
}

// Decode sniffs r and returns its decoded contents together with the
// detected algorithm. Uncompressed input is returned as read. limit bounds
// the decoded size; 0 means unlimited.
func Decode(r io.Reader, limit int64) ([]byte, Algorithm, error) {
	br := bufio.NewReader(r)
	// A short peek only means the stream is shorter than every magic.
	magic, _ := br.Peek(MagicLen)
	alg := Detect(magic)

	dec, err := NewReader(alg, br)
	if err != nil {
		return nil, alg, fmt.Errorf("%w: %s stream: %w", format.ErrCorruptData, alg, err)
	}
	defer dec.Close()

	src := io.Reader(dec)
	if limit > 0 {
		src = io.LimitReader(dec, limit+1)
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, alg, fmt.Errorf("%w: %s stream: %w", format.ErrCorruptData, alg, err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, alg, fmt.Errorf("%w: decoded data exceeds %d bytes", format.ErrInsufficientMemory, limit)
	}
	return data, alg, nil
}
