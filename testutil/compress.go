package testutil

import (
	"bytes"
	"fmt"
	"io"
	"testing"

	"github.com/hupe1980/ipintel/internal/compress"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func newWriter(alg compress.Algorithm, w io.Writer) (io.WriteCloser, error) {
	switch alg {
	case compress.None:
		return nopWriteCloser{w}, nil
	case compress.Zstd:
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	case compress.Gzip:
		return gzip.NewWriter(w), nil
	case compress.S2:
		return s2.NewWriter(w), nil
	case compress.LZ4:
		return lz4.NewWriter(w), nil
	default:
		return nil, fmt.Errorf("unknown compression %s", alg)
	}
}

// Encode compresses data with alg the way data files are distributed.
func Encode(alg compress.Algorithm, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := newWriter(alg, &buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Compress is Encode failing tb on error.
func Compress(tb testing.TB, alg compress.Algorithm, data []byte) []byte {
	tb.Helper()
	out, err := Encode(alg, data)
	if err != nil {
		tb.Fatalf("compress %s: %v", alg, err)
	}
	return out
}
