package storage

import (
	"bytes"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

// codec is the single-byte tag written at the front of every partition
// file so decompress can decode it regardless of which tier the file
// currently lives in. Lifecycle recompresses a migrated file with its
// destination tier's codec.
type codec byte

const (
	codecZstd   codec = 'z'
	codecBrotli codec = 'b'
)

// codecForTier selects the per-tier codec of spec.md §4.4: hot and warm
// use a fast codec (zstd at its fastest preset, matching gastrolog's own
// chunk compression), cold uses a higher-ratio codec (brotli) since cold
// data is rarely read and pays the cost of writing once.
func codecForTier(tier Tier) codec {
	if tier == Cold {
		return codecBrotli
	}
	return codecZstd
}

// compress encodes data with the tier-appropriate codec and prefixes the
// result with a one-byte codec tag.
func compress(tier Tier, data []byte) ([]byte, error) {
	c := codecForTier(tier)

	var body []byte
	var err error
	switch c {
	case codecZstd:
		body, err = compressZstd(data)
	case codecBrotli:
		body, err = compressBrotli(data)
	}
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(body)+1)
	out = append(out, byte(c))
	out = append(out, body...)
	return out, nil
}

// decompress reads the codec tag and decodes accordingly, independent of
// which tier the file currently resides in.
func decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("storage: empty compressed payload")
	}
	c := codec(data[0])
	body := data[1:]

	switch c {
	case codecZstd:
		return decompressZstd(body)
	case codecBrotli:
		return decompressBrotli(body)
	default:
		return nil, fmt.Errorf("storage: unknown codec tag %q", c)
	}
}

func compressZstd(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

func decompressZstd(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}

func compressBrotli(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, 9)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressBrotli(data []byte) ([]byte, error) {
	r := brotli.NewReader(bytes.NewReader(data))
	return io.ReadAll(r)
}
