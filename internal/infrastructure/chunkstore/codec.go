// Package chunkstore holds chunk payload backends and the payload codec.
package chunkstore

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
	"github.com/zeebo/blake3"
)

// CodecKind names a payload compression scheme
type CodecKind string

const (
	CodecNone   CodecKind = "none"
	CodecSnappy CodecKind = "snappy"
	CodecZstd   CodecKind = "zstd"
	CodecLZ4    CodecKind = "lz4"
)

// frame tags, the first byte of every stored payload
var codecTags = map[CodecKind]byte{
	CodecNone:   0,
	CodecSnappy: 1,
	CodecZstd:   2,
	CodecLZ4:    3,
}

// ErrCorruptPayload is returned when a stored payload cannot be decoded
var ErrCorruptPayload = errors.New("corrupt chunk payload")

// Codec frames chunk payloads. Every stored payload starts with a tag byte
// naming its compression, so payloads written under another setting stay readable.
type Codec struct {
	kind    CodecKind
	zstdEnc *zstd.Encoder
	zstdDec *zstd.Decoder
}

// NewCodec builds the codec used for new payloads
func NewCodec(kind CodecKind) (*Codec, error) {
	if kind == "" {
		kind = CodecNone
	}
	if _, ok := codecTags[kind]; !ok {
		return nil, fmt.Errorf("unsupported chunk codec: %s", kind)
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, errors.Wrap(err, "zstd encoder")
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, errors.Wrap(err, "zstd decoder")
	}
	return &Codec{kind: kind, zstdEnc: enc, zstdDec: dec}, nil
}

// Kind returns the codec used for encoding
func (c *Codec) Kind() CodecKind {
	return c.kind
}

// Encode compresses the payload and prepends the codec tag
func (c *Codec) Encode(payload []byte) ([]byte, error) {
	var body []byte
	switch c.kind {
	case CodecNone:
		body = payload
	case CodecSnappy:
		body = snappy.Encode(nil, payload)
	case CodecZstd:
		body = c.zstdEnc.EncodeAll(payload, nil)
	case CodecLZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(payload); err != nil {
			return nil, errors.Wrap(err, "lz4 encode")
		}
		if err := w.Close(); err != nil {
			return nil, errors.Wrap(err, "lz4 encode")
		}
		body = buf.Bytes()
	}
	out := make([]byte, 0, len(body)+1)
	out = append(out, codecTags[c.kind])
	return append(out, body...), nil
}

// Decode strips the tag and decompresses with the codec that wrote the payload
func (c *Codec) Decode(stored []byte) ([]byte, error) {
	if len(stored) == 0 {
		return nil, errors.Wrap(ErrCorruptPayload, "empty payload")
	}
	tag, body := stored[0], stored[1:]
	switch tag {
	case codecTags[CodecNone]:
		return body, nil
	case codecTags[CodecSnappy]:
		out, err := snappy.Decode(nil, body)
		if err != nil {
			return nil, errors.Wrap(ErrCorruptPayload, err.Error())
		}
		return out, nil
	case codecTags[CodecZstd]:
		out, err := c.zstdDec.DecodeAll(body, nil)
		if err != nil {
			return nil, errors.Wrap(ErrCorruptPayload, err.Error())
		}
		return out, nil
	case codecTags[CodecLZ4]:
		out, err := io.ReadAll(lz4.NewReader(bytes.NewReader(body)))
		if err != nil {
			return nil, errors.Wrap(ErrCorruptPayload, err.Error())
		}
		return out, nil
	default:
		return nil, errors.Wrapf(ErrCorruptPayload, "unknown codec tag %d", tag)
	}
}

// Close releases the zstd workers
func (c *Codec) Close() {
	_ = c.zstdEnc.Close()
	c.zstdDec.Close()
}

// Digest returns the hex blake3 digest of a stored payload
func Digest(stored []byte) string {
	sum := blake3.Sum256(stored)
	return hex.EncodeToString(sum[:])
}

// Verify checks a stored payload against its recorded digest
func Verify(stored []byte, digest string) error {
	if got := Digest(stored); got != digest {
		return errors.Wrapf(ErrCorruptPayload, "digest mismatch: recorded %s, computed %s", digest, got)
	}
	return nil
}
