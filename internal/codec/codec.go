// Package codec serializes, compresses, and integrity-checks archive payloads.
// A compressed frame is the immutable unit written to cold storage; the
// SHA-256 digest is computed over the whole frame so that tampering with
// either the header or the compressed bytes is detectable.
package codec

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"

	verrors "github.com/logvault/logvault/internal/errors"
	"github.com/logvault/logvault/pkg/types"
)

// Algorithm selects the compression pass applied after serialization.
type Algorithm byte

const (
	AlgorithmSnappy Algorithm = 0x01
	AlgorithmZstd   Algorithm = 0x02
)

// magic identifies a logvault archive frame: [magic:4][algorithm:1][compressed payload].
var magic = [4]byte{'L', 'V', 'A', '1'}

// ParseAlgorithm converts a config string into an Algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch s {
	case "snappy":
		return AlgorithmSnappy, nil
	case "zstd":
		return AlgorithmZstd, nil
	default:
		return 0, fmt.Errorf("codec: unknown compression algorithm %q", s)
	}
}

func (a Algorithm) String() string {
	switch a {
	case AlgorithmSnappy:
		return "snappy"
	case AlgorithmZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", byte(a))
	}
}

// Codec compresses ordered record sets into archive frames and back.
// The record order given to Compress is the order Decompress returns.
type Codec struct {
	algorithm Algorithm
	zEnc      *zstd.Encoder
	zDec      *zstd.Decoder
}

// New creates a codec using the given compression algorithm for writes.
// Decompression always honors the algorithm recorded in the frame header,
// so archives written with a different algorithm remain readable.
func New(algorithm Algorithm) (*Codec, error) {
	c := &Codec{algorithm: algorithm}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("codec: failed to create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("codec: failed to create zstd decoder: %w", err)
	}
	c.zEnc = enc
	c.zDec = dec

	return c, nil
}

// Algorithm returns the algorithm used for new frames.
func (c *Codec) Algorithm() Algorithm {
	return c.algorithm
}

// Compress serializes the record set and compresses it into an archive frame.
// An empty record set produces a valid frame that round-trips to empty.
func (c *Codec) Compress(records []types.LogRecord) ([]byte, error) {
	payload, err := json.Marshal(records)
	if err != nil {
		return nil, verrors.NewCodecError(verrors.CodeEncodeFailed, "failed to serialize records", err)
	}

	var compressed []byte
	switch c.algorithm {
	case AlgorithmSnappy:
		compressed = snappy.Encode(nil, payload)
	case AlgorithmZstd:
		compressed = c.zEnc.EncodeAll(payload, nil)
	default:
		return nil, verrors.NewCodecError(verrors.CodeEncodeFailed,
			fmt.Sprintf("unsupported algorithm %d", c.algorithm), nil)
	}

	frame := make([]byte, 0, len(magic)+1+len(compressed))
	frame = append(frame, magic[:]...)
	frame = append(frame, byte(c.algorithm))
	frame = append(frame, compressed...)

	return frame, nil
}

// Decompress reverses Compress, reconstructing the record set with the same
// count, order, and field values.
func (c *Codec) Decompress(frame []byte) ([]types.LogRecord, error) {
	if len(frame) < len(magic)+1 {
		return nil, verrors.NewCodecError(verrors.CodeBadFrame, "frame too short", nil)
	}
	if frame[0] != magic[0] || frame[1] != magic[1] || frame[2] != magic[2] || frame[3] != magic[3] {
		return nil, verrors.NewCodecError(verrors.CodeBadFrame, "bad frame magic", nil)
	}

	algorithm := Algorithm(frame[4])
	compressed := frame[5:]

	var payload []byte
	var err error
	switch algorithm {
	case AlgorithmSnappy:
		payload, err = snappy.Decode(nil, compressed)
	case AlgorithmZstd:
		payload, err = c.zDec.DecodeAll(compressed, nil)
	default:
		return nil, verrors.NewCodecError(verrors.CodeBadFrame,
			fmt.Sprintf("unsupported algorithm %d in frame", algorithm), nil)
	}
	if err != nil {
		return nil, verrors.NewCodecError(verrors.CodeDecodeFailed, "decompression failed", err)
	}

	var records []types.LogRecord
	if err := json.Unmarshal(payload, &records); err != nil {
		return nil, verrors.NewCodecError(verrors.CodeDecodeFailed, "failed to deserialize records", err)
	}
	if records == nil {
		records = []types.LogRecord{}
	}

	return records, nil
}

// Digest computes the SHA-256 digest over the compressed frame, hex-encoded.
// It is stored as blob metadata and re-verified on every retrieval.
func Digest(frame []byte) string {
	sum := sha256.Sum256(frame)
	return hex.EncodeToString(sum[:])
}
