package store

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// codec serializes records as zstd-compressed JSON. EncodeAll and DecodeAll
// are safe for concurrent use.
type codec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newCodec() (*codec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("store: create encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("store: create decoder: %w", err)
	}
	return &codec{enc: enc, dec: dec}, nil
}

func (c *codec) encode(rec Record) ([]byte, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("store: marshal record: %w", err)
	}
	return c.enc.EncodeAll(raw, nil), nil
}

func (c *codec) decode(b []byte) (Record, error) {
	raw, err := c.dec.DecodeAll(b, nil)
	if err != nil {
		return Record{}, fmt.Errorf("store: decompress record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, fmt.Errorf("store: unmarshal record: %w", err)
	}
	return rec, nil
}

func (c *codec) close() {
	c.enc.Close() //nolint:errcheck
	c.dec.Close()
}
