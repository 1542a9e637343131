// Package snapshot serializes the game state. States are plain JSON; a
// blake3 checksum over the JSON guards against corruption. Database blobs
// are lz4-compressed and export files zstd-compressed.
package snapshot

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"lukechampine.com/blake3"

	"github.com/talgya/archipelago/internal/engine"
)

// Version is the format version written to headers.
const Version = 1

// ErrChecksum is returned when stored data does not match its checksum.
// The decoded state is still returned alongside it.
var ErrChecksum = errors.New("snapshot checksum mismatch")

// Encode marshals a state to JSON.
func Encode(s *engine.GameState) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return data, nil
}

// Decode unmarshals a state from JSON.
func Decode(data []byte) (*engine.GameState, error) {
	var s engine.GameState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return &s, nil
}

// Checksum is the hex blake3-256 digest of data.
func Checksum(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Compress lz4-compresses data.
func Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("lz4 write: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("lz4 close: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress.
func Decompress(data []byte) ([]byte, error) {
	out, err := io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
	if err != nil {
		return nil, fmt.Errorf("lz4 read: %w", err)
	}
	return out, nil
}

// Blob is a compressed state ready to be stored.
type Blob struct {
	Data     []byte // lz4-compressed JSON
	Checksum string // Over the uncompressed JSON
	RawSize  int
}

// Pack encodes, checksums and compresses a state.
func Pack(s *engine.GameState) (Blob, error) {
	raw, err := Encode(s)
	if err != nil {
		return Blob{}, err
	}
	data, err := Compress(raw)
	if err != nil {
		return Blob{}, err
	}
	return Blob{Data: data, Checksum: Checksum(raw), RawSize: len(raw)}, nil
}

// Unpack reverses Pack. If checksum is non-empty and does not match, the
// state is returned with ErrChecksum.
func Unpack(data []byte, checksum string) (*engine.GameState, error) {
	raw, err := Decompress(data)
	if err != nil {
		return nil, err
	}
	s, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	if checksum != "" && Checksum(raw) != checksum {
		return s, ErrChecksum
	}
	return s, nil
}

// Header is the first line of an export file.
type Header struct {
	Version  int       `json:"version"`
	SavedAt  time.Time `json:"saved_at"`
	GameTime time.Time `json:"game_time"`
	Cities   int       `json:"cities"`
	Checksum string    `json:"checksum"`
}

// WriteFile writes a zstd-compressed export: a JSON header line followed
// by the state JSON.
func WriteFile(path string, s *engine.GameState) (Header, error) {
	raw, err := Encode(s)
	if err != nil {
		return Header{}, err
	}
	h := Header{
		Version:  Version,
		SavedAt:  time.Now().UTC(),
		GameTime: s.LastUpdate,
		Cities:   len(s.Cities),
		Checksum: Checksum(raw),
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Header{}, err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return Header{}, err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return Header{}, err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(h)
	if _, err := bw.Write(append(hb, '\n')); err != nil {
		return Header{}, err
	}
	if _, err := bw.Write(raw); err != nil {
		return Header{}, err
	}
	if err := bw.Flush(); err != nil {
		return Header{}, err
	}
	if err := enc.Close(); err != nil {
		return Header{}, fmt.Errorf("zstd close: %w", err)
	}
	return h, f.Close()
}

// ReadFile reads an export written by WriteFile. A checksum mismatch
// returns the state, its header and ErrChecksum.
func ReadFile(path string) (*engine.GameState, Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Header{}, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, Header{}, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return nil, Header{}, fmt.Errorf("read header: %w", err)
	}
	var h Header
	if err := json.Unmarshal(line, &h); err != nil {
		return nil, Header{}, fmt.Errorf("decode header: %w", err)
	}
	if h.Version != Version {
		return nil, h, fmt.Errorf("unsupported snapshot version %d", h.Version)
	}

	raw, err := io.ReadAll(br)
	if err != nil {
		return nil, h, fmt.Errorf("read state: %w", err)
	}
	s, err := Decode(raw)
	if err != nil {
		return nil, h, err
	}
	if Checksum(raw) != h.Checksum {
		return s, h, ErrChecksum
	}
	return s, h, nil
}
