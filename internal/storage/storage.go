// Thaw - Staged Matrix Factorization for Cold-Start Recommendations
// Copyright 2026 OpenRec Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/openrec/thaw

// Package storage provides directory-based model persistence.
//
// A saved model is a directory holding gob-encoded, gzip-compressed blob
// files plus a JSON manifest. Each blob carries a SHA-256 checksum of the
// uncompressed payload, verified on read, so corruption surfaces as an
// error instead of a silently wrong model.
package storage

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// ErrNotEmpty is returned by PrepareDir when the target directory already
// contains files and overwriting was not requested.
var ErrNotEmpty = errors.New("directory is not empty")

// ManifestFile is the name of the manifest inside a model directory.
const ManifestFile = "manifest.json"

// BlobMetadata describes one stored blob.
type BlobMetadata struct {
	// Kind names the payload (e.g., "hybrid_model", "cold_start_model").
	Kind string `json:"kind"`

	// SavedAt is when the blob was written.
	SavedAt time.Time `json:"saved_at"`

	// Checksum is the SHA-256 checksum of the uncompressed payload.
	Checksum string `json:"checksum"`

	// SizeBytes is the compressed payload size in bytes.
	SizeBytes int64 `json:"size_bytes"`
}

// Manifest describes a model directory.
type Manifest struct {
	// ModelID uniquely identifies this saved model.
	ModelID string `json:"model_id"`

	// Kind names the model type stored in the directory.
	Kind string `json:"kind"`

	// CreatedAt is when the directory was written.
	CreatedAt time.Time `json:"created_at"`

	// Blobs lists the blob files in the directory with their checksums.
	Blobs map[string]string `json:"blobs"`
}

// NewManifest creates a manifest for a model directory.
func NewManifest(kind string) *Manifest {
	return &Manifest{
		ModelID:   uuid.NewString(),
		Kind:      kind,
		CreatedAt: time.Now().UTC(),
		Blobs:     make(map[string]string),
	}
}

// storedBlob is the on-disk format for blob files.
type storedBlob struct {
	Metadata       BlobMetadata
	CompressedData []byte
}

// PrepareDir ensures dir exists and is writable as a model directory.
// An existing non-empty directory fails with ErrNotEmpty unless overwrite
// is set, in which case its contents are removed first.
func PrepareDir(dir string, overwrite bool) error {
	entries, err := os.ReadDir(dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// fresh directory
	case err != nil:
		return fmt.Errorf("read model directory: %w", err)
	case len(entries) > 0 && !overwrite:
		return fmt.Errorf("model directory %s: %w", dir, ErrNotEmpty)
	case len(entries) > 0:
		for _, entry := range entries {
			if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
				return fmt.Errorf("clear model directory: %w", err)
			}
		}
	}

	if err := os.MkdirAll(dir, 0o750); err != nil { //nolint:gosec // 0750 is acceptable for model storage
		return fmt.Errorf("create model directory: %w", err)
	}

	return nil
}

// WriteBlob gob-encodes data, records its checksum, compresses it, and
// writes it to path. Returns the blob metadata for manifest bookkeeping.
func WriteBlob(path, kind string, data interface{}) (*BlobMetadata, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(data); err != nil {
		return nil, fmt.Errorf("encode %s: %w", kind, err)
	}

	rawData := buf.Bytes()
	hash := sha256.Sum256(rawData)

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(rawData); err != nil {
		return nil, fmt.Errorf("compress %s: %w", kind, err)
	}
	if err := gzw.Close(); err != nil {
		return nil, fmt.Errorf("finalize compression: %w", err)
	}

	meta := BlobMetadata{
		Kind:      kind,
		SavedAt:   time.Now().UTC(),
		Checksum:  hex.EncodeToString(hash[:]),
		SizeBytes: int64(compressed.Len()),
	}

	f, err := os.Create(path) //nolint:gosec // path is constructed from a trusted model directory
	if err != nil {
		return nil, fmt.Errorf("create blob file: %w", err)
	}
	defer func() { _ = f.Close() }() //nolint:errcheck // error on close after write surfaces via Encode

	fileEnc := gob.NewEncoder(f)
	if err := fileEnc.Encode(storedBlob{Metadata: meta, CompressedData: compressed.Bytes()}); err != nil {
		return nil, fmt.Errorf("write blob file: %w", err)
	}

	return &meta, nil
}

// ReadBlob reads a blob written by WriteBlob, verifies its checksum, and
// gob-decodes the payload into target.
func ReadBlob(path string, target interface{}) (*BlobMetadata, error) {
	f, err := os.Open(path) //nolint:gosec // path is constructed from a trusted model directory
	if err != nil {
		return nil, fmt.Errorf("open blob file: %w", err)
	}
	defer func() { _ = f.Close() }() //nolint:errcheck // error on close after read is not actionable

	var sb storedBlob
	fileDec := gob.NewDecoder(f)
	if err := fileDec.Decode(&sb); err != nil {
		return nil, fmt.Errorf("read blob file: %w", err)
	}

	gzr, err := gzip.NewReader(bytes.NewReader(sb.CompressedData))
	if err != nil {
		return nil, fmt.Errorf("decompress blob: %w", err)
	}
	defer func() { _ = gzr.Close() }() //nolint:errcheck // error on gzip close after read is not actionable

	rawData, err := io.ReadAll(gzr)
	if err != nil {
		return nil, fmt.Errorf("read decompressed data: %w", err)
	}

	hash := sha256.Sum256(rawData)
	checksum := hex.EncodeToString(hash[:])
	if checksum != sb.Metadata.Checksum {
		return nil, fmt.Errorf("checksum mismatch: expected %s, got %s", sb.Metadata.Checksum, checksum)
	}

	dec := gob.NewDecoder(bytes.NewReader(rawData))
	if err := dec.Decode(target); err != nil {
		return nil, fmt.Errorf("decode %s: %w", sb.Metadata.Kind, err)
	}

	return &sb.Metadata, nil
}

// WriteManifest writes the manifest to its well-known file in dir.
func WriteManifest(dir string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), data, 0o600); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// ReadManifest reads the manifest from dir.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile)) //nolint:gosec // path is constructed from a trusted model directory
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}
