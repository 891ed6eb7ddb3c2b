// Copyright 2026 The Fleetmas Authors
// SPDX-License-Identifier: Apache-2.0

// Package cache persists per-endpoint model snapshots between client
// runs, so a restarted console shows the last known fleet state while
// sessions reconnect.
//
// Each snapshot is one file: a 10-byte header (format version,
// compression tag, big-endian uncompressed size) followed by the
// CBOR-encoded, optionally compressed snapshot. Files are written
// atomically (temporary file, fsync, rename) so a crashed writer
// never leaves a reader a partial snapshot. Keys are endpoint
// identities; they are hashed to fixed-width filenames so hosts and
// ports never need filesystem escaping.
package cache

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"

	"github.com/fleetmas/fleetmas/lib/codec"
)

// ErrMiss is returned by Get when no snapshot exists for the key.
var ErrMiss = errors.New("cache: no snapshot for key")

// formatVersion is bumped when the header or payload layout changes.
// A version mismatch on read is treated as a miss, not an error — old
// snapshots are advisory state, never worth failing a session over.
const formatVersion = 1

const headerSize = 1 + 1 + 8 // version, compression tag, uncompressed size

// Store is a directory of snapshot files. Safe for concurrent use by
// independent sessions because keys map to distinct files and writes
// are atomic renames.
type Store struct {
	dir string
	tag CompressionTag
}

// New opens (creating if needed) a snapshot store in dir. New
// snapshots are written with the given compression; existing
// snapshots carry their own tag and remain readable after the
// setting changes.
func New(dir string, tag CompressionTag) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: creating store directory: %w", err)
	}
	return &Store{dir: dir, tag: tag}, nil
}

// Put encodes v and atomically replaces the snapshot for key.
func (s *Store) Put(key string, v any) error {
	encoded, err := codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache: encoding snapshot for %q: %w", key, err)
	}

	tag := s.tag
	payload, err := compress(encoded, tag)
	if errors.Is(err, errIncompressible) {
		tag, payload = CompressionNone, encoded
	} else if err != nil {
		return fmt.Errorf("cache: compressing snapshot for %q: %w", key, err)
	}

	header := make([]byte, headerSize)
	header[0] = formatVersion
	header[1] = byte(tag)
	binary.BigEndian.PutUint64(header[2:], uint64(len(encoded)))

	path := s.path(key)
	temporaryPath := path + ".tmp"
	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("cache: creating temporary snapshot: %w", err)
	}
	// Write, sync, close, rename — readers never observe a partial
	// snapshot. On any failure the temporary file is removed.
	if _, err := file.Write(header); err == nil {
		_, err = file.Write(payload)
	}
	if err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("cache: writing temporary snapshot: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("cache: syncing temporary snapshot: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("cache: closing temporary snapshot: %w", err)
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("cache: renaming snapshot into place: %w", err)
	}
	return nil
}

// Get decodes the snapshot for key into v. Returns ErrMiss when no
// usable snapshot exists, including snapshots from an older format
// version.
func (s *Store) Get(key string, v any) error {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrMiss
	}
	if err != nil {
		return fmt.Errorf("cache: reading snapshot for %q: %w", key, err)
	}
	if len(data) < headerSize || data[0] != formatVersion {
		return ErrMiss
	}

	tag := CompressionTag(data[1])
	uncompressedSize := int(binary.BigEndian.Uint64(data[2:headerSize]))
	encoded, err := decompress(data[headerSize:], tag, uncompressedSize)
	if err != nil {
		return fmt.Errorf("cache: decompressing snapshot for %q: %w", key, err)
	}
	if err := codec.Unmarshal(encoded, v); err != nil {
		return fmt.Errorf("cache: decoding snapshot for %q: %w", key, err)
	}
	return nil
}

// Delete removes the snapshot for key. Removing a missing snapshot is
// not an error.
func (s *Store) Delete(key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("cache: deleting snapshot for %q: %w", key, err)
	}
	return nil
}

// Purge removes every snapshot in the store.
func (s *Store) Purge() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("cache: listing store directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".snap" {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil {
			return fmt.Errorf("cache: purging %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// path maps a key to its snapshot file. Keys are hashed so endpoint
// identities ("host:port") never need escaping.
func (s *Store) path(key string) string {
	sum := blake3.Sum256([]byte(key))
	return filepath.Join(s.dir, fmt.Sprintf("%x.snap", sum[:16]))
}
