// Package chunkstore implements the content-addressed chunk store: a
// trivial, content-deduplicated put/get/exists/delete keyed by a BLAKE3
// hash, sharded two levels deep by hex prefix.
package chunkstore

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"lukechampine.com/blake3"

	"rhizo/internal/fsutil"
	"rhizo/internal/rzerr"
)

const hashHexLen = 64

// Store is a filesystem-backed, content-addressed chunk store rooted at a
// "chunks/" directory.
type Store struct {
	root string
}

// Open returns a Store rooted at root (typically "<base>/chunks").
func Open(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, rzerr.NewEnvironment("chunkstore: mkdir", err)
	}
	return &Store{root: root}, nil
}

// Hash returns the lowercase hex BLAKE3 digest of data.
func Hash(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func validHash(hash string) bool {
	if len(hash) != hashHexLen {
		return false
	}
	for _, c := range hash {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}

func (s *Store) path(hash string) string {
	return filepath.Join(s.root, hash[0:2], hash[2:4], hash)
}

// Put writes data and returns its BLAKE3 hash. If a chunk with the same
// hash already exists, Put is a no-op (content-addressed dedup).
func (s *Store) Put(data []byte) (string, error) {
	hash := Hash(data)
	path := s.path(hash)
	if fsutil.Exists(path) {
		return hash, nil
	}
	if err := fsutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return "", rzerr.NewEnvironment("chunkstore: put", err)
	}
	return hash, nil
}

// Get returns the bytes stored under hash, verifying that they still hash
// to exactly hash.
func (s *Store) Get(hash string) ([]byte, error) {
	if !validHash(hash) {
		return nil, rzerr.NewInvalidArgument(fmt.Sprintf("malformed chunk hash %q", hash))
	}
	data, err := os.ReadFile(s.path(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, rzerr.NewNotFound("chunk", hash)
		}
		return nil, rzerr.NewEnvironment("chunkstore: get", err)
	}
	if got := Hash(data); got != hash {
		return nil, rzerr.NewCorruption(fmt.Sprintf("chunk %s hashes to %s", hash, got))
	}
	return data, nil
}

// Exists reports whether a chunk with the given hash is present.
func (s *Store) Exists(hash string) bool {
	if !validHash(hash) {
		return false
	}
	return fsutil.Exists(s.path(hash))
}

// Delete removes a chunk. Deleting an absent chunk is not an error.
func (s *Store) Delete(hash string) error {
	if !validHash(hash) {
		return rzerr.NewInvalidArgument(fmt.Sprintf("malformed chunk hash %q", hash))
	}
	if err := os.Remove(s.path(hash)); err != nil && !os.IsNotExist(err) {
		return rzerr.NewEnvironment("chunkstore: delete", err)
	}
	return nil
}
