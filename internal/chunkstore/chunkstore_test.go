package chunkstore_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rhizo/internal/chunkstore"
	"rhizo/internal/rzerr"
)

func TestPutGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := chunkstore.Open(dir)
	require.NoError(t, err)

	data := []byte("hello rhizo")
	hash, err := s.Put(data)
	require.NoError(t, err)
	assert.Len(t, hash, 64)

	got, err := s.Get(hash)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestPutIsContentAddressedAndIdempotent(t *testing.T) {
	dir := t.TempDir()
	s, err := chunkstore.Open(dir)
	require.NoError(t, err)

	data := []byte("same bytes")
	h1, err := s.Put(data)
	require.NoError(t, err)
	h2, err := s.Put(data)
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Equal(t, chunkstore.Hash(data), h1)
}

func TestExistsAndDelete(t *testing.T) {
	dir := t.TempDir()
	s, err := chunkstore.Open(dir)
	require.NoError(t, err)

	hash, err := s.Put([]byte("payload"))
	require.NoError(t, err)
	assert.True(t, s.Exists(hash))

	require.NoError(t, s.Delete(hash))
	assert.False(t, s.Exists(hash))

	// Deleting an already-absent chunk is a no-op.
	assert.NoError(t, s.Delete(hash))
}

func TestGetMissingIsNotFound(t *testing.T) {
	dir := t.TempDir()
	s, err := chunkstore.Open(dir)
	require.NoError(t, err)

	missing := strings.Repeat("0", 63) + "a"
	_, err = s.Get(missing)
	assert.True(t, rzerr.IsNotFound(err))
}

func TestGetCorruptedChunkIsCorruption(t *testing.T) {
	dir := t.TempDir()
	s, err := chunkstore.Open(dir)
	require.NoError(t, err)

	hash, err := s.Put([]byte("original"))
	require.NoError(t, err)

	shard := filepath.Join(dir, hash[0:2], hash[2:4], hash)
	require.NoError(t, os.WriteFile(shard, []byte("tampered"), 0o644))

	_, err = s.Get(hash)
	assert.True(t, rzerr.IsCorruption(err))
}
