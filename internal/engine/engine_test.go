package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rhizo/internal/algebraic"
	"rhizo/internal/coordfree"
	"rhizo/internal/engine"
	"rhizo/internal/txn"
)

func TestOpenWiresSubsystems(t *testing.T) {
	e, err := engine.Open(t.TempDir())
	require.NoError(t, err)
	assert.NotNil(t, e.Catalog)
	assert.NotNil(t, e.Branches)
	assert.NotNil(t, e.Txns)
	assert.NotNil(t, e.Chunks)
	assert.NotNil(t, e.Schemas)
	assert.NotNil(t, e.Changelog)
}

func TestEndToEndCommitMovesHeadAndChangelog(t *testing.T) {
	e, err := engine.Open(t.TempDir())
	require.NoError(t, err)

	hash, err := e.Chunks.Put([]byte("row data"))
	require.NoError(t, err)

	rec, err := e.Txns.Begin("main")
	require.NoError(t, err)
	require.NoError(t, e.Txns.AddWrite(rec.TxID, txn.TableWrite{TableName: "users", ChunkHashes: []string{hash}}))

	committed, err := e.Txns.Commit(rec.TxID)
	require.NoError(t, err)
	assert.Equal(t, txn.Committed, committed.Status)

	v, ok, err := e.Branches.GetTableVersion("main", "users")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(1), v)

	entries, err := e.Changelog.All()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "users", entries[0].Changes[0].TableName)
}

func TestCoordFreeNodeIsStableAcrossCalls(t *testing.T) {
	e, err := engine.Open(t.TempDir())
	require.NoError(t, err)

	n1 := e.CoordFreeNode("node-a")
	_, err = n1.LocalCommit([]coordfree.Operation{{Key: "counter", Op: algebraic.AbelianAdd, Value: algebraic.Int(5)}})
	require.NoError(t, err)

	n2 := e.CoordFreeNode("node-a")
	assert.Same(t, n1, n2)
	assert.Equal(t, algebraic.Int(5), n2.Get("counter"))
}

func TestRecoverIsIdempotent(t *testing.T) {
	e, err := engine.Open(t.TempDir())
	require.NoError(t, err)

	_, report1, err := e.Recover()
	require.NoError(t, err)
	_, report2, err := e.Recover()
	require.NoError(t, err)
	assert.Equal(t, report1, report2)
}
