package changelog_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rhizo/internal/catalog"
	"rhizo/internal/changelog"
	"rhizo/internal/txn"
)

func TestQueryBuilder(t *testing.T) {
	q := changelog.NewQuery().SinceTx(100).ForTables("users").OnBranch("main").WithLimit(10)

	require.NotNil(t, q.SinceTxID)
	assert.Equal(t, uint64(100), *q.SinceTxID)
	assert.Equal(t, []string{"users"}, q.Tables)
	require.NotNil(t, q.Branch)
	assert.Equal(t, "main", *q.Branch)
	require.NotNil(t, q.Limit)
	assert.Equal(t, 10, *q.Limit)
}

func makeEntry(txID uint64, branch string, tables ...string) changelog.ChangelogEntry {
	e := changelog.NewEntry(txID, 1, 1000, branch)
	for _, table := range tables {
		v := uint64(1)
		e.AddChange(changelog.TableChange{TableName: table, OldVersion: &v, NewVersion: 2})
	}
	return e
}

func TestMatchesEntryFilters(t *testing.T) {
	mainUsers := makeEntry(1, "main", "users")
	featureUsers := makeEntry(2, "feature", "users")
	mainOrders := makeEntry(3, "main", "orders")

	q := changelog.NewQuery().OnBranch("main").ForTables("users")
	assert.True(t, q.MatchesEntry(mainUsers))
	assert.False(t, q.MatchesEntry(featureUsers))
	assert.False(t, q.MatchesEntry(mainOrders))
}

func TestRunAppliesSinceTxAndLimit(t *testing.T) {
	entries := []changelog.ChangelogEntry{
		makeEntry(1, "main", "users"),
		makeEntry(2, "main", "users"),
		makeEntry(3, "main", "users"),
	}
	q := changelog.NewQuery().SinceTx(1).WithLimit(1)
	got := q.Run(entries)
	require.Len(t, got, 1)
	assert.Equal(t, uint64(2), got[0].TxID)
}

func TestReaderReconstructsPreviousVersions(t *testing.T) {
	root := t.TempDir()
	cat, err := catalog.Open(filepath.Join(root, "catalog"), nil)
	require.NoError(t, err)
	// Under the default table-level detector rec1, still in the
	// recent-committed buffer, would make rec2's write to the same table a
	// WriteConflict; disjoint partitions under the partition-level detector
	// let both commits land.
	txns, err := txn.Open(filepath.Join(root, "transactions"), cat, txn.WithDetector(txn.PartitionLevelDetector{}))
	require.NoError(t, err)

	rec1, err := txns.Begin("main")
	require.NoError(t, err)
	require.NoError(t, txns.AddWrite(rec1.TxID, txn.TableWrite{TableName: "users", ChunkHashes: []string{"a"},
		Granularity: txn.Partitions, PartitionKeys: []string{"p1"}}))
	_, err = txns.Commit(rec1.TxID)
	require.NoError(t, err)

	rec2, err := txns.Begin("main")
	require.NoError(t, err)
	require.NoError(t, txns.RecordRead(rec2.TxID, "users", 1))
	require.NoError(t, txns.AddWrite(rec2.TxID, txn.TableWrite{TableName: "users", ChunkHashes: []string{"a", "b"},
		Granularity: txn.Partitions, PartitionKeys: []string{"p2"}}))
	_, err = txns.Commit(rec2.TxID)
	require.NoError(t, err)

	reader := changelog.NewReader(txns)
	entries, err := reader.All()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.True(t, entries[0].Changes[0].IsNewTable())
	require.False(t, entries[1].Changes[0].IsNewTable())
	assert.Equal(t, uint64(1), *entries[1].Changes[0].OldVersion)
	assert.Equal(t, uint64(2), entries[1].Changes[0].NewVersion)
}
