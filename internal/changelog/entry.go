// Package changelog provides a queryable view over committed transactions:
// one ChangelogEntry per commit, with a builder-style ChangelogQuery for
// filtering by transaction id, timestamp, table, or branch.
package changelog

import (
	"rhizo/internal/txn"
)

// TableChange describes what happened to one table within a commit.
type TableChange struct {
	TableName   string   `json:"table_name"`
	OldVersion  *uint64  `json:"old_version,omitempty"`
	NewVersion  uint64   `json:"new_version"`
	ChunkHashes []string `json:"chunk_hashes"`
}

// IsNewTable reports whether this table had no version before the commit.
func (c TableChange) IsNewTable() bool {
	return c.OldVersion == nil
}

// ChangelogEntry is a changelog-oriented view of one committed
// TransactionRecord.
type ChangelogEntry struct {
	TxID        uint64            `json:"tx_id"`
	EpochID     uint64            `json:"epoch_id"`
	CommittedAt int64             `json:"committed_at"`
	Branch      string            `json:"branch"`
	Changes     []TableChange     `json:"changes"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// NewEntry returns an empty entry ready to receive changes via AddChange.
func NewEntry(txID, epochID uint64, committedAt int64, branch string) ChangelogEntry {
	return ChangelogEntry{TxID: txID, EpochID: epochID, CommittedAt: committedAt, Branch: branch}
}

// FromTransaction builds an entry from a committed TransactionRecord.
// previousVersions should hold each written table's version immediately
// before this commit; a table absent from it is treated as newly created.
func FromTransaction(tx txn.TransactionRecord, previousVersions map[string]uint64) ChangelogEntry {
	changes := make([]TableChange, 0, len(tx.Writes))
	for _, w := range tx.Writes {
		var old *uint64
		if v, ok := previousVersions[w.TableName]; ok {
			old = &v
		}
		changes = append(changes, TableChange{
			TableName:   w.TableName,
			OldVersion:  old,
			NewVersion:  w.NewVersion,
			ChunkHashes: w.ChunkHashes,
		})
	}
	committedAt := int64(0)
	if tx.CommittedAt != nil {
		committedAt = *tx.CommittedAt
	}
	return ChangelogEntry{
		TxID:        tx.TxID,
		EpochID:     tx.EpochID,
		CommittedAt: committedAt,
		Branch:      tx.Branch,
		Changes:     changes,
		Metadata:    tx.Metadata,
	}
}

func (e *ChangelogEntry) AddChange(c TableChange) {
	e.Changes = append(e.Changes, c)
}

func (e ChangelogEntry) ChangedTables() []string {
	out := make([]string, len(e.Changes))
	for i, c := range e.Changes {
		out[i] = c.TableName
	}
	return out
}

func (e ChangelogEntry) ContainsTable(table string) bool {
	for _, c := range e.Changes {
		if c.TableName == table {
			return true
		}
	}
	return false
}

func (e ChangelogEntry) GetChange(table string) (TableChange, bool) {
	for _, c := range e.Changes {
		if c.TableName == table {
			return c, true
		}
	}
	return TableChange{}, false
}

func (e ChangelogEntry) ChangeCount() int {
	return len(e.Changes)
}
