package changelog

import (
	"rhizo/internal/txn"
)

// Reader reconstructs changelog entries from a transaction manager's
// durable committed-index, computing each table's previous version from
// the preceding commit that touched it.
type Reader struct {
	txns *txn.Manager
}

func NewReader(txns *txn.Manager) *Reader {
	return &Reader{txns: txns}
}

// All returns every committed entry in commit order.
func (r *Reader) All() ([]ChangelogEntry, error) {
	index, err := r.txns.CommittedIndex()
	if err != nil {
		return nil, err
	}

	previous := map[string]uint64{}
	entries := make([]ChangelogEntry, 0, len(index))
	for _, pair := range index {
		epoch, txID := pair[0], pair[1]
		rec, err := r.txns.GetRecord(epoch, txID)
		if err != nil {
			return nil, err
		}
		snapshot := make(map[string]uint64, len(previous))
		for k, v := range previous {
			snapshot[k] = v
		}
		entry := FromTransaction(rec, snapshot)
		entries = append(entries, entry)
		for _, w := range rec.Writes {
			previous[w.TableName] = w.NewVersion
		}
	}
	return entries, nil
}

// Query runs q against the full committed history.
func (r *Reader) Query(q Query) ([]ChangelogEntry, error) {
	all, err := r.All()
	if err != nil {
		return nil, err
	}
	return q.Run(all), nil
}
