package changelog

// Query filters changelog entries with a builder pattern:
//
//	q := NewQuery().SinceTx(100).ForTables("users", "orders").OnBranch("main").WithLimit(50)
type Query struct {
	SinceTxID       *uint64
	SinceTimestamp  *int64
	Tables          []string
	Branch          *string
	Limit           *int
}

func NewQuery() Query {
	return Query{}
}

func (q Query) SinceTx(txID uint64) Query {
	q.SinceTxID = &txID
	return q
}

func (q Query) SinceTime(timestamp int64) Query {
	q.SinceTimestamp = &timestamp
	return q
}

func (q Query) ForTables(tables ...string) Query {
	q.Tables = tables
	return q
}

func (q Query) OnBranch(branch string) Query {
	q.Branch = &branch
	return q
}

func (q Query) WithLimit(limit int) Query {
	q.Limit = &limit
	return q
}

// MatchesEntry reports whether entry passes the branch and table filters.
// SinceTxID and SinceTimestamp are not checked here; Run applies them
// separately, entry by entry.
func (q Query) MatchesEntry(entry ChangelogEntry) bool {
	if q.Branch != nil && entry.Branch != *q.Branch {
		return false
	}
	if q.Tables != nil {
		found := false
		for _, t := range q.Tables {
			if entry.ContainsTable(t) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Run executes the query against entries, which must already be in tx-id
// order. SinceTxID and SinceTimestamp are applied here since they require
// no entry-specific state; MatchesEntry covers the remaining filters.
func (q Query) Run(entries []ChangelogEntry) []ChangelogEntry {
	var out []ChangelogEntry
	for _, e := range entries {
		if q.SinceTxID != nil && e.TxID <= *q.SinceTxID {
			continue
		}
		if q.SinceTimestamp != nil && e.CommittedAt < *q.SinceTimestamp {
			continue
		}
		if !q.MatchesEntry(e) {
			continue
		}
		out = append(out, e)
		if q.Limit != nil && len(out) >= *q.Limit {
			break
		}
	}
	return out
}
