package txn

// Conflict reports that two committed transactions touch overlapping
// tables.
type Conflict struct {
	Tables []string
	Tx1    uint64
	Tx2    uint64
}

// Detector decides whether two transactions conflict.
type Detector interface {
	Detect(tx1, tx2 TransactionRecord) (*Conflict, bool)
}

func writtenTables(tx TransactionRecord) map[string]struct{} {
	out := make(map[string]struct{}, len(tx.Writes))
	for _, w := range tx.Writes {
		out[w.TableName] = struct{}{}
	}
	return out
}

// TableLevelDetector: two transactions conflict iff they write a common
// table. This is the default detector.
type TableLevelDetector struct{}

func (TableLevelDetector) Detect(tx1, tx2 TransactionRecord) (*Conflict, bool) {
	t1 := writtenTables(tx1)
	var common []string
	for _, w := range tx2.Writes {
		if _, ok := t1[w.TableName]; ok {
			common = append(common, w.TableName)
		}
	}
	if len(common) == 0 {
		return nil, false
	}
	return &Conflict{Tables: common, Tx1: tx1.TxID, Tx2: tx2.TxID}, true
}

// PartitionLevelDetector refines table-level detection: a WholeTable write
// collides with any write to the same table; two Partitions writes to the
// same table collide only if their partition-key sets intersect.
type PartitionLevelDetector struct{}

func (PartitionLevelDetector) Detect(tx1, tx2 TransactionRecord) (*Conflict, bool) {
	writes1 := make(map[string]TableWrite, len(tx1.Writes))
	for _, w := range tx1.Writes {
		writes1[w.TableName] = w
	}
	var common []string
	for _, w2 := range tx2.Writes {
		w1, ok := writes1[w2.TableName]
		if !ok {
			continue
		}
		if w1.Granularity == Partitions && w2.Granularity == Partitions {
			if !partitionsOverlap(w1.PartitionKeys, w2.PartitionKeys) {
				continue
			}
		}
		common = append(common, w2.TableName)
	}
	if len(common) == 0 {
		return nil, false
	}
	return &Conflict{Tables: common, Tx1: tx1.TxID, Tx2: tx2.TxID}, true
}

func partitionsOverlap(a, b []string) bool {
	set := make(map[string]struct{}, len(a))
	for _, k := range a {
		set[k] = struct{}{}
	}
	for _, k := range b {
		if _, ok := set[k]; ok {
			return true
		}
	}
	return false
}

// RowLevelDetector is reserved: row-level conflict detection is declared
// but deliberately falls through to table-level semantics (see DESIGN.md).
type RowLevelDetector struct {
	fallback TableLevelDetector
}

func (d RowLevelDetector) Detect(tx1, tx2 TransactionRecord) (*Conflict, bool) {
	return d.fallback.Detect(tx1, tx2)
}
