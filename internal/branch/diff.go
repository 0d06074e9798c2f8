package branch

import "sort"

// TableVersionPair names a table and a version on one side of a diff.
type TableVersionPair struct {
	Table   string
	Version uint64
}

// ModifiedTable names a table whose source and target versions disagree.
type ModifiedTable struct {
	Table         string
	SourceVersion uint64
	TargetVersion uint64
}

// Diff partitions every table appearing in source or target into
// unchanged, source-only-changed, target-only-changed, true-conflict
// (both changed), added-in-source, added-in-target.
type Diff struct {
	SourceBranch string
	TargetBranch string

	Unchanged         []string
	Modified          []ModifiedTable // true conflicts
	AddedInSource     []TableVersionPair
	AddedInTarget     []TableVersionPair
	SourceOnlyChanges []ModifiedTable
	TargetOnlyChanges []ModifiedTable
	HasConflicts      bool
}

// Compute diffs source against target, preferring source's own fork point
// as the common ancestor (three-way) when available.
func Compute(source, target Branch) Diff {
	var base map[string]uint64
	if source.ForkPoint != nil {
		base = source.ForkPoint
	}
	return ComputeWithBase(source, target, base)
}

// ComputeWithBase diffs with an explicit base (fork point). A nil base
// falls back to two-way comparison where any version difference is a
// conflict.
func ComputeWithBase(source, target Branch, base map[string]uint64) Diff {
	d := Diff{SourceBranch: source.Name, TargetBranch: target.Name}

	for table, srcVersion := range source.Head {
		tgtVersion, inTarget := target.Head[table]
		switch {
		case !inTarget:
			d.AddedInSource = append(d.AddedInSource, TableVersionPair{table, srcVersion})
		case srcVersion == tgtVersion:
			d.Unchanged = append(d.Unchanged, table)
		default:
			if base != nil {
				baseVersion, inBase := base[table]
				switch {
				case inBase && srcVersion != baseVersion && tgtVersion == baseVersion:
					d.SourceOnlyChanges = append(d.SourceOnlyChanges, ModifiedTable{table, srcVersion, tgtVersion})
				case inBase && tgtVersion != baseVersion && srcVersion == baseVersion:
					d.TargetOnlyChanges = append(d.TargetOnlyChanges, ModifiedTable{table, srcVersion, tgtVersion})
				default:
					d.Modified = append(d.Modified, ModifiedTable{table, srcVersion, tgtVersion})
				}
			} else {
				d.Modified = append(d.Modified, ModifiedTable{table, srcVersion, tgtVersion})
			}
		}
	}

	for table, tgtVersion := range target.Head {
		if _, inSource := source.Head[table]; !inSource {
			d.AddedInTarget = append(d.AddedInTarget, TableVersionPair{table, tgtVersion})
		}
	}

	sort.Strings(d.Unchanged)
	sortModified(d.Modified)
	sortModified(d.SourceOnlyChanges)
	sortModified(d.TargetOnlyChanges)
	sortPairs(d.AddedInSource)
	sortPairs(d.AddedInTarget)

	d.HasConflicts = len(d.Modified) > 0
	return d
}

func sortModified(s []ModifiedTable) {
	sort.Slice(s, func(i, j int) bool { return s[i].Table < s[j].Table })
}

func sortPairs(s []TableVersionPair) {
	sort.Slice(s, func(i, j int) bool { return s[i].Table < s[j].Table })
}

// ConflictingTables returns the table names present in Modified.
func (d Diff) ConflictingTables() []string {
	out := make([]string, len(d.Modified))
	for i, m := range d.Modified {
		out[i] = m.Table
	}
	return out
}

// CanAutoMerge reports whether this diff has no true conflicts.
func (d Diff) CanAutoMerge() bool {
	return !d.HasConflicts
}
