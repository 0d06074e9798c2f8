// Package branch implements named pointers {table -> version} with
// Git-style creation and three-way merge: a branch created from a parent
// copies the parent's head and snapshots it as a fork point, the common
// ancestor used to classify a later diff.
package branch

import "time"

// Branch is a named pointer from table name to that table's version on
// this branch.
type Branch struct {
	Name         string            `json:"name"`
	Head         map[string]uint64 `json:"head"`
	CreatedAt    int64             `json:"created_at"`
	ParentBranch *string           `json:"parent_branch,omitempty"`
	Description  *string           `json:"description,omitempty"`
	// ForkPoint is the parent's head at creation time, used as the common
	// ancestor for three-way merge. Root branches have none.
	ForkPoint map[string]uint64 `json:"fork_point,omitempty"`
}

// New returns a root branch with no parent and no fork point.
func New(name string, head map[string]uint64) Branch {
	if head == nil {
		head = map[string]uint64{}
	}
	return Branch{Name: name, Head: head, CreatedAt: time.Now().Unix()}
}

// FromBranch returns a child branch copying parent's head, snapshotting
// that same head as the fork point.
func FromBranch(name string, parent Branch) Branch {
	head := make(map[string]uint64, len(parent.Head))
	fork := make(map[string]uint64, len(parent.Head))
	for k, v := range parent.Head {
		head[k] = v
		fork[k] = v
	}
	parentName := parent.Name
	return Branch{
		Name:         name,
		Head:         head,
		CreatedAt:    time.Now().Unix(),
		ParentBranch: &parentName,
		ForkPoint:    fork,
	}
}

func (b Branch) WithDescription(desc string) Branch {
	b.Description = &desc
	return b
}

// GetTableVersion returns (version, true) or (0, false) if table is absent
// from this branch's head.
func (b Branch) GetTableVersion(table string) (uint64, bool) {
	v, ok := b.Head[table]
	return v, ok
}

// SetTableVersion mutates b's head in place.
func (b *Branch) SetTableVersion(table string, version uint64) {
	if b.Head == nil {
		b.Head = map[string]uint64{}
	}
	b.Head[table] = version
}
