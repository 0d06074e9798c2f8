package branch

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"rhizo/internal/fsutil"
	"rhizo/internal/rzerr"
)

const (
	branchesDir  = "_branches"
	defaultFile  = "_default.txt"
	defaultName  = "main"
)

// Manager owns every Branch under one base path's branches directory.
type Manager struct {
	basePath string
}

// Open returns a Manager rooted at basePath (typically "<root>/branches"),
// auto-creating a root "main" branch if none exist yet.
func Open(basePath string) (*Manager, error) {
	dir := filepath.Join(basePath, branchesDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, rzerr.NewEnvironment("branch: mkdir", err)
	}
	m := &Manager{basePath: basePath}

	names, err := m.List()
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		main := New(defaultName, map[string]uint64{})
		if err := m.saveBranch(main); err != nil {
			return nil, err
		}
		if err := m.SetDefault(defaultName); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Manager) branchPath(name string) string {
	safe := strings.ReplaceAll(name, "/", "__")
	return filepath.Join(m.basePath, branchesDir, safe+".json")
}

func (m *Manager) branchExists(name string) bool {
	return fsutil.Exists(m.branchPath(name))
}

func (m *Manager) saveBranch(b Branch) error {
	if err := fsutil.WriteJSONAtomic(m.branchPath(b.Name), b); err != nil {
		return rzerr.NewEnvironment("branch: save", err)
	}
	return nil
}

// Get returns a branch by name.
func (m *Manager) Get(name string) (Branch, error) {
	path := m.branchPath(name)
	if !fsutil.Exists(path) {
		return Branch{}, rzerr.NewNotFound("branch", name)
	}
	var b Branch
	if err := fsutil.ReadJSON(path, &b); err != nil {
		return Branch{}, rzerr.NewEnvironment("branch: read", err)
	}
	return b, nil
}

// List returns every branch name, slashes restored, sorted.
func (m *Manager) List() ([]string, error) {
	dir := filepath.Join(m.basePath, branchesDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, rzerr.NewEnvironment("branch: readdir", err)
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		stem := strings.TrimSuffix(name, ".json")
		names = append(names, strings.ReplaceAll(stem, "__", "/"))
	}
	sort.Strings(names)
	return names, nil
}

// Create creates name as a child of fromBranch (the default branch if
// fromBranch is ""). Zero-copy: only the head map is copied.
func (m *Manager) Create(name, fromBranch, description string) (Branch, error) {
	if err := validateBranchName(name); err != nil {
		return Branch{}, err
	}
	if m.branchExists(name) {
		return Branch{}, rzerr.NewAlreadyExists("branch", name)
	}

	sourceName := fromBranch
	if sourceName == "" {
		def, err := m.GetDefault()
		if err != nil {
			return Branch{}, err
		}
		if def == "" {
			sourceName = defaultName
		} else {
			sourceName = def
		}
	}
	source, err := m.Get(sourceName)
	if err != nil {
		return Branch{}, err
	}

	child := FromBranch(name, source)
	if description != "" {
		child = child.WithDescription(description)
	}
	if err := m.saveBranch(child); err != nil {
		return Branch{}, err
	}
	return child, nil
}

// Delete removes a branch. The default branch cannot be deleted.
func (m *Manager) Delete(name string) error {
	def, err := m.GetDefault()
	if err != nil {
		return err
	}
	if def == name {
		return rzerr.NewInvalidArgument(fmt.Sprintf("cannot delete default branch %q", name))
	}
	path := m.branchPath(name)
	if !fsutil.Exists(path) {
		return rzerr.NewNotFound("branch", name)
	}
	if err := os.Remove(path); err != nil {
		return rzerr.NewEnvironment("branch: delete", err)
	}
	return nil
}

// UpdateHead sets a branch's head pointer for one table.
func (m *Manager) UpdateHead(branchName, table string, version uint64) error {
	b, err := m.Get(branchName)
	if err != nil {
		return err
	}
	b.SetTableVersion(table, version)
	return m.saveBranch(b)
}

// GetTableVersion returns a table's version on a branch, or (0, false).
func (m *Manager) GetTableVersion(branchName, table string) (uint64, bool, error) {
	b, err := m.Get(branchName)
	if err != nil {
		return 0, false, err
	}
	v, ok := b.GetTableVersion(table)
	return v, ok, nil
}

// Diff diffs source against target (three-way when source has a fork
// point).
func (m *Manager) Diff(source, target string) (Diff, error) {
	s, err := m.Get(source)
	if err != nil {
		return Diff{}, err
	}
	t, err := m.Get(target)
	if err != nil {
		return Diff{}, err
	}
	return Compute(s, t), nil
}

// CanFastForward reports whether the diff of source against target has no
// true conflicts. For a source without a fork point Merge does not refuse
// on such conflicts (it applies its forward-only rule instead), so false
// does not mean that Merge would fail.
func (m *Manager) CanFastForward(source, target string) (bool, error) {
	d, err := m.Diff(source, target)
	if err != nil {
		return false, err
	}
	return !d.HasConflicts, nil
}

// Merge merges source into target. With a fork point, applies a three-way
// merge and refuses on any true conflict (target is left untouched).
// Without one, applies a safe forward-only merge that never regresses a
// target version and never removes a target-only table. Merges move
// branch heads only; they never mint new table versions.
func (m *Manager) Merge(source, into string) error {
	sourceBranch, err := m.Get(source)
	if err != nil {
		return err
	}
	targetBranch, err := m.Get(into)
	if err != nil {
		return err
	}

	if sourceBranch.ForkPoint != nil {
		d := Compute(sourceBranch, targetBranch)
		if d.HasConflicts {
			return rzerr.NewConflict(rzerr.MergeConflict, "true conflict on merge", d.ConflictingTables()...)
		}
		for _, c := range d.SourceOnlyChanges {
			targetBranch.SetTableVersion(c.Table, c.SourceVersion)
		}
		for _, a := range d.AddedInSource {
			targetBranch.SetTableVersion(a.Table, a.Version)
		}
	} else {
		for table, srcVersion := range sourceBranch.Head {
			tgtVersion := targetBranch.Head[table]
			if srcVersion > tgtVersion {
				targetBranch.SetTableVersion(table, srcVersion)
			}
		}
	}

	return m.saveBranch(targetBranch)
}

// GetDefault returns the default branch name, or "" if none has been set.
func (m *Manager) GetDefault() (string, error) {
	path := filepath.Join(m.basePath, branchesDir, defaultFile)
	if !fsutil.Exists(path) {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", rzerr.NewEnvironment("branch: read default", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// SetDefault sets the default branch; the branch must already exist.
func (m *Manager) SetDefault(name string) error {
	if !m.branchExists(name) {
		return rzerr.NewNotFound("branch", name)
	}
	path := filepath.Join(m.basePath, branchesDir, defaultFile)
	if err := fsutil.WriteFileAtomic(path, []byte(name), 0o644); err != nil {
		return rzerr.NewEnvironment("branch: set default", err)
	}
	return nil
}

func validateBranchName(name string) error {
	if name == "" {
		return rzerr.NewInvalidArgument("branch name cannot be empty")
	}
	if strings.HasPrefix(name, "_") {
		return rzerr.NewInvalidArgument("branch name cannot start with underscore")
	}
	for _, c := range name {
		if !(isAlnum(c) || c == '-' || c == '_' || c == '/') {
			return rzerr.NewInvalidArgument(fmt.Sprintf("branch name contains invalid characters: %s", name))
		}
	}
	if strings.Contains(name, "//") {
		return rzerr.NewInvalidArgument("branch name cannot contain double slashes")
	}
	if strings.Contains(name, "__") {
		return rzerr.NewInvalidArgument("branch name cannot contain double underscores (reserved for path encoding)")
	}
	return nil
}

func isAlnum(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
