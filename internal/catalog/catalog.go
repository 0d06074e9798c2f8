// Package catalog implements the versioned catalog: an append-only
// per-table version log with an atomic latest-pointer, a per-table OS
// advisory file lock, and a write-ahead intent log that makes a crash
// between "commit decided" and "commit recorded" detectable at recovery
// time.
package catalog

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"rhizo/internal/fsutil"
	"rhizo/internal/lockfile"
	"rhizo/internal/rzerr"
)

func nowUnix() int64 { return time.Now().Unix() }

// FileCatalog is the filesystem-backed versioned catalog rooted at a base
// path (typically "<root>/catalog").
type FileCatalog struct {
	basePath string
	logger   *log.Logger
}

// Open returns a FileCatalog rooted at basePath, creating it if needed.
func Open(basePath string, logger *log.Logger) (*FileCatalog, error) {
	if logger == nil {
		logger = log.Default()
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, rzerr.NewEnvironment("catalog: mkdir", err)
	}
	if err := os.MkdirAll(filepath.Join(basePath, ".pending"), 0o755); err != nil {
		return nil, rzerr.NewEnvironment("catalog: mkdir .pending", err)
	}
	return &FileCatalog{basePath: basePath, logger: logger}, nil
}

func (c *FileCatalog) tableDir(table string) string { return filepath.Join(c.basePath, table) }
func (c *FileCatalog) lockPath(table string) string  { return filepath.Join(c.tableDir(table), ".lock") }
func (c *FileCatalog) latestPath(table string) string {
	return filepath.Join(c.tableDir(table), "latest")
}
func (c *FileCatalog) versionPath(table string, v uint64) string {
	return filepath.Join(c.tableDir(table), fmt.Sprintf("%d.json", v))
}
func (c *FileCatalog) pendingDir() string { return filepath.Join(c.basePath, ".pending") }

// latestVersionNum returns 0 if the table has never been committed.
func (c *FileCatalog) latestVersionNum(table string) (uint64, error) {
	content, err := os.ReadFile(c.latestPath(table))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, rzerr.NewEnvironment("catalog: read latest", err)
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(content)), 10, 64)
	if err != nil {
		return 0, rzerr.NewCorruption(fmt.Sprintf("latest pointer corrupted for table %s", table))
	}
	return v, nil
}

// CommitNextVersion performs the full eight-step write-ahead-intent commit
// procedure and returns the newly assigned version number.
func (c *FileCatalog) CommitNextVersion(table string, chunkHashes []string) (uint64, error) {
	if err := os.MkdirAll(c.tableDir(table), 0o755); err != nil {
		return 0, rzerr.NewEnvironment("catalog: mkdir table", err)
	}

	// Step 1: write-ahead intent, atomically.
	intentID := uuid.NewString()
	intent := PendingCommit{IntentID: intentID, TableName: table, ChunkHashes: chunkHashes, Timestamp: nowUnix()}
	intentPath := filepath.Join(c.pendingDir(), intentID+".json")
	if err := fsutil.WriteJSONAtomic(intentPath, intent); err != nil {
		return 0, rzerr.NewEnvironment("catalog: write intent", err)
	}

	// Step 2: acquire the per-table exclusive lock.
	lock := lockfile.New(c.lockPath(table))
	if err := lock.Lock(); err != nil {
		return 0, err
	}
	defer lock.Unlock()

	// Step 3-6: re-read latest under lock, compute next, write version,
	// replace latest pointer.
	version, err := c.commitLocked(table, chunkHashes)
	if err != nil {
		return 0, err
	}

	// Step 8: delete the intent now that the commit is durable.
	if err := os.Remove(intentPath); err != nil && !os.IsNotExist(err) {
		c.logger.Printf("catalog: failed to remove intent %s after successful commit: %v", intentID, err)
	}

	return version, nil
}

func (c *FileCatalog) commitLocked(table string, chunkHashes []string) (uint64, error) {
	latest, err := c.latestVersionNum(table)
	if err != nil {
		return 0, err
	}
	next := latest + 1
	tv := NewTableVersion(table, next, chunkHashes)
	if err := c.writeVersion(tv); err != nil {
		return 0, err
	}
	return next, nil
}

func (c *FileCatalog) writeVersion(tv TableVersion) error {
	if err := fsutil.WriteJSONAtomic(c.versionPath(tv.TableName, tv.Version), tv); err != nil {
		return rzerr.NewEnvironment("catalog: write version", err)
	}
	if err := fsutil.WriteFileAtomic(c.latestPath(tv.TableName), []byte(strconv.FormatUint(tv.Version, 10)), 0o644); err != nil {
		return rzerr.NewEnvironment("catalog: write latest pointer", err)
	}
	return nil
}

// Commit requires the caller to assert the expected version number; it
// fails with InvalidArgument if the assertion disagrees with latest+1.
func (c *FileCatalog) Commit(tv TableVersion) (uint64, error) {
	if err := os.MkdirAll(c.tableDir(tv.TableName), 0o755); err != nil {
		return 0, rzerr.NewEnvironment("catalog: mkdir table", err)
	}
	lock := lockfile.New(c.lockPath(tv.TableName))
	if err := lock.Lock(); err != nil {
		return 0, err
	}
	defer lock.Unlock()

	latest, err := c.latestVersionNum(tv.TableName)
	if err != nil {
		return 0, err
	}
	expected := latest + 1
	if tv.Version != expected {
		return 0, rzerr.NewInvalidArgument(fmt.Sprintf("expected version %d, got %d", expected, tv.Version))
	}
	if err := c.writeVersion(tv); err != nil {
		return 0, err
	}
	return tv.Version, nil
}

// GetVersion returns a table's version record. version == nil means
// "latest".
func (c *FileCatalog) GetVersion(table string, version *uint64) (TableVersion, error) {
	if !fsutil.Exists(c.tableDir(table)) {
		return TableVersion{}, rzerr.NewNotFound("table", table)
	}
	v := uint64(0)
	if version != nil {
		v = *version
	} else {
		latest, err := c.latestVersionNum(table)
		if err != nil {
			return TableVersion{}, err
		}
		v = latest
	}
	path := c.versionPath(table, v)
	if !fsutil.Exists(path) {
		return TableVersion{}, rzerr.NewNotFound("version", fmt.Sprintf("%s@%d", table, v))
	}
	var tv TableVersion
	if err := fsutil.ReadJSON(path, &tv); err != nil {
		return TableVersion{}, rzerr.NewEnvironment("catalog: read version", err)
	}
	return tv, nil
}

// ListVersions returns every committed version number for table, sorted
// ascending. It is expected to be the gapless sequence 1..N.
func (c *FileCatalog) ListVersions(table string) ([]uint64, error) {
	dir := c.tableDir(table)
	if !fsutil.Exists(dir) {
		return nil, rzerr.NewNotFound("table", table)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, rzerr.NewEnvironment("catalog: readdir", err)
	}
	var versions []uint64
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		stem := strings.TrimSuffix(name, ".json")
		v, err := strconv.ParseUint(stem, 10, 64)
		if err != nil {
			continue // tolerate unexpected file names
		}
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	return versions, nil
}

// ListTables returns every table with at least one committed version,
// sorted lexicographically.
func (c *FileCatalog) ListTables() ([]string, error) {
	entries, err := os.ReadDir(c.basePath)
	if err != nil {
		return nil, rzerr.NewEnvironment("catalog: readdir", err)
	}
	var tables []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			tables = append(tables, e.Name())
		}
	}
	sort.Strings(tables)
	return tables, nil
}

// RecoverPendingCommits scans .pending/ and returns every orphaned intent:
// one whose table's current version does not already reflect its chunk
// hashes. Intents that did complete before the crash (or that are
// corrupt) are silently discarded.
func (c *FileCatalog) RecoverPendingCommits() ([]PendingCommit, error) {
	entries, err := os.ReadDir(c.pendingDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, rzerr.NewEnvironment("catalog: readdir .pending", err)
	}

	var orphans []PendingCommit
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		path := filepath.Join(c.pendingDir(), e.Name())
		var intent PendingCommit
		if err := fsutil.ReadJSON(path, &intent); err != nil {
			// corrupt intent: discard silently
			os.Remove(path)
			continue
		}

		completed, err := c.intentAlreadyCommitted(intent)
		if err != nil {
			c.logger.Printf("catalog: recovery could not verify intent %s: %v", intent.IntentID, err)
			continue
		}
		if completed {
			os.Remove(path)
			continue
		}
		orphans = append(orphans, intent)
		os.Remove(path)
	}
	return orphans, nil
}

func (c *FileCatalog) intentAlreadyCommitted(intent PendingCommit) (bool, error) {
	var nilVersion *uint64
	tv, err := c.GetVersion(intent.TableName, nilVersion)
	if err != nil {
		if rzerr.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return chunkHashesEqual(tv.ChunkHashes, intent.ChunkHashes), nil
}

func chunkHashesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
