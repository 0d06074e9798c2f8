package txn

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"rhizo/internal/branch"
	"rhizo/internal/catalog"
	"rhizo/internal/rzerr"
)

// Manager is the snapshot-isolation transaction manager. One instance
// guards one commit-lock critical section; multiple instances against
// the same on-disk log are not supported (the commit lock is in-process
// only — cross-process exclusion lives in the catalog's per-table file
// lock).
type Manager struct {
	basePath string
	catalog  *catalog.FileCatalog
	branches *branch.Manager // nil: read/write catalog-latest directly
	detector Detector
	config   Config
	logger   *log.Logger

	mu     sync.RWMutex // guards active
	active map[uint64]*TransactionRecord

	recentMu  sync.RWMutex
	recent    []TransactionRecord // FIFO, capped at config.MaxTransactions
	recentCap int

	commitMu sync.Mutex // the commit-lock critical section

	seqMu   sync.Mutex
	nextTx  uint64
	curEpoch uint64

	meter          metric.Meter
	commitCounter  metric.Int64Counter
	abortCounter   metric.Int64Counter
	conflictCounter metric.Int64Counter

	tracer trace.Tracer
}

// Option configures a new Manager.
type Option func(*Manager)

func WithBranchManager(bm *branch.Manager) Option {
	return func(m *Manager) { m.branches = bm }
}

func WithDetector(d Detector) Option {
	return func(m *Manager) { m.detector = d }
}

func WithLogger(l *log.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

func WithConfig(c Config) Option {
	return func(m *Manager) { m.config = c }
}

func WithMeter(meter metric.Meter) Option {
	return func(m *Manager) { m.meter = meter }
}

// WithTracer instruments the commit critical section with spans. Nil
// (the default) disables tracing entirely.
func WithTracer(tracer trace.Tracer) Option {
	return func(m *Manager) { m.tracer = tracer }
}

// Open returns a Manager rooted at basePath (typically
// "<root>/transactions"), reading persisted sequence counters if present.
func Open(basePath string, cat *catalog.FileCatalog, opts ...Option) (*Manager, error) {
	m := &Manager{
		basePath: basePath,
		catalog:  cat,
		detector: TableLevelDetector{},
		config:   SingleNodeConfig,
		logger:   log.Default(),
		active:   make(map[uint64]*TransactionRecord),
	}
	for _, o := range opts {
		o(m)
	}
	m.recentCap = m.config.MaxTransactions
	if m.recentCap <= 0 {
		m.recentCap = 1
	}

	if err := writeDirIfAbsent(basePath); err != nil {
		return nil, err
	}
	if err := writeDirIfAbsent(epochsDir(basePath)); err != nil {
		return nil, err
	}

	seq, err := readCounter(sequencePath(basePath))
	if err != nil {
		return nil, err
	}
	epochSeq, err := readCounter(epochSequencePath(basePath))
	if err != nil {
		return nil, err
	}
	m.nextTx = seq
	m.curEpoch = epochSeq

	if m.meter != nil {
		m.commitCounter, _ = m.meter.Int64Counter("rhizo.txn.commits")
		m.abortCounter, _ = m.meter.Int64Counter("rhizo.txn.aborts")
		m.conflictCounter, _ = m.meter.Int64Counter("rhizo.txn.conflicts")
	}

	if m.curEpoch == 0 {
		if err := m.startEpoch(); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Begin allocates a fresh transaction attached to the current epoch,
// capturing a read snapshot of {table -> version} from the branch heads
// (or the catalog's latest versions if no branch manager is configured).
func (m *Manager) Begin(branchName string) (*TransactionRecord, error) {
	if branchName == "" {
		branchName = "main"
	}
	m.seqMu.Lock()
	m.nextTx++
	txID := m.nextTx
	epochID := m.curEpoch
	if err := writeCounter(sequencePath(m.basePath), m.nextTx); err != nil {
		m.seqMu.Unlock()
		return nil, err
	}
	m.seqMu.Unlock()

	snapshot, err := m.captureSnapshot(branchName)
	if err != nil {
		return nil, err
	}

	rec := &TransactionRecord{
		FormatVersion: currentFormatVersion,
		TxID:          txID,
		EpochID:       epochID,
		StartedAt:     time.Now().Unix(),
		ReadSnapshot:  snapshot,
		Status:        Active,
		Branch:        branchName,
		Metadata:      map[string]string{},
	}

	m.mu.Lock()
	m.active[txID] = rec
	m.mu.Unlock()

	if err := m.persistRecord(*rec); err != nil {
		return nil, err
	}
	if err := m.appendTxToEpoch(epochID, txID); err != nil {
		return nil, err
	}

	return rec, nil
}

func (m *Manager) captureSnapshot(branchName string) (map[string]uint64, error) {
	snapshot := map[string]uint64{}
	if m.branches != nil {
		b, err := m.branches.Get(branchName)
		if err != nil {
			return nil, err
		}
		for t, v := range b.Head {
			snapshot[t] = v
		}
		return snapshot, nil
	}
	tables, err := m.catalog.ListTables()
	if err != nil {
		return nil, err
	}
	for _, t := range tables {
		var nilVersion *uint64
		tv, err := m.catalog.GetVersion(t, nilVersion)
		if err != nil {
			return nil, err
		}
		snapshot[t] = tv.Version
	}
	return snapshot, nil
}

// RecordRead overwrites the snapshot entry for a table; the transaction
// must be Active.
func (m *Manager) RecordRead(txID uint64, table string, version uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.active[txID]
	if !ok {
		return rzerr.NewNotFound("transaction", fmt.Sprint(txID))
	}
	if rec.Status != Active {
		return rzerr.NewInvalidArgument("transaction is not active")
	}
	rec.ReadSnapshot[table] = version
	return nil
}

// AddWrite appends a write to the transaction's write list; the
// transaction must be Active.
func (m *Manager) AddWrite(txID uint64, write TableWrite) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.active[txID]
	if !ok {
		return rzerr.NewNotFound("transaction", fmt.Sprint(txID))
	}
	if rec.Status != Active {
		return rzerr.NewInvalidArgument("transaction is not active")
	}
	rec.Writes = append(rec.Writes, write)
	return nil
}

// Abort marks an Active or Preparing transaction Aborted(reason).
func (m *Manager) Abort(txID uint64, reason string) error {
	m.mu.Lock()
	rec, ok := m.active[txID]
	if !ok {
		m.mu.Unlock()
		return rzerr.NewNotFound("transaction", fmt.Sprint(txID))
	}
	rec.Status = Aborted
	rec.AbortReason = reason
	delete(m.active, txID)
	snapshot := *rec
	m.mu.Unlock()

	if err := m.persistRecord(snapshot); err != nil {
		return err
	}
	if err := m.bumpEpochAbort(snapshot.EpochID); err != nil {
		m.logger.Printf("txn: failed to update epoch abort count: %v", err)
	}
	if m.abortCounter != nil {
		m.abortCounter.Add(context.Background(), 1)
	}
	return nil
}

// Commit runs the full commit critical section described by the
// specification: read-set conflict check, snapshot validation, mark
// committed, apply writes, move branch heads, persist, push into the
// recent-committed buffer.
func (m *Manager) Commit(txID uint64) (*TransactionRecord, error) {
	m.mu.Lock()
	rec, ok := m.active[txID]
	if !ok {
		m.mu.Unlock()
		return nil, rzerr.NewNotFound("transaction", fmt.Sprint(txID))
	}
	work := *rec
	m.mu.Unlock()

	ctx := context.Background()
	if m.tracer != nil {
		var span trace.Span
		ctx, span = m.tracer.Start(ctx, "txn.Commit")
		span.SetAttributes(attribute.Int64("rhizo.tx_id", int64(txID)), attribute.String("rhizo.branch", work.Branch))
		defer span.End()
	}

	m.commitMu.Lock()
	defer m.commitMu.Unlock()

	// 1. Read-set conflict check against recently committed transactions
	// with a smaller tx id.
	if conflict := m.checkConflicts(work); conflict != nil {
		if m.conflictCounter != nil {
			m.conflictCounter.Add(ctx, 1)
		}
		m.abortLocked(txID, "write conflict")
		return nil, rzerr.NewConflict(rzerr.WriteConflict, fmt.Sprintf("tx %d conflicts with tx %d", conflict.Tx1, conflict.Tx2), conflict.Tables...)
	}

	// 2. Snapshot validation.
	for table, readVersion := range work.ReadSnapshot {
		current, err := m.currentVersion(work.Branch, table)
		if err != nil {
			return nil, err
		}
		if current != readVersion {
			if m.conflictCounter != nil {
				m.conflictCounter.Add(ctx, 1)
			}
			m.abortLocked(txID, "snapshot conflict")
			return nil, rzerr.NewConflict(rzerr.SnapshotConflict,
				fmt.Sprintf("table %s read at %d, now at %d", table, readVersion, current), table)
		}
	}

	// 3. Mark committed.
	now := time.Now().Unix()
	work.Status = Committed
	work.CommittedAt = &now

	// 4. Apply writes, recording the actually-assigned version.
	assigned := make(map[string]uint64, len(work.Writes))
	for i, w := range work.Writes {
		v, err := m.catalog.CommitNextVersion(w.TableName, w.ChunkHashes)
		if err != nil {
			return nil, err
		}
		work.Writes[i].NewVersion = v
		assigned[w.TableName] = v
	}

	// 5. Move branch heads.
	if m.branches != nil {
		for _, w := range work.Writes {
			targetBranch := work.Branch
			if w.OverrideBranch != nil {
				targetBranch = *w.OverrideBranch
			}
			if err := m.branches.UpdateHead(targetBranch, w.TableName, assigned[w.TableName]); err != nil {
				return nil, err
			}
		}
	}

	// 6. Persist the updated record.
	if err := m.persistRecord(work); err != nil {
		return nil, err
	}
	if err := m.recordCommittedIndex(work.EpochID, work.TxID); err != nil {
		return nil, err
	}
	if err := m.bumpEpochCommit(work.EpochID); err != nil {
		m.logger.Printf("txn: failed to update epoch commit count: %v", err)
	}
	if err := writeCounter(latestCommittedPath(m.basePath), work.TxID); err != nil {
		m.logger.Printf("txn: failed to update latest-committed pointer: %v", err)
	}

	// 7. Push into the recent-committed buffer.
	m.pushRecent(work)

	// 8. Release commit lock (deferred); remove from active map.
	m.mu.Lock()
	delete(m.active, txID)
	m.mu.Unlock()

	if m.commitCounter != nil {
		m.commitCounter.Add(ctx, 1)
	}

	return &work, nil
}

// abortLocked aborts txID; it is only called from within Commit, which
// already holds commitMu, so it must not try to acquire it again.
func (m *Manager) abortLocked(txID uint64, reason string) {
	m.mu.Lock()
	rec, ok := m.active[txID]
	if ok {
		rec.Status = Aborted
		rec.AbortReason = reason
		snapshot := *rec
		delete(m.active, txID)
		m.mu.Unlock()
		if err := m.persistRecord(snapshot); err != nil {
			m.logger.Printf("txn: failed to persist aborted record: %v", err)
		}
		if err := m.bumpEpochAbort(snapshot.EpochID); err != nil {
			m.logger.Printf("txn: failed to update epoch abort count: %v", err)
		}
		if m.abortCounter != nil {
			m.abortCounter.Add(context.Background(), 1)
		}
		return
	}
	m.mu.Unlock()
}

func (m *Manager) currentVersion(branchName, table string) (uint64, error) {
	if m.branches != nil {
		v, ok, err := m.branches.GetTableVersion(branchName, table)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, nil
		}
		return v, nil
	}
	var nilVersion *uint64
	tv, err := m.catalog.GetVersion(table, nilVersion)
	if err != nil {
		if rzerr.IsNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	return tv.Version, nil
}

func (m *Manager) checkConflicts(work TransactionRecord) *Conflict {
	m.recentMu.RLock()
	defer m.recentMu.RUnlock()
	for _, committed := range m.recent {
		if committed.TxID >= work.TxID {
			continue
		}
		if conflict, found := m.detector.Detect(committed, work); found {
			return conflict
		}
	}
	return nil
}

func (m *Manager) pushRecent(rec TransactionRecord) {
	m.recentMu.Lock()
	defer m.recentMu.Unlock()
	m.recent = append(m.recent, rec)
	if len(m.recent) > m.recentCap {
		m.recent = m.recent[len(m.recent)-m.recentCap:]
	}
}
