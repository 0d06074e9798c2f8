// Package engine is the single wiring point for the storage engine: it
// constructs the catalog, branch manager, transaction manager, chunk
// store, and schema registry against one base directory and exposes
// them together, mirroring the cyclic-dependency resolution described in
// the design notes (the transaction manager holds read-only handles to
// the catalog and branch manager; neither of those knows about
// transactions). Coordination-free nodes are created lazily by
// CoordFreeNode, one Node per distinct node id, since coordination-free
// replicas are a separate entry path from classical transactions by design.
package engine

import (
	"log"
	"path/filepath"
	"sync"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"rhizo/internal/algebraic"
	"rhizo/internal/branch"
	"rhizo/internal/catalog"
	"rhizo/internal/changelog"
	"rhizo/internal/chunkstore"
	"rhizo/internal/coordfree"
	"rhizo/internal/rzerr"
	"rhizo/internal/txn"
)

// Engine wires every subsystem against one base directory.
type Engine struct {
	Root     string
	Catalog  *catalog.FileCatalog
	Branches *branch.Manager
	Txns     *txn.Manager
	Chunks   *chunkstore.Store
	Schemas  *algebraic.SchemaRegistry
	Changelog *changelog.Reader

	logger *log.Logger
	meter  metric.Meter
	tracer trace.Tracer

	cfMu   sync.Mutex
	cfNode map[string]*coordfree.Node
}

// Option configures Open.
type Option func(*options)

type options struct {
	epochConfig txn.Config
	detector    txn.Detector
	meter       metric.Meter
	tracer      trace.Tracer
	logger      *log.Logger
}

func WithEpochConfig(c txn.Config) Option {
	return func(o *options) { o.epochConfig = c }
}

func WithDetector(d txn.Detector) Option {
	return func(o *options) { o.detector = d }
}

func WithMeter(m metric.Meter) Option {
	return func(o *options) { o.meter = m }
}

// WithTracer instruments the commit critical section and the
// coordination-free merge path with spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Open constructs every subsystem rooted at root, following the on-disk
// layout: "<root>/chunks", "<root>/catalog", "<root>/branches",
// "<root>/transactions".
func Open(root string, opts ...Option) (*Engine, error) {
	o := &options{epochConfig: txn.SingleNodeConfig, detector: txn.TableLevelDetector{}, logger: log.Default()}
	for _, opt := range opts {
		opt(o)
	}

	chunks, err := chunkstore.Open(filepath.Join(root, "chunks"))
	if err != nil {
		return nil, err
	}
	cat, err := catalog.Open(filepath.Join(root, "catalog"), o.logger)
	if err != nil {
		return nil, err
	}
	branches, err := branch.Open(filepath.Join(root, "branches"))
	if err != nil {
		return nil, err
	}

	txnOpts := []txn.Option{
		txn.WithBranchManager(branches),
		txn.WithDetector(o.detector),
		txn.WithConfig(o.epochConfig),
		txn.WithLogger(o.logger),
	}
	if o.meter != nil {
		txnOpts = append(txnOpts, txn.WithMeter(o.meter))
	}
	if o.tracer != nil {
		txnOpts = append(txnOpts, txn.WithTracer(o.tracer))
	}
	txns, err := txn.Open(filepath.Join(root, "transactions"), cat, txnOpts...)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		Root:      root,
		Catalog:   cat,
		Branches:  branches,
		Txns:      txns,
		Chunks:    chunks,
		Schemas:   algebraic.NewSchemaRegistry(),
		Changelog: changelog.NewReader(txns),
		logger:    o.logger,
		meter:     o.meter,
		tracer:    o.tracer,
		cfNode:    make(map[string]*coordfree.Node),
	}
	return e, nil
}

// CoordFreeNode returns (creating if needed) the in-process
// coordination-free replica identified by nodeID. Coordination-free mode
// is a distinct entry path from the transaction manager — see the open
// question decision in DESIGN.md — so it keeps its own in-memory state
// rather than sharing the catalog's versioned tables.
func (e *Engine) CoordFreeNode(nodeID string) *coordfree.Node {
	e.cfMu.Lock()
	defer e.cfMu.Unlock()
	n, ok := e.cfNode[nodeID]
	if !ok {
		var cfOpts []coordfree.NodeOption
		if e.meter != nil {
			cfOpts = append(cfOpts, coordfree.WithMeter(e.meter))
		}
		if e.tracer != nil {
			cfOpts = append(cfOpts, coordfree.WithTracer(e.tracer))
		}
		n = coordfree.NewNode(nodeID, cfOpts...)
		e.cfNode[nodeID] = n
	}
	return n
}

// Recover runs catalog pending-commit recovery and transaction-log
// recovery in sequence, returning both reports. It is safe to call on an
// already-clean engine; both recovery passes are idempotent.
func (e *Engine) Recover() ([]catalog.PendingCommit, txn.RecoveryReport, error) {
	orphans, err := e.Catalog.RecoverPendingCommits()
	if err != nil {
		return nil, txn.RecoveryReport{}, err
	}
	report, err := e.Txns.Recover()
	if err != nil {
		return orphans, report, err
	}
	return orphans, report, nil
}

// EnsureBranch does nothing if branchName is empty or already exists;
// otherwise it creates branchName as a child of the default branch.
func (e *Engine) EnsureBranch(branchName string) error {
	if branchName == "" {
		return nil
	}
	if _, err := e.Branches.Get(branchName); err == nil {
		return nil
	} else if !rzerr.IsNotFound(err) {
		return err
	}
	_, err := e.Branches.Create(branchName, "", "")
	return err
}
