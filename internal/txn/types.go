// Package txn implements the snapshot-isolation transaction manager: an
// epoch-organized persistent log, a pluggable conflict detector, a single
// commit-lock critical section, and crash recovery.
package txn

const currentFormatVersion = 1

// Status is a transaction's lifecycle state.
type Status int

const (
	Active Status = iota
	Preparing
	Committed
	Aborted
)

func (s Status) String() string {
	switch s {
	case Active:
		return "active"
	case Preparing:
		return "preparing"
	case Committed:
		return "committed"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// WriteGranularity describes the scope of a TableWrite.
type WriteGranularity int

const (
	WholeTable WriteGranularity = iota
	Partitions
	Keys
)

// TableWrite is one table's intended write within a transaction.
type TableWrite struct {
	TableName      string           `json:"table_name"`
	NewVersion     uint64           `json:"new_version"`
	ChunkHashes    []string         `json:"chunk_hashes"`
	SchemaHash     *string          `json:"schema_hash,omitempty"`
	Granularity    WriteGranularity `json:"granularity"`
	PartitionKeys  []string         `json:"partition_keys,omitempty"`
	OverrideBranch *string          `json:"override_branch,omitempty"`
}

// TransactionRecord is the durable record of one transaction through its
// entire lifecycle.
type TransactionRecord struct {
	FormatVersion int               `json:"format_version"`
	TxID          uint64            `json:"tx_id"`
	EpochID       uint64            `json:"epoch_id"`
	StartedAt     int64             `json:"started_at"`
	CommittedAt   *int64            `json:"committed_at,omitempty"`
	ReadSnapshot  map[string]uint64 `json:"read_snapshot"`
	Writes        []TableWrite      `json:"writes"`
	Status        Status            `json:"status"`
	AbortReason   string            `json:"abort_reason,omitempty"`
	Branch        string            `json:"branch"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// EpochStatus is an epoch's lifecycle state.
type EpochStatus int

const (
	EpochActive EpochStatus = iota
	EpochCommitting
	EpochCommitted
	EpochRolledBack
)

// EpochMetadata groups transactions for log organization and recovery
// boundaries.
type EpochMetadata struct {
	EpochID        uint64      `json:"epoch_id"`
	StartedAt      int64       `json:"started_at"`
	EndedAt        *int64      `json:"ended_at,omitempty"`
	Status         EpochStatus `json:"status"`
	TxIDs          []uint64    `json:"tx_ids"`
	FirstTxID      *uint64     `json:"first_tx_id,omitempty"`
	LastTxID       *uint64     `json:"last_tx_id,omitempty"`
	CommittedCount int         `json:"committed_count"`
	AbortedCount   int         `json:"aborted_count"`
}

// Config is the epoch configuration a Manager runs with. It is held in
// memory only; Open does not write it to disk.
type Config struct {
	DurationMs      int64 `json:"duration_ms"`
	MaxTransactions int   `json:"max_transactions"`
	BatchingEnabled bool  `json:"batching_enabled"`
}

// Well-known epoch configuration presets.
var (
	SingleNodeConfig    = Config{DurationMs: 0, MaxTransactions: 1, BatchingEnabled: false}
	HighThroughputConfig = Config{DurationMs: 50, MaxTransactions: 10_000, BatchingEnabled: true}
	LowLatencyConfig    = Config{DurationMs: 10, MaxTransactions: 100, BatchingEnabled: true}
)

// RecoveryReport summarizes one recover() pass.
type RecoveryReport struct {
	RolledBackTxIDs []uint64
	Anomalies       []string
}
