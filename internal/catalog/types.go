package catalog

import "time"

// TableVersion is one immutable, committed version of a table: an ordered
// chunk-hash list plus metadata. Versions of a given table form a dense
// monotone sequence 1, 2, 3, ...
type TableVersion struct {
	FormatVersion  int               `json:"format_version"`
	TableName      string            `json:"table_name"`
	Version        uint64            `json:"version"`
	ChunkHashes    []string          `json:"chunk_hashes"`
	SchemaHash     *string           `json:"schema_hash,omitempty"`
	CreatedAt      int64             `json:"created_at"`
	ParentVersion  *uint64           `json:"parent_version,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

const currentFormatVersion = 1

// NewTableVersion builds a TableVersion, automatically setting
// ParentVersion to version-1 when version > 1.
func NewTableVersion(table string, version uint64, chunkHashes []string) TableVersion {
	tv := TableVersion{
		FormatVersion: currentFormatVersion,
		TableName:     table,
		Version:       version,
		ChunkHashes:   chunkHashes,
		CreatedAt:     time.Now().Unix(),
		Metadata:      map[string]string{},
	}
	if version > 1 {
		p := version - 1
		tv.ParentVersion = &p
	}
	return tv
}

func (tv TableVersion) WithSchemaHash(hash string) TableVersion {
	tv.SchemaHash = &hash
	return tv
}

func (tv TableVersion) WithMetadata(key, value string) TableVersion {
	if tv.Metadata == nil {
		tv.Metadata = map[string]string{}
	}
	tv.Metadata[key] = value
	return tv
}

// PendingCommit is a write-ahead intent recorded before a commit's
// critical section and deleted after it completes. A surviving intent at
// recovery time means the process crashed mid-commit.
type PendingCommit struct {
	IntentID    string   `json:"intent_id"`
	TableName   string   `json:"table_name"`
	ChunkHashes []string `json:"chunk_hashes"`
	Timestamp   int64    `json:"timestamp"`
}
