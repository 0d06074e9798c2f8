package txn

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"rhizo/internal/fsutil"
	"rhizo/internal/rzerr"
)

func sequencePath(base string) string        { return filepath.Join(base, "_sequence") }
func epochSequencePath(base string) string    { return filepath.Join(base, "_epoch_sequence") }
func latestCommittedPath(base string) string  { return filepath.Join(base, "_latest_committed") }
func committedIndexPath(base string) string   { return filepath.Join(base, "_committed_index") }
func epochsDir(base string) string            { return filepath.Join(base, "epochs") }
func epochDir(base string, epoch uint64) string {
	return filepath.Join(epochsDir(base), fmt.Sprintf("%06d", epoch))
}
func epochMetaPath(base string, epoch uint64) string {
	return filepath.Join(epochDir(base, epoch), "_meta.json")
}
func epochCommittedMarkerPath(base string, epoch uint64) string {
	return filepath.Join(epochDir(base, epoch), "_committed")
}
func txRecordPath(base string, epoch, txID uint64) string {
	return filepath.Join(epochDir(base, epoch), fmt.Sprintf("tx_%06d.json", txID))
}

func writeDirIfAbsent(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return rzerr.NewEnvironment("txn: mkdir", err)
	}
	return nil
}

func readCounter(path string) (uint64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, rzerr.NewEnvironment("txn: read counter", err)
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, rzerr.NewCorruption(fmt.Sprintf("counter file %s is not a number", path))
	}
	return v, nil
}

func writeCounter(path string, v uint64) error {
	if err := fsutil.WriteFileAtomic(path, []byte(strconv.FormatUint(v, 10)), 0o644); err != nil {
		return rzerr.NewEnvironment("txn: write counter", err)
	}
	return nil
}

func (m *Manager) persistRecord(rec TransactionRecord) error {
	if err := fsutil.WriteJSONAtomic(txRecordPath(m.basePath, rec.EpochID, rec.TxID), rec); err != nil {
		return rzerr.NewEnvironment("txn: persist record", err)
	}
	return nil
}

// GetRecord returns the durable record for one transaction, committed or
// not, by its epoch and transaction id.
func (m *Manager) GetRecord(epoch, txID uint64) (TransactionRecord, error) {
	return m.readRecord(epoch, txID)
}

func (m *Manager) readRecord(epoch, txID uint64) (TransactionRecord, error) {
	var rec TransactionRecord
	if err := fsutil.ReadJSON(txRecordPath(m.basePath, epoch, txID), &rec); err != nil {
		if os.IsNotExist(err) {
			return rec, rzerr.NewNotFound("transaction", fmt.Sprint(txID))
		}
		return rec, rzerr.NewEnvironment("txn: read record", err)
	}
	return rec, nil
}

func (m *Manager) startEpoch() error {
	m.curEpoch++
	meta := EpochMetadata{
		EpochID:   m.curEpoch,
		StartedAt: time.Now().Unix(),
		Status:    EpochActive,
	}
	if err := writeDirIfAbsent(epochDir(m.basePath, m.curEpoch)); err != nil {
		return err
	}
	if err := m.writeEpochMeta(meta); err != nil {
		return err
	}
	return writeCounter(epochSequencePath(m.basePath), m.curEpoch)
}

func (m *Manager) writeEpochMeta(meta EpochMetadata) error {
	if err := fsutil.WriteJSONAtomic(epochMetaPath(m.basePath, meta.EpochID), meta); err != nil {
		return rzerr.NewEnvironment("txn: write epoch meta", err)
	}
	return nil
}

func (m *Manager) readEpochMeta(epoch uint64) (EpochMetadata, error) {
	var meta EpochMetadata
	if err := fsutil.ReadJSON(epochMetaPath(m.basePath, epoch), &meta); err != nil {
		return meta, rzerr.NewEnvironment("txn: read epoch meta", err)
	}
	return meta, nil
}

func (m *Manager) appendTxToEpoch(epoch, txID uint64) error {
	meta, err := m.readEpochMeta(epoch)
	if err != nil {
		return err
	}
	meta.TxIDs = append(meta.TxIDs, txID)
	if meta.FirstTxID == nil {
		first := txID
		meta.FirstTxID = &first
	}
	last := txID
	meta.LastTxID = &last
	return m.writeEpochMeta(meta)
}

func (m *Manager) bumpEpochCommit(epoch uint64) error {
	meta, err := m.readEpochMeta(epoch)
	if err != nil {
		return err
	}
	meta.CommittedCount++
	if err := m.writeEpochMeta(meta); err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(epochCommittedMarkerPath(m.basePath, epoch), []byte{}, 0o644)
}

func (m *Manager) bumpEpochAbort(epoch uint64) error {
	meta, err := m.readEpochMeta(epoch)
	if err != nil {
		return err
	}
	meta.AbortedCount++
	return m.writeEpochMeta(meta)
}

func (m *Manager) recordCommittedIndex(epoch, txID uint64) error {
	f, err := os.OpenFile(committedIndexPath(m.basePath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return rzerr.NewEnvironment("txn: open committed index", err)
	}
	defer f.Close()
	if _, err := fmt.Fprintf(f, "%d:%d\n", epoch, txID); err != nil {
		return rzerr.NewEnvironment("txn: append committed index", err)
	}
	return nil
}

// CommittedIndex reads the full "epoch:tx_id" index in order. Malformed
// lines are skipped.
func (m *Manager) CommittedIndex() ([][2]uint64, error) {
	f, err := os.Open(committedIndexPath(m.basePath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, rzerr.NewEnvironment("txn: open committed index", err)
	}
	defer f.Close()

	var out [][2]uint64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		parts := strings.SplitN(scanner.Text(), ":", 2)
		if len(parts) != 2 {
			continue
		}
		epoch, err1 := strconv.ParseUint(parts[0], 10, 64)
		txID, err2 := strconv.ParseUint(parts[1], 10, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		out = append(out, [2]uint64{epoch, txID})
	}
	return out, nil
}
