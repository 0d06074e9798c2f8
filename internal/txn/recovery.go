package txn

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"rhizo/internal/rzerr"
)

// Recover scans every epoch directory on disk and rolls back any
// transaction still Active or Preparing, since a crash can only have
// interrupted the commit critical section before its "mark committed"
// step. Committed and Aborted records are left untouched.
func (m *Manager) Recover() (RecoveryReport, error) {
	report := RecoveryReport{}

	epochs, err := m.listEpochIDs()
	if err != nil {
		return report, err
	}

	for _, epoch := range epochs {
		meta, err := m.readEpochMeta(epoch)
		if err != nil {
			report.Anomalies = append(report.Anomalies, fmt.Sprintf("epoch %d: %v", epoch, err))
			continue
		}
		for _, txID := range meta.TxIDs {
			rec, err := m.readRecord(epoch, txID)
			if err != nil {
				if rzerr.IsNotFound(err) {
					report.Anomalies = append(report.Anomalies,
						fmt.Sprintf("epoch %d: tx %d listed but no record file", epoch, txID))
					continue
				}
				report.Anomalies = append(report.Anomalies, fmt.Sprintf("epoch %d tx %d: %v", epoch, txID, err))
				continue
			}
			if rec.Status == Active || rec.Status == Preparing {
				rec.Status = Aborted
				rec.AbortReason = "recovery: pending transaction rolled back"
				if err := m.persistRecord(rec); err != nil {
					return report, err
				}
				if err := m.bumpEpochAbort(epoch); err != nil {
					return report, err
				}
				report.RolledBackTxIDs = append(report.RolledBackTxIDs, txID)
			}
		}
	}

	m.mu.Lock()
	m.active = make(map[uint64]*TransactionRecord)
	m.mu.Unlock()

	sort.Slice(report.RolledBackTxIDs, func(i, j int) bool { return report.RolledBackTxIDs[i] < report.RolledBackTxIDs[j] })
	return report, nil
}

// VerifyConsistency cross-checks each epoch's metadata tx-id list against
// the transaction record files actually present on disk, and the epoch's
// committed marker against its metadata counts. It never mutates state;
// every mismatch is reported as a string describing the discrepancy.
func (m *Manager) VerifyConsistency() ([]string, error) {
	var anomalies []string

	epochs, err := m.listEpochIDs()
	if err != nil {
		return nil, err
	}

	for _, epoch := range epochs {
		meta, err := m.readEpochMeta(epoch)
		if err != nil {
			anomalies = append(anomalies, fmt.Sprintf("epoch %d: unreadable metadata: %v", epoch, err))
			continue
		}

		onDisk, err := m.listTxFiles(epoch)
		if err != nil {
			anomalies = append(anomalies, fmt.Sprintf("epoch %d: %v", epoch, err))
			continue
		}

		listed := make(map[uint64]struct{}, len(meta.TxIDs))
		for _, id := range meta.TxIDs {
			listed[id] = struct{}{}
		}
		onDiskSet := make(map[uint64]struct{}, len(onDisk))
		for _, id := range onDisk {
			onDiskSet[id] = struct{}{}
		}
		for id := range listed {
			if _, ok := onDiskSet[id]; !ok {
				anomalies = append(anomalies, fmt.Sprintf("epoch %d: tx %d in metadata but missing on disk", epoch, id))
			}
		}
		for id := range onDiskSet {
			if _, ok := listed[id]; !ok {
				anomalies = append(anomalies, fmt.Sprintf("epoch %d: tx %d on disk but not in metadata", epoch, id))
			}
		}

		_, err = os.Stat(epochCommittedMarkerPath(m.basePath, epoch))
		hasMarker := err == nil
		if hasMarker && meta.CommittedCount == 0 {
			anomalies = append(anomalies, fmt.Sprintf("epoch %d: committed marker present but committed_count is 0", epoch))
		}
	}

	return anomalies, nil
}

func (m *Manager) listEpochIDs() ([]uint64, error) {
	entries, err := os.ReadDir(epochsDir(m.basePath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, rzerr.NewEnvironment("txn: readdir epochs", err)
	}
	var ids []uint64
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id, err := strconv.ParseUint(e.Name(), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *Manager) listTxFiles(epoch uint64) ([]uint64, error) {
	entries, err := os.ReadDir(epochDir(m.basePath, epoch))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, rzerr.NewEnvironment("txn: readdir epoch", err)
	}
	var ids []uint64
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "tx_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		stem := strings.TrimSuffix(strings.TrimPrefix(name, "tx_"), ".json")
		id, err := strconv.ParseUint(stem, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
