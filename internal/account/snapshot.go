package account

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"main/internal/schema"
)

// Snapshot captures account state at a point in time. It restores the
// measurement baseline and position/balances across restarts.
type Snapshot struct {
	Timestamp   int64           `json:"timestamp"`
	LastSeq     uint64          `json:"lastSeq"`
	LastEventTs int64           `json:"lastEventTs"`
	Position    schema.Quantity `json:"position"`
	PosAvgPrice schema.Price    `json:"posAvgPrice"`
	Measurement Measurement     `json:"measurement"`
	Balances    []BalanceEntry  `json:"balances"`
}

// BalanceEntry is a single currency balance entry.
type BalanceEntry struct {
	Currency  string          `json:"currency"`
	Available schema.Notional `json:"available"`
	Frozen    schema.Notional `json:"frozen"`
}

// Snapshot builds a snapshot from the current store state.
func (s *Store) Snapshot() Snapshot {
	return s.SnapshotWithMeta(0, 0)
}

// SnapshotWithMeta builds a snapshot with event metadata.
func (s *Store) SnapshotWithMeta(lastSeq uint64, lastEventTs int64) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]BalanceEntry, 0, len(s.balances))
	for ccy, b := range s.balances {
		entries = append(entries, BalanceEntry{
			Currency:  ccy,
			Available: b.Available,
			Frozen:    b.Frozen,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Currency < entries[j].Currency
	})
	return Snapshot{
		Timestamp:   time.Now().UTC().UnixNano(),
		LastSeq:     lastSeq,
		LastEventTs: lastEventTs,
		Position:    s.position,
		PosAvgPrice: s.posAvgPrice,
		Measurement: s.measurement,
		Balances:    entries,
	}
}

// ApplySnapshot restores store state from a snapshot.
func (s *Store) ApplySnapshot(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.position = snap.Position
	s.posAvgPrice = snap.PosAvgPrice
	s.measurement = snap.Measurement
	s.balances = make(map[string]Balance, len(snap.Balances))
	for _, entry := range snap.Balances {
		s.balances[entry.Currency] = Balance{
			Currency:  entry.Currency,
			Available: entry.Available,
			Frozen:    entry.Frozen,
		}
	}
}

// WriteSnapshot writes a snapshot to disk as JSON.
func WriteSnapshot(path string, snapshot Snapshot) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadSnapshot loads a snapshot from disk.
func ReadSnapshot(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// CompareSnapshots checks whether two snapshots carry the same state.
func CompareSnapshots(expected, actual Snapshot) error {
	if expected.Position != actual.Position {
		return fmt.Errorf("snapshot position mismatch: expected=%d actual=%d", expected.Position, actual.Position)
	}
	if expected.Measurement != actual.Measurement {
		return fmt.Errorf("snapshot measurement mismatch: expected=%+v actual=%+v", expected.Measurement, actual.Measurement)
	}
	if len(expected.Balances) != len(actual.Balances) {
		return fmt.Errorf("snapshot balance length mismatch: expected=%d actual=%d", len(expected.Balances), len(actual.Balances))
	}
	expectedMap := make(map[string]BalanceEntry, len(expected.Balances))
	for _, entry := range expected.Balances {
		expectedMap[entry.Currency] = entry
	}
	for _, entry := range actual.Balances {
		want, ok := expectedMap[entry.Currency]
		if !ok {
			return fmt.Errorf("snapshot missing currency: %s", entry.Currency)
		}
		if want.Available != entry.Available || want.Frozen != entry.Frozen {
			return fmt.Errorf("snapshot balance mismatch: ccy=%s expected=%d/%d actual=%d/%d",
				entry.Currency, want.Available, want.Frozen, entry.Available, entry.Frozen)
		}
	}
	return nil
}
