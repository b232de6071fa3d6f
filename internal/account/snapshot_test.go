package account

import (
	"path/filepath"
	"testing"

	"main/internal/schema"
)

func TestSnapshotRoundTrip(t *testing.T) {
	s := NewStore()
	s.ApplyPosition(schema.PositionUpdate{Kind: schema.UpdateKindSnapshot, Seq: 1, Position: -6, AvgPrice: 26440, Ts: 1})
	s.ApplyBalance(schema.BalanceUpdate{Currency: schema.NewCcy("USDT"), Kind: schema.UpdateKindSnapshot, Seq: 1, Available: 50_000, Frozen: 1_000, Ts: 1})
	s.ApplyBalance(schema.BalanceUpdate{Currency: schema.NewCcy("BTC"), Kind: schema.UpdateKindSnapshot, Seq: 1, Available: 2, Ts: 1})
	trackOrder(t, s, 1, schema.SideSell, 26500, 6)
	if _, err := s.UpsertOrder(schema.OrderUpdate{
		ClientID: 1, Status: schema.OrderStatusFilled, Side: schema.SideSell, Seq: 2, Filled: 6, Ts: 2,
	}); err != nil {
		t.Fatalf("fill: %v", err)
	}

	snap := s.SnapshotWithMeta(42, 99)
	if snap.LastSeq != 42 || snap.LastEventTs != 99 {
		t.Fatalf("meta = %d/%d", snap.LastSeq, snap.LastEventTs)
	}
	if len(snap.Balances) != 2 || snap.Balances[0].Currency != "BTC" {
		t.Fatalf("balances = %+v", snap.Balances)
	}

	path := filepath.Join(t.TempDir(), "account.json")
	if err := WriteSnapshot(path, snap); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	read, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	if err := CompareSnapshots(snap, read); err != nil {
		t.Fatalf("CompareSnapshots: %v", err)
	}

	restored := NewStore()
	restored.ApplySnapshot(read)
	pos, avg := restored.Position()
	if pos != -6 || avg != 26440 {
		t.Fatalf("restored position = %d avg %d", pos, avg)
	}
	if m := restored.Measurement(); m.NetFilled != -6 || m.Volume != 6 {
		t.Fatalf("restored measurement = %+v", m)
	}
	if b, ok := restored.Balance("USDT"); !ok || b.Available != 50_000 {
		t.Fatalf("restored USDT = %+v/%v", b, ok)
	}
}

func TestCompareSnapshotsMismatch(t *testing.T) {
	a := Snapshot{Position: 1, Balances: []BalanceEntry{{Currency: "USDT", Available: 10}}}
	b := Snapshot{Position: 2, Balances: []BalanceEntry{{Currency: "USDT", Available: 10}}}
	if err := CompareSnapshots(a, b); err == nil {
		t.Fatalf("position mismatch not detected")
	}
	b.Position = 1
	b.Balances[0].Available = 11
	if err := CompareSnapshots(a, b); err == nil {
		t.Fatalf("balance mismatch not detected")
	}
}
