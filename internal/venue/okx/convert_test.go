package okx

import (
	"testing"

	"github.com/bytedance/sonic"

	"main/internal/schema"
)

func testInstrument() schema.Instrument {
	return schema.Instrument{
		ID:        7,
		Name:      "BTC-USDT-SWAP",
		Type:      schema.InstTypeSwap,
		TradeMode: schema.TradeModeCross,
		Scale: schema.ScaleSpec{
			PriceScale:    1,
			QuantityScale: 2,
			NotionalScale: 2,
		},
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		code string
		want schema.ActionOutcome
	}{
		{"0", schema.OutcomeAcked},
		{"", schema.OutcomeAcked},
		{"50001", schema.OutcomeFailedRetryable},
		{"50011", schema.OutcomeFailedRetryable},
		{"50004", schema.OutcomeTimedOut},
		{"51008", schema.OutcomeFailedTerminal},
		{"bogus", schema.OutcomeFailedTerminal},
	}
	for _, c := range cases {
		if got := classify(parseCode(c.code)); got != c.want {
			t.Fatalf("classify(%q) = %s, want %s", c.code, got, c.want)
		}
	}
}

func TestToOrderUpdate(t *testing.T) {
	var d orderDetail
	raw := `{
		"ordId": "312269865356374016",
		"clOrdId": "1042",
		"side": "buy",
		"state": "partially_filled",
		"px": "26441.4",
		"sz": "6",
		"accFillSz": "2.5",
		"avgPx": "26441.3",
		"uTime": "1597026383085"
	}`
	if err := sonic.ConfigFastest.Unmarshal([]byte(raw), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	update, err := toOrderUpdate(testInstrument(), d)
	if err != nil {
		t.Fatalf("toOrderUpdate: %v", err)
	}
	if update.ClientID != 1042 || update.ExchangeID != 312269865356374016 {
		t.Fatalf("ids = %d/%d", update.ClientID, update.ExchangeID)
	}
	if update.Status != schema.OrderStatusLive || update.Side != schema.SideBuy {
		t.Fatalf("status/side = %s/%s", update.Status, update.Side)
	}
	if update.Price != 264414 || update.Size != 600 || update.Filled != 250 || update.Remaining != 350 {
		t.Fatalf("numerics = %d/%d/%d/%d", update.Price, update.Size, update.Filled, update.Remaining)
	}
	if update.Seq != 1597026383085 {
		t.Fatalf("seq = %d", update.Seq)
	}
	if update.Ts != 1597026383085*int64(1e6) {
		t.Fatalf("ts = %d", update.Ts)
	}
}

func TestToOrderUpdateRejectsForeignClientID(t *testing.T) {
	if _, err := toOrderUpdate(testInstrument(), orderDetail{ClOrdID: "manual-abc"}); err == nil {
		t.Fatal("expected error for non-numeric client id")
	}
}

func TestToBookUpdateSnapshot(t *testing.T) {
	var d wsBookData
	raw := `{
		"bids": [["26441.3", "4", "0", "1"]],
		"asks": [["26441.4", "2", "0", "1"]],
		"ts": "1597026383085",
		"checksum": -855196043,
		"seqId": 100,
		"prevSeqId": -1
	}`
	if err := sonic.ConfigFastest.Unmarshal([]byte(raw), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	update, err := toBookUpdate(testInstrument(), "snapshot", d, 9)
	if err != nil {
		t.Fatalf("toBookUpdate: %v", err)
	}
	if !update.IsSnapshot() {
		t.Fatal("snapshot flag not set")
	}
	if update.Seq != 9 {
		t.Fatalf("seq = %d", update.Seq)
	}
	wantChecksum := int32(-855196043)
	if update.Checksum != uint32(wantChecksum) {
		t.Fatalf("checksum = %d", update.Checksum)
	}
	if update.Bids[0].Price != 264413 || update.Bids[0].Size != 400 {
		t.Fatalf("bid = %+v", update.Bids[0])
	}
	if update.Asks[0].Price != 264414 || update.Asks[0].Size != 200 {
		t.Fatalf("ask = %+v", update.Asks[0])
	}
}

func TestNextSeqChain(t *testing.T) {
	s := &PublicStream{inst: testInstrument()}

	seq, ok := s.nextSeq("snapshot", wsBookData{SeqID: 100, PrevSeqID: -1})
	if !ok || seq != 1 {
		t.Fatalf("snapshot seq = %d, ok=%v", seq, ok)
	}

	// contiguous venue chain stays dense
	seq, ok = s.nextSeq("update", wsBookData{SeqID: 107, PrevSeqID: 100})
	if !ok || seq != 2 {
		t.Fatalf("chained seq = %d, ok=%v", seq, ok)
	}

	// heartbeat carries no change
	if _, ok = s.nextSeq("update", wsBookData{SeqID: 107, PrevSeqID: 107}); ok {
		t.Fatal("heartbeat emitted")
	}

	// replay of an older push drops
	if _, ok = s.nextSeq("update", wsBookData{SeqID: 103, PrevSeqID: 100}); ok {
		t.Fatal("replay emitted")
	}

	// chain break maps to a dense gap the book store will reject
	seq, ok = s.nextSeq("update", wsBookData{SeqID: 120, PrevSeqID: 113})
	if !ok || seq != 4 {
		t.Fatalf("gapped seq = %d, ok=%v", seq, ok)
	}
}
