package okx

import (
	"testing"
	"time"
)

func TestRestTimestampFormat(t *testing.T) {
	now := time.Date(2020, 12, 8, 9, 8, 57, 715_000_000, time.UTC)
	got := restTimestamp(now)
	if got != "2020-12-08T09:08:57.715Z" {
		t.Fatalf("restTimestamp = %q", got)
	}
}

func TestSignGet(t *testing.T) {
	got := sign("22582BD0CFF14C41EDBF1AB98506286D", "2020-12-08T09:08:57.715Z", "GET", "/api/v5/account/balance", nil)
	if got != "AkD5YszBhggtIyjDlmTy/9PpNVntel+1Lff8wh0qpQw=" {
		t.Fatalf("sign = %q", got)
	}
}

func TestSignPostWithBody(t *testing.T) {
	got := sign("22582BD0CFF14C41EDBF1AB98506286D", "2020-12-08T09:08:57.715Z", "POST", "/api/v5/trade/batch-orders", []byte(`[{"instId":"BTC-USDT"}]`))
	if got != "nMgqMJz03KokD1f/IZJVoHYwS2Dn76wXKy3dtWyvOxk=" {
		t.Fatalf("sign = %q", got)
	}
}

func TestWsLoginSign(t *testing.T) {
	got := wsLoginSign("22582BD0CFF14C41EDBF1AB98506286D", "1607418537")
	if got != "0vjUjLrA6Rxym2CT08KxFZ5U92xuS0FYHMvxJS17GwM=" {
		t.Fatalf("wsLoginSign = %q", got)
	}
}
