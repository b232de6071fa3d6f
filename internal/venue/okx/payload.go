package okx

import (
	"github.com/yanun0323/decimal"
)

// restResponse is the envelope every trade endpoint answers with.
type restResponse[T any] struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data []T    `json:"data"`
}

// orderAck is one per-row receipt from the batch trade endpoints.
type orderAck struct {
	ClOrdID string `json:"clOrdId"`
	OrdID   string `json:"ordId"`
	SCode   string `json:"sCode"`
	SMsg    string `json:"sMsg"`
}

type placeRow struct {
	InstID  string `json:"instId"`
	TdMode  string `json:"tdMode"`
	ClOrdID string `json:"clOrdId"`
	Side    string `json:"side"`
	OrdType string `json:"ordType"`
	Px      string `json:"px"`
	Sz      string `json:"sz"`
}

type amendRow struct {
	InstID  string `json:"instId"`
	ClOrdID string `json:"clOrdId"`
	NewPx   string `json:"newPx,omitempty"`
	NewSz   string `json:"newSz,omitempty"`
}

type cancelRow struct {
	InstID  string `json:"instId"`
	ClOrdID string `json:"clOrdId"`
}

// orderDetail is the order object from trade queries and the private
// orders channel. Numeric fields arrive as decimal strings.
type orderDetail struct {
	InstID    string          `json:"instId"`
	OrdID     string          `json:"ordId"`
	ClOrdID   string          `json:"clOrdId"`
	Side      string          `json:"side"`
	State     string          `json:"state"`
	Px        decimal.Decimal `json:"px"`
	Sz        decimal.Decimal `json:"sz"`
	AccFillSz decimal.Decimal `json:"accFillSz"`
	AvgPx     decimal.Decimal `json:"avgPx"`
	FillSz    decimal.Decimal `json:"fillSz"`
	FillPx    decimal.Decimal `json:"fillPx"`
	CTime     string          `json:"cTime"`
	UTime     string          `json:"uTime"`
	AmendRes  string          `json:"amendResult"`
}

// wsRequest is the op envelope for subscribe/login frames.
type wsRequest struct {
	Op   string `json:"op"`
	Args []any  `json:"args"`
}

type wsSubArg struct {
	Channel  string `json:"channel"`
	InstID   string `json:"instId,omitempty"`
	InstType string `json:"instType,omitempty"`
}

type wsLoginArg struct {
	APIKey     string `json:"apiKey"`
	Passphrase string `json:"passphrase"`
	Timestamp  string `json:"timestamp"`
	Sign       string `json:"sign"`
}

// wsEvent is the control-frame envelope (subscribe acks, login acks,
// errors).
type wsEvent struct {
	Event string   `json:"event"`
	Code  string   `json:"code"`
	Msg   string   `json:"msg"`
	Arg   wsSubArg `json:"arg"`
}

// wsBookMsg is one books-channel push.
type wsBookMsg struct {
	Arg    wsSubArg     `json:"arg"`
	Action string       `json:"action"`
	Data   []wsBookData `json:"data"`
}

type wsBookData struct {
	// Levels are [price, size, deprecated, orderCount].
	Asks      [][4]decimal.Decimal `json:"asks"`
	Bids      [][4]decimal.Decimal `json:"bids"`
	Ts        string               `json:"ts"`
	Checksum  int32                `json:"checksum"`
	SeqID     int64                `json:"seqId"`
	PrevSeqID int64                `json:"prevSeqId"`
}

// wsTradeMsg is one trades-channel push.
type wsTradeMsg struct {
	Arg  wsSubArg      `json:"arg"`
	Data []wsTradeData `json:"data"`
}

type wsTradeData struct {
	InstID string          `json:"instId"`
	Px     decimal.Decimal `json:"px"`
	Sz     decimal.Decimal `json:"sz"`
	Side   string          `json:"side"`
	Ts     string          `json:"ts"`
}

// wsOrdersMsg is one private orders-channel push.
type wsOrdersMsg struct {
	Arg  wsSubArg      `json:"arg"`
	Data []orderDetail `json:"data"`
}

// wsPositionsMsg is one private positions-channel push.
type wsPositionsMsg struct {
	Arg  wsSubArg         `json:"arg"`
	Data []wsPositionData `json:"data"`
}

type wsPositionData struct {
	InstID string          `json:"instId"`
	Pos    decimal.Decimal `json:"pos"`
	AvgPx  decimal.Decimal `json:"avgPx"`
	UTime  string          `json:"uTime"`
}

// wsAccountMsg is one private account-channel push.
type wsAccountMsg struct {
	Arg  wsSubArg        `json:"arg"`
	Data []wsAccountData `json:"data"`
}

type wsAccountData struct {
	UTime   string             `json:"uTime"`
	Details []wsBalanceDetail `json:"details"`
}

type wsBalanceDetail struct {
	Ccy       string          `json:"ccy"`
	AvailBal  decimal.Decimal `json:"availBal"`
	FrozenBal decimal.Decimal `json:"frozenBal"`
}
