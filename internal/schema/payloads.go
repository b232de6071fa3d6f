package schema

// Price is a scaled integer. The scale is defined per instrument.
type Price int64

// Quantity is a scaled integer. The scale is defined per instrument.
type Quantity int64

// Notional is a scaled integer. The scale is defined per instrument.
type Notional int64

// Fee is a scaled integer. The scale is defined per instrument.
type Fee int64

// Side describes order direction.
type Side uint16

const (
	SideUnknown Side = iota
	SideBuy
	SideSell
)

// Sign returns +1 for buys, -1 for sells, 0 otherwise.
func (s Side) Sign() int64 {
	switch s {
	case SideBuy:
		return 1
	case SideSell:
		return -1
	default:
		return 0
	}
}

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "buy"
	case SideSell:
		return "sell"
	default:
		return "unknown"
	}
}

// OrderStatus describes the lifecycle state of an order.
type OrderStatus uint16

const (
	OrderStatusUnknown OrderStatus = iota
	OrderStatusPendingNew
	OrderStatusLive
	OrderStatusPendingAmend
	OrderStatusPendingCancel
	OrderStatusFilled
	OrderStatusCanceled
	OrderStatusRejected
)

// Terminal reports whether the status ends the order lifecycle.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCanceled, OrderStatusRejected:
		return true
	default:
		return false
	}
}

// Open reports whether the order still rests (or may rest) on the venue.
func (s OrderStatus) Open() bool {
	switch s {
	case OrderStatusPendingNew, OrderStatusLive, OrderStatusPendingAmend, OrderStatusPendingCancel:
		return true
	default:
		return false
	}
}

func (s OrderStatus) String() string {
	switch s {
	case OrderStatusPendingNew:
		return "pending-new"
	case OrderStatusLive:
		return "live"
	case OrderStatusPendingAmend:
		return "pending-amend"
	case OrderStatusPendingCancel:
		return "pending-cancel"
	case OrderStatusFilled:
		return "filled"
	case OrderStatusCanceled:
		return "canceled"
	case OrderStatusRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// ActionKind describes an outbound order action.
type ActionKind uint16

const (
	ActionUnknown ActionKind = iota
	ActionPlace
	ActionAmend
	ActionCancel
)

func (k ActionKind) String() string {
	switch k {
	case ActionPlace:
		return "place"
	case ActionAmend:
		return "amend"
	case ActionCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// ActionOutcome describes how a dispatched action resolved.
type ActionOutcome uint16

const (
	OutcomeUnknown ActionOutcome = iota
	OutcomeAcked
	OutcomeFailedRetryable
	OutcomeFailedTerminal
	OutcomeTimedOut
)

func (o ActionOutcome) String() string {
	switch o {
	case OutcomeAcked:
		return "acked"
	case OutcomeFailedRetryable:
		return "failed-retryable"
	case OutcomeFailedTerminal:
		return "failed-terminal"
	case OutcomeTimedOut:
		return "timed-out"
	default:
		return "unknown"
	}
}

// UpdateKind distinguishes wholesale snapshots from delta merges.
type UpdateKind uint16

const (
	UpdateKindUnknown UpdateKind = iota
	UpdateKindSnapshot
	UpdateKindDelta
)

// Ccy is a fixed-width currency code, zero padded.
type Ccy [8]byte

// NewCcy builds a currency code from a string, truncating past 8 bytes.
func NewCcy(s string) Ccy {
	var c Ccy
	copy(c[:], s)
	return c
}

func (c Ccy) String() string {
	for i := range c {
		if c[i] == 0 {
			return string(c[:i])
		}
	}
	return string(c[:])
}

// BookLevel is one (price, size) row of a book side.
type BookLevel struct {
	Price Price
	Size  Quantity
}

// Book update flags.
const (
	BookFlagSnapshot uint16 = 1 << 0
)

// BookUpdate is the payload for EventBookSnapshot and EventBookDelta.
// Bids are descending, asks ascending.
type BookUpdate struct {
	InstrumentID uint32
	Flags        uint16
	Reserved     uint16
	Seq          uint64
	Ts           int64
	Checksum     uint32
	Bids         []BookLevel
	Asks         []BookLevel
}

// IsSnapshot reports whether the update replaces the whole book.
func (u BookUpdate) IsSnapshot() bool {
	return u.Flags&BookFlagSnapshot != 0
}

// Trade is the payload for EventTrade.
type Trade struct {
	InstrumentID uint32
	Side         Side
	Flags        uint16
	Price        Price
	Size         Quantity
	Ts           int64
}

// OrderUpdate is the payload for EventOrderUpdate. Filled is the
// accumulated filled size reported by the venue, not a delta.
type OrderUpdate struct {
	ClientID     uint64
	ExchangeID   uint64
	InstrumentID uint32
	Status       OrderStatus
	Side         Side
	Seq          uint64
	Price        Price
	Size         Quantity
	Remaining    Quantity
	Filled       Quantity
	AvgPrice     Price
	Ts           int64
}

// PositionUpdate is the payload for EventPositionUpdate.
type PositionUpdate struct {
	InstrumentID uint32
	Kind         UpdateKind
	Reserved     uint16
	Seq          uint64
	Position     Quantity
	AvgPrice     Price
	Ts           int64
}

// BalanceUpdate is the payload for EventBalanceUpdate.
type BalanceUpdate struct {
	Currency  Ccy
	Kind      UpdateKind
	Reserved  uint16
	Flags     uint32
	Seq       uint64
	Available Notional
	Frozen    Notional
	Ts        int64
}

// ActionRequest is the payload for EventActionRequest. For amends the
// price/size carry the new total values; cancels keep the resting price
// for reporting only.
type ActionRequest struct {
	RequestID    uint64
	ClientID     uint64
	InstrumentID uint32
	Kind         ActionKind
	Side         Side
	Price        Price
	Size         Quantity
	Ts           int64
}

// ActionResult is the payload for EventActionResult.
type ActionResult struct {
	RequestID  uint64
	ClientID   uint64
	ExchangeID uint64
	Outcome    ActionOutcome
	Attempt    uint16
	Code       uint32
	Ts         int64
}

// Fill is the payload for EventFill. Qty is the fill delta.
type Fill struct {
	ClientID     uint64
	ExchangeID   uint64
	InstrumentID uint32
	Side         Side
	Flags        uint16
	Price        Price
	Qty          Quantity
	Fee          Fee
	Ts           int64
}

// Risk sample flags.
const (
	RiskFlagStaleMark uint16 = 1 << 0
)

// RiskSample is the payload for EventRiskSample.
type RiskSample struct {
	InstrumentID  uint32
	Flags         uint16
	Reserved      uint16
	Ts            int64
	InceptionTs   int64
	MarkPrice     Price
	Position      Quantity
	ExposureBase  Quantity
	ExposureQuote Notional
	AssetValue    Notional
	PnL           Notional
	NetFilled     Quantity
	Volume        Quantity
}
