package schema

import (
	"fmt"
	"strings"
)

// InstrumentType classifies an instrument.
type InstrumentType uint16

const (
	InstTypeUnknown InstrumentType = iota
	InstTypeSpot
	InstTypeMargin
	InstTypeSwap
	InstTypeFutures
	InstTypeOption
)

func (t InstrumentType) String() string {
	switch t {
	case InstTypeSpot:
		return "SPOT"
	case InstTypeMargin:
		return "MARGIN"
	case InstTypeSwap:
		return "SWAP"
	case InstTypeFutures:
		return "FUTURES"
	case InstTypeOption:
		return "OPTION"
	default:
		return "UNKNOWN"
	}
}

// ParseInstrumentType parses an instrument type string.
func ParseInstrumentType(s string) (InstrumentType, bool) {
	switch s {
	case "SPOT":
		return InstTypeSpot, true
	case "MARGIN":
		return InstTypeMargin, true
	case "SWAP":
		return InstTypeSwap, true
	case "FUTURES":
		return InstTypeFutures, true
	case "OPTION":
		return InstTypeOption, true
	default:
		return InstTypeUnknown, false
	}
}

// Derivative reports whether positions are held in contracts rather than cash.
func (t InstrumentType) Derivative() bool {
	switch t {
	case InstTypeSwap, InstTypeFutures, InstTypeOption:
		return true
	default:
		return false
	}
}

// InstTypeFromName derives the instrument type from the dash-separated
// name shape: BASE-QUOTE is spot, BASE-QUOTE-SWAP is a perpetual swap,
// BASE-QUOTE-<expiry> is a future, and five parts is an option.
func InstTypeFromName(name string) (InstrumentType, error) {
	parts := strings.Split(name, "-")
	switch len(parts) {
	case 2:
		return InstTypeSpot, nil
	case 3:
		if parts[2] == "SWAP" {
			return InstTypeSwap, nil
		}
		return InstTypeFutures, nil
	case 5:
		return InstTypeOption, nil
	default:
		return InstTypeUnknown, fmt.Errorf("invalid instrument name: %s", name)
	}
}

// BaseQuoteFromName returns the base and quote currencies from the name.
func BaseQuoteFromName(name string) (string, string, error) {
	parts := strings.Split(name, "-")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid instrument name: %s", name)
	}
	return parts[0], parts[1], nil
}

// TradeMode is the margin mode an order trades under.
type TradeMode uint16

const (
	TradeModeUnknown TradeMode = iota
	TradeModeCash
	TradeModeIsolated
	TradeModeCross
)

func (m TradeMode) String() string {
	switch m {
	case TradeModeCash:
		return "cash"
	case TradeModeIsolated:
		return "isolated"
	case TradeModeCross:
		return "cross"
	default:
		return "unknown"
	}
}

// ParseTradeMode parses a trade mode string.
func ParseTradeMode(s string) (TradeMode, bool) {
	switch s {
	case "cash":
		return TradeModeCash, true
	case "isolated":
		return TradeModeIsolated, true
	case "cross":
		return TradeModeCross, true
	default:
		return TradeModeUnknown, false
	}
}

// AccountMode is the account-level margin configuration.
type AccountMode uint16

const (
	AccountModeUnknown AccountMode = iota
	AccountModeCash
	AccountModeSingleCcyMargin
	AccountModeMultiCcyMargin
	AccountModePortfolioMargin
)

func (m AccountMode) String() string {
	switch m {
	case AccountModeCash:
		return "cash"
	case AccountModeSingleCcyMargin:
		return "single-ccy-margin"
	case AccountModeMultiCcyMargin:
		return "multi-ccy-margin"
	case AccountModePortfolioMargin:
		return "portfolio-margin"
	default:
		return "unknown"
	}
}

// ParseAccountMode parses an account mode string.
func ParseAccountMode(s string) (AccountMode, bool) {
	switch s {
	case "cash":
		return AccountModeCash, true
	case "single-ccy-margin":
		return AccountModeSingleCcyMargin, true
	case "multi-ccy-margin":
		return AccountModeMultiCcyMargin, true
	case "portfolio-margin":
		return AccountModePortfolioMargin, true
	default:
		return AccountModeUnknown, false
	}
}

// DecideTradeMode resolves the trade mode for an order from the account
// mode, the instrument type, and the configured preference. Cash
// accounts only trade spot and bought options in cash mode; margin
// accounts keep spot in cash (single-ccy) or cross (multi-ccy,
// portfolio) and derivatives in the preferred isolated/cross mode,
// defaulting to cross.
func DecideTradeMode(account AccountMode, instType InstrumentType, preference TradeMode) (TradeMode, error) {
	switch account {
	case AccountModeCash:
		if instType != InstTypeSpot && instType != InstTypeOption {
			return TradeModeUnknown, fmt.Errorf("instrument type %s not tradable in cash account", instType)
		}
		return TradeModeCash, nil
	case AccountModeSingleCcyMargin:
		if preference != TradeModeUnknown {
			if instType != InstTypeSpot && instType != InstTypeMargin && preference == TradeModeCash {
				return TradeModeCross, nil
			}
			if instType == InstTypeSpot {
				return TradeModeCash, nil
			}
			return preference, nil
		}
		if instType == InstTypeSpot {
			return TradeModeCash, nil
		}
		return TradeModeCross, nil
	case AccountModeMultiCcyMargin, AccountModePortfolioMargin:
		if preference != TradeModeUnknown {
			if preference == TradeModeCash {
				return TradeModeCross, nil
			}
			if instType == InstTypeMargin {
				return TradeModeIsolated, nil
			}
			if instType == InstTypeSpot {
				return TradeModeCross, nil
			}
			return preference, nil
		}
		if instType == InstTypeMargin {
			return TradeModeIsolated, nil
		}
		return TradeModeCross, nil
	default:
		return TradeModeUnknown, fmt.Errorf("invalid account mode: %d", account)
	}
}
