package okx

import (
	"strconv"

	"main/internal/schema"
)

// Venue result codes the retry logic cares about. Everything not
// explicitly retryable is terminal: re-sending an order the venue
// refused for a business reason only burns rate limit.
const (
	codeOK uint32 = 0

	codeServiceUnavailable uint32 = 50001
	codeSystemBusy         uint32 = 50013
	codeRateLimit          uint32 = 50011
	codeEndpointRateLimit  uint32 = 50061
	codeSystemError        uint32 = 50026
	codeTimeout            uint32 = 50004

	codeOrderNotFound uint32 = 51603
)

// classify maps a per-row result code to an action outcome.
func classify(code uint32) schema.ActionOutcome {
	switch code {
	case codeOK:
		return schema.OutcomeAcked
	case codeServiceUnavailable, codeSystemBusy, codeRateLimit, codeEndpointRateLimit, codeSystemError:
		return schema.OutcomeFailedRetryable
	case codeTimeout:
		return schema.OutcomeTimedOut
	default:
		return schema.OutcomeFailedTerminal
	}
}

// parseCode reads the venue's string-typed code fields; malformed codes
// classify as terminal rather than silently acked.
func parseCode(s string) uint32 {
	if s == "" || s == "0" {
		return codeOK
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return ^uint32(0)
	}
	return uint32(v)
}
