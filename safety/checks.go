// Package safety holds the pure order-safety validators. Every check is
// independently callable and maps to its own sentinel error so callers can
// react to a specific failure (ask for a smaller size vs. hard-deny).
package safety

import (
	"errors"
	"math"
	"strconv"
)

var (
	ErrTradingDisabled       = errors.New("trading is disabled by configuration")
	ErrSandboxed             = errors.New("mutating actions are blocked in sandbox mode")
	ErrCredentialUnavailable = errors.New("trading credential is not configured")
	ErrMarketNotAllowed      = errors.New("market is not on the allowlist")
	ErrNotionalLimitExceeded = errors.New("order notional exceeds the configured limit")
	ErrInvalidPriceOrSize    = errors.New("price must be between 0 and 1 exclusive and size must be positive")
	ErrTickMisaligned        = errors.New("price is not a multiple of the market tick size")
)

// Action classifies an operation for sandbox gating. Read-only actions are
// always permitted; anything that can move funds is denied in sandbox mode.
type Action int

const (
	ActionRead Action = iota
	ActionPlaceOrder
	ActionCancelOrder
	ActionApproveOrder
)

func (a Action) Mutating() bool {
	return a != ActionRead
}

// WithinNotionalLimit reports whether price*size stays under limit.
// A non-positive limit disables the check.
func WithinNotionalLimit(price, size, limit float64) bool {
	if limit <= 0 {
		return true
	}
	return price*size <= limit
}

// MarketAllowed reports whether the market identifier is permitted. An empty
// allowlist permits every market.
func MarketAllowed(market string, allowlist []string) bool {
	if len(allowlist) == 0 {
		return true
	}
	for _, allowed := range allowlist {
		if market == allowed {
			return true
		}
	}
	return false
}

func SandboxPermits(action Action, sandboxed bool) bool {
	if !sandboxed {
		return true
	}
	return !action.Mutating()
}

func PriceWithinRange(price float64) bool {
	return price > 0 && price < 1
}

func SizePositive(size float64) bool {
	return size > 0
}

// TickAligned reports whether price is a whole multiple of tickSize, which the
// venue reports as a decimal string. An unparseable or non-positive tick size
// means the market carries no tick constraint.
func TickAligned(price float64, tickSize string) bool {
	tick, err := strconv.ParseFloat(tickSize, 64)
	if err != nil || tick <= 0 || math.IsInf(tick, 0) || math.IsNaN(tick) {
		return true
	}
	ratio := price / tick
	return math.Abs(ratio-math.Round(ratio)) <= 1e-9
}
