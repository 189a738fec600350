// Package approval implements the stateless human-in-the-loop order flow:
// a proposed limit order is staged into a signed bearer token, handed back
// to the caller, and later resumed with an explicit approve/reject decision.
// No pending state is held server-side; the token is the only persistence.
package approval

import (
	"fmt"
	"time"

	"polybroker/safety"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// MarketRef is the market snapshot carried inside a token. It is captured
// at staging time and not re-fetched on resume; only tick size and risk
// classification are re-checked against the live venue.
type MarketRef struct {
	ID       string `json:"id"`
	Slug     string `json:"slug"`
	Question string `json:"question,omitempty"`
}

// PendingOrder is the unit of staged state, fully embedded in the approval
// token. It is immutable once encoded: any mutation invalidates the MAC.
type PendingOrder struct {
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	SessionID string    `json:"session_id,omitempty"`
	Market    MarketRef `json:"market"`
	TokenID   string    `json:"token_id"`
	Side      Side      `json:"side"`
	Outcome   string    `json:"outcome,omitempty"`
	Price     float64   `json:"price"`
	Size      float64   `json:"size"`

	// Notional is price*size computed once at staging, carried for display.
	Notional float64 `json:"notional"`
}

// Validate checks the structural invariants of a decoded descriptor.
// A token whose payload fails these checks is treated as invalid even
// when its signature verifies.
func (p *PendingOrder) Validate() error {
	if p.TokenID == "" {
		return fmt.Errorf("missing token id: %w", ErrInvalidPayload)
	}
	if p.Side != SideBuy && p.Side != SideSell {
		return fmt.Errorf("side must be BUY or SELL: %w", ErrInvalidPayload)
	}
	if !safety.PriceWithinRange(p.Price) || !safety.SizePositive(p.Size) {
		return fmt.Errorf("price/size out of range: %w", ErrInvalidPayload)
	}
	if p.ExpiresAt.IsZero() {
		return fmt.Errorf("missing expiry: %w", ErrInvalidPayload)
	}
	return nil
}

// Expired reports whether the proposal is past its expiry at the given time.
func (p *PendingOrder) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

// Summary renders the human-readable confirmation text shown to whoever
// decides whether the order goes out.
func (p *PendingOrder) Summary() string {
	label := p.Outcome
	if label == "" {
		label = p.TokenID
	}
	return fmt.Sprintf("%s %s %q on %q: %.4f shares @ %.4f (~$%.2f), expires %s",
		p.Side, label, p.TokenID, p.Market.Slug, p.Size, p.Price, p.Notional,
		p.ExpiresAt.UTC().Format(time.RFC3339))
}
