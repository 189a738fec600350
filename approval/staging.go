package approval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"polybroker/logger"
	"polybroker/market"
	"polybroker/safety"
)

// MarketData provides read-only market facts, queried at propose time.
type MarketData interface {
	FetchMarket(ctx context.Context, idOrSlug string) (*market.Snapshot, error)
}

// Exchange is the order-matching client boundary. All three calls happen
// only on the approved path, immediately before submission.
type Exchange interface {
	FetchTickSize(ctx context.Context, tokenID string) (string, error)
	FetchNegRisk(ctx context.Context, tokenID string) (bool, error)
	Submit(ctx context.Context, params SubmitParams) (*SubmitResult, error)
}

// Credentials resolves the trading secret. The same secret must resolve
// across propose and resume for a token to verify.
type Credentials interface {
	Resolve() (secret string, ok bool)
}

type SubmitParams struct {
	TokenID  string
	Side     Side
	Price    float64
	Size     float64
	TickSize string
	NegRisk  bool
}

type SubmitResult struct {
	OrderID string
	Status  string
}

// Policy is the trading policy threaded explicitly into every propose and
// resume call. It is re-read on resume, so tightening the allowlist or
// disabling trading takes effect on already-staged proposals.
type Policy struct {
	TradingEnabled  bool
	Sandboxed       bool
	NotionalLimit   float64
	MarketAllowlist []string
	ApprovalTTL     time.Duration
}

const defaultApprovalTTL = 10 * time.Minute

var ErrMarketClosed = errors.New("market is not accepting orders")

type ProposeRequest struct {
	Market    string // market id or slug; required unless TokenID is set
	TokenID   string // explicit instrument, bypasses outcome resolution
	Outcome   string
	Side      Side
	Price     float64
	Size      float64
	SessionID string
}

type ProposeResult struct {
	Token   string
	Summary string
	Order   *PendingOrder
}

type ResumeRequest struct {
	Token     string
	Approve   bool
	SessionID string
}

// Outcome is the terminal result of a resume. Lifecycle outcomes are
// explicit values rather than errors: an expired token is a normal end
// state, not a fault.
type Outcome string

const (
	OutcomeSubmitted        Outcome = "submitted"
	OutcomeRejected         Outcome = "rejected"
	OutcomeExpired          Outcome = "expired"
	OutcomeSessionMismatch  Outcome = "session_mismatch"
	OutcomeSubmissionFailed Outcome = "submission_failed"
)

type ResumeResult struct {
	Outcome Outcome
	OrderID string
	Status  string
	Reason  string
}

// Staging drives a proposed order through
// Draft -> PendingApproval -> {Approved,Rejected,Expired} -> {Submitted,Failed}.
// It holds no pending state between calls: the token is the hand-off.
type Staging struct {
	markets  MarketData
	exchange Exchange
	creds    Credentials
	clock    func() time.Time
	log      *logger.Logger
}

func NewStaging(markets MarketData, exchange Exchange, creds Credentials, log *logger.Logger) *Staging {
	return &Staging{
		markets:  markets,
		exchange: exchange,
		creds:    creds,
		clock:    time.Now,
		log:      log,
	}
}

// SetClock overrides the time source. Tests use it to cross expiry
// boundaries without sleeping.
func (s *Staging) SetClock(clock func() time.Time) {
	s.clock = clock
}

// Propose validates a draft order and stages it into a signed token.
// It never touches the venue's order endpoints.
func (s *Staging) Propose(ctx context.Context, policy Policy, req ProposeRequest) (*ProposeResult, error) {
	if !policy.TradingEnabled {
		return nil, safety.ErrTradingDisabled
	}
	if !safety.SandboxPermits(safety.ActionPlaceOrder, policy.Sandboxed) {
		return nil, safety.ErrSandboxed
	}

	secret, ok := s.creds.Resolve()
	if !ok || secret == "" {
		return nil, safety.ErrCredentialUnavailable
	}

	if !safety.PriceWithinRange(req.Price) || !safety.SizePositive(req.Size) {
		return nil, fmt.Errorf("price=%v size=%v: %w", req.Price, req.Size, safety.ErrInvalidPriceOrSize)
	}
	if !safety.WithinNotionalLimit(req.Price, req.Size, policy.NotionalLimit) {
		return nil, fmt.Errorf("notional %.2f over limit %.2f: %w",
			req.Price*req.Size, policy.NotionalLimit, safety.ErrNotionalLimitExceeded)
	}

	tokenID := req.TokenID
	outcomeLabel := req.Outcome
	ref := MarketRef{}

	if req.Market != "" {
		snap, err := s.markets.FetchMarket(ctx, req.Market)
		if err != nil {
			return nil, fmt.Errorf("market lookup failed: %w", err)
		}
		if !snap.Tradable() {
			return nil, fmt.Errorf("market %s: %w", snap.Slug, ErrMarketClosed)
		}
		ref = MarketRef{ID: snap.ID, Slug: snap.Slug, Question: snap.Question}

		// An explicit token id from the caller wins over label resolution.
		if tokenID == "" {
			resolved, label, err := ResolveOutcome(snap.OutcomeLabels, snap.TokenIDs, req.Outcome)
			if err != nil {
				return nil, err
			}
			tokenID = resolved
			if label != "" {
				outcomeLabel = label
			}
		}
	}

	if tokenID == "" {
		return nil, ErrOutcomeUnresolvable
	}

	// With an allowlist active, an order must name an allowlisted market;
	// bare token ids can't be vetted and are denied.
	if !safety.MarketAllowed(ref.Slug, policy.MarketAllowlist) &&
		!safety.MarketAllowed(ref.ID, policy.MarketAllowlist) {
		return nil, fmt.Errorf("market %q: %w", ref.Slug, safety.ErrMarketNotAllowed)
	}

	now := s.clock()
	ttl := policy.ApprovalTTL
	if ttl <= 0 {
		ttl = defaultApprovalTTL
	}

	order := &PendingOrder{
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		SessionID: req.SessionID,
		Market:    ref,
		TokenID:   tokenID,
		Side:      req.Side,
		Outcome:   outcomeLabel,
		Price:     req.Price,
		Size:      req.Size,
		Notional:  req.Price * req.Size,
	}
	if err := order.Validate(); err != nil {
		return nil, err
	}

	token, err := EncodeToken(order, secret)
	if err != nil {
		return nil, err
	}

	s.log.Info("order_staged",
		"market", ref.Slug,
		"token_id", tokenID,
		"side", order.Side,
		"price", order.Price,
		"size", order.Size,
		"notional", order.Notional,
		"expires_at", order.ExpiresAt)

	return &ProposeResult{
		Token:   token,
		Summary: order.Summary(),
		Order:   order,
	}, nil
}

// Resume verifies a staged token and applies the caller's decision. Every
// time-sensitive safety check runs again here: minutes may have passed
// since staging, and tick rules or policy may have changed underneath the
// proposal.
func (s *Staging) Resume(ctx context.Context, policy Policy, req ResumeRequest) (*ResumeResult, error) {
	secret, ok := s.creds.Resolve()
	if !ok || secret == "" {
		return nil, safety.ErrCredentialUnavailable
	}

	order, err := DecodeToken(req.Token, secret)
	if err != nil {
		return nil, err
	}

	if order.Expired(s.clock()) {
		s.log.Info("order_expired", "token_id", order.TokenID, "expired_at", order.ExpiresAt)
		return &ResumeResult{Outcome: OutcomeExpired, Reason: "approval window has passed; propose again"}, nil
	}

	// Session binding is checked before the decision so a mismatched caller
	// learns nothing about whether the token would otherwise be actionable.
	if order.SessionID != "" && order.SessionID != req.SessionID {
		s.log.Warn("session_mismatch", "token_id", order.TokenID)
		return &ResumeResult{Outcome: OutcomeSessionMismatch, Reason: "token belongs to a different session"}, nil
	}

	if !req.Approve {
		s.log.Info("order_rejected", "token_id", order.TokenID)
		return &ResumeResult{Outcome: OutcomeRejected, Reason: "order rejected by caller"}, nil
	}

	// Approval path: policy is re-applied, not trusted from staging time.
	if !policy.TradingEnabled {
		return nil, safety.ErrTradingDisabled
	}
	if !safety.SandboxPermits(safety.ActionApproveOrder, policy.Sandboxed) {
		return nil, safety.ErrSandboxed
	}
	if !safety.MarketAllowed(order.Market.Slug, policy.MarketAllowlist) &&
		!safety.MarketAllowed(order.Market.ID, policy.MarketAllowlist) {
		return nil, fmt.Errorf("market %s: %w", order.Market.Slug, safety.ErrMarketNotAllowed)
	}

	tickSize, err := s.exchange.FetchTickSize(ctx, order.TokenID)
	if err != nil {
		return nil, fmt.Errorf("tick size lookup failed: %w", err)
	}
	if !safety.TickAligned(order.Price, tickSize) {
		return nil, fmt.Errorf("price %v vs tick %s: %w", order.Price, tickSize, safety.ErrTickMisaligned)
	}

	negRisk, err := s.exchange.FetchNegRisk(ctx, order.TokenID)
	if err != nil {
		return nil, fmt.Errorf("risk classification lookup failed: %w", err)
	}

	result, err := s.exchange.Submit(ctx, SubmitParams{
		TokenID:  order.TokenID,
		Side:     order.Side,
		Price:    order.Price,
		Size:     order.Size,
		TickSize: tickSize,
		NegRisk:  negRisk,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// Cancellation is transient. The token stays valid until expiry.
			return nil, err
		}
		s.log.Error("order_submission_failed", "token_id", order.TokenID, "err", err)
		return &ResumeResult{Outcome: OutcomeSubmissionFailed, Reason: err.Error()}, nil
	}

	s.log.Info("order_submitted",
		"token_id", order.TokenID,
		"order_id", result.OrderID,
		"status", result.Status)

	return &ResumeResult{
		Outcome: OutcomeSubmitted,
		OrderID: result.OrderID,
		Status:  result.Status,
	}, nil
}
