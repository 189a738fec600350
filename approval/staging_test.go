package approval

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polybroker/logger"
	"polybroker/market"
	"polybroker/safety"
)

type fakeMarketData struct {
	snap *market.Snapshot
	err  error
}

func (f *fakeMarketData) FetchMarket(_ context.Context, _ string) (*market.Snapshot, error) {
	return f.snap, f.err
}

type fakeExchange struct {
	tickSize   string
	tickErr    error
	negRisk    bool
	negRiskErr error
	submitted  []SubmitParams
	submitRes  *SubmitResult
	submitErr  error
}

func (f *fakeExchange) FetchTickSize(_ context.Context, _ string) (string, error) {
	return f.tickSize, f.tickErr
}

func (f *fakeExchange) FetchNegRisk(_ context.Context, _ string) (bool, error) {
	return f.negRisk, f.negRiskErr
}

func (f *fakeExchange) Submit(_ context.Context, params SubmitParams) (*SubmitResult, error) {
	f.submitted = append(f.submitted, params)
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return f.submitRes, nil
}

type fakeCreds struct {
	secret string
}

func (f fakeCreds) Resolve() (string, bool) {
	return f.secret, f.secret != ""
}

func testSnapshot() *market.Snapshot {
	return &market.Snapshot{
		ID:              "501234",
		Slug:            "btc-above-100k-2026",
		Question:        "Will BTC close above $100k in 2026?",
		Active:          true,
		AcceptingOrders: true,
		OutcomeLabels:   []string{"Yes", "No"},
		TokenIDs:        []string{"T1", "T2"},
	}
}

func newTestStaging(ex *fakeExchange) *Staging {
	return NewStaging(
		&fakeMarketData{snap: testSnapshot()},
		ex,
		fakeCreds{secret: "0xdeadbeef"},
		logger.NewLoggerWithLevel("error"),
	)
}

func openPolicy() Policy {
	return Policy{
		TradingEnabled: true,
		NotionalLimit:  100,
		ApprovalTTL:    10 * time.Minute,
	}
}

func proposeReq() ProposeRequest {
	return ProposeRequest{
		Market:    "btc-above-100k-2026",
		Outcome:   "yes",
		Side:      SideBuy,
		Price:     0.62,
		Size:      10,
		SessionID: "sess-1",
	}
}

func TestProposeStagesOrder(t *testing.T) {
	ex := &fakeExchange{}
	s := newTestStaging(ex)

	res, err := s.Propose(context.Background(), openPolicy(), proposeReq())
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.NotEmpty(t, res.Summary)
	assert.Equal(t, "T1", res.Order.TokenID)
	assert.Equal(t, "Yes", res.Order.Outcome)
	assert.InDelta(t, 6.2, res.Order.Notional, 1e-12)
	assert.Empty(t, ex.submitted, "propose must not touch the venue")
}

func TestProposeNotionalLimit(t *testing.T) {
	s := newTestStaging(&fakeExchange{})

	req := proposeReq()
	req.Size = 1000 // 620 notional over a 100 limit

	res, err := s.Propose(context.Background(), openPolicy(), req)
	assert.ErrorIs(t, err, safety.ErrNotionalLimitExceeded)
	assert.Nil(t, res)
}

func TestProposePolicyGates(t *testing.T) {
	s := newTestStaging(&fakeExchange{})
	ctx := context.Background()

	policy := openPolicy()
	policy.TradingEnabled = false
	_, err := s.Propose(ctx, policy, proposeReq())
	assert.ErrorIs(t, err, safety.ErrTradingDisabled)

	policy = openPolicy()
	policy.Sandboxed = true
	_, err = s.Propose(ctx, policy, proposeReq())
	assert.ErrorIs(t, err, safety.ErrSandboxed)

	policy = openPolicy()
	policy.MarketAllowlist = []string{"some-other-market"}
	_, err = s.Propose(ctx, policy, proposeReq())
	assert.ErrorIs(t, err, safety.ErrMarketNotAllowed)

	policy = openPolicy()
	req := proposeReq()
	req.Price = 1.2
	_, err = s.Propose(ctx, policy, req)
	assert.ErrorIs(t, err, safety.ErrInvalidPriceOrSize)
}

func TestProposeMissingCredential(t *testing.T) {
	s := NewStaging(
		&fakeMarketData{snap: testSnapshot()},
		&fakeExchange{},
		fakeCreds{},
		logger.NewLoggerWithLevel("error"),
	)

	_, err := s.Propose(context.Background(), openPolicy(), proposeReq())
	assert.ErrorIs(t, err, safety.ErrCredentialUnavailable)
}

func TestProposeExplicitTokenBypassesResolver(t *testing.T) {
	s := newTestStaging(&fakeExchange{})

	req := proposeReq()
	req.TokenID = "T2"
	req.Outcome = "" // no label either

	res, err := s.Propose(context.Background(), openPolicy(), req)
	require.NoError(t, err)
	assert.Equal(t, "T2", res.Order.TokenID)
}

func TestResumeApproveSubmits(t *testing.T) {
	ex := &fakeExchange{
		tickSize:  "0.01",
		negRisk:   true,
		submitRes: &SubmitResult{OrderID: "ord-123", Status: "live"},
	}
	s := newTestStaging(ex)
	ctx := context.Background()

	prop, err := s.Propose(ctx, openPolicy(), proposeReq())
	require.NoError(t, err)

	res, err := s.Resume(ctx, openPolicy(), ResumeRequest{
		Token:     prop.Token,
		Approve:   true,
		SessionID: "sess-1",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSubmitted, res.Outcome)
	assert.Equal(t, "ord-123", res.OrderID)
	assert.Equal(t, "live", res.Status)

	require.Len(t, ex.submitted, 1)
	sub := ex.submitted[0]
	assert.Equal(t, "T1", sub.TokenID)
	assert.Equal(t, SideBuy, sub.Side)
	assert.Equal(t, "0.01", sub.TickSize)
	assert.True(t, sub.NegRisk, "current risk classification is passed through")
}

func TestResumeReject(t *testing.T) {
	ex := &fakeExchange{tickSize: "0.01"}
	s := newTestStaging(ex)
	ctx := context.Background()

	prop, err := s.Propose(ctx, openPolicy(), proposeReq())
	require.NoError(t, err)

	res, err := s.Resume(ctx, openPolicy(), ResumeRequest{
		Token:     prop.Token,
		Approve:   false,
		SessionID: "sess-1",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, res.Outcome)
	assert.Empty(t, ex.submitted, "rejection makes no venue calls")
}

func TestResumeExpired(t *testing.T) {
	ex := &fakeExchange{tickSize: "0.01"}
	s := newTestStaging(ex)
	ctx := context.Background()

	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return now })

	prop, err := s.Propose(ctx, openPolicy(), proposeReq())
	require.NoError(t, err)

	s.SetClock(func() time.Time { return now.Add(11 * time.Minute) })

	res, err := s.Resume(ctx, openPolicy(), ResumeRequest{
		Token:     prop.Token,
		Approve:   true,
		SessionID: "sess-1",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeExpired, res.Outcome)
	assert.Empty(t, ex.submitted, "expired tokens make no venue calls")
}

func TestResumeSessionMismatch(t *testing.T) {
	ex := &fakeExchange{tickSize: "0.01"}
	s := newTestStaging(ex)
	ctx := context.Background()

	prop, err := s.Propose(ctx, openPolicy(), proposeReq())
	require.NoError(t, err)

	res, err := s.Resume(ctx, openPolicy(), ResumeRequest{
		Token:     prop.Token,
		Approve:   true,
		SessionID: "someone-else",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSessionMismatch, res.Outcome)
	assert.Empty(t, ex.submitted)
}

func TestResumeRechecksPolicy(t *testing.T) {
	ex := &fakeExchange{tickSize: "0.01", submitRes: &SubmitResult{OrderID: "x"}}
	s := newTestStaging(ex)
	ctx := context.Background()

	prop, err := s.Propose(ctx, openPolicy(), proposeReq())
	require.NoError(t, err)

	// Policy tightened between staging and resume.
	policy := openPolicy()
	policy.MarketAllowlist = []string{"a-different-market"}

	_, err = s.Resume(ctx, policy, ResumeRequest{Token: prop.Token, Approve: true, SessionID: "sess-1"})
	assert.ErrorIs(t, err, safety.ErrMarketNotAllowed)

	policy = openPolicy()
	policy.TradingEnabled = false
	_, err = s.Resume(ctx, policy, ResumeRequest{Token: prop.Token, Approve: true, SessionID: "sess-1"})
	assert.ErrorIs(t, err, safety.ErrTradingDisabled)

	assert.Empty(t, ex.submitted)
}

func TestResumeRechecksTickSize(t *testing.T) {
	// Tick rules changed after staging: 0.62 was fine at 0.01 but the
	// market coarsened to 0.05.
	ex := &fakeExchange{tickSize: "0.05"}
	s := newTestStaging(ex)
	ctx := context.Background()

	prop, err := s.Propose(ctx, openPolicy(), proposeReq())
	require.NoError(t, err)

	_, err = s.Resume(ctx, openPolicy(), ResumeRequest{Token: prop.Token, Approve: true, SessionID: "sess-1"})
	assert.ErrorIs(t, err, safety.ErrTickMisaligned)
	assert.Empty(t, ex.submitted)
}

func TestResumeSubmissionFailure(t *testing.T) {
	ex := &fakeExchange{tickSize: "0.01", submitErr: errors.New("venue says no")}
	s := newTestStaging(ex)
	ctx := context.Background()

	prop, err := s.Propose(ctx, openPolicy(), proposeReq())
	require.NoError(t, err)

	res, err := s.Resume(ctx, openPolicy(), ResumeRequest{Token: prop.Token, Approve: true, SessionID: "sess-1"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSubmissionFailed, res.Outcome)
	assert.Contains(t, res.Reason, "venue says no")
}

func TestResumeCancellationIsTransient(t *testing.T) {
	ex := &fakeExchange{tickSize: "0.01", submitErr: context.Canceled}
	s := newTestStaging(ex)
	ctx := context.Background()

	prop, err := s.Propose(ctx, openPolicy(), proposeReq())
	require.NoError(t, err)

	resume := ResumeRequest{Token: prop.Token, Approve: true, SessionID: "sess-1"}

	_, err = s.Resume(ctx, openPolicy(), resume)
	assert.ErrorIs(t, err, context.Canceled)

	// The token is still usable on retry once the transient failure clears.
	ex.submitErr = nil
	ex.submitRes = &SubmitResult{OrderID: "ord-9", Status: "matched"}

	res, err := s.Resume(ctx, openPolicy(), resume)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSubmitted, res.Outcome)
	assert.Equal(t, "ord-9", res.OrderID)
}

func TestResumeMarketFactsLookupFailure(t *testing.T) {
	ex := &fakeExchange{tickErr: errors.New("book endpoint down")}
	s := newTestStaging(ex)
	ctx := context.Background()

	prop, err := s.Propose(ctx, openPolicy(), proposeReq())
	require.NoError(t, err)

	resume := ResumeRequest{Token: prop.Token, Approve: true, SessionID: "sess-1"}

	_, err = s.Resume(ctx, openPolicy(), resume)
	require.Error(t, err)
	assert.Empty(t, ex.submitted)

	ex.tickErr = nil
	ex.tickSize = "0.01"
	ex.negRiskErr = errors.New("book endpoint down")

	_, err = s.Resume(ctx, openPolicy(), resume)
	require.Error(t, err)
	assert.Empty(t, ex.submitted)

	// Lookup failures do not consume the token.
	ex.negRiskErr = nil
	ex.submitRes = &SubmitResult{OrderID: "ord-5", Status: "live"}

	res, err := s.Resume(ctx, openPolicy(), resume)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSubmitted, res.Outcome)
}

func TestResumeTamperedToken(t *testing.T) {
	s := newTestStaging(&fakeExchange{tickSize: "0.01"})
	ctx := context.Background()

	prop, err := s.Propose(ctx, openPolicy(), proposeReq())
	require.NoError(t, err)

	mutated := []byte(prop.Token)
	mutated[3] ^= 0x01

	_, err = s.Resume(ctx, openPolicy(), ResumeRequest{Token: string(mutated), Approve: true, SessionID: "sess-1"})
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidSignature) || errors.Is(err, ErrMalformedToken))
}
