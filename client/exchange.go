package client

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"polybroker/approval"
	"polybroker/logger"
	"polybroker/market"
	"polybroker/utils"
)

// Exchange adapts the CLOB and trade clients to the approval package's
// order-matching boundary. API credentials are derived lazily from the
// wallet key on first submission and cached for the process lifetime.
type Exchange struct {
	clob       *ClobClient
	privateKey string
	log        *logger.Logger

	mu    sync.Mutex
	trade *TradeClient
	creds *ApiKeyResponse
	owner string // wallet address
}

func NewExchange(clob *ClobClient, privateKey string, log *logger.Logger) *Exchange {
	return &Exchange{
		clob:       clob,
		privateKey: privateKey,
		log:        log,
	}
}

func (e *Exchange) FetchTickSize(ctx context.Context, tokenID string) (string, error) {
	return e.clob.GetTickSize(ctx, tokenID)
}

func (e *Exchange) FetchNegRisk(ctx context.Context, tokenID string) (bool, error) {
	return e.clob.GetNegRisk(ctx, tokenID)
}

// ensureTradeClient derives CLOB API credentials from the wallet key and
// builds the L2-authed trade client, once.
func (e *Exchange) ensureTradeClient(ctx context.Context) (*TradeClient, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.trade != nil {
		return e.trade, nil
	}

	signer, err := NewEIP712OrderSigner(e.privateKey, PolygonChainID, CTFExchangeAddress)
	if err != nil {
		return nil, err
	}
	e.owner = signer.GetAddress().Hex()

	creds, err := e.clob.CreateOrDeriveApiKey(ctx, e.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to derive api key: %w", err)
	}
	e.creds = creds

	auth := &PolymarketL2Auth{
		Address:    e.owner,
		APIKey:     creds.ApiKey,
		Secret:     creds.Secret,
		Passphrase: creds.Passphrase,
	}
	e.trade = NewTradeClient(e.clob.baseUrl, auth)

	e.log.Info("trade_client_ready", "address", e.owner)

	return e.trade, nil
}

// Submit signs and places a GTC limit order. The verifying contract is
// chosen by the market's current risk classification.
func (e *Exchange) Submit(ctx context.Context, params approval.SubmitParams) (*approval.SubmitResult, error) {
	trade, err := e.ensureTradeClient(ctx)
	if err != nil {
		return nil, err
	}

	verifier := CTFExchangeAddress
	if params.NegRisk {
		verifier = NegRiskCTFExchangeAddress
	}

	signer, err := NewEIP712OrderSigner(e.privateKey, PolygonChainID, verifier)
	if err != nil {
		return nil, err
	}

	feeRateBps, err := e.clob.GetFeeRateBps(ctx, params.TokenID)
	if err != nil {
		e.log.Warn("fee_rate_lookup_failed", "token", params.TokenID, "err", err)
		feeRateBps = 0
	}

	// The caller has already verified alignment; rounding here only strips
	// float noise before the amounts are scaled to wei.
	price := params.Price
	if tick, err := strconv.ParseFloat(params.TickSize, 64); err == nil {
		price = utils.RoundToTick(price, tick)
	}

	signedOrder, err := signer.SignOrder(OrderSignParams{
		TokenID:       params.TokenID,
		Side:          string(params.Side),
		Price:         price,
		Size:          params.Size,
		Maker:         e.owner,
		Signer:        e.owner,
		Taker:         ZeroAddress,
		Nonce:         "0",
		FeeRateBps:    strconv.Itoa(feeRateBps),
		Expiration:    0,
		SignatureType: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign order: %w", err)
	}

	resp, err := trade.PlaceOrder(ctx, PolymarketOrderRequest{
		Order:     *signedOrder,
		Owner:     e.creds.ApiKey,
		OrderType: "GTC",
	})
	if err != nil {
		return nil, err
	}

	return &approval.SubmitResult{
		OrderID: resp.OrderID,
		Status:  string(resp.Status),
	}, nil
}

// Cancel withdraws a resting order by its venue id.
func (e *Exchange) Cancel(ctx context.Context, orderID string) error {
	trade, err := e.ensureTradeClient(ctx)
	if err != nil {
		return err
	}

	if _, err := trade.CancelOrder(ctx, orderID); err != nil {
		return err
	}

	e.log.Info("order_cancelled", "order_id", orderID)
	return nil
}

// MarketProvider adapts the gamma client to the approval package's
// market-data boundary. Lookups by slug fall back to id.
type MarketProvider struct {
	gamma *GammaClient
}

func NewMarketProvider(gamma *GammaClient) *MarketProvider {
	return &MarketProvider{gamma: gamma}
}

func (p *MarketProvider) FetchMarket(ctx context.Context, idOrSlug string) (*market.Snapshot, error) {
	if isNumeric(idOrSlug) {
		m, err := p.gamma.GetMarketByID(ctx, idOrSlug)
		if err != nil {
			return nil, err
		}
		return m.Snapshot(), nil
	}

	m, err := p.gamma.GetMarketBySlug(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}
	return m.Snapshot(), nil
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// EnvCredentials resolves the trading secret from a fixed value loaded at
// startup, satisfying approval.Credentials.
type EnvCredentials struct {
	PrivateKey string
}

func (c EnvCredentials) Resolve() (string, bool) {
	return c.PrivateKey, c.PrivateKey != ""
}
