package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

type ClobClient struct {
	*Client
}

func NewClobClient(baseUrl string) *ClobClient {
	if baseUrl == "" {
		baseUrl = "https://clob.polymarket.com"
	}
	return &ClobClient{
		Client: NewClient(baseUrl),
	}
}

func (c *ClobClient) GetFeeRateBps(ctx context.Context, tokenId string) (int, error) {
	endpoint := "/fee-rate"
	params := url.Values{}
	params.Set("token_id", tokenId)

	var resp FeeRateResp
	if err := c.Client.get(ctx, endpoint, params, &resp); err != nil {
		return 0, err
	}
	return resp.FeeRateBps, nil
}

func (c *ClobClient) GetBook(ctx context.Context, tokenId string) (*GetBookResponse, error) {
	endpoint := "/book"
	params := url.Values{}
	params.Set("token_id", tokenId)

	response := &GetBookResponse{}
	if err := c.Client.get(ctx, endpoint, params, response); err != nil {
		return nil, err
	}
	return response, nil
}

// GetTickSize returns the current tick size for a token as the venue's
// decimal string, unparsed so no precision is lost in transit.
func (c *ClobClient) GetTickSize(ctx context.Context, tokenId string) (string, error) {
	book, err := c.GetBook(ctx, tokenId)
	if err != nil {
		return "", err
	}
	return book.TickSize, nil
}

// GetNegRisk reports whether the token belongs to a negative-risk market,
// which changes the exchange contract the order must be signed against.
func (c *ClobClient) GetNegRisk(ctx context.Context, tokenId string) (bool, error) {
	book, err := c.GetBook(ctx, tokenId)
	if err != nil {
		return false, err
	}
	return book.NegRisk, nil
}

func (c *ClobClient) CreateOrDeriveApiKey(ctx context.Context, privateKeyHex string) (*ApiKeyResponse, error) {
	signer, err := NewEIP712OrderSigner(privateKeyHex, PolygonChainID, CTFExchangeAddress)
	if err != nil {
		return nil, err
	}

	address := signer.GetAddress().Hex()

	timestamp := time.Now().Unix()
	nonce := 0

	signature, err := CreateL1AuthSignature(signer, timestamp, nonce)
	if err != nil {
		return nil, fmt.Errorf("failed to create L1 signature: %w", err)
	}

	endpoint := "/auth/derive-api-key"

	headers := map[string]string{
		"POLY_ADDRESS":   address,
		"POLY_SIGNATURE": signature,
		"POLY_TIMESTAMP": strconv.FormatInt(timestamp, 10),
		"POLY_NONCE":     strconv.Itoa(nonce),
	}

	response := &ApiKeyResponse{}
	if err := c.Client.getWithHeaders(ctx, endpoint, headers, response); err != nil {
		return nil, err
	}

	return response, nil
}
