package client

import (
	"context"
	"fmt"
	"net/url"
)

type GammaClient struct {
	*Client
}

func NewGammaClient(baseUrl string) *GammaClient {
	if baseUrl == "" {
		baseUrl = "https://gamma-api.polymarket.com"
	}
	return &GammaClient{
		Client: NewClient(baseUrl),
	}
}

// GetMarketBySlug looks a market up by its URL slug.
func (c *GammaClient) GetMarketBySlug(ctx context.Context, slug string) (*Market, error) {
	endpoint := "/markets"
	params := url.Values{}
	params.Set("slug", slug)
	params.Set("limit", "1")

	var response []Market
	if err := c.Client.get(ctx, endpoint, params, &response); err != nil {
		return nil, err
	}
	if len(response) == 0 {
		return nil, fmt.Errorf("no market with slug %q: %w", slug, ErrAPIFailure)
	}
	return &response[0], nil
}

// GetMarketByID fetches a market by its numeric gamma id.
func (c *GammaClient) GetMarketByID(ctx context.Context, id string) (*Market, error) {
	endpoint := "/markets/" + id

	response := &Market{}
	if err := c.Client.get(ctx, endpoint, nil, response); err != nil {
		return nil, err
	}
	return response, nil
}
