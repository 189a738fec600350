package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testL2Auth() *PolymarketL2Auth {
	return &PolymarketL2Auth{
		Address:    "0x1234567890abcdef1234567890abcdef12345678",
		APIKey:     "api-key-uuid",
		Secret:     "c2VjcmV0LWtleQ==",
		Passphrase: "passphrase",
	}
}

func TestCancelOrder(t *testing.T) {
	var gotMethod, gotPath string
	var gotHeaders http.Header

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotHeaders = r.Header.Clone()
		json.NewEncoder(w).Encode(PolymarketCancelResponse{Success: true, Status: "canceled"})
	}))
	defer srv.Close()

	tc := NewTradeClient(srv.URL, testL2Auth())

	resp, err := tc.CancelOrder(context.Background(), "ord-42")
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "canceled", resp.Status)

	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/order/ord-42", gotPath)
	for _, h := range []string{"POLY_ADDRESS", "POLY_SIGNATURE", "POLY_TIMESTAMP", "POLY_API_KEY", "POLY_PASSPHRASE"} {
		assert.NotEmpty(t, gotHeaders.Get(h), h)
	}
}

func TestCancelOrderVenueDeclines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(PolymarketCancelResponse{Success: false, ErrorMsg: "order already filled"})
	}))
	defer srv.Close()

	tc := NewTradeClient(srv.URL, testL2Auth())

	resp, err := tc.CancelOrder(context.Background(), "ord-43")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "order already filled")
	require.NotNil(t, resp)
	assert.False(t, resp.Success)
}

func TestCancelOrderRequiresAuth(t *testing.T) {
	tc := &TradeClient{Client: NewClient("http://unused")}

	_, err := tc.CancelOrder(context.Background(), "ord-44")
	assert.Error(t, err)
}
