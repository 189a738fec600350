package client

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// AuthProvider applies authentication to an HTTP request.
// Implementations can add headers, query params, or signatures
// depending on the target API requirements.
type AuthProvider interface {
	Apply(req *http.Request) error
}

// PolymarketL2Auth signs requests with the derived CLOB API credentials.
type PolymarketL2Auth struct {
	Address    string // POLY_ADDRESS (signer/wallet address)
	APIKey     string // POLY_API_KEY
	Secret     string // base64 encoded secret for HMAC
	Passphrase string // POLY_PASSPHRASE
}

func (a PolymarketL2Auth) Apply(req *http.Request) error {
	return a.sign(req, "")
}

func (a PolymarketL2Auth) SignWithBody(req *http.Request, body string) error {
	return a.sign(req, body)
}

func (a PolymarketL2Auth) sign(req *http.Request, body string) error {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)

	message := timestamp + req.Method + req.URL.Path + body

	// The CLOB secret is url-safe base64, as is the signature it expects.
	secretBytes, err := base64.URLEncoding.DecodeString(a.Secret)
	if err != nil {
		return fmt.Errorf("failed to decode secret: %w", err)
	}

	h := hmac.New(sha256.New, secretBytes)
	h.Write([]byte(message))
	signature := base64.URLEncoding.EncodeToString(h.Sum(nil))

	req.Header.Set("POLY_ADDRESS", a.Address)
	req.Header.Set("POLY_SIGNATURE", signature)
	req.Header.Set("POLY_TIMESTAMP", timestamp)
	req.Header.Set("POLY_API_KEY", a.APIKey)
	req.Header.Set("POLY_PASSPHRASE", a.Passphrase)

	return nil
}
