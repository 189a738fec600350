package approval

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMalformedToken   = errors.New("malformed approval token")
	ErrInvalidSignature = errors.New("approval token signature mismatch")
	ErrInvalidPayload   = errors.New("approval token payload invalid")
)

// tokenKeyPrefix domain-separates the derived MAC key from any other use
// of the trading credential.
const tokenKeyPrefix = "polybroker/approval-token/v1:"

// deriveTokenKey turns the trading credential into a MAC key via a one-way
// hash. The raw secret is never used as a key directly, and rotating the
// credential invalidates every outstanding token.
func deriveTokenKey(secret string) []byte {
	sum := sha256.Sum256([]byte(tokenKeyPrefix + secret))
	return sum[:]
}

func computeMAC(payload []byte, secret string) []byte {
	h := hmac.New(sha256.New, deriveTokenKey(secret))
	h.Write(payload)
	return h.Sum(nil)
}

// EncodeToken serializes and signs a pending order into a bearer token of
// the form base64url(payload) "." base64url(mac), unpadded.
func EncodeToken(order *PendingOrder, secret string) (string, error) {
	payload, err := json.Marshal(order)
	if err != nil {
		return "", fmt.Errorf("failed to serialize order: %w", err)
	}

	mac := computeMAC(payload, secret)

	return base64.RawURLEncoding.EncodeToString(payload) +
		"." +
		base64.RawURLEncoding.EncodeToString(mac), nil
}

// DecodeToken verifies a token's integrity and returns the embedded order.
// The payload is only parsed after the MAC verifies, so a forged token
// never reaches the JSON decoder.
func DecodeToken(token, secret string) (*PendingOrder, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return nil, fmt.Errorf("expected two dot-separated segments: %w", ErrMalformedToken)
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("payload segment not base64url: %w", ErrMalformedToken)
	}
	gotMAC, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("signature segment not base64url: %w", ErrMalformedToken)
	}

	wantMAC := computeMAC(payload, secret)
	if len(gotMAC) != len(wantMAC) || !hmac.Equal(gotMAC, wantMAC) {
		return nil, ErrInvalidSignature
	}

	var order PendingOrder
	if err := json.Unmarshal(payload, &order); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := order.Validate(); err != nil {
		return nil, err
	}

	return &order, nil
}
