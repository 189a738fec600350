package client

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

const (
	PolygonChainID = int64(137)

	// Verifying contracts for order signatures. Negative-risk markets
	// settle through a different exchange contract.
	CTFExchangeAddress        = "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E"
	NegRiskCTFExchangeAddress = "0xC5d563A36AE78145C45a50134d48A1215220f80a"

	ZeroAddress = "0x0000000000000000000000000000000000000000"
)

type EIP712OrderSigner struct {
	privateKey *ecdsa.PrivateKey
	chainID    int64
	verifier   string
}

// OrderSignParams carries the fields of a CLOB order to be signed.
// Reference: https://github.com/Polymarket/clob-client/blob/main/src/signing/eip712.ts
type OrderSignParams struct {
	TokenID       string
	Side          string  // "BUY" or "SELL"
	Price         float64 // Decimal price (e.g., 0.65)
	Size          float64 // Quantity in shares
	Maker         string  // Funder address
	Signer        string  // Signing address (usually same as maker for EOA)
	Taker         string  // Taker address (zero address for open orders)
	Nonce         string  // Current exchange nonce for the maker
	FeeRateBps    string  // Fee rate in basis points
	Expiration    int64   // Unix timestamp expiration
	SignatureType int     // 0=EOA, 1=POLY_PROXY, 2=GNOSIS_SAFE
}

func NewEIP712OrderSigner(privateKeyHex string, chainID int64, verifierContract string) (*EIP712OrderSigner, error) {
	privateKeyHex = strings.TrimPrefix(privateKeyHex, "0x")

	privateKey, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	return &EIP712OrderSigner{
		privateKey: privateKey,
		chainID:    chainID,
		verifier:   verifierContract,
	}, nil
}

func (s *EIP712OrderSigner) SignOrder(params OrderSignParams) (*PolymarketOrder, error) {
	now := float64(time.Now().UTC().Unix())
	salt := big.NewInt(int64(now * rand.Float64()))

	priceWei := new(big.Float).Mul(big.NewFloat(params.Price), big.NewFloat(1e6))
	sizeWei := new(big.Float).Mul(big.NewFloat(params.Size), big.NewFloat(1e6))

	var makerAmount, takerAmount *big.Int
	if params.Side == "BUY" {
		totalCost := new(big.Float).Mul(priceWei, big.NewFloat(params.Size))
		makerAmount, _ = totalCost.Int(nil)
		takerAmount, _ = sizeWei.Int(nil)
	} else {
		makerAmount, _ = sizeWei.Int(nil)
		totalReceived := new(big.Float).Mul(priceWei, big.NewFloat(params.Size))
		takerAmount, _ = totalReceived.Int(nil)
	}

	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Order": []apitypes.Type{
				{Name: "salt", Type: "uint256"},
				{Name: "maker", Type: "address"},
				{Name: "signer", Type: "address"},
				{Name: "taker", Type: "address"},
				{Name: "tokenId", Type: "uint256"},
				{Name: "makerAmount", Type: "uint256"},
				{Name: "takerAmount", Type: "uint256"},
				{Name: "expiration", Type: "uint256"},
				{Name: "nonce", Type: "uint256"},
				{Name: "feeRateBps", Type: "uint256"},
				{Name: "side", Type: "uint8"},
				{Name: "signatureType", Type: "uint8"},
			},
		},
		PrimaryType: "Order",
		Domain: apitypes.TypedDataDomain{
			Name:              "Polymarket CTF Exchange",
			Version:           "1",
			ChainId:           math.NewHexOrDecimal256(s.chainID),
			VerifyingContract: s.verifier,
		},
		Message: apitypes.TypedDataMessage{
			"salt":          salt.String(),
			"maker":         strings.ToLower(params.Maker),
			"signer":        strings.ToLower(params.Signer),
			"taker":         strings.ToLower(params.Taker),
			"tokenId":       params.TokenID,
			"makerAmount":   makerAmount.String(),
			"takerAmount":   takerAmount.String(),
			"expiration":    strconv.FormatInt(params.Expiration, 10),
			"nonce":         params.Nonce,
			"feeRateBps":    params.FeeRateBps,
			"side":          strconv.Itoa(sideToInt(params.Side)),
			"signatureType": strconv.Itoa(params.SignatureType),
		},
	}

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash domain: %w", err)
	}

	messageHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to hash message: %w", err)
	}

	rawData := []byte{0x19, 0x01}
	rawData = append(rawData, domainSeparator...)
	rawData = append(rawData, messageHash...)
	digest := crypto.Keccak256Hash(rawData)

	signature, err := crypto.Sign(digest.Bytes(), s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}

	signature[64] += 27

	return &PolymarketOrder{
		Salt:          salt.Uint64(),
		Maker:         params.Maker,
		Signer:        params.Signer,
		Taker:         params.Taker,
		TokenID:       params.TokenID,
		MakerAmount:   makerAmount.String(),
		TakerAmount:   takerAmount.String(),
		Expiration:    strconv.FormatInt(params.Expiration, 10),
		Nonce:         params.Nonce,
		FeeRateBps:    params.FeeRateBps,
		Side:          params.Side,
		SignatureType: params.SignatureType,
		Signature:     "0x" + hex.EncodeToString(signature),
	}, nil
}

func (s *EIP712OrderSigner) GetAddress() common.Address {
	return crypto.PubkeyToAddress(s.privateKey.PublicKey)
}

func sideToInt(side string) int {
	if side == "BUY" {
		return 0
	}
	return 1 // SELL
}

func CreateL1AuthSignature(signer *EIP712OrderSigner, timestamp int64, nonce int) (string, error) {
	address := signer.GetAddress().Hex()

	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
			},
			"ClobAuth": []apitypes.Type{
				{Name: "address", Type: "address"},
				{Name: "timestamp", Type: "string"},
				{Name: "nonce", Type: "uint256"},
				{Name: "message", Type: "string"},
			},
		},
		PrimaryType: "ClobAuth",
		Domain: apitypes.TypedDataDomain{
			Name:    "ClobAuthDomain",
			Version: "1",
			ChainId: math.NewHexOrDecimal256(signer.chainID),
		},
		Message: apitypes.TypedDataMessage{
			"address":   address,
			"timestamp": strconv.FormatInt(timestamp, 10),
			"nonce":     math.NewHexOrDecimal256(int64(nonce)),
			"message":   "This message attests that I control the given wallet",
		},
	}

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return "", fmt.Errorf("failed to hash domain: %w", err)
	}

	messageHash, err := typedData.HashStruct("ClobAuth", typedData.Message)
	if err != nil {
		return "", fmt.Errorf("failed to hash message: %w", err)
	}

	rawData := []byte(fmt.Sprintf("\x19\x01%s%s", string(domainSeparator), string(messageHash)))
	digest := crypto.Keccak256Hash(rawData)

	signature, err := crypto.Sign(digest.Bytes(), signer.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign: %w", err)
	}
	signature[64] += 27

	return "0x" + hex.EncodeToString(signature), nil
}
