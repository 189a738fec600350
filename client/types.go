package client

import (
	"encoding/json"
	"polybroker/market"
	"strconv"
	"strings"
	"time"
)

type EscapedArray []string
type StringFloat64 float64
type TimeRFC3339 time.Time

// =============================
// Gamma Data Types
// =============================

type Market struct {
	ID              string       `json:"id"`
	Question        string       `json:"question"`
	Slug            string       `json:"slug"`
	Active          bool         `json:"active"`
	Closed          bool         `json:"closed"`
	AcceptingOrders bool         `json:"acceptingOrders"`
	Outcomes        EscapedArray `json:"outcomes"`
	ClobTokenIds    EscapedArray `json:"clobTokenIds"`
	EndDate         TimeRFC3339  `json:"endDate"`
}

// Snapshot converts the gamma payload into the broker's market model.
func (m *Market) Snapshot() *market.Snapshot {
	return &market.Snapshot{
		ID:              m.ID,
		Slug:            m.Slug,
		Question:        m.Question,
		Active:          m.Active && !m.Closed,
		AcceptingOrders: m.AcceptingOrders,
		OutcomeLabels:   []string(m.Outcomes),
		TokenIDs:        []string(m.ClobTokenIds),
	}
}

// =============================
// CLOB Data Types
// =============================

type FeeRateResp struct {
	FeeRateBps int `json:"base_fee"`
}

type OrderSummary struct {
	Price StringFloat64 `json:"price"`
	Size  StringFloat64 `json:"size"`
}

type GetBookResponse struct {
	Market         string         `json:"market"`
	AssetID        string         `json:"asset_id"`
	Timestamp      string         `json:"timestamp"`
	Hash           string         `json:"hash"`
	Bids           []OrderSummary `json:"bids"`
	Asks           []OrderSummary `json:"asks"`
	MinOrderSize   string         `json:"min_order_size"`
	TickSize       string         `json:"tick_size"`
	NegRisk        bool           `json:"neg_risk"`
	LastTradePrice string         `json:"last_trade_price"`
}

type ApiKeyResponse struct {
	ApiKey     string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

type OrderStatus string

const (
	OrderStatusMatched   OrderStatus = "matched"
	OrderStatusLive      OrderStatus = "live"
	OrderStatusDelayed   OrderStatus = "delayed"
	OrderStatusUnmatched OrderStatus = "unmatched"
)

// =============================
// WebSocket Types
// =============================

type WSMarketSubscribeMessage struct {
	Type                  string   `json:"type"`
	Markets               []string `json:"markets,omitempty"`
	Assets                []string `json:"assets_ids,omitempty"`
	CustomFeaturesEnabled bool     `json:"custom_feature_enabled"`
}

type PriceChange struct {
	AssetID string        `json:"asset_id"`
	Price   StringFloat64 `json:"price"`
	Size    StringFloat64 `json:"size"`
	Side    string        `json:"side"` // "BUY" or "SELL"
	BestBid StringFloat64 `json:"best_bid"`
	BestAsk StringFloat64 `json:"best_ask"`
}

type PriceChangeMessage struct {
	EventType    string        `json:"event_type"` // "price_change"
	Market       string        `json:"market"`
	PriceChanges []PriceChange `json:"price_changes"`
}

type TickSizeChangeMessage struct {
	EventType   string        `json:"event_type"` // "tick_size_change"
	AssetID     string        `json:"asset_id"`
	Market      string        `json:"market"`
	OldTickSize StringFloat64 `json:"old_tick_size"`
	NewTickSize StringFloat64 `json:"new_tick_size"`
}

type LastTradePriceMessage struct {
	EventType string        `json:"event_type"` // "last_trade_price"
	AssetID   string        `json:"asset_id"`
	Market    string        `json:"market"`
	Price     StringFloat64 `json:"price"`
	Side      string        `json:"side"`
	Size      StringFloat64 `json:"size"`
}

type BestBidAskMessage struct {
	EventType string        `json:"event_type"` // "best_bid_ask"
	Market    string        `json:"market"`
	AssetID   string        `json:"asset_id"`
	BestBid   StringFloat64 `json:"best_bid"`
	BestAsk   StringFloat64 `json:"best_ask"`
	Spread    StringFloat64 `json:"spread"`
}

type WSMessage struct {
	EventType string `json:"event_type"`
}

// =============================
// JSON Unmarshal Methods
// =============================

func (sf *StringFloat64) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*sf = StringFloat64(f)
	return nil
}

func (e *EscapedArray) UnmarshalJSON(data []byte) error {
	s := string(data)
	s = strings.Trim(s, `"`)
	s = strings.ReplaceAll(s, `\\\"`, `"`)
	s = strings.ReplaceAll(s, `\"`, `"`)

	var temp []string
	if err := json.Unmarshal([]byte(s), &temp); err != nil {
		return err
	}
	*e = EscapedArray(temp)
	return nil
}

func (t *TimeRFC3339) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return err
	}
	*t = TimeRFC3339(parsed)
	return nil
}

func (t TimeRFC3339) Time() time.Time {
	return time.Time(t)
}
