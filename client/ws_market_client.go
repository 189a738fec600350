package client

import (
	"context"
	"encoding/json"
	"fmt"
	"polybroker/logger"
)

// WSMarketClient streams public market events for a set of CLOB token ids.
// The broker uses it to surface live prices and tick-size changes for an
// instrument while a proposal is awaiting approval.
type WSMarketClient struct {
	*WSClient
	onPriceChange    func(PriceChangeMessage)
	onTickSizeChange func(TickSizeChangeMessage)
	onLastTradePrice func(LastTradePriceMessage)
	onBestBidAsk     func(BestBidAskMessage)
}

type WSMarketCallbacks struct {
	OnPriceChange    func(PriceChangeMessage)
	OnTickSizeChange func(TickSizeChangeMessage)
	OnLastTradePrice func(LastTradePriceMessage)
	OnBestBidAsk     func(BestBidAskMessage)
}

func NewWSMarketClient(url string, callbacks WSMarketCallbacks, log *logger.Logger) *WSMarketClient {
	if url == "" {
		url = "wss://ws-subscriptions-clob.polymarket.com/ws/market"
	}
	return &WSMarketClient{
		WSClient:         NewWSClient(url, log),
		onPriceChange:    callbacks.OnPriceChange,
		onTickSizeChange: callbacks.OnTickSizeChange,
		onLastTradePrice: callbacks.OnLastTradePrice,
		onBestBidAsk:     callbacks.OnBestBidAsk,
	}
}

func (ws *WSMarketClient) SubscribeToAssets(clobTokenIDs []string) error {
	subMsg := WSMarketSubscribeMessage{
		Type:                  "subscribe",
		Assets:                clobTokenIDs,
		CustomFeaturesEnabled: true,
	}
	if err := ws.WriteJSON(subMsg); err != nil {
		return fmt.Errorf("failed to send subscribe message: %w", err)
	}
	ws.logger.Info("ws_subscribed", "assets", len(clobTokenIDs))
	return nil
}

func (ws *WSMarketClient) dispatchOne(message []byte) {
	var msgType WSMessage
	if err := json.Unmarshal(message, &msgType); err != nil {
		return
	}

	switch msgType.EventType {
	case "price_change":
		if ws.onPriceChange != nil {
			var m PriceChangeMessage
			if err := json.Unmarshal(message, &m); err == nil {
				ws.onPriceChange(m)
			}
		}
	case "tick_size_change":
		if ws.onTickSizeChange != nil {
			var m TickSizeChangeMessage
			if err := json.Unmarshal(message, &m); err == nil {
				ws.onTickSizeChange(m)
			}
		}
	case "last_trade_price":
		if ws.onLastTradePrice != nil {
			var m LastTradePriceMessage
			if err := json.Unmarshal(message, &m); err == nil {
				ws.onLastTradePrice(m)
			}
		}
	case "best_bid_ask":
		if ws.onBestBidAsk != nil {
			var m BestBidAskMessage
			if err := json.Unmarshal(message, &m); err == nil {
				ws.onBestBidAsk(m)
			}
		}
	}
}

func (ws *WSMarketClient) Listen(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			_, message, err := ws.ReadMessage()
			if err != nil {
				return err
			}

			// The feed sends both single events and arrays of events.
			if len(message) > 0 && message[0] == '[' {
				var arr []json.RawMessage
				if err := json.Unmarshal(message, &arr); err != nil {
					continue
				}
				for _, elem := range arr {
					ws.dispatchOne(elem)
				}
				continue
			}

			ws.dispatchOne(message)
		}
	}
}
