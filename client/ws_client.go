package client

import (
	"polybroker/logger"
	"time"

	"github.com/gorilla/websocket"
)

// WSClient provides shared websocket utilities (connect, read/write, ping, close)
// used by specialized clients like WSMarketClient.
type WSClient struct {
	conn         *websocket.Conn
	url          string
	logger       *logger.Logger
	pingInterval time.Duration
	stopPing     chan struct{}
}

func NewWSClient(url string, log *logger.Logger) *WSClient {
	return &WSClient{
		url:          url,
		logger:       log,
		pingInterval: 50 * time.Second,
		stopPing:     make(chan struct{}),
	}
}

func (ws *WSClient) Connect() error {
	conn, resp, err := websocket.DefaultDialer.Dial(ws.url, nil)
	if err != nil {
		if resp != nil {
			ws.logger.Error("ws_connect_failed", "status", resp.Status, "err", err)
		}
		return err
	}
	ws.conn = conn
	ws.logger.Info("ws_connected", "url", ws.url)

	go ws.startPinger()

	return nil
}

func (ws *WSClient) Close() error {
	close(ws.stopPing)
	if ws.conn != nil {
		return ws.conn.Close()
	}
	return nil
}

func (ws *WSClient) WriteJSON(v any) error {
	if ws.conn == nil {
		return websocket.ErrBadHandshake
	}
	return ws.conn.WriteJSON(v)
}

func (ws *WSClient) ReadMessage() (int, []byte, error) {
	if ws.conn == nil {
		return 0, nil, websocket.ErrBadHandshake
	}
	return ws.conn.ReadMessage()
}

func (ws *WSClient) startPinger() {
	ticker := time.NewTicker(ws.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ws.stopPing:
			return
		case <-ticker.C:
			if err := ws.conn.WriteMessage(websocket.TextMessage, []byte("PING")); err != nil {
				ws.logger.Error("ping_failed", "err", err)
				return
			}
		}
	}
}
