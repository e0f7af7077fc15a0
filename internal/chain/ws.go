package chain

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/gorilla/websocket"
)

// WSClient subscribes to the node's confirmation topic. Confirmed send blocks
// whose destination is a watched account signal that a receivable just landed.
type WSClient struct {
	Endpoint string
	Conn     *websocket.Conn
}

func NewWSClient(endpoint string) *WSClient {
	return &WSClient{Endpoint: endpoint}
}

func (c *WSClient) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{}
	conn, _, err := dialer.DialContext(ctx, c.Endpoint, nil)
	if err != nil {
		return err
	}
	c.Conn = conn
	return nil
}

func (c *WSClient) Close() {
	if c.Conn != nil {
		_ = c.Conn.Close()
	}
}

func (c *WSClient) Subscribe(ctx context.Context, accounts []string) error {
	payload := map[string]any{
		"action": "subscribe",
		"topic":  "confirmation",
		"options": map[string]any{
			"accounts": accounts,
		},
	}
	return c.Conn.WriteJSON(payload)
}

func (c *WSClient) Read(ctx context.Context) ([]byte, error) {
	_, msg, err := c.Conn.ReadMessage()
	return msg, err
}

// Confirmation is a confirmed send whose destination account we watch.
type Confirmation struct {
	Destination string
	Hash        string
	AmountRaw   string
}

// ParseConfirmation extracts the payment destination from a confirmation
// message. Non-confirmation frames and non-send blocks return ok=false.
func ParseConfirmation(msg []byte) (*Confirmation, bool, error) {
	var env struct {
		Topic   string `json:"topic"`
		Message struct {
			Hash   string `json:"hash"`
			Amount string `json:"amount"`
			Block  struct {
				Subtype       string `json:"subtype"`
				LinkAsAccount string `json:"link_as_account"`
			} `json:"block"`
		} `json:"message"`
	}
	if err := json.Unmarshal(msg, &env); err != nil {
		return nil, false, err
	}
	if env.Topic != "confirmation" {
		return nil, false, nil
	}
	if env.Message.Block.Subtype != "send" || env.Message.Block.LinkAsAccount == "" {
		return nil, false, nil
	}
	return &Confirmation{
		Destination: env.Message.Block.LinkAsAccount,
		Hash:        strings.ToUpper(env.Message.Hash),
		AmountRaw:   env.Message.Amount,
	}, true, nil
}
