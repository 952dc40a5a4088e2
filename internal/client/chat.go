package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/raphaelgruber/rxrag/internal/models"
)

// ErrChat is returned when the server answers a chat frame with an error.
var ErrChat = errors.New("chat error")

// ChatConn is an open chat websocket. Requests are answered in order,
// so a ChatConn is safe for concurrent use but serializes round trips.
type ChatConn struct {
	mu        sync.Mutex
	conn      *websocket.Conn
	sessionID string
	closeOnce sync.Once
}

// DialChat opens a chat websocket. An empty sessionID lets the server
// assign a fresh one on the first reply.
func (c *Client) DialChat(ctx context.Context, sessionID string) (*ChatConn, error) {
	wsEndpoint := c.endpoint
	wsEndpoint = strings.Replace(wsEndpoint, "http://", "ws://", 1)
	wsEndpoint = strings.Replace(wsEndpoint, "https://", "wss://", 1)

	u, err := url.Parse(wsEndpoint + "/ws")
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if sessionID != "" {
		u.RawQuery = url.Values{"session": {sessionID}}.Encode()
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket connect: %w", err)
	}
	return &ChatConn{conn: conn, sessionID: sessionID}, nil
}

// SessionID returns the session the server bound this connection to.
// Empty until the first reply when none was requested.
func (cc *ChatConn) SessionID() string {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.sessionID
}

// Ask sends a question and waits for the answer.
func (cc *ChatConn) Ask(ctx context.Context, prompt string) (*models.ChatReply, error) {
	return cc.roundTrip(ctx, models.ChatMessage{Type: models.ChatAsk, Prompt: prompt})
}

// Reset clears this connection's session memory.
func (cc *ChatConn) Reset(ctx context.Context) error {
	_, err := cc.roundTrip(ctx, models.ChatMessage{Type: models.ChatReset})
	return err
}

// Close closes the connection with a normal closure frame.
func (cc *ChatConn) Close() error {
	var err error
	cc.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = cc.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		err = cc.conn.Close()
	})
	return err
}

func (cc *ChatConn) roundTrip(ctx context.Context, msg models.ChatMessage) (*models.ChatReply, error) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Handle context cancellation in a separate goroutine
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			cc.conn.Close()
		case <-done:
		}
	}()

	if err := cc.conn.WriteJSON(msg); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("send %s: %w", msg.Type, err)
	}

	var reply models.ChatReply
	if err := cc.conn.ReadJSON(&reply); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("read reply: %w", err)
	}
	if reply.SessionID != "" {
		cc.sessionID = reply.SessionID
	}
	if reply.Type == models.ChatError {
		return nil, fmt.Errorf("%w: %s", ErrChat, reply.Error)
	}
	return &reply, nil
}
