package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/raphaelgruber/rxrag/internal/models"
)

// chatConn serializes writes to one websocket.
type chatConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *chatConn) send(reply models.ChatReply) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(reply)
}

func (c *chatConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(pingInterval))
}

// handleChat upgrades to a websocket and runs a chat loop. Each connection
// gets its own session so memory never leaks between clients. Sessions the
// server assigned are dropped on disconnect; named sessions outlive it.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		sessionID = uuid.New().String()
		defer s.assistant.DropSession(sessionID)
	}
	conn := &chatConn{conn: ws}
	logger := s.logger.With("session", sessionID)
	logger.Info("chat connected", "remote", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go s.keepAlive(ctx, conn)

	for {
		var msg models.ChatMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("chat read ended", "error", err)
			}
			logger.Info("chat disconnected")
			return
		}

		reply := s.chatReply(ctx, sessionID, msg)
		if err := conn.send(reply); err != nil {
			logger.Warn("chat write failed", "error", err)
			return
		}
	}
}

func (s *Server) chatReply(ctx context.Context, sessionID string, msg models.ChatMessage) models.ChatReply {
	reply := models.ChatReply{SessionID: sessionID}
	switch msg.Type {
	case models.ChatAsk:
		if strings.TrimSpace(msg.Prompt) == "" {
			reply.Type = models.ChatError
			reply.Error = "prompt is required"
			return reply
		}
		result, err := s.assistant.Infer(ctx, sessionID, msg.Prompt)
		if err != nil {
			reply.Type = models.ChatError
			reply.Error = err.Error()
			return reply
		}
		resp := models.NewAskResponse(result, sessionID)
		reply.Type = models.ChatAnswer
		reply.Source = resp.Source
		reply.Response = resp.Response
	case models.ChatReset:
		s.assistant.ResetSession(sessionID)
		reply.Type = models.ChatReset
	default:
		reply.Type = models.ChatError
		reply.Error = fmt.Sprintf("unknown message type %q", msg.Type)
	}
	return reply
}

func (s *Server) keepAlive(ctx context.Context, conn *chatConn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				return
			}
		}
	}
}
