package models

import "github.com/raphaelgruber/rxrag/internal/metrics"

// AskRequest is the body of POST /ask.
type AskRequest struct {
	Prompt    string `json:"prompt"`
	SessionID string `json:"session_id,omitempty"`
}

// AskResponse is a pipeline result tagged with the session that produced it.
// A nil Source means the prompt was not understood.
type AskResponse struct {
	Source    *string `json:"source"`
	Response  string  `json:"response"`
	SessionID string  `json:"session_id"`
}

// NewAskResponse tags r with sessionID.
func NewAskResponse(r Result, sessionID string) AskResponse {
	return AskResponse{Source: r.sourcePtr(), Response: r.Response, SessionID: sessionID}
}

// Result strips the session id.
func (a AskResponse) Result() Result {
	return Result{Source: sourceOf(a.Source), Response: a.Response}
}

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	Sessions int              `json:"sessions"`
	Metrics  metrics.Snapshot `json:"metrics"`
}

// SessionResponse is the body of GET /sessions/{id}.
type SessionResponse struct {
	SessionID    string   `json:"session_id"`
	Mentioned    []string `json:"mentioned"`
	LastPrompt   string   `json:"last_prompt,omitempty"`
	LastResponse string   `json:"last_response,omitempty"`
}

// ErrorResponse is the body of every non-2xx JSON reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Chat message types exchanged over the websocket.
const (
	ChatAsk    = "ask"
	ChatReset  = "reset"
	ChatAnswer = "answer"
	ChatError  = "error"
)

// ChatMessage is a client frame on the chat websocket.
type ChatMessage struct {
	Type   string `json:"type"`
	Prompt string `json:"prompt,omitempty"`
}

// ChatReply is a server frame on the chat websocket.
type ChatReply struct {
	Type      string  `json:"type"`
	Source    *string `json:"source"`
	Response  string  `json:"response,omitempty"`
	SessionID string  `json:"session_id"`
	Error     string  `json:"error,omitempty"`
}
