package ws

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/muni-health/muni/backend/internal/analysis/triage"
	"github.com/muni-health/muni/backend/internal/model/chat"
	"github.com/muni-health/muni/backend/internal/service/checkin"
)

// Runner runs one check-in turn.
type Runner interface {
	Send(ctx context.Context, sessionID, text string, sink triage.Sink) (checkin.Result, error)
}

// SessionLookup resolves sessions before a socket is upgraded.
type SessionLookup interface {
	GetSession(ctx context.Context, sessionID string) (chat.Session, error)
}

// Handler serves live check-ins over WebSocket. Turns on one connection run
// one after another; a separate reader watches for the peer going away.
type Handler struct {
	runner   Runner
	sessions SessionLookup
	upgrader websocket.Upgrader
}

// New creates a WebSocket handler.
func New(runner Runner, sessions SessionLookup) *Handler {
	return &Handler{
		runner:   runner,
		sessions: sessions,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the WebSocket route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if _, err := h.sessions.GetSession(r.Context(), sessionID); err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed session=%s: %v", sessionID, err)
		return
	}
	defer conn.Close()

	log.Printf("[ws] connection opened session=%s", sessionID)
	h.sendMessage(conn, sessionID, "ready", nil)

	// The hijacked request context is not cancelled when the peer leaves, so
	// the reader cancels connCtx itself. A running turn then ends and releases
	// the session.
	connCtx, cancel := context.WithCancel(r.Context())
	defer cancel()

	inbound := make(chan inboundMessage, 8)
	go h.readLoop(connCtx, conn, sessionID, inbound, cancel)

	for msg := range inbound {
		if connCtx.Err() != nil {
			continue
		}
		switch msg.Type {
		case "ping":
			h.sendMessage(conn, sessionID, "pong", nil)
		case "text":
			h.runTurn(connCtx, conn, sessionID, msg.Text)
		default:
			h.sendError(conn, sessionID, errors.New("unsupported message type: "+msg.Type))
		}
	}

	log.Printf("[ws] connection closed session=%s", sessionID)
}

// readLoop is the connection's only reader. It stops on the first read or
// close error, cancelling the connection context.
func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, sessionID string, inbound chan<- inboundMessage, cancel context.CancelFunc) {
	defer close(inbound)
	defer cancel()

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws] read failed session=%s: %v", sessionID, err)
			}
			return
		}
		select {
		case inbound <- msg:
		case <-ctx.Done():
			return
		}
	}
}

func (h *Handler) runTurn(ctx context.Context, conn *websocket.Conn, sessionID, text string) {
	sink := triage.SinkFunc(func(msg chat.Message) {
		h.sendMessage(conn, sessionID, "message", msg)
	})

	result, err := h.runner.Send(ctx, sessionID, text, sink)
	if err != nil {
		h.sendError(conn, sessionID, err)
		return
	}
	h.sendMessage(conn, sessionID, "end", result)
}

func (h *Handler) sendMessage(conn *websocket.Conn, sessionID, msgType string, data interface{}) {
	payload := outgoingMessage{
		Type:      msgType,
		SessionID: sessionID,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}
	if err := conn.WriteJSON(payload); err != nil {
		log.Printf("[ws] write failed session=%s: %v", sessionID, err)
	}
}

func (h *Handler) sendError(conn *websocket.Conn, sessionID string, err error) {
	h.sendMessage(conn, sessionID, "error", map[string]any{
		"error":  err.Error(),
		"status": checkin.HTTPStatus(err),
	})
}
