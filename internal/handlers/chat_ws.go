package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/paintchat/internal/models"
)

const (
	chatWSReadLimit   = 1 << 20
	chatWSIdleTimeout = 10 * time.Minute
)

var chatWSUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// chatWSInMessage is the JSON shape sent from the client.
type chatWSInMessage struct {
	Type        string           `json:"type"`
	Messages    []models.Message `json:"messages"`
	Temperature *float64         `json:"temperature,omitempty"`
}

// chatWSOutMessage is the JSON shape sent to the client.
type chatWSOutMessage struct {
	Type    string `json:"type"` // token, done, error
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ChatWS handles GET /api/chat/ws, the WebSocket variant of the Completion Relay.
// Each {"type":"chat"} message streams one reply as token messages followed by done or error.
func (h *Handler) ChatWS(w http.ResponseWriter, r *http.Request) {
	conn, err := chatWSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("chat ws upgrade failed")
		return
	}
	defer conn.Close()

	conn.SetReadLimit(chatWSReadLimit)
	conn.SetReadDeadline(time.Now().Add(chatWSIdleTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(chatWSIdleTimeout))
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Msg("chat ws read")
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(chatWSIdleTimeout))

		var in chatWSInMessage
		if err := json.Unmarshal(raw, &in); err != nil {
			if writeWSJSON(conn, chatWSOutMessage{Type: "error", Error: "invalid JSON: " + err.Error()}) != nil {
				return
			}
			continue
		}
		if in.Type != "chat" {
			if writeWSJSON(conn, chatWSOutMessage{Type: "error", Error: "expected type: chat"}) != nil {
				return
			}
			continue
		}

		if err := h.streamWS(r.Context(), conn, &models.ChatRequest{Messages: in.Messages, Temperature: in.Temperature}); err != nil {
			log.Debug().Err(err).Msg("chat ws write")
			return
		}
	}
}

// streamWS relays one reply. It returns an error only when the connection is no longer writable.
func (h *Handler) streamWS(ctx context.Context, conn *websocket.Conn, req *models.ChatRequest) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := h.chat.StreamChat(ctx, req)
	if err != nil {
		return writeWSJSON(conn, chatWSOutMessage{Type: "error", Error: err.Error()})
	}

	for chunk := range stream {
		if chunk.Err != nil {
			return writeWSJSON(conn, chatWSOutMessage{Type: "error", Error: chunk.Err.Error()})
		}
		if err := writeWSJSON(conn, chatWSOutMessage{Type: "token", Content: chunk.Text}); err != nil {
			return err
		}
	}
	if ctx.Err() != nil {
		return errors.Join(ctx.Err(), writeWSJSON(conn, chatWSOutMessage{Type: "error", Error: ctx.Err().Error()}))
	}
	return writeWSJSON(conn, chatWSOutMessage{Type: "done"})
}

func writeWSJSON(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(30 * time.Second))
	return conn.WriteJSON(v)
}
