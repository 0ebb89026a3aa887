package handlers

import (
	"net/http"
	"time"

	"github.com/Aidana2201/Connection_Hub/internal/models"
	"github.com/Aidana2201/Connection_Hub/internal/realtime"
	jwtutil "github.com/Aidana2201/Connection_Hub/pkg/jwt"
	"github.com/Aidana2201/Connection_Hub/pkg/logger"
	"github.com/gorilla/websocket"
)

// heartbeatInterval keeps intermediaries from closing an idle stream.
const heartbeatInterval = 30 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamHandler serves GET /notifications/stream: a long-lived websocket that
// receives every push event for the authenticated user. Clients authenticate
// with a token query parameter because browsers cannot set headers on a
// websocket handshake.
type StreamHandler struct {
	Dispatcher *realtime.Dispatcher
	JWTSecret  string
}

func NewStreamHandler(dispatcher *realtime.Dispatcher, jwtSecret string) *StreamHandler {
	return &StreamHandler{Dispatcher: dispatcher, JWTSecret: jwtSecret}
}

func (h *StreamHandler) NotificationStreamHandler(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Missing token", http.StatusUnauthorized)
		return
	}
	claims, err := jwtutil.ValidateToken(token, h.JWTSecret)
	if err != nil {
		logger.Log.Warnf("Stream auth failed: %v", err)
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}
	userID := claims.UserID

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Warnf("Stream upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	channel := h.Dispatcher.Register(userID)
	defer h.Dispatcher.Unregister(channel)

	logger.Log.Infof("Notification stream opened for user %s", userID)

	if err := conn.WriteJSON(models.Event{Type: models.EventConnected}); err != nil {
		return
	}

	// Read loop only detects the peer closing; clients send nothing.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case payload, ok := <-channel.Out():
			if !ok {
				// Dispatcher dropped us as a dead channel.
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.Log.Debugf("Stream write failed for user %s: %v", userID, err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteJSON(models.Event{Type: models.EventHeartbeat}); err != nil {
				return
			}
		case <-done:
			logger.Log.Infof("Notification stream closed for user %s", userID)
			return
		}
	}
}
