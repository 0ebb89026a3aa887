package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/Aidana2201/Connection_Hub/internal/services"
	"github.com/Aidana2201/Connection_Hub/pkg/logger"
	"github.com/Aidana2201/Connection_Hub/pkg/middleware"
	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ConnectionHandler manages HTTP endpoints for the connection lifecycle.
type ConnectionHandler struct {
	Service *services.ConnectionService
}

// NewConnectionHandler initializes a new ConnectionHandler.
func NewConnectionHandler(service *services.ConnectionService) *ConnectionHandler {
	return &ConnectionHandler{Service: service}
}

// SendRequestHandler handles POST /connections.
func (h *ConnectionHandler) SendRequestHandler(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		logger.Log.Warn("Unauthorized attempt to send connection request")
		return
	}

	var body struct {
		ToUserID string `json:"to_user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	toID, err := primitive.ObjectIDFromHex(body.ToUserID)
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		logger.Log.Warnf("Invalid recipient ID: %v", err)
		return
	}

	fromID, _ := primitive.ObjectIDFromHex(claims.UserID)

	conn, quota, err := h.Service.SendRequest(r.Context(), fromID, toID)
	if err != nil {
		respondError(w, err)
		return
	}

	logger.Log.Infof("User %s sent a connection request to %s", claims.UserID, body.ToUserID)
	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"connection": conn,
		"quota":      quota,
	})
}

// RespondToRequestHandler handles PATCH /connections/{id} with an
// accept/reject action in the body.
func (h *ConnectionHandler) RespondToRequestHandler(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	connID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid connection ID", http.StatusBadRequest)
		return
	}

	var body struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	actingID, _ := primitive.ObjectIDFromHex(claims.UserID)

	var conn interface{}
	switch body.Action {
	case "accept":
		conn, err = h.Service.AcceptRequest(r.Context(), connID, actingID)
	case "reject":
		conn, err = h.Service.RejectRequest(r.Context(), connID, actingID)
	default:
		http.Error(w, "Action must be accept or reject", http.StatusBadRequest)
		return
	}
	if err != nil {
		respondError(w, err)
		return
	}

	logger.Log.Infof("User %s responded to connection %s (%s)", claims.UserID, connID.Hex(), body.Action)
	respondJSON(w, http.StatusOK, conn)
}

// CancelRequestHandler handles DELETE /connections/{id}.
func (h *ConnectionHandler) CancelRequestHandler(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	connID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid connection ID", http.StatusBadRequest)
		return
	}

	actingID, _ := primitive.ObjectIDFromHex(claims.UserID)

	if err := h.Service.CancelRequest(r.Context(), connID, actingID); err != nil {
		respondError(w, err)
		return
	}

	logger.Log.Infof("User %s cancelled connection request %s", claims.UserID, connID.Hex())
	respondJSON(w, http.StatusOK, map[string]string{"message": "Connection request cancelled"})
}

// GetConnectionsHandler handles GET /connections with status/type filters.
func (h *ConnectionHandler) GetConnectionsHandler(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	userID, _ := primitive.ObjectIDFromHex(claims.UserID)
	limit, skip := parsePagination(r)
	status := r.URL.Query().Get("status")
	direction := r.URL.Query().Get("type")

	connections, err := h.Service.GetConnections(r.Context(), userID, status, direction, limit, skip)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, connections)
}

// GetConnectionStatusHandler handles GET /connections/status/{otherUserId}.
func (h *ConnectionHandler) GetConnectionStatusHandler(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	otherID, err := primitive.ObjectIDFromHex(mux.Vars(r)["otherUserId"])
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	userID, _ := primitive.ObjectIDFromHex(claims.UserID)

	conn, isSender, err := h.Service.GetConnectionBetween(r.Context(), userID, otherID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"connection": conn,
		"is_sender":  isSender,
	})
}
