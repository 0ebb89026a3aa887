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

// QuotaHandler exposes the caller's quota snapshot and the administrative
// quota adjustments.
type QuotaHandler struct {
	Service *services.ConnectionService
}

func NewQuotaHandler(service *services.ConnectionService) *QuotaHandler {
	return &QuotaHandler{Service: service}
}

// GetQuotaHandler handles GET /connections/quota.
func (h *QuotaHandler) GetQuotaHandler(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	userID, _ := primitive.ObjectIDFromHex(claims.UserID)

	quota, err := h.Service.GetQuota(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, quota)
}

// GrantCreditsHandler handles POST /admin/quota/{userId}/credits.
func (h *QuotaHandler) GrantCreditsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := primitive.ObjectIDFromHex(mux.Vars(r)["userId"])
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	var body struct {
		Amount           int  `json:"amount"`
		RemoveDailyLimit bool `json:"remove_daily_limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	quota, err := h.Service.GrantCredits(r.Context(), userID, body.Amount, body.RemoveDailyLimit)
	if err != nil {
		respondError(w, err)
		return
	}

	logger.Log.Infof("Granted %d credits to user %s", body.Amount, userID.Hex())
	respondJSON(w, http.StatusOK, quota)
}

// SetDailyLimitHandler handles PATCH /admin/quota/{userId}/daily-limit.
func (h *QuotaHandler) SetDailyLimitHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := primitive.ObjectIDFromHex(mux.Vars(r)["userId"])
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	var body struct {
		Limit int `json:"limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	quota, err := h.Service.SetDailyLimit(r.Context(), userID, body.Limit)
	if err != nil {
		respondError(w, err)
		return
	}

	logger.Log.Infof("Set daily limit %d for user %s", body.Limit, userID.Hex())
	respondJSON(w, http.StatusOK, quota)
}
