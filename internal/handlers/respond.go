package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/Aidana2201/Connection_Hub/pkg/apperrors"
	"github.com/Aidana2201/Connection_Hub/pkg/logger"
)

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// respondError maps tagged service errors onto transport status codes. Quota
// and conflict refusals are expected outcomes and logged at warn level only;
// untagged errors are server faults.
func respondError(w http.ResponseWriter, err error) {
	appErr := apperrors.As(err)
	if appErr == nil {
		logger.Log.WithError(err).Error("Unhandled internal error")
		respondJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error": apperrors.Internal(nil),
		})
		return
	}

	var status int
	switch appErr.Code {
	case apperrors.CodeValidation:
		status = http.StatusBadRequest
	case apperrors.CodeNotFound:
		status = http.StatusNotFound
	case apperrors.CodeForbidden:
		status = http.StatusForbidden
	case apperrors.CodeConflict:
		status = http.StatusConflict
	case apperrors.CodeQuotaExceeded:
		status = http.StatusTooManyRequests
	default:
		status = http.StatusInternalServerError
	}

	if status == http.StatusInternalServerError {
		logger.Log.WithError(appErr).Error("Internal error")
	} else {
		logger.Log.Warnf("Request rejected: %v", appErr)
	}

	respondJSON(w, status, map[string]interface{}{"error": appErr})
}

// parsePagination reads limit/skip query params with sane defaults.
func parsePagination(r *http.Request) (limit, skip int64) {
	limit = 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			limit = n
		}
	}
	if raw := r.URL.Query().Get("skip"); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			skip = n
		}
	}
	return limit, skip
}
