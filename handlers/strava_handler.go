package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/Dosada05/ride-challenges/middleware"
	"github.com/Dosada05/ride-challenges/services"
)

type StravaHandler struct {
	stravaService services.StravaService
}

func NewStravaHandler(ss services.StravaService) *StravaHandler {
	return &StravaHandler{stravaService: ss}
}

// AuthURL обрабатывает GET /strava/auth-url
func (h *StravaHandler) AuthURL(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	url, err := h.stravaService.AuthURL(userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"url": url}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Connect обрабатывает POST /strava/connect с кодом авторизации.
func (h *StravaHandler) Connect(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var input struct {
		Code string `json:"code"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	account, err := h.stravaService.Connect(r.Context(), userID, input.Code)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"account": account}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Sync обрабатывает POST /strava/sync. Сбой провайдера не ошибка запроса:
// новых треков просто нет.
func (h *StravaHandler) Sync(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	imported, err := h.stravaService.SyncUser(r.Context(), userID)
	if errors.Is(err, services.ErrExternalProvider) {
		middleware.LoggerFromContext(r.Context()).Warn("strava sync degraded", zap.Int("user_id", userID), zap.Error(err))
		if err := writeJSON(w, http.StatusOK, jsonResponse{"imported": 0, "warning": services.ErrExternalProvider.Error()}, nil); err != nil {
			serverErrorResponse(w, r, err)
		}
		return
	}
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"imported": imported}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
