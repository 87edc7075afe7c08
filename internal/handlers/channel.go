package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/viewtube/apiserver/internal/services"
	"github.com/viewtube/apiserver/internal/store"
)

// ChannelHandler provides the social-graph read endpoints and the
// subscription toggle.
type ChannelHandler struct {
	channels *services.ChannelService
}

func NewChannelHandler(channels *services.ChannelService) *ChannelHandler {
	return &ChannelHandler{channels: channels}
}

// ChannelRouter registers channel routes on the given router. All
// routes require an authenticated viewer.
func ChannelRouter(r chi.Router, channels *services.ChannelService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewChannelHandler(channels)

	r.Use(authMiddleware)
	r.Get("/{username}", handler.Profile)
	r.Post("/{username}/subscribe", handler.ToggleSubscription)
}

// Profile returns the aggregated channel view for the authenticated
// viewer.
func (h *ChannelHandler) Profile(w http.ResponseWriter, r *http.Request) {
	viewerID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	username := strings.TrimSpace(chi.URLParam(r, "username"))
	if username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}

	profile, err := h.channels.Profile(r.Context(), viewerID, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "channel not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch channel profile")
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// ToggleSubscription flips the viewer's subscription edge to the named
// channel and reports the resulting state.
func (h *ChannelHandler) ToggleSubscription(w http.ResponseWriter, r *http.Request) {
	viewerID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	username := strings.TrimSpace(chi.URLParam(r, "username"))
	if username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}

	subscribed, err := h.channels.ToggleSubscription(r.Context(), viewerID, username)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSelfSubscription):
			writeError(w, http.StatusBadRequest, "cannot subscribe to own channel")
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "channel not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to toggle subscription")
		}
		return
	}

	writeJSON(w, http.StatusOK, SubscriptionResponse{Subscribed: subscribed})
}

// WatchHistory returns the viewer's watch history, each entry enriched
// with the video owner's public identity, in watch order.
func (h *ChannelHandler) WatchHistory(w http.ResponseWriter, r *http.Request) {
	viewerID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	history, err := h.channels.WatchHistory(r.Context(), viewerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch watch history")
		return
	}

	writeJSON(w, http.StatusOK, history)
}

// SubscriptionResponse reports the membership state after a toggle.
type SubscriptionResponse struct {
	Subscribed bool `json:"subscribed"`
}
