package registry

import (
	"encoding/json"
	"net/http"

	apperrors "psycare/pkg/errors"
	httputil "psycare/pkg/http"
	"psycare/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

// Handler exposes the presence registry over HTTP for the frontend's
// online indicators and for the notifier to decide between push and
// in-app delivery.
type Handler struct {
	registry *Registry
	log      *logger.Logger
}

func NewHandler(registry *Registry, log *logger.Logger) *Handler {
	return &Handler{
		registry: registry,
		log:      log,
	}
}

type registerRequest struct {
	UserID       string `json:"user_id"`
	ConnectionID string `json:"connection_id"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Register", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	if req.UserID == "" || req.ConnectionID == "" {
		if writeErr := httputil.WriteError(w, apperrors.InvalidInput("user_id and connection_id are required")); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Register", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	h.registry.Register(req.UserID, req.ConnectionID)
	h.log.Debug("Connection registered", "user_id", req.UserID, "connection_id", req.ConnectionID)

	if err := httputil.WriteSuccess(w, map[string]bool{"online": true}); err != nil {
		h.log.Error("failed to write success response", "handler", "Register", "operation", "WriteSuccess", "error", err)
	}
}

func (h *Handler) Unregister(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	connID := ps.ByName("id")

	userID, stillOnline := h.registry.Unregister(connID)
	if userID == "" {
		if writeErr := httputil.WriteError(w, apperrors.NotFoundWithID("Connection", connID)); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Unregister", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	h.log.Debug("Connection unregistered", "user_id", userID, "connection_id", connID, "still_online", stillOnline)

	if err := httputil.WriteSuccess(w, map[string]any{
		"user_id": userID,
		"online":  stillOnline,
	}); err != nil {
		h.log.Error("failed to write success response", "handler", "Unregister", "operation", "WriteSuccess", "error", err)
	}
}

func (h *Handler) Online(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := httputil.WriteSuccess(w, h.registry.Online()); err != nil {
		h.log.Error("failed to write success response", "handler", "Online", "operation", "WriteSuccess", "error", err)
	}
}

func (h *Handler) Lookup(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID := ps.ByName("id")

	if err := httputil.WriteSuccess(w, map[string]any{
		"user_id":     userID,
		"online":      h.registry.IsOnline(userID),
		"connections": h.registry.Lookup(userID),
	}); err != nil {
		h.log.Error("failed to write success response", "handler", "Lookup", "operation", "WriteSuccess", "error", err)
	}
}

func (h *Handler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/presence", h.Register)
	router.DELETE("/api/v1/presence/:id", h.Unregister)
	router.GET("/api/v1/presence/online", h.Online)
	router.GET("/api/v1/presence/user/:id", h.Lookup)
}
