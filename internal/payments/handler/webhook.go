package handler

import (
	"io"
	"net/http"

	"psycare/internal/payments/gateway"
	"psycare/internal/payments/service"
	httputil "psycare/pkg/http"
	"psycare/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

// WebhookHandler receives payment gateway deliveries. It sits on its
// own middleware chain: the HMAC is verified against the raw body
// before this handler runs, and the idempotency and content-type
// middlewares are skipped because the gateway controls those headers.
type WebhookHandler struct {
	reconciler *service.Reconciler
	log        *logger.Logger
}

func NewWebhookHandler(reconciler *service.Reconciler, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		reconciler: reconciler,
		log:        log,
	}
}

func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Failed to read request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Receive", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	event, err := gateway.ParseEvent(body)
	if err != nil {
		h.log.Warn("Rejected malformed webhook payload", "error", err)
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid webhook payload",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Receive", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	if err := h.reconciler.Apply(r.Context(), event); err != nil {
		// Non-2xx makes the gateway redeliver; the reconciler is
		// idempotent so retries are safe.
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Receive", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, map[string]bool{"received": true}); err != nil {
		h.log.Error("failed to write success response", "handler", "Receive", "operation", "WriteSuccess", "error", err)
	}
}

func (h *WebhookHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/payments/webhook", h.Receive)
}
