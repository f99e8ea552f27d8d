package handler

import (
	"encoding/json"
	"net/http"

	"psycare/internal/reviews/service"
	httputil "psycare/pkg/http"
	"psycare/pkg/logger"
	"psycare/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type ReviewHandler struct {
	service service.ReviewService
	log     *logger.Logger
}

func NewReviewHandler(service service.ReviewService, log *logger.Logger) *ReviewHandler {
	return &ReviewHandler{
		service: service,
		log:     log,
	}
}

func (h *ReviewHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var review model.Review
	if err := json.NewDecoder(r.Body).Decode(&review); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Create", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	if err := h.service.Submit(r.Context(), &review); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Create", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, review); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *ReviewHandler) ListByDoctor(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	doctorID := ps.ByName("id")

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ListByDoctor", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	reviews, total, err := h.service.ListByDoctor(r.Context(), doctorID, limit, offset)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ListByDoctor", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WritePaginated(w, reviews, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListByDoctor", "operation", "WritePaginated", "error", err)
	}
}

func (h *ReviewHandler) StatsByDoctor(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	doctorID := ps.ByName("id")

	stats, err := h.service.StatsByDoctor(r.Context(), doctorID)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "StatsByDoctor", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, stats); err != nil {
		h.log.Error("failed to write success response", "handler", "StatsByDoctor", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReviewHandler) CheckEligibility(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	bookingID := ps.ByName("id")
	patientID := r.URL.Query().Get("patient_id")

	eligibility, err := h.service.CheckEligibility(r.Context(), bookingID, patientID)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "CheckEligibility", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, eligibility); err != nil {
		h.log.Error("failed to write success response", "handler", "CheckEligibility", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReviewHandler) MarkHelpful(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	helpful, err := h.service.MarkHelpful(r.Context(), id)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "MarkHelpful", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, map[string]int{"helpful": helpful}); err != nil {
		h.log.Error("failed to write success response", "handler", "MarkHelpful", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReviewHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/reviews", h.Create)
	router.GET("/api/v1/reviews/doctor/:id", h.ListByDoctor)
	router.GET("/api/v1/reviews/doctor/:id/stats", h.StatsByDoctor)
	router.GET("/api/v1/reviews/booking/:id/eligibility", h.CheckEligibility)
	router.PATCH("/api/v1/reviews/id/:id/helpful", h.MarkHelpful)
}
