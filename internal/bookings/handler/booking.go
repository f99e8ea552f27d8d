package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"psycare/internal/bookings/service"
	apperrors "psycare/pkg/errors"
	httputil "psycare/pkg/http"
	"psycare/pkg/logger"
	"psycare/pkg/model"

	"github.com/julienschmidt/httprouter"
)

// CheckoutStarter opens a payment session for a pending booking and
// returns the gateway redirect URL.
type CheckoutStarter interface {
	Start(ctx context.Context, booking *model.Booking) (string, error)
}

type BookingHandler struct {
	service  service.BookingService
	checkout CheckoutStarter
	log      *logger.Logger
}

func NewBookingHandler(service service.BookingService, checkout CheckoutStarter, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service:  service,
		checkout: checkout,
		log:      log,
	}
}

type createBookingResponse struct {
	Booking     *model.Booking `json:"booking"`
	RedirectURL string         `json:"redirect_url"`
}

// Create records the booking and opens the payment session in one call.
// The booking stays pending and unpaid until the gateway webhook
// confirms payment; a checkout failure leaves a harmless unpaid booking
// that never blocks the slot.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var booking model.Booking
	if err := json.NewDecoder(r.Body).Decode(&booking); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Create", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	if err := h.service.Request(r.Context(), &booking); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Create", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	redirectURL, err := h.checkout.Start(r.Context(), &booking)
	if err != nil {
		h.log.Error("failed to start checkout", "booking_id", booking.ID, "error", err)
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Create", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, createBookingResponse{
		Booking:     &booking,
		RedirectURL: redirectURL,
	}); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	booking, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetByID", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

// GetPaymentState is the polling endpoint used after the patient is
// redirected back from the gateway, before the webhook has landed.
func (h *BookingHandler) GetPaymentState(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	booking, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetPaymentState", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, booking.PaymentState()); err != nil {
		h.log.Error("failed to write success response", "handler", "GetPaymentState", "operation", "WriteSuccess", "error", err)
	}
}

// RestartCheckout opens a fresh payment session for a booking whose
// earlier session was abandoned. The new payment reference replaces the
// old one, so a late webhook for the stale session no longer matches.
func (h *BookingHandler) RestartCheckout(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	booking, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "RestartCheckout", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	redirectURL, err := h.checkout.Start(r.Context(), booking)
	if err != nil {
		h.log.Error("failed to restart checkout", "booking_id", booking.ID, "error", err)
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "RestartCheckout", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, map[string]string{"redirect_url": redirectURL}); err != nil {
		h.log.Error("failed to write success response", "handler", "RestartCheckout", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) ListByDoctor(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.listBy(w, r, ps.ByName("id"), h.service.ListByDoctor, "ListByDoctor")
}

func (h *BookingHandler) ListByPatient(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.listBy(w, r, ps.ByName("id"), h.service.ListByPatient, "ListByPatient")
}

func (h *BookingHandler) listBy(
	w http.ResponseWriter,
	r *http.Request,
	id string,
	listFn func(ctx context.Context, id string, limit int, offset int64) ([]*model.Booking, int64, error),
	name string,
) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", name, "operation", "WriteError", "error", writeErr)
		}
		return
	}

	bookings, total, err := listFn(r.Context(), id, limit, offset)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", name, "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WritePaginated(w, bookings, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", name, "operation", "WritePaginated", "error", err)
	}
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	booking, err := h.service.Cancel(r.Context(), id)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Cancel", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "Cancel", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) Complete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	booking, err := h.service.Complete(r.Context(), id)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Complete", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "Complete", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) AvailableSlots(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()
	doctorID := query.Get("doctor_id")
	date := query.Get("date")

	if doctorID == "" || date == "" {
		if writeErr := httputil.WriteError(w, apperrors.InvalidInput(
			fmt.Sprintf("Both 'doctor_id' and 'date' query parameters are required, got doctor_id=%q date=%q", doctorID, date),
		)); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "AvailableSlots", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	slots, err := h.service.AvailableSlots(r.Context(), doctorID, date)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "AvailableSlots", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, slots); err != nil {
		h.log.Error("failed to write success response", "handler", "AvailableSlots", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/bookings", h.Create)
	router.GET("/api/v1/bookings/id/:id", h.GetByID)
	router.GET("/api/v1/bookings/id/:id/payment", h.GetPaymentState)
	router.POST("/api/v1/bookings/id/:id/checkout", h.RestartCheckout)
	router.POST("/api/v1/bookings/id/:id/cancel", h.Cancel)
	router.POST("/api/v1/bookings/id/:id/complete", h.Complete)
	router.GET("/api/v1/bookings/doctor/:id", h.ListByDoctor)
	router.GET("/api/v1/bookings/patient/:id", h.ListByPatient)
	router.GET("/api/v1/bookings/slots", h.AvailableSlots)
}
