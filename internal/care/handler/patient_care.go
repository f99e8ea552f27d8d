package handler

import (
	"encoding/json"
	"net/http"

	"psycare/internal/care/service"
	httputil "psycare/pkg/http"
	"psycare/pkg/logger"
	"psycare/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type PatientCareHandler struct {
	service service.PatientCareService
	log     *logger.Logger
}

func NewPatientCareHandler(service service.PatientCareService, log *logger.Logger) *PatientCareHandler {
	return &PatientCareHandler{
		service: service,
		log:     log,
	}
}

func (h *PatientCareHandler) Get(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	patientID := ps.ByName("id")
	includePrivate := r.URL.Query().Get("view") == "doctor"

	care, err := h.service.GetByPatient(r.Context(), patientID, includePrivate)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Get", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, care); err != nil {
		h.log.Error("failed to write success response", "handler", "Get", "operation", "WriteSuccess", "error", err)
	}
}

func (h *PatientCareHandler) AddRemark(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	patientID := ps.ByName("id")

	var remark model.Remark
	if err := json.NewDecoder(r.Body).Decode(&remark); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "AddRemark", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	if err := h.service.AddRemark(r.Context(), patientID, &remark); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "AddRemark", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, remark); err != nil {
		h.log.Error("failed to write created response", "handler", "AddRemark", "operation", "WriteCreated", "error", err)
	}
}

func (h *PatientCareHandler) AddMedication(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	patientID := ps.ByName("id")

	var medication model.Medication
	if err := json.NewDecoder(r.Body).Decode(&medication); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "AddMedication", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	if err := h.service.AddMedication(r.Context(), patientID, &medication); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "AddMedication", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, medication); err != nil {
		h.log.Error("failed to write created response", "handler", "AddMedication", "operation", "WriteCreated", "error", err)
	}
}

type medicationStatusRequest struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

func (h *PatientCareHandler) SetMedicationStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	patientID := ps.ByName("id")

	var req medicationStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "SetMedicationStatus", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	if err := h.service.SetMedicationStatus(r.Context(), patientID, req.Name, req.Status); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "SetMedicationStatus", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}

type riskLevelRequest struct {
	RiskLevel string `json:"risk_level"`
}

func (h *PatientCareHandler) SetRiskLevel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	patientID := ps.ByName("id")

	var req riskLevelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "SetRiskLevel", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	if err := h.service.SetRiskLevel(r.Context(), patientID, req.RiskLevel); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "SetRiskLevel", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}

func (h *PatientCareHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/care/patient/:id", h.Get)
	router.POST("/api/v1/care/patient/:id/remarks", h.AddRemark)
	router.POST("/api/v1/care/patient/:id/medications", h.AddMedication)
	router.PATCH("/api/v1/care/patient/:id/medications", h.SetMedicationStatus)
	router.PUT("/api/v1/care/patient/:id/risk", h.SetRiskLevel)
}
