package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"psycare/internal/care/repository"
	"psycare/pkg/config"
	apperrors "psycare/pkg/errors"
	"psycare/pkg/model"
	"psycare/pkg/sanitizer"

	"github.com/go-playground/validator/v10"
)

var riskLevels = []string{"low", "moderate", "high", "critical"}

type PatientCareService interface {
	GetByPatient(ctx context.Context, patientID string, includePrivate bool) (*model.PatientCare, error)
	AddRemark(ctx context.Context, patientID string, remark *model.Remark) error
	AddMedication(ctx context.Context, patientID string, medication *model.Medication) error
	SetMedicationStatus(ctx context.Context, patientID, medicationName, status string) error
	SetRiskLevel(ctx context.Context, patientID, riskLevel string) error
}

type patientCareService struct {
	repo     repository.PatientCareRepository
	validate *validator.Validate
	cfg      *config.Config
}

func NewPatientCareService(repo repository.PatientCareRepository, cfg *config.Config) PatientCareService {
	return &patientCareService{
		repo:     repo,
		validate: validator.New(),
		cfg:      cfg,
	}
}

// GetByPatient returns the care record. Private remarks are stripped
// unless the caller is on the doctor side.
func (s *patientCareService) GetByPatient(ctx context.Context, patientID string, includePrivate bool) (*model.PatientCare, error) {
	if patientID == "" {
		return nil, apperrors.InvalidInput("Patient ID cannot be empty")
	}

	care, err := s.repo.FindByPatient(ctx, patientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Patient care record", patientID)
		}
		return nil, apperrors.Internal("Failed to retrieve patient care record", err)
	}

	if !includePrivate {
		visible := make([]model.Remark, 0, len(care.Remarks))
		for _, remark := range care.Remarks {
			if !remark.Private {
				visible = append(visible, remark)
			}
		}
		care.Remarks = visible
	}

	return care, nil
}

func (s *patientCareService) AddRemark(ctx context.Context, patientID string, remark *model.Remark) error {
	if patientID == "" {
		return apperrors.InvalidInput("Patient ID cannot be empty")
	}

	remark.Body = sanitizer.NormalizeRemark(remark.Body)
	if err := s.validate.Struct(remark); err != nil {
		s.cfg.Log.Warn("Remark validation failed", "patient_id", patientID, "error", err)
		return apperrors.Validation("Remark validation failed", map[string]any{"error": err.Error()})
	}

	if err := s.repo.AddRemark(ctx, patientID, *remark); err != nil {
		s.cfg.Log.Error("Failed to add remark", "patient_id", patientID, "error", err)
		return apperrors.Internal("Failed to add remark", err)
	}

	s.cfg.Log.Info("Remark added", "patient_id", patientID, "doctor_id", remark.DoctorID, "type", remark.Type)
	return nil
}

func (s *patientCareService) AddMedication(ctx context.Context, patientID string, medication *model.Medication) error {
	if patientID == "" {
		return apperrors.InvalidInput("Patient ID cannot be empty")
	}

	medication.Name = sanitizer.TrimAndNormalize(medication.Name)
	if medication.Status == "" {
		medication.Status = model.MedicationActive
	}
	if err := s.validate.Struct(medication); err != nil {
		s.cfg.Log.Warn("Medication validation failed", "patient_id", patientID, "error", err)
		return apperrors.Validation("Medication validation failed", map[string]any{"error": err.Error()})
	}

	if err := s.repo.AddMedication(ctx, patientID, *medication); err != nil {
		s.cfg.Log.Error("Failed to add medication", "patient_id", patientID, "error", err)
		return apperrors.Internal("Failed to add medication", err)
	}

	s.cfg.Log.Info("Medication added", "patient_id", patientID, "name", medication.Name)
	return nil
}

func (s *patientCareService) SetMedicationStatus(ctx context.Context, patientID, medicationName, status string) error {
	if patientID == "" || medicationName == "" {
		return apperrors.InvalidInput("Patient ID and medication name are required")
	}
	switch status {
	case model.MedicationActive, model.MedicationCompleted, model.MedicationDiscontinued:
	default:
		return apperrors.InvalidInput(fmt.Sprintf("Status must be one of: active, completed, discontinued, got: %s", status))
	}

	if err := s.repo.SetMedicationStatus(ctx, patientID, medicationName, status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound(fmt.Sprintf("Medication %q not found for patient %s", medicationName, patientID))
		}
		return apperrors.Internal("Failed to update medication status", err)
	}

	s.cfg.Log.Info("Medication status updated", "patient_id", patientID, "name", medicationName, "status", status)
	return nil
}

func (s *patientCareService) SetRiskLevel(ctx context.Context, patientID, riskLevel string) error {
	if patientID == "" {
		return apperrors.InvalidInput("Patient ID cannot be empty")
	}

	riskLevel = strings.ToLower(strings.TrimSpace(riskLevel))
	valid := false
	for _, level := range riskLevels {
		if riskLevel == level {
			valid = true
			break
		}
	}
	if !valid {
		return apperrors.InvalidInput(fmt.Sprintf("Risk level must be one of: %s", strings.Join(riskLevels, ", ")))
	}

	if err := s.repo.SetRiskLevel(ctx, patientID, riskLevel); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFoundWithID("Patient care record", patientID)
		}
		return apperrors.Internal("Failed to set risk level", err)
	}

	s.cfg.Log.Info("Risk level updated", "patient_id", patientID, "risk_level", riskLevel)
	return nil
}
