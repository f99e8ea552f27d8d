package service

import (
	"context"
	"errors"
	"sync"

	doctorserrors "psycare/internal/doctors/errors"
	"psycare/internal/doctors/repository"
	"psycare/internal/doctors/validator"
	"psycare/pkg/config"
	apperrors "psycare/pkg/errors"
	"psycare/pkg/model"
	"psycare/pkg/sanitizer"
)

type DoctorService interface {
	Create(ctx context.Context, doctor *model.Doctor) error
	GetByID(ctx context.Context, id string) (*model.Doctor, error)
	GetAll(ctx context.Context, limit int, offset int64) ([]*model.Doctor, int64, error)
	SearchBySpecialization(ctx context.Context, specialization string, limit int, offset int64) ([]*model.Doctor, int64, error)
	Update(ctx context.Context, id string, doctor *model.Doctor) error
	Delete(ctx context.Context, id string) error
}

type doctorService struct {
	repo      repository.DoctorRepository
	validator *validator.DoctorValidator
	cfg       *config.Config
}

func NewDoctorService(repo repository.DoctorRepository, validator *validator.DoctorValidator, cfg *config.Config) DoctorService {
	return &doctorService{
		repo:      repo,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *doctorService) Create(ctx context.Context, doctor *model.Doctor) error {
	s.sanitize(doctor)
	if err := s.validate(doctor); err != nil {
		return err
	}

	if err := s.repo.Create(ctx, doctor); err != nil {
		s.cfg.Log.Error("Failed to create doctor", "error", err)
		return apperrors.Internal("Failed to create doctor", err)
	}

	s.cfg.Log.Info("Doctor created successfully", "id", doctor.ID, "specialization", doctor.Specialization)
	return nil
}

func (s *doctorService) GetByID(ctx context.Context, id string) (*model.Doctor, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Doctor ID cannot be empty")
	}

	doctor, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapLookupError(err, id)
	}
	return doctor, nil
}

func (s *doctorService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Doctor, int64, error) {
	var count int64
	var doctors []*model.Doctor
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count doctors", "error", errCount)
			errCount = apperrors.Internal("Failed to count doctors", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		doctors, errFind = s.repo.FindAll(ctx, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list doctors", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve doctors", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return doctors, count, nil
}

func (s *doctorService) SearchBySpecialization(ctx context.Context, specialization string, limit int, offset int64) ([]*model.Doctor, int64, error) {
	specialization = sanitizer.SanitizeLabel(specialization)
	if specialization == "" {
		return nil, 0, apperrors.InvalidInput("Specialization cannot be empty")
	}

	var count int64
	var doctors []*model.Doctor
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.CountBySpecialization(ctx, specialization)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count doctors by specialization", "specialization", specialization, "error", errCount)
			errCount = apperrors.Internal("Failed to count doctors", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		doctors, errFind = s.repo.FindBySpecialization(ctx, specialization, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to search doctors", "specialization", specialization, "error", errFind)
			errFind = apperrors.Internal("Failed to search doctors", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return doctors, count, nil
}

func (s *doctorService) Update(ctx context.Context, id string, doctor *model.Doctor) error {
	if id == "" {
		return apperrors.InvalidInput("Doctor ID cannot be empty")
	}

	s.sanitize(doctor)
	if err := s.validate(doctor); err != nil {
		return err
	}

	if err := s.repo.Update(ctx, id, doctor); err != nil {
		return s.mapLookupError(err, id)
	}

	s.cfg.Log.Info("Doctor updated successfully", "id", id)
	return nil
}

func (s *doctorService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Doctor ID cannot be empty")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return s.mapLookupError(err, id)
	}

	s.cfg.Log.Info("Doctor deleted successfully", "id", id)
	return nil
}

func (s *doctorService) sanitize(d *model.Doctor) {
	d.Name = sanitizer.TrimAndNormalize(d.Name)
	d.Specialization = sanitizer.SanitizeLabel(d.Specialization)
	d.Bio = sanitizer.TrimAndNormalize(d.Bio)
}

func (s *doctorService) validate(doctor *model.Doctor) error {
	if err := s.validator.Validate(doctor); err != nil {
		s.cfg.Log.Warn("Doctor validation failed", "error", err)
		return apperrors.Validation("Doctor validation failed", map[string]any{"error": err.Error()})
	}
	return nil
}

func (s *doctorService) mapLookupError(err error, id string) error {
	if errors.Is(err, doctorserrors.ErrNotFound) {
		return apperrors.NotFoundWithID("Doctor", id)
	}
	if errors.Is(err, doctorserrors.ErrInvalidID) {
		return apperrors.InvalidInput("Invalid doctor ID format")
	}
	if apperrors.IsAppError(err) {
		return err
	}
	return apperrors.Internal("Failed to access doctor", err)
}
