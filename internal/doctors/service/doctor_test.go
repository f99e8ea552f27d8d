package service

import (
	"context"
	"testing"
	"time"

	"psycare/internal/doctors/validator"
	"psycare/pkg/config"
	apperrors "psycare/pkg/errors"
	"psycare/pkg/logger"
	"psycare/pkg/model"
)

type mockDoctorRepository struct {
	createFunc               func(ctx context.Context, doctor *model.Doctor) error
	findAllFunc              func(ctx context.Context, limit int, offset int64) ([]*model.Doctor, error)
	countFunc                func(ctx context.Context) (int64, error)
	findBySpecializationFunc func(ctx context.Context, specialization string, limit int, offset int64) ([]*model.Doctor, error)
	countBySpecialization    func(ctx context.Context, specialization string) (int64, error)
}

func (m *mockDoctorRepository) Create(ctx context.Context, doctor *model.Doctor) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, doctor)
	}
	doctor.ID = "507f1f77bcf86cd799439022"
	return nil
}

func (m *mockDoctorRepository) FindByID(ctx context.Context, id string) (*model.Doctor, error) {
	return &model.Doctor{ID: id}, nil
}

func (m *mockDoctorRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Doctor, error) {
	if m.findAllFunc != nil {
		return m.findAllFunc(ctx, limit, offset)
	}
	return []*model.Doctor{}, nil
}

func (m *mockDoctorRepository) FindBySpecialization(ctx context.Context, specialization string, limit int, offset int64) ([]*model.Doctor, error) {
	if m.findBySpecializationFunc != nil {
		return m.findBySpecializationFunc(ctx, specialization, limit, offset)
	}
	return []*model.Doctor{}, nil
}

func (m *mockDoctorRepository) CountBySpecialization(ctx context.Context, specialization string) (int64, error) {
	if m.countBySpecialization != nil {
		return m.countBySpecialization(ctx, specialization)
	}
	return 0, nil
}

func (m *mockDoctorRepository) Update(ctx context.Context, id string, doctor *model.Doctor) error {
	return nil
}

func (m *mockDoctorRepository) Delete(ctx context.Context, id string) error {
	return nil
}

func (m *mockDoctorRepository) Count(ctx context.Context) (int64, error) {
	if m.countFunc != nil {
		return m.countFunc(ctx)
	}
	return 0, nil
}

func newTestService(repo *mockDoctorRepository) DoctorService {
	log := logger.New(logger.Config{Level: "error", Format: logger.JSON, Service: "test"})
	cfg := &config.Config{Log: log}
	return NewDoctorService(repo, validator.NewDoctorValidator(log), cfg)
}

func TestCreate_SanitizesFields(t *testing.T) {
	var created *model.Doctor
	repo := &mockDoctorRepository{
		createFunc: func(ctx context.Context, doctor *model.Doctor) error {
			created = doctor
			return nil
		},
	}
	svc := newTestService(repo)

	doctor := &model.Doctor{
		Name:           "  Dana   Levi  ",
		Specialization: "Clinical Psychology",
		Bio:            "Specializes\n in   CBT",
		Fee:            300,
		YearsOfExp:     12,
	}
	if err := svc.Create(context.Background(), doctor); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.Name != "Dana Levi" {
		t.Errorf("name = %q, want %q", created.Name, "Dana Levi")
	}
	if created.Specialization != "clinical_psychology" {
		t.Errorf("specialization = %q, want %q", created.Specialization, "clinical_psychology")
	}
	if created.Bio != "Specializes in CBT" {
		t.Errorf("bio = %q, want %q", created.Bio, "Specializes in CBT")
	}
}

func TestCreate_ValidationFailures(t *testing.T) {
	svc := newTestService(&mockDoctorRepository{
		createFunc: func(ctx context.Context, doctor *model.Doctor) error {
			t.Error("Create should not be called for invalid doctors")
			return nil
		},
	})

	tests := []struct {
		name   string
		doctor *model.Doctor
	}{
		{"missing name", &model.Doctor{Specialization: "cbt", Fee: 300}},
		{"missing specialization", &model.Doctor{Name: "Dana Levi", Fee: 300}},
		{"zero fee", &model.Doctor{Name: "Dana Levi", Specialization: "cbt", Fee: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Create(context.Background(), tt.doctor)
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if apperrors.AsAppError(err).Code != apperrors.CodeValidation {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestGetAll_ParallelCountAndFind(t *testing.T) {
	repo := &mockDoctorRepository{
		countFunc: func(ctx context.Context) (int64, error) {
			time.Sleep(10 * time.Millisecond)
			return 7, nil
		},
		findAllFunc: func(ctx context.Context, limit int, offset int64) ([]*model.Doctor, error) {
			time.Sleep(10 * time.Millisecond)
			return []*model.Doctor{{ID: "1"}, {ID: "2"}}, nil
		},
	}
	svc := newTestService(repo)

	for i := 0; i < 10; i++ {
		doctors, count, err := svc.GetAll(context.Background(), 10, 0)
		if err != nil {
			t.Fatalf("iteration %d: unexpected error: %v", i, err)
		}
		if count != 7 {
			t.Errorf("iteration %d: count = %d, want 7", i, count)
		}
		if len(doctors) != 2 {
			t.Errorf("iteration %d: got %d doctors, want 2", i, len(doctors))
		}
	}
}

func TestSearchBySpecialization_NormalizesLabel(t *testing.T) {
	var queried string
	repo := &mockDoctorRepository{
		findBySpecializationFunc: func(ctx context.Context, specialization string, limit int, offset int64) ([]*model.Doctor, error) {
			queried = specialization
			return []*model.Doctor{{ID: "1"}}, nil
		},
		countBySpecialization: func(ctx context.Context, specialization string) (int64, error) {
			return 1, nil
		},
	}
	svc := newTestService(repo)

	_, _, err := svc.SearchBySpecialization(context.Background(), "  Clinical Psychology ", 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if queried != "clinical_psychology" {
		t.Errorf("queried specialization = %q, want %q", queried, "clinical_psychology")
	}
}

func TestSearchBySpecialization_EmptyAfterSanitizing(t *testing.T) {
	svc := newTestService(&mockDoctorRepository{})

	_, _, err := svc.SearchBySpecialization(context.Background(), "  !!!  ", 10, 0)
	if err == nil {
		t.Fatal("expected error for empty specialization")
	}
}
