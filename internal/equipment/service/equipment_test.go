package service

import (
	"context"
	"testing"
	"time"

	equipmenterrors "labreserve/internal/equipment/errors"
	"labreserve/internal/equipment/validator"
	"labreserve/pkg/config"
	apperrors "labreserve/pkg/errors"
	"labreserve/pkg/logger"
	"labreserve/pkg/model"
)

type mockEquipmentRepository struct {
	createFunc   func(ctx context.Context, equipment *model.Equipment) error
	findByIDFunc func(ctx context.Context, id string) (*model.Equipment, error)
	findAllFunc  func(ctx context.Context, limit int, offset int64) ([]*model.Equipment, error)
	countFunc    func(ctx context.Context) (int64, error)
	updateFunc   func(ctx context.Context, id string, equipment *model.Equipment) error
	deleteFunc   func(ctx context.Context, id string) error
}

func (m *mockEquipmentRepository) Create(ctx context.Context, equipment *model.Equipment) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, equipment)
	}
	return nil
}

func (m *mockEquipmentRepository) FindByID(ctx context.Context, id string) (*model.Equipment, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return &model.Equipment{ID: id, Name: "Oscilloscope", Description: "200 MHz scope"}, nil
}

func (m *mockEquipmentRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Equipment, error) {
	if m.findAllFunc != nil {
		return m.findAllFunc(ctx, limit, offset)
	}
	return []*model.Equipment{}, nil
}

func (m *mockEquipmentRepository) Count(ctx context.Context) (int64, error) {
	if m.countFunc != nil {
		return m.countFunc(ctx)
	}
	return 0, nil
}

func (m *mockEquipmentRepository) Update(ctx context.Context, id string, equipment *model.Equipment) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, id, equipment)
	}
	return nil
}

func (m *mockEquipmentRepository) Delete(ctx context.Context, id string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

func (m *mockEquipmentRepository) Watch(ctx context.Context) (<-chan []*model.Equipment, error) {
	return nil, nil
}

func newTestService(repo *mockEquipmentRepository) EquipmentService {
	cfg := &config.Config{
		Log:          logger.Discard(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	return NewEquipmentService(repo, validator.NewEquipmentValidator(cfg.Log), cfg)
}

func TestCreate_SanitizesInput(t *testing.T) {
	var created *model.Equipment
	repo := &mockEquipmentRepository{
		createFunc: func(ctx context.Context, equipment *model.Equipment) error {
			created = equipment
			return nil
		},
	}
	svc := newTestService(repo)

	err := svc.Create(context.Background(), &model.Equipment{
		Name:        "  Spectrum   Analyzer  ",
		Description: "9 kHz to\t3 GHz",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if created.Name != "Spectrum Analyzer" {
		t.Errorf("name not normalized: %q", created.Name)
	}
	if created.Description != "9 kHz to 3 GHz" {
		t.Errorf("description not normalized: %q", created.Description)
	}
}

func TestCreate_RejectsInvalid(t *testing.T) {
	repo := &mockEquipmentRepository{
		createFunc: func(ctx context.Context, equipment *model.Equipment) error {
			t.Error("invalid equipment must not be written")
			return nil
		},
	}
	svc := newTestService(repo)

	err := svc.Create(context.Background(), &model.Equipment{Name: "", Description: "some gear"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	appErr := apperrors.AsAppError(err)
	if appErr.Code != apperrors.CodeValidation {
		t.Errorf("expected %s, got %v", apperrors.CodeValidation, err)
	}
}

func TestFindByID_NotFound(t *testing.T) {
	repo := &mockEquipmentRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Equipment, error) {
			return nil, equipmenterrors.ErrNotFound
		},
	}
	svc := newTestService(repo)

	_, err := svc.FindByID(context.Background(), "65f000000000000000000001")
	appErr := apperrors.AsAppError(err)
	if appErr.Code != apperrors.CodeNotFound {
		t.Errorf("expected %s, got %v", apperrors.CodeNotFound, err)
	}
}

func TestGetAll_ConcurrentCountAndFind(t *testing.T) {
	repo := &mockEquipmentRepository{
		countFunc: func(ctx context.Context) (int64, error) {
			time.Sleep(10 * time.Millisecond)
			return 42, nil
		},
		findAllFunc: func(ctx context.Context, limit int, offset int64) ([]*model.Equipment, error) {
			time.Sleep(10 * time.Millisecond)
			return []*model.Equipment{
				{ID: "1", Name: "Oscilloscope"},
				{ID: "2", Name: "Signal Generator"},
			}, nil
		},
	}
	svc := newTestService(repo)

	for i := 0; i < 10; i++ {
		equipment, count, err := svc.GetAll(context.Background(), 10, 0)
		if err != nil {
			t.Fatalf("iteration %d: unexpected error: %v", i, err)
		}
		if count != 42 {
			t.Errorf("iteration %d: expected count 42, got %d", i, count)
		}
		if len(equipment) != 2 {
			t.Errorf("iteration %d: expected 2 items, got %d", i, len(equipment))
		}
	}
}

func TestUpdate_MergesOntoExisting(t *testing.T) {
	var updated *model.Equipment
	repo := &mockEquipmentRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Equipment, error) {
			return &model.Equipment{ID: id, Name: "Oscilloscope", Description: "200 MHz scope"}, nil
		},
		updateFunc: func(ctx context.Context, id string, equipment *model.Equipment) error {
			updated = equipment
			return nil
		},
	}
	svc := newTestService(repo)

	err := svc.Update(context.Background(), "65f000000000000000000001", &model.EquipmentUpdate{
		Description: "200 MHz scope, recalibrated",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if updated.Name != "Oscilloscope" {
		t.Errorf("untouched field must carry over, got name %q", updated.Name)
	}
	if updated.Description != "200 MHz scope, recalibrated" {
		t.Errorf("updated field not applied: %q", updated.Description)
	}
	if updated.UpdatedAt.IsZero() {
		t.Error("updated_at should be stamped")
	}
}

func TestUpdate_EmptyUpdateRejected(t *testing.T) {
	svc := newTestService(&mockEquipmentRepository{})

	err := svc.Update(context.Background(), "65f000000000000000000001", &model.EquipmentUpdate{})
	appErr := apperrors.AsAppError(err)
	if appErr.Code != apperrors.CodeValidation {
		t.Errorf("expected %s, got %v", apperrors.CodeValidation, err)
	}
}

func TestDelete_NotFound(t *testing.T) {
	repo := &mockEquipmentRepository{
		deleteFunc: func(ctx context.Context, id string) error {
			return equipmenterrors.ErrNotFound
		},
	}
	svc := newTestService(repo)

	err := svc.Delete(context.Background(), "65f000000000000000000001")
	appErr := apperrors.AsAppError(err)
	if appErr.Code != apperrors.CodeNotFound {
		t.Errorf("expected %s, got %v", apperrors.CodeNotFound, err)
	}
}

func TestDelete_LeavesBookingsAlone(t *testing.T) {
	deleted := false
	repo := &mockEquipmentRepository{
		deleteFunc: func(ctx context.Context, id string) error {
			deleted = true
			return nil
		},
	}
	svc := newTestService(repo)

	if err := svc.Delete(context.Background(), "65f000000000000000000001"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !deleted {
		t.Error("expected the catalog entry to be removed")
	}
}
