package service

import (
	"context"
	"errors"
	"sync"
	"time"

	equipmenterrors "labreserve/internal/equipment/errors"
	"labreserve/internal/equipment/repository"
	"labreserve/internal/equipment/validator"
	"labreserve/pkg/config"
	apperrors "labreserve/pkg/errors"
	"labreserve/pkg/model"
	"labreserve/pkg/sanitizer"
)

// EquipmentService manages the shared equipment catalog. Administrator
// capability is enforced by the route middleware, not re-checked here.
type EquipmentService interface {
	Create(ctx context.Context, equipment *model.Equipment) error
	FindByID(ctx context.Context, id string) (*model.Equipment, error)
	GetAll(ctx context.Context, limit int, offset int64) ([]*model.Equipment, int64, error)
	Update(ctx context.Context, id string, updates *model.EquipmentUpdate) error
	Delete(ctx context.Context, id string) error
}

type equipmentService struct {
	repo      repository.EquipmentRepository
	validator *validator.EquipmentValidator
	cfg       *config.Config
	now       func() time.Time
}

func NewEquipmentService(
	repo repository.EquipmentRepository,
	equipmentValidator *validator.EquipmentValidator,
	cfg *config.Config,
) EquipmentService {
	return &equipmentService{
		repo:      repo,
		validator: equipmentValidator,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *equipmentService) Create(ctx context.Context, equipment *model.Equipment) error {
	s.sanitize(equipment)

	if err := s.validate(equipment); err != nil {
		return err
	}

	if err := s.repo.Create(ctx, equipment); err != nil {
		s.cfg.Log.Error("Failed to create equipment", "name", equipment.Name, "error", err)
		return apperrors.Internal("Failed to create equipment", err)
	}

	s.cfg.Log.Info("Equipment created", "id", equipment.ID, "name", equipment.Name)
	return nil
}

func (s *equipmentService) FindByID(ctx context.Context, id string) (*model.Equipment, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Equipment ID cannot be empty")
	}

	equipment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, equipmenterrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Equipment", id)
		}
		if errors.Is(err, equipmenterrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid equipment ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve equipment", err)
	}

	return equipment, nil
}

func (s *equipmentService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Equipment, int64, error) {
	var count int64
	var equipment []*model.Equipment
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count equipment", "error", errCount)
			errCount = apperrors.Internal("Failed to count equipment", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		equipment, errFind = s.repo.FindAll(ctx, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list equipment", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve equipment", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return equipment, count, nil
}

func (s *equipmentService) Update(ctx context.Context, id string, updates *model.EquipmentUpdate) error {
	if id == "" {
		return apperrors.InvalidInput("Equipment ID cannot be empty")
	}

	existing, err := s.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.validator.ValidateUpdate(updates); err != nil {
		s.cfg.Log.Warn("Equipment update validation failed", "id", id, "error", err)
		return apperrors.Validation("Invalid update input", map[string]any{"error": err.Error()})
	}

	merged := s.mergeUpdates(existing, updates)
	s.sanitize(merged)
	if err := s.validate(merged); err != nil {
		return err
	}
	merged.UpdatedAt = s.now().UTC().Truncate(time.Millisecond)

	if err := s.repo.Update(ctx, id, merged); err != nil {
		if errors.Is(err, equipmenterrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Equipment", id)
		}
		s.cfg.Log.Error("Failed to update equipment", "id", id, "error", err)
		return apperrors.Internal("Failed to update equipment", err)
	}

	s.cfg.Log.Info("Equipment updated", "id", id)
	return nil
}

// Delete removes the catalog entry only. Bookings referencing the id are
// left alone: they keep rendering through their denormalized
// equipment_name, and dangling references are tolerated.
func (s *equipmentService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Equipment ID cannot be empty")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, equipmenterrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Equipment", id)
		}
		if errors.Is(err, equipmenterrors.ErrInvalidID) {
			return apperrors.InvalidInput("Invalid equipment ID format")
		}
		s.cfg.Log.Error("Failed to delete equipment", "id", id, "error", err)
		return apperrors.Internal("Failed to delete equipment", err)
	}

	s.cfg.Log.Info("Equipment deleted", "id", id)
	return nil
}

// --- Helpers ---

func (s *equipmentService) sanitize(e *model.Equipment) {
	e.Name = sanitizer.NormalizeName(e.Name)
	e.Description = sanitizer.NormalizeDescription(e.Description)
}

func (s *equipmentService) mergeUpdates(existing *model.Equipment, updates *model.EquipmentUpdate) *model.Equipment {
	merged := *existing

	if updates.Name != "" {
		merged.Name = updates.Name
	}
	if updates.Description != "" {
		merged.Description = updates.Description
	}

	return &merged
}

func (s *equipmentService) validate(equipment *model.Equipment) error {
	if err := s.validator.Validate(equipment); err != nil {
		s.cfg.Log.Warn("Equipment validation failed", "error", err)
		return apperrors.Validation("Equipment validation failed", map[string]any{"error": err.Error()})
	}
	return nil
}
