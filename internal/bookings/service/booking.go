package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	bookingserrors "labreserve/internal/bookings/errors"
	"labreserve/internal/bookings/repository"
	"labreserve/internal/bookings/validator"
	"labreserve/pkg/config"
	apperrors "labreserve/pkg/errors"
	"labreserve/pkg/kafka"
	"labreserve/pkg/model"

	"go.mongodb.org/mongo-driver/mongo"
)

// SubmitRequest is a candidate reservation before validation.
type SubmitRequest struct {
	EquipmentID string    `json:"equipment_id"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
}

type BookingService interface {
	Submit(ctx context.Context, identity model.Identity, req *SubmitRequest) (*model.Booking, error)
	Cancel(ctx context.Context, identity model.Identity, privateID string) error
	MyBookings(ctx context.Context, identity model.Identity, limit int, offset int64) ([]*model.Booking, int64, error)
	Calendar(ctx context.Context, limit int, offset int64) ([]*model.Booking, int64, error)
}

// EquipmentReader is the slice of the equipment catalog the coordinator
// needs: resolving an id to a name for denormalization.
type EquipmentReader interface {
	FindByID(ctx context.Context, id string) (*model.Equipment, error)
}

// EventPublisher pushes booking lifecycle events onto the event topic.
type EventPublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

type bookingService struct {
	repo      repository.BookingRepository
	lockRepo  repository.SlotLockRepository
	equipment EquipmentReader
	validator *validator.BookingValidator
	events    EventPublisher
	cfg       *config.Config
	now       func() time.Time
}

func NewBookingService(
	repo repository.BookingRepository,
	lockRepo repository.SlotLockRepository,
	equipment EquipmentReader,
	bookingValidator *validator.BookingValidator,
	events EventPublisher,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:      repo,
		lockRepo:  lockRepo,
		equipment: equipment,
		validator: bookingValidator,
		events:    events,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Submit validates a candidate window, checks it against every active
// booking for the equipment, and on approval writes the two copies of the
// new booking: private first, then public. The two creates are
// independent point writes with no shared transaction; a failed public
// write after a successful private one is reported as a divergence and
// left for the reconciler to repair.
func (s *bookingService) Submit(ctx context.Context, identity model.Identity, req *SubmitRequest) (*model.Booking, error) {
	if req == nil || req.EquipmentID == "" {
		return nil, apperrors.InvalidInput("equipment_id is required")
	}

	equipment, err := s.equipment.FindByID(ctx, req.EquipmentID)
	if err != nil {
		if apperrors.IsAppError(err) {
			return nil, err
		}
		return nil, apperrors.Internal("Failed to resolve equipment", err)
	}

	if s.cfg.SlotLockEnabled {
		lockID, err := s.acquireSlotLock(ctx, req.EquipmentID, req.StartDate)
		if err != nil {
			return nil, err
		}
		defer func() {
			if releaseErr := s.releaseSlotLock(ctx, lockID); releaseErr != nil {
				s.cfg.Log.Warn("Failed to release slot lock", "lock_id", lockID, "error", releaseErr)
			}
		}()
	}

	if err := s.checkConflict(ctx, req.EquipmentID, req.StartDate, req.EndDate); err != nil {
		return nil, err
	}

	booking := &model.Booking{
		EquipmentID:     req.EquipmentID,
		EquipmentName:   equipment.Name,
		UserID:          identity.UserID,
		UserDisplayName: identity.DisplayName,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		Status:          model.StatusBooked,
		BookedAt:        s.now().UTC().Truncate(time.Millisecond),
	}

	if err := s.validate(booking); err != nil {
		return nil, err
	}

	if err := s.repo.CreatePrivate(ctx, booking); err != nil {
		s.cfg.Log.Error("Failed to create private booking copy", "error", err)
		return nil, apperrors.Internal("Failed to create booking", err)
	}

	if err := s.repo.CreatePublic(ctx, booking); err != nil {
		// The private copy already landed. No rollback: surface the
		// divergence so the caller knows the public listing may lag
		// until the reconciler catches up.
		s.cfg.Log.Error("Public booking copy failed after private copy landed",
			"booking_id", booking.ID,
			"equipment_id", booking.EquipmentID,
			"user_id", booking.UserID,
			"error", err,
		)
		return nil, apperrors.Divergence("Booking created but the public listing may be inconsistent", err)
	}

	s.publishEvent(ctx, kafka.EventBookingCreated, booking)

	s.cfg.Log.Info("Booking created",
		"booking_id", booking.ID,
		"equipment_id", booking.EquipmentID,
		"user_id", booking.UserID,
		"start_date", booking.StartDate,
		"end_date", booking.EndDate,
	)
	return booking, nil
}

// Cancel marks both stored copies of a booking cancelled. The private
// copy is addressed by id; the public copy is located by correlation key
// since its id was never retained. Cancelling an already-cancelled
// booking is a no-op.
func (s *bookingService) Cancel(ctx context.Context, identity model.Identity, privateID string) error {
	if privateID == "" {
		return apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindPrivateByID(ctx, privateID)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Booking", privateID)
		}
		if errors.Is(err, bookingserrors.ErrInvalidID) {
			return apperrors.InvalidInput("Invalid booking ID format")
		}
		return apperrors.Internal("Failed to retrieve booking", err)
	}

	if booking.UserID != identity.UserID && !identity.Admin {
		return apperrors.Forbidden("Only the booking owner can cancel it")
	}

	if booking.Status == model.StatusCancelled {
		return nil
	}

	cancelledAt := s.now().UTC().Truncate(time.Millisecond)

	if err := s.repo.CancelPrivate(ctx, privateID, cancelledAt); err != nil {
		s.cfg.Log.Error("Failed to cancel private booking copy", "booking_id", privateID, "error", err)
		return apperrors.Internal("Failed to cancel booking", err)
	}

	matched, err := s.repo.CancelPublicByCorrelation(ctx, booking.Correlation(), cancelledAt)
	if err != nil {
		s.cfg.Log.Error("Failed to cancel public booking copy",
			"booking_id", privateID,
			"equipment_id", booking.EquipmentID,
			"error", err,
		)
		return apperrors.Divergence("Booking cancelled but the public listing may be inconsistent", err)
	}

	switch {
	case matched == 0:
		// Stale mirror. Deliberately not an error for the caller: the
		// private copy is cancelled, and the reconciler repairs the
		// public side on its next pass.
		s.cfg.Log.Warn("No public copy matched correlation key on cancel",
			"booking_id", privateID,
			"equipment_id", booking.EquipmentID,
			"user_id", booking.UserID,
			"booked_at", booking.BookedAt,
		)
	case matched > 1:
		s.cfg.Log.Warn("Multiple public copies matched correlation key on cancel",
			"booking_id", privateID,
			"matched", matched,
		)
	}

	booking.Status = model.StatusCancelled
	booking.CancelledAt = &cancelledAt
	s.publishEvent(ctx, kafka.EventBookingCancelled, booking)

	s.cfg.Log.Info("Booking cancelled", "booking_id", privateID, "matched_public", matched)
	return nil
}

func (s *bookingService) MyBookings(ctx context.Context, identity model.Identity, limit int, offset int64) ([]*model.Booking, int64, error) {
	var count int64
	var bookings []*model.Booking
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.CountPrivateByUser(ctx, identity.UserID)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count user bookings", "user_id", identity.UserID, "error", errCount)
			errCount = apperrors.Internal("Failed to count bookings", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		bookings, errFind = s.repo.FindPrivateByUser(ctx, identity.UserID, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list user bookings", "user_id", identity.UserID, "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve bookings", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return bookings, count, nil
}

func (s *bookingService) Calendar(ctx context.Context, limit int, offset int64) ([]*model.Booking, int64, error) {
	var count int64
	var bookings []*model.Booking
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.CountPublic(ctx)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count public bookings", "error", errCount)
			errCount = apperrors.Internal("Failed to count bookings", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		bookings, errFind = s.repo.FindAllPublic(ctx, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list public bookings", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve bookings", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return bookings, count, nil
}

// --- Conflict resolution ---

// checkConflict decides whether a candidate window may be committed. The
// read in step three is a point-in-time query: without the slot lock, two
// near-simultaneous submits can both pass before either write lands.
func (s *bookingService) checkConflict(ctx context.Context, equipmentID string, start, end time.Time) error {
	if !end.After(start) {
		return apperrors.Validation("Booking validation failed", map[string]any{
			"error": "end_date must be after start_date",
		})
	}

	if start.Before(s.now()) {
		return apperrors.Validation("Booking validation failed", map[string]any{
			"error": "start_date cannot be in the past",
		})
	}

	existing, err := s.repo.FindPublicBooked(ctx, equipmentID)
	if err != nil {
		return apperrors.Internal("Failed to check existing bookings", err)
	}

	for _, b := range existing {
		if overlaps(b.StartDate, b.EndDate, start, end) {
			return apperrors.Conflict(fmt.Sprintf(
				"Booking window overlaps with existing booking (%s - %s)",
				b.StartDate.Format(time.RFC3339),
				b.EndDate.Format(time.RFC3339),
			))
		}
	}
	return nil
}

// Half-open interval intersection: touching windows do not overlap.
func overlaps(start1, end1, start2, end2 time.Time) bool {
	return start1.Before(end2) && end1.After(start2)
}

// --- Helpers ---

func (s *bookingService) validate(booking *model.Booking) error {
	if err := s.validator.Validate(booking); err != nil {
		s.cfg.Log.Warn("Booking validation failed", "error", err)
		return apperrors.Validation("Booking validation failed", map[string]any{"error": err.Error()})
	}
	return nil
}

// acquireSlotLock serializes submissions that share the exact same
// equipment and start time. Overlapping windows with different starts do
// not contend here; they are still caught by the conflict scan.
func (s *bookingService) acquireSlotLock(ctx context.Context, equipmentID string, start time.Time) (string, error) {
	lockID := fmt.Sprintf("slot_%s_%d", equipmentID, start.Unix())

	lock := &model.SlotLock{
		ID:        lockID,
		ExpiresAt: s.now().Add(s.cfg.SlotLockTTL),
	}

	_, err := s.lockRepo.Create(ctx, lock)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", apperrors.Conflict("This slot is currently being booked by another request. Please try again.")
		}
		return "", apperrors.Internal("Failed to acquire slot lock", err)
	}

	return lockID, nil
}

func (s *bookingService) releaseSlotLock(ctx context.Context, lockID string) error {
	return s.lockRepo.Delete(ctx, lockID)
}

func (s *bookingService) publishEvent(ctx context.Context, eventType string, booking *model.Booking) {
	if s.events == nil {
		return
	}

	msg, err := kafka.NewMessage().
		WithKey(booking.EquipmentID).
		WithEventType(eventType).
		WithValue(booking).
		Build()
	if err != nil {
		s.cfg.Log.Error("Failed to build booking event", "event_type", eventType, "error", err)
		return
	}

	// Event delivery is best effort and never fails the operation.
	if err := s.events.Publish(ctx, msg); err != nil {
		s.cfg.Log.Error("Failed to publish booking event", "event_type", eventType, "error", err)
	}
}
