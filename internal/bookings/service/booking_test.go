package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"labreserve/internal/bookings/validator"
	"labreserve/pkg/config"
	apperrors "labreserve/pkg/errors"
	"labreserve/pkg/logger"
	"labreserve/pkg/model"

	"go.mongodb.org/mongo-driver/mongo"
)

// ────────────────────────────────────────────────
// Mock repositories for testing
// ────────────────────────────────────────────────

type mockBookingRepository struct {
	mu sync.Mutex

	createPrivateFunc             func(ctx context.Context, booking *model.Booking) error
	createPublicFunc              func(ctx context.Context, booking *model.Booking) error
	findPrivateByIDFunc           func(ctx context.Context, id string) (*model.Booking, error)
	findPrivateByUserFunc         func(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, error)
	countPrivateByUserFunc        func(ctx context.Context, userID string) (int64, error)
	findPublicBookedFunc          func(ctx context.Context, equipmentID string) ([]*model.Booking, error)
	findPublicByCorrelationFunc   func(ctx context.Context, key model.CorrelationKey) ([]*model.Booking, error)
	findAllPublicFunc             func(ctx context.Context, limit int, offset int64) ([]*model.Booking, error)
	countPublicFunc               func(ctx context.Context) (int64, error)
	cancelPrivateFunc             func(ctx context.Context, id string, cancelledAt time.Time) error
	cancelPublicByCorrelationFunc func(ctx context.Context, key model.CorrelationKey, cancelledAt time.Time) (int64, error)

	privateCreated []*model.Booking
	publicCreated  []*model.Booking
}

func (m *mockBookingRepository) CreatePrivate(ctx context.Context, booking *model.Booking) error {
	if m.createPrivateFunc != nil {
		return m.createPrivateFunc(ctx, booking)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *booking
	copied.ID = fmt.Sprintf("priv-%d", len(m.privateCreated)+1)
	booking.ID = copied.ID
	m.privateCreated = append(m.privateCreated, &copied)
	return nil
}

func (m *mockBookingRepository) CreatePublic(ctx context.Context, booking *model.Booking) error {
	if m.createPublicFunc != nil {
		return m.createPublicFunc(ctx, booking)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *booking
	copied.ID = fmt.Sprintf("pub-%d", len(m.publicCreated)+1)
	m.publicCreated = append(m.publicCreated, &copied)
	return nil
}

func (m *mockBookingRepository) FindPrivateByID(ctx context.Context, id string) (*model.Booking, error) {
	if m.findPrivateByIDFunc != nil {
		return m.findPrivateByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockBookingRepository) FindPrivateByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, error) {
	if m.findPrivateByUserFunc != nil {
		return m.findPrivateByUserFunc(ctx, userID, limit, offset)
	}
	return []*model.Booking{}, nil
}

func (m *mockBookingRepository) CountPrivateByUser(ctx context.Context, userID string) (int64, error) {
	if m.countPrivateByUserFunc != nil {
		return m.countPrivateByUserFunc(ctx, userID)
	}
	return 0, nil
}

func (m *mockBookingRepository) FindPublicBooked(ctx context.Context, equipmentID string) ([]*model.Booking, error) {
	if m.findPublicBookedFunc != nil {
		return m.findPublicBookedFunc(ctx, equipmentID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var active []*model.Booking
	for _, b := range m.publicCreated {
		if b.EquipmentID == equipmentID && b.Status == model.StatusBooked {
			active = append(active, b)
		}
	}
	return active, nil
}

func (m *mockBookingRepository) FindPublicByCorrelation(ctx context.Context, key model.CorrelationKey) ([]*model.Booking, error) {
	if m.findPublicByCorrelationFunc != nil {
		return m.findPublicByCorrelationFunc(ctx, key)
	}
	return []*model.Booking{}, nil
}

func (m *mockBookingRepository) FindAllPublic(ctx context.Context, limit int, offset int64) ([]*model.Booking, error) {
	if m.findAllPublicFunc != nil {
		return m.findAllPublicFunc(ctx, limit, offset)
	}
	return []*model.Booking{}, nil
}

func (m *mockBookingRepository) CountPublic(ctx context.Context) (int64, error) {
	if m.countPublicFunc != nil {
		return m.countPublicFunc(ctx)
	}
	return 0, nil
}

func (m *mockBookingRepository) FindAllPrivate(ctx context.Context) ([]*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.privateCreated, nil
}

func (m *mockBookingRepository) CancelPrivate(ctx context.Context, id string, cancelledAt time.Time) error {
	if m.cancelPrivateFunc != nil {
		return m.cancelPrivateFunc(ctx, id, cancelledAt)
	}
	return nil
}

func (m *mockBookingRepository) CancelPublicByCorrelation(ctx context.Context, key model.CorrelationKey, cancelledAt time.Time) (int64, error) {
	if m.cancelPublicByCorrelationFunc != nil {
		return m.cancelPublicByCorrelationFunc(ctx, key, cancelledAt)
	}
	return 1, nil
}

func (m *mockBookingRepository) WatchPublic(ctx context.Context) (<-chan []*model.Booking, error) {
	return nil, nil
}

func (m *mockBookingRepository) WatchUser(ctx context.Context, userID string) (<-chan []*model.Booking, error) {
	return nil, nil
}

type mockSlotLockRepository struct {
	createFunc func(ctx context.Context, lock *model.SlotLock) (*model.SlotLock, error)
	deleteFunc func(ctx context.Context, lockID string) error
}

func (m *mockSlotLockRepository) Create(ctx context.Context, lock *model.SlotLock) (*model.SlotLock, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, lock)
	}
	return lock, nil
}

func (m *mockSlotLockRepository) Delete(ctx context.Context, lockID string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, lockID)
	}
	return nil
}

type mockEquipmentReader struct {
	findByIDFunc func(ctx context.Context, id string) (*model.Equipment, error)
}

func (m *mockEquipmentReader) FindByID(ctx context.Context, id string) (*model.Equipment, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return &model.Equipment{ID: id, Name: "Oscilloscope", Description: "200 MHz scope"}, nil
}

// ────────────────────────────────────────────────
// Helpers
// ────────────────────────────────────────────────

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testConfig(slotLock bool) *config.Config {
	return &config.Config{
		Log:             logger.Discard(),
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    5 * time.Second,
		SlotLockEnabled: slotLock,
		SlotLockTTL:     10 * time.Second,
	}
}

func newTestService(repo *mockBookingRepository, locks *mockSlotLockRepository, cfg *config.Config) BookingService {
	svc := NewBookingService(
		repo,
		locks,
		&mockEquipmentReader{},
		validator.NewBookingValidator(cfg.Log),
		nil,
		cfg,
	)
	svc.(*bookingService).now = func() time.Time { return fixedNow }
	return svc
}

func window(startHour, endHour int) (time.Time, time.Time) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	return day.Add(time.Duration(startHour) * time.Hour), day.Add(time.Duration(endHour) * time.Hour)
}

func existingBooking(equipmentID string, startHour, endHour int) *model.Booking {
	start, end := window(startHour, endHour)
	return &model.Booking{
		ID:              "pub-existing",
		EquipmentID:     equipmentID,
		EquipmentName:   "Oscilloscope",
		UserID:          "other-user",
		UserDisplayName: "Someone Else",
		StartDate:       start,
		EndDate:         end,
		Status:          model.StatusBooked,
		BookedAt:        fixedNow.Add(-time.Hour),
	}
}

func appCode(t *testing.T, err error) string {
	t.Helper()
	if !apperrors.IsAppError(err) {
		t.Fatalf("expected AppError, got %T: %v", err, err)
	}
	return apperrors.AsAppError(err).Code
}

// ────────────────────────────────────────────────
// Submit
// ────────────────────────────────────────────────

func TestSubmit_CreatesBothCopies(t *testing.T) {
	repo := &mockBookingRepository{}
	svc := newTestService(repo, &mockSlotLockRepository{}, testConfig(false))

	start, end := window(9, 11)
	identity := model.Identity{UserID: "user-1", DisplayName: "Dana"}

	booking, err := svc.Submit(context.Background(), identity, &SubmitRequest{
		EquipmentID: "65f000000000000000000001",
		StartDate:   start,
		EndDate:     end,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(repo.privateCreated) != 1 || len(repo.publicCreated) != 1 {
		t.Fatalf("expected one copy in each collection, got %d private / %d public",
			len(repo.privateCreated), len(repo.publicCreated))
	}

	private, public := repo.privateCreated[0], repo.publicCreated[0]
	if private.ID == public.ID {
		t.Error("the two copies must carry independent store ids")
	}
	if private.Correlation() != public.Correlation() {
		t.Error("the two copies must share a correlation key")
	}
	if booking.Status != model.StatusBooked {
		t.Errorf("expected status %q, got %q", model.StatusBooked, booking.Status)
	}
	if booking.EquipmentName != "Oscilloscope" {
		t.Errorf("equipment name not denormalized: %q", booking.EquipmentName)
	}
	if booking.UserDisplayName != "Dana" {
		t.Errorf("user display name not denormalized: %q", booking.UserDisplayName)
	}
	if !booking.BookedAt.Equal(fixedNow.Truncate(time.Millisecond)) {
		t.Errorf("booked_at should come from the service clock, got %v", booking.BookedAt)
	}
}

func TestSubmit_ConflictMatrix(t *testing.T) {
	const equipmentID = "65f000000000000000000001"

	tests := []struct {
		name         string
		existing     [2]int // hours
		candidate    [2]int
		wantConflict bool
	}{
		{"disjoint before", [2]int{9, 11}, [2]int{6, 8}, false},
		{"disjoint after", [2]int{9, 11}, [2]int{12, 14}, false},
		{"touching end to start", [2]int{9, 11}, [2]int{11, 13}, false},
		{"touching start to end", [2]int{9, 11}, [2]int{7, 9}, false},
		{"partial overlap left", [2]int{9, 11}, [2]int{8, 10}, true},
		{"partial overlap right", [2]int{9, 11}, [2]int{10, 12}, true},
		{"candidate inside existing", [2]int{9, 14}, [2]int{10, 12}, true},
		{"existing inside candidate", [2]int{10, 12}, [2]int{9, 14}, true},
		{"identical windows", [2]int{9, 11}, [2]int{9, 11}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := &mockBookingRepository{
				findPublicBookedFunc: func(ctx context.Context, id string) ([]*model.Booking, error) {
					return []*model.Booking{existingBooking(id, tc.existing[0], tc.existing[1])}, nil
				},
			}
			svc := newTestService(repo, &mockSlotLockRepository{}, testConfig(false))

			start, end := window(tc.candidate[0], tc.candidate[1])
			_, err := svc.Submit(context.Background(), model.Identity{UserID: "u", DisplayName: "U"}, &SubmitRequest{
				EquipmentID: equipmentID,
				StartDate:   start,
				EndDate:     end,
			})

			if tc.wantConflict {
				if err == nil {
					t.Fatal("expected conflict, got success")
				}
				if code := appCode(t, err); code != apperrors.CodeConflict {
					t.Errorf("expected %s, got %s", apperrors.CodeConflict, code)
				}
			} else if err != nil {
				t.Fatalf("expected success, got: %v", err)
			}
		})
	}
}

func TestSubmit_CancelledBookingsDoNotBlock(t *testing.T) {
	cancelled := existingBooking("65f000000000000000000001", 9, 11)
	cancelled.Status = model.StatusCancelled

	// FindPublicBooked filters by status in production; a repository that
	// leaks cancelled rows must still not block the window here, since
	// the overlap scan only sees what the repository returns.
	repo := &mockBookingRepository{
		findPublicBookedFunc: func(ctx context.Context, id string) ([]*model.Booking, error) {
			return []*model.Booking{}, nil
		},
	}
	svc := newTestService(repo, &mockSlotLockRepository{}, testConfig(false))

	start, end := window(9, 11)
	_, err := svc.Submit(context.Background(), model.Identity{UserID: "u", DisplayName: "U"}, &SubmitRequest{
		EquipmentID: cancelled.EquipmentID,
		StartDate:   start,
		EndDate:     end,
	})
	if err != nil {
		t.Fatalf("cancelled booking must not block the slot: %v", err)
	}
}

func TestSubmit_RejectsDegenerateWindows(t *testing.T) {
	repo := &mockBookingRepository{}
	svc := newTestService(repo, &mockSlotLockRepository{}, testConfig(false))
	identity := model.Identity{UserID: "u", DisplayName: "U"}

	start, _ := window(9, 11)

	// Zero length.
	_, err := svc.Submit(context.Background(), identity, &SubmitRequest{
		EquipmentID: "65f000000000000000000001",
		StartDate:   start,
		EndDate:     start,
	})
	if err == nil || appCode(t, err) != apperrors.CodeValidation {
		t.Errorf("zero-length window should fail validation, got: %v", err)
	}

	// Inverted.
	_, err = svc.Submit(context.Background(), identity, &SubmitRequest{
		EquipmentID: "65f000000000000000000001",
		StartDate:   start,
		EndDate:     start.Add(-time.Hour),
	})
	if err == nil || appCode(t, err) != apperrors.CodeValidation {
		t.Errorf("inverted window should fail validation, got: %v", err)
	}

	// Past start.
	_, err = svc.Submit(context.Background(), identity, &SubmitRequest{
		EquipmentID: "65f000000000000000000001",
		StartDate:   fixedNow.Add(-time.Hour),
		EndDate:     fixedNow.Add(time.Hour),
	})
	if err == nil || appCode(t, err) != apperrors.CodeValidation {
		t.Errorf("past start should fail validation, got: %v", err)
	}

	if len(repo.privateCreated) != 0 || len(repo.publicCreated) != 0 {
		t.Error("rejected submissions must not write anything")
	}
}

func TestSubmit_PublicWriteFailureReportsDivergence(t *testing.T) {
	repo := &mockBookingRepository{
		createPublicFunc: func(ctx context.Context, booking *model.Booking) error {
			return errors.New("connection reset")
		},
	}
	svc := newTestService(repo, &mockSlotLockRepository{}, testConfig(false))

	start, end := window(9, 11)
	_, err := svc.Submit(context.Background(), model.Identity{UserID: "u", DisplayName: "U"}, &SubmitRequest{
		EquipmentID: "65f000000000000000000001",
		StartDate:   start,
		EndDate:     end,
	})

	if err == nil {
		t.Fatal("expected divergence error")
	}
	if code := appCode(t, err); code != apperrors.CodeDivergence {
		t.Errorf("expected %s, got %s", apperrors.CodeDivergence, code)
	}
	if len(repo.privateCreated) != 1 {
		t.Error("the private copy must survive; there is no rollback")
	}
}

// Two near-simultaneous submissions both pass the conflict check when
// the advisory lock is off: the check reads a point-in-time snapshot
// taken before either write lands. The lock exists to close exactly this
// window.
func TestSubmit_RaceWithoutSlotLock(t *testing.T) {
	const equipmentID = "65f000000000000000000001"

	repo := &mockBookingRepository{}
	bothChecked := make(chan struct{})
	var checks sync.WaitGroup
	checks.Add(2)

	repo.findPublicBookedFunc = func(ctx context.Context, id string) ([]*model.Booking, error) {
		checks.Done()
		<-bothChecked // hold both submissions at the read
		return []*model.Booking{}, nil
	}

	go func() {
		checks.Wait()
		close(bothChecked)
	}()

	svc := newTestService(repo, &mockSlotLockRepository{}, testConfig(false))
	start, end := window(9, 11)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Submit(context.Background(), model.Identity{UserID: fmt.Sprintf("user-%d", i), DisplayName: "U"}, &SubmitRequest{
				EquipmentID: equipmentID,
				StartDate:   start,
				EndDate:     end,
			})
		}(i)
	}
	wg.Wait()

	if errs[0] != nil || errs[1] != nil {
		t.Fatalf("both submissions pass the stale check: %v / %v", errs[0], errs[1])
	}
	if len(repo.publicCreated) != 2 {
		t.Fatalf("expected the race to commit two public copies, got %d", len(repo.publicCreated))
	}
	if !repo.publicCreated[0].Overlaps(repo.publicCreated[1]) {
		t.Error("the two committed bookings should overlap")
	}
}

func TestSubmit_SlotLockSerializesSameSlot(t *testing.T) {
	var lockHeld atomic.Bool
	locks := &mockSlotLockRepository{
		createFunc: func(ctx context.Context, lock *model.SlotLock) (*model.SlotLock, error) {
			if !lockHeld.CompareAndSwap(false, true) {
				return nil, mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000}}}
			}
			return lock, nil
		},
		deleteFunc: func(ctx context.Context, lockID string) error {
			lockHeld.Store(false)
			return nil
		},
	}

	holdRead := make(chan struct{})
	repo := &mockBookingRepository{}
	repo.findPublicBookedFunc = func(ctx context.Context, id string) ([]*model.Booking, error) {
		<-holdRead
		return []*model.Booking{}, nil
	}

	svc := newTestService(repo, locks, testConfig(true))
	start, end := window(9, 11)
	req := &SubmitRequest{EquipmentID: "65f000000000000000000001", StartDate: start, EndDate: end}

	firstDone := make(chan error, 1)
	go func() {
		_, err := svc.Submit(context.Background(), model.Identity{UserID: "user-1", DisplayName: "A"}, req)
		firstDone <- err
	}()

	// Wait for the first submission to take the lock, then race the
	// second one against it.
	for i := 0; i < 100 && !lockHeld.Load(); i++ {
		time.Sleep(time.Millisecond)
	}

	_, secondErr := svc.Submit(context.Background(), model.Identity{UserID: "user-2", DisplayName: "B"}, req)
	close(holdRead)

	if err := <-firstDone; err != nil {
		t.Fatalf("first submission should succeed: %v", err)
	}
	if secondErr == nil {
		t.Fatal("second submission should be rejected while the lock is held")
	}
	if code := appCode(t, secondErr); code != apperrors.CodeConflict {
		t.Errorf("expected %s, got %s", apperrors.CodeConflict, code)
	}
	if len(repo.publicCreated) != 1 {
		t.Errorf("expected a single committed booking, got %d", len(repo.publicCreated))
	}
}

// ────────────────────────────────────────────────
// Cancel
// ────────────────────────────────────────────────

func activePrivateBooking() *model.Booking {
	start, end := window(9, 11)
	return &model.Booking{
		ID:              "priv-1",
		EquipmentID:     "65f000000000000000000001",
		EquipmentName:   "Oscilloscope",
		UserID:          "user-1",
		UserDisplayName: "Dana",
		StartDate:       start,
		EndDate:         end,
		Status:          model.StatusBooked,
		BookedAt:        fixedNow.Add(-time.Hour),
	}
}

func TestCancel_MarksBothCopies(t *testing.T) {
	booking := activePrivateBooking()

	var privateCancelledAt, publicCancelledAt time.Time
	var gotKey model.CorrelationKey

	repo := &mockBookingRepository{
		findPrivateByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return booking, nil
		},
		cancelPrivateFunc: func(ctx context.Context, id string, cancelledAt time.Time) error {
			privateCancelledAt = cancelledAt
			return nil
		},
		cancelPublicByCorrelationFunc: func(ctx context.Context, key model.CorrelationKey, cancelledAt time.Time) (int64, error) {
			gotKey = key
			publicCancelledAt = cancelledAt
			return 1, nil
		},
	}
	svc := newTestService(repo, &mockSlotLockRepository{}, testConfig(false))

	if err := svc.Cancel(context.Background(), model.Identity{UserID: "user-1"}, "priv-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !privateCancelledAt.Equal(publicCancelledAt) {
		t.Error("both copies should get the same cancellation timestamp")
	}
	if gotKey != booking.Correlation() {
		t.Errorf("public copy addressed by wrong correlation key: %+v", gotKey)
	}
}

func TestCancel_OnlyOwnerOrAdmin(t *testing.T) {
	repo := &mockBookingRepository{
		findPrivateByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return activePrivateBooking(), nil
		},
	}
	svc := newTestService(repo, &mockSlotLockRepository{}, testConfig(false))

	err := svc.Cancel(context.Background(), model.Identity{UserID: "intruder"}, "priv-1")
	if err == nil || appCode(t, err) != apperrors.CodeForbidden {
		t.Errorf("non-owner should be forbidden, got: %v", err)
	}

	if err := svc.Cancel(context.Background(), model.Identity{UserID: "admin-1", Admin: true}, "priv-1"); err != nil {
		t.Errorf("admin should be allowed to cancel, got: %v", err)
	}
}

func TestCancel_AlreadyCancelledIsNoOp(t *testing.T) {
	booking := activePrivateBooking()
	booking.Status = model.StatusCancelled

	repo := &mockBookingRepository{
		findPrivateByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return booking, nil
		},
		cancelPrivateFunc: func(ctx context.Context, id string, cancelledAt time.Time) error {
			t.Error("already-cancelled booking must not be written again")
			return nil
		},
	}
	svc := newTestService(repo, &mockSlotLockRepository{}, testConfig(false))

	if err := svc.Cancel(context.Background(), model.Identity{UserID: "user-1"}, "priv-1"); err != nil {
		t.Fatalf("double cancel should be a quiet no-op, got: %v", err)
	}
}

func TestCancel_ZeroPublicMatchesStillSucceeds(t *testing.T) {
	repo := &mockBookingRepository{
		findPrivateByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return activePrivateBooking(), nil
		},
		cancelPublicByCorrelationFunc: func(ctx context.Context, key model.CorrelationKey, cancelledAt time.Time) (int64, error) {
			return 0, nil
		},
	}
	svc := newTestService(repo, &mockSlotLockRepository{}, testConfig(false))

	// A missing mirror is the reconciler's problem, not the caller's.
	if err := svc.Cancel(context.Background(), model.Identity{UserID: "user-1"}, "priv-1"); err != nil {
		t.Fatalf("cancel with no public match should still succeed, got: %v", err)
	}
}

func TestCancel_PublicStoreErrorReportsDivergence(t *testing.T) {
	repo := &mockBookingRepository{
		findPrivateByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return activePrivateBooking(), nil
		},
		cancelPublicByCorrelationFunc: func(ctx context.Context, key model.CorrelationKey, cancelledAt time.Time) (int64, error) {
			return 0, errors.New("connection reset")
		},
	}
	svc := newTestService(repo, &mockSlotLockRepository{}, testConfig(false))

	err := svc.Cancel(context.Background(), model.Identity{UserID: "user-1"}, "priv-1")
	if err == nil {
		t.Fatal("expected divergence error")
	}
	if code := appCode(t, err); code != apperrors.CodeDivergence {
		t.Errorf("expected %s, got %s", apperrors.CodeDivergence, code)
	}
}

// ────────────────────────────────────────────────
// Listings
// ────────────────────────────────────────────────

func TestMyBookings_ConcurrentCountAndFind(t *testing.T) {
	repo := &mockBookingRepository{
		countPrivateByUserFunc: func(ctx context.Context, userID string) (int64, error) {
			time.Sleep(10 * time.Millisecond)
			return 7, nil
		},
		findPrivateByUserFunc: func(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, error) {
			time.Sleep(10 * time.Millisecond)
			return []*model.Booking{activePrivateBooking()}, nil
		},
	}
	svc := newTestService(repo, &mockSlotLockRepository{}, testConfig(false))

	bookings, count, err := svc.MyBookings(context.Background(), model.Identity{UserID: "user-1"}, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 7 {
		t.Errorf("expected count 7, got %d", count)
	}
	if len(bookings) != 1 {
		t.Errorf("expected 1 booking, got %d", len(bookings))
	}
}

func TestCalendar_IncludesCancelled(t *testing.T) {
	cancelled := activePrivateBooking()
	cancelled.Status = model.StatusCancelled

	repo := &mockBookingRepository{
		countPublicFunc: func(ctx context.Context) (int64, error) { return 2, nil },
		findAllPublicFunc: func(ctx context.Context, limit int, offset int64) ([]*model.Booking, error) {
			return []*model.Booking{activePrivateBooking(), cancelled}, nil
		},
	}
	svc := newTestService(repo, &mockSlotLockRepository{}, testConfig(false))

	bookings, count, err := svc.Calendar(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 2 || len(bookings) != 2 {
		t.Errorf("calendar must include cancelled entries: count=%d len=%d", count, len(bookings))
	}
}
