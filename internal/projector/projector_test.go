package projector

import (
	"context"
	"testing"
	"time"

	"labreserve/pkg/logger"
	"labreserve/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEquipmentSource struct {
	ch chan []*model.Equipment
}

func (f *fakeEquipmentSource) Watch(ctx context.Context) (<-chan []*model.Equipment, error) {
	go func() {
		<-ctx.Done()
		close(f.ch)
	}()
	return f.ch, nil
}

type fakeBookingSource struct {
	public chan []*model.Booking
	user   chan []*model.Booking

	watchedUser string
}

func (f *fakeBookingSource) WatchPublic(ctx context.Context) (<-chan []*model.Booking, error) {
	go func() {
		<-ctx.Done()
		close(f.public)
	}()
	return f.public, nil
}

func (f *fakeBookingSource) WatchUser(ctx context.Context, userID string) (<-chan []*model.Booking, error) {
	f.watchedUser = userID
	go func() {
		<-ctx.Done()
		close(f.user)
	}()
	return f.user, nil
}

func newFakes() (*fakeEquipmentSource, *fakeBookingSource) {
	return &fakeEquipmentSource{ch: make(chan []*model.Equipment)},
		&fakeBookingSource{
			public: make(chan []*model.Booking),
			user:   make(chan []*model.Booking),
		}
}

// awaitSnapshot reads updates until one satisfies the predicate.
// Intermediate snapshots are expected: publication is asynchronous with
// respect to the fake source sends.
func awaitSnapshot(t *testing.T, p *Projector, match func(*Snapshot) bool) *Snapshot {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap, ok := <-p.Updates():
			require.True(t, ok, "updates channel closed early")
			if match(snap) {
				return snap
			}
		case <-deadline:
			t.Fatal("timed out waiting for snapshot")
			return nil
		}
	}
}

func TestProjectorMergesSources(t *testing.T) {
	equipment, bookings := newFakes()
	p := NewProjector(equipment, bookings, logger.Discard())
	defer p.Close()

	require.NoError(t, p.Start(context.Background()))

	equipment.ch <- []*model.Equipment{{Name: "Oscilloscope"}}
	snap := awaitSnapshot(t, p, func(s *Snapshot) bool { return len(s.EquipmentList) == 1 })
	assert.Equal(t, "Oscilloscope", snap.EquipmentList[0].Name)
	assert.Empty(t, snap.Calendar)
	assert.Empty(t, snap.Mine)

	bookings.public <- []*model.Booking{{EquipmentID: "eq-1", Status: model.StatusBooked}}
	snap = awaitSnapshot(t, p, func(s *Snapshot) bool { return len(s.Calendar) == 1 })
	assert.Equal(t, "eq-1", snap.Calendar[0].EquipmentID)
	// Earlier state is carried forward.
	assert.Len(t, snap.EquipmentList, 1)
}

func TestProjectorSlowConsumerSeesLatestOnly(t *testing.T) {
	equipment, bookings := newFakes()
	p := NewProjector(equipment, bookings, logger.Discard())
	defer p.Close()

	require.NoError(t, p.Start(context.Background()))

	equipment.ch <- []*model.Equipment{{Name: "stale"}}
	equipment.ch <- []*model.Equipment{{Name: "fresh"}}

	snap := awaitSnapshot(t, p, func(s *Snapshot) bool {
		return len(s.EquipmentList) == 1 && s.EquipmentList[0].Name == "fresh"
	})
	assert.Equal(t, "fresh", snap.EquipmentList[0].Name)
}

func TestProjectorSetIdentity(t *testing.T) {
	equipment, bookings := newFakes()
	p := NewProjector(equipment, bookings, logger.Discard())
	defer p.Close()

	require.NoError(t, p.Start(context.Background()))
	require.NoError(t, p.SetIdentity(&model.Identity{UserID: "user-1"}))
	assert.Equal(t, "user-1", bookings.watchedUser)

	bookings.user <- []*model.Booking{{UserID: "user-1", Status: model.StatusBooked}}
	snap := awaitSnapshot(t, p, func(s *Snapshot) bool { return len(s.Mine) == 1 })
	assert.Equal(t, "user-1", snap.Mine[0].UserID)

	// Detaching empties the private view without touching the rest.
	require.NoError(t, p.SetIdentity(nil))
	snap = awaitSnapshot(t, p, func(s *Snapshot) bool { return len(s.Mine) == 0 })
	assert.Empty(t, snap.Mine)
}

func TestProjectorCloseReleasesSubscriptions(t *testing.T) {
	equipment, bookings := newFakes()
	p := NewProjector(equipment, bookings, logger.Discard())

	require.NoError(t, p.Start(context.Background()))
	require.NoError(t, p.SetIdentity(&model.Identity{UserID: "user-1"}))

	p.Close()
	p.Close()

	select {
	case _, ok := <-p.Updates():
		assert.False(t, ok, "updates channel should be closed")
	case <-time.After(2 * time.Second):
		t.Fatal("updates channel not closed")
	}
}
