package projector

import (
	"context"
	"sync"

	"labreserve/pkg/logger"
	"labreserve/pkg/model"
)

// EquipmentSource streams full snapshots of the equipment catalog.
type EquipmentSource interface {
	Watch(ctx context.Context) (<-chan []*model.Equipment, error)
}

// BookingSource streams full snapshots of the shared calendar and of a
// single user's private bookings.
type BookingSource interface {
	WatchPublic(ctx context.Context) (<-chan []*model.Booking, error)
	WatchUser(ctx context.Context, userID string) (<-chan []*model.Booking, error)
}

// Snapshot is the complete read model for one browser session. Every
// update replaces the whole thing; consumers never patch.
type Snapshot struct {
	// EquipmentList is the catalog sorted by name.
	EquipmentList []*model.Equipment `json:"equipment"`

	// Calendar holds every public booking, cancelled entries included.
	Calendar []*model.Booking `json:"calendar"`

	// Mine holds the session user's bookings sorted by start date. Empty
	// when no identity is attached.
	Mine []*model.Booking `json:"mine"`
}

// Projector maintains the per-session read model. It subscribes to the
// catalog and the shared calendar at Start, and to a user's private
// bookings once an identity is attached. Each source notification
// produces a fresh merged Snapshot on Updates; a slow consumer only ever
// sees the latest one.
type Projector struct {
	equipment EquipmentSource
	bookings  BookingSource
	log       *logger.Logger

	mu         sync.Mutex
	cancel     context.CancelFunc
	userCancel context.CancelFunc
	sessionCtx context.Context

	catalog  []*model.Equipment
	calendar []*model.Booking
	mine     []*model.Booking

	wg     sync.WaitGroup
	userWG sync.WaitGroup
	out    chan *Snapshot

	started bool
	closed  bool
}

func NewProjector(equipment EquipmentSource, bookings BookingSource, log *logger.Logger) *Projector {
	return &Projector{
		equipment: equipment,
		bookings:  bookings,
		log:       log,
		out:       make(chan *Snapshot, 1),
		catalog:   []*model.Equipment{},
		calendar:  []*model.Booking{},
		mine:      []*model.Booking{},
	}
}

// Start opens the shared subscriptions. The projector lives until Close
// or until ctx is cancelled.
func (p *Projector) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return nil
	}

	sessionCtx, cancel := context.WithCancel(ctx)

	equipmentCh, err := p.equipment.Watch(sessionCtx)
	if err != nil {
		cancel()
		return err
	}

	calendarCh, err := p.bookings.WatchPublic(sessionCtx)
	if err != nil {
		cancel()
		return err
	}

	p.sessionCtx = sessionCtx
	p.cancel = cancel
	p.started = true

	p.wg.Add(2)
	go p.consumeEquipment(equipmentCh)
	go p.consumeCalendar(calendarCh)

	return nil
}

// SetIdentity attaches or replaces the session user. The previous
// private subscription, if any, is torn down first. A nil identity
// detaches the user and empties the Mine view.
func (p *Projector) SetIdentity(identity *model.Identity) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started || p.closed {
		return nil
	}

	if p.userCancel != nil {
		p.userCancel()
		p.userCancel = nil
	}
	p.mu.Unlock()
	p.userWG.Wait()
	p.mu.Lock()

	if p.closed {
		return nil
	}

	p.mine = []*model.Booking{}

	if identity == nil {
		p.publishLocked()
		return nil
	}

	userCtx, cancel := context.WithCancel(p.sessionCtx)
	mineCh, err := p.bookings.WatchUser(userCtx, identity.UserID)
	if err != nil {
		cancel()
		return err
	}

	p.userCancel = cancel
	p.userWG.Add(1)
	go p.consumeMine(mineCh)

	p.publishLocked()
	return nil
}

// Updates delivers merged snapshots. The channel closes after Close.
func (p *Projector) Updates() <-chan *Snapshot {
	return p.out
}

// Close releases every subscription and closes the update channel.
// Closing twice is safe.
func (p *Projector) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	cancel := p.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.userWG.Wait()
	p.wg.Wait()

	// Drop any undelivered snapshot so receivers observe the close
	// immediately instead of one final stale value.
	select {
	case <-p.out:
	default:
	}
	close(p.out)
}

func (p *Projector) consumeEquipment(ch <-chan []*model.Equipment) {
	defer p.wg.Done()
	for items := range ch {
		p.mu.Lock()
		p.catalog = items
		p.publishLocked()
		p.mu.Unlock()
	}
}

func (p *Projector) consumeCalendar(ch <-chan []*model.Booking) {
	defer p.wg.Done()
	for items := range ch {
		p.mu.Lock()
		p.calendar = items
		p.publishLocked()
		p.mu.Unlock()
	}
}

func (p *Projector) consumeMine(ch <-chan []*model.Booking) {
	defer p.userWG.Done()
	for items := range ch {
		p.mu.Lock()
		p.mine = items
		p.publishLocked()
		p.mu.Unlock()
	}
}

// publishLocked replaces any undelivered snapshot with the current
// state. Callers hold p.mu.
func (p *Projector) publishLocked() {
	if p.closed {
		return
	}

	snap := &Snapshot{
		EquipmentList: p.catalog,
		Calendar:      p.calendar,
		Mine:          p.mine,
	}

	select {
	case <-p.out:
	default:
	}

	select {
	case p.out <- snap:
	default:
	}
}
