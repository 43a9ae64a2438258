package reconcile

import (
	"context"
	"time"

	"labreserve/pkg/config"
	"labreserve/pkg/kafka"
	"labreserve/pkg/model"

	"github.com/robfig/cron/v3"
)

// Store is the slice of the booking store the reconciler sweeps. The
// private collection is the source of truth; public mirrors are repaired
// to match it.
type Store interface {
	FindAllPrivate(ctx context.Context) ([]*model.Booking, error)
	FindPublicByCorrelation(ctx context.Context, key model.CorrelationKey) ([]*model.Booking, error)
	CreatePublic(ctx context.Context, booking *model.Booking) error
	CancelPublicByCorrelation(ctx context.Context, key model.CorrelationKey, cancelledAt time.Time) (int64, error)
}

// EventPublisher pushes repair events onto the event topic.
type EventPublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

// Report summarizes one reconciliation sweep.
type Report struct {
	Scanned           int
	MissingMirrors    int
	PropagatedCancels int
	Failures          int
}

// Reconciler restores the two-copies invariant that the non-transactional
// dual write can break: every private booking must have a public mirror
// with a matching status. It runs on a cron schedule and can also be
// invoked directly.
type Reconciler struct {
	store  Store
	events EventPublisher
	cfg    *config.Config
	cron   *cron.Cron
	now    func() time.Time
}

func NewReconciler(store Store, events EventPublisher, cfg *config.Config) *Reconciler {
	return &Reconciler{
		store:  store,
		events: events,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Start schedules periodic sweeps. It is a no-op when reconciliation is
// disabled by configuration.
func (r *Reconciler) Start() error {
	if !r.cfg.ReconcileEnabled {
		r.cfg.Log.Info("Reconciler disabled by configuration")
		return nil
	}

	r.cron = cron.New()
	_, err := r.cron.AddFunc(r.cfg.ReconcileSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.cfg.WriteTimeout*10)
		defer cancel()

		report, err := r.Run(ctx)
		if err != nil {
			r.cfg.Log.Error("Reconciliation sweep failed", "error", err)
			return
		}
		if report.MissingMirrors > 0 || report.PropagatedCancels > 0 || report.Failures > 0 {
			r.cfg.Log.Warn("Reconciliation repaired divergence",
				"scanned", report.Scanned,
				"missing_mirrors", report.MissingMirrors,
				"propagated_cancels", report.PropagatedCancels,
				"failures", report.Failures,
			)
		}
	})
	if err != nil {
		return err
	}

	r.cron.Start()
	r.cfg.Log.Info("Reconciler started", "schedule", r.cfg.ReconcileSchedule)
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (r *Reconciler) Stop() {
	if r.cron == nil {
		return
	}
	<-r.cron.Stop().Done()
}

// Run performs one sweep over every private booking.
func (r *Reconciler) Run(ctx context.Context) (Report, error) {
	var report Report

	private, err := r.store.FindAllPrivate(ctx)
	if err != nil {
		return report, err
	}
	report.Scanned = len(private)

	for _, booking := range private {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		r.reconcileOne(ctx, booking, &report)
	}

	return report, nil
}

func (r *Reconciler) reconcileOne(ctx context.Context, private *model.Booking, report *Report) {
	key := private.Correlation()

	mirrors, err := r.store.FindPublicByCorrelation(ctx, key)
	if err != nil {
		report.Failures++
		r.cfg.Log.Error("Failed to look up public mirror",
			"booking_id", private.ID,
			"equipment_id", key.EquipmentID,
			"error", err,
		)
		return
	}

	switch {
	case len(mirrors) == 0:
		r.recreateMirror(ctx, private, report)

	case len(mirrors) > 1:
		r.cfg.Log.Warn("Duplicate public mirrors for one booking",
			"booking_id", private.ID,
			"equipment_id", key.EquipmentID,
			"mirrors", len(mirrors),
		)
		fallthrough

	default:
		if private.Status == model.StatusCancelled && anyBooked(mirrors) {
			r.propagateCancel(ctx, private, report)
		}
	}
}

// recreateMirror rebuilds a missing public copy from the private one.
// The store assigns the mirror its own id.
func (r *Reconciler) recreateMirror(ctx context.Context, private *model.Booking, report *Report) {
	mirror := *private
	mirror.ID = ""

	if err := r.store.CreatePublic(ctx, &mirror); err != nil {
		report.Failures++
		r.cfg.Log.Error("Failed to recreate public mirror", "booking_id", private.ID, "error", err)
		return
	}

	report.MissingMirrors++
	r.publishRepair(ctx, private)
	r.cfg.Log.Info("Recreated missing public mirror",
		"booking_id", private.ID,
		"equipment_id", private.EquipmentID,
		"status", private.Status,
	)
}

func (r *Reconciler) propagateCancel(ctx context.Context, private *model.Booking, report *Report) {
	cancelledAt := r.now().UTC()
	if private.CancelledAt != nil {
		cancelledAt = *private.CancelledAt
	}

	matched, err := r.store.CancelPublicByCorrelation(ctx, private.Correlation(), cancelledAt)
	if err != nil {
		report.Failures++
		r.cfg.Log.Error("Failed to propagate cancellation", "booking_id", private.ID, "error", err)
		return
	}

	report.PropagatedCancels++
	r.publishRepair(ctx, private)
	r.cfg.Log.Info("Propagated cancellation to public mirror",
		"booking_id", private.ID,
		"matched_public", matched,
	)
}

func (r *Reconciler) publishRepair(ctx context.Context, booking *model.Booking) {
	if r.events == nil {
		return
	}

	msg, err := kafka.NewMessage().
		WithKey(booking.EquipmentID).
		WithEventType(kafka.EventMirrorRepaired).
		WithValue(booking).
		Build()
	if err != nil {
		r.cfg.Log.Error("Failed to build repair event", "error", err)
		return
	}

	if err := r.events.Publish(ctx, msg); err != nil {
		r.cfg.Log.Error("Failed to publish repair event", "error", err)
	}
}

func anyBooked(bookings []*model.Booking) bool {
	for _, b := range bookings {
		if b.Status == model.StatusBooked {
			return true
		}
	}
	return false
}
