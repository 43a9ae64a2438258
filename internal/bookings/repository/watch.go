package repository

import (
	"context"
	"fmt"

	"labreserve/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// WatchPublic streams full snapshots of the shared bookings collection.
// An initial snapshot is delivered immediately, then one per change
// notification. The channel closes when ctx is cancelled; cancelling is
// how a subscriber releases the subscription.
func (r *mongoBookingRepository) WatchPublic(ctx context.Context) (<-chan []*model.Booking, error) {
	return r.watch(ctx, r.public, bson.M{})
}

// WatchUser streams full snapshots of one user's private bookings, sorted
// ascending by start date.
func (r *mongoBookingRepository) WatchUser(ctx context.Context, userID string) (<-chan []*model.Booking, error) {
	return r.watch(ctx, r.private, bson.M{"user_id": userID})
}

func (r *mongoBookingRepository) watch(ctx context.Context, coll *mongo.Collection, filter bson.M) (<-chan []*model.Booking, error) {
	stream, err := coll.Watch(ctx, mongo.Pipeline{})
	if err != nil {
		return nil, fmt.Errorf("failed to open change stream on %s: %w", coll.Name(), err)
	}

	out := make(chan []*model.Booking, 1)

	go func() {
		defer close(out)
		defer stream.Close(context.Background())

		if !r.pushSnapshot(ctx, coll, filter, out) {
			return
		}

		for stream.Next(ctx) {
			// The event itself is discarded: every notification is
			// answered with a fresh full snapshot.
			if !r.pushSnapshot(ctx, coll, filter, out) {
				return
			}
		}
	}()

	return out, nil
}

// pushSnapshot re-queries the collection and replaces any undelivered
// snapshot with the newer one. Returns false when ctx is done.
func (r *mongoBookingRepository) pushSnapshot(ctx context.Context, coll *mongo.Collection, filter bson.M, out chan []*model.Booking) bool {
	qctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "start_date", Value: 1}})
	cursor, err := coll.Find(qctx, filter, opts)
	if err != nil {
		r.cfg.Log.Error("Snapshot query failed", "collection", coll.Name(), "error", err)
		return ctx.Err() == nil
	}
	defer cursor.Close(qctx)

	var bookings []*model.Booking
	if err = cursor.All(qctx, &bookings); err != nil {
		r.cfg.Log.Error("Snapshot decode failed", "collection", coll.Name(), "error", err)
		return ctx.Err() == nil
	}
	if bookings == nil {
		bookings = []*model.Booking{}
	}

	// Keep only the latest snapshot if the subscriber is slow.
	select {
	case <-out:
	default:
	}

	select {
	case out <- bookings:
		return true
	case <-ctx.Done():
		return false
	}
}
