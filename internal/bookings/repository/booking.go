package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "labreserve/internal/bookings/errors"
	"labreserve/pkg/config"
	"labreserve/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	// PublicCollectionName holds the shared copy of every booking; any
	// authenticated user reads it for the aggregate calendar and the
	// conflict check.
	PublicCollectionName = "Bookings"

	// PrivateCollectionName holds the per-user copies. Documents are
	// scoped by user_id, mirroring a per-user collection namespace.
	PrivateCollectionName = "User_bookings"
)

// BookingRepository persists the two stored copies of each logical
// booking. Creates and cancellations are independent point writes; there
// is deliberately no transaction spanning the pair.
type BookingRepository interface {
	CreatePrivate(ctx context.Context, booking *model.Booking) error
	CreatePublic(ctx context.Context, booking *model.Booking) error

	FindPrivateByID(ctx context.Context, id string) (*model.Booking, error)
	FindPrivateByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, error)
	CountPrivateByUser(ctx context.Context, userID string) (int64, error)

	FindPublicBooked(ctx context.Context, equipmentID string) ([]*model.Booking, error)
	FindPublicByCorrelation(ctx context.Context, key model.CorrelationKey) ([]*model.Booking, error)
	FindAllPublic(ctx context.Context, limit int, offset int64) ([]*model.Booking, error)
	CountPublic(ctx context.Context) (int64, error)
	FindAllPrivate(ctx context.Context) ([]*model.Booking, error)

	CancelPrivate(ctx context.Context, id string, cancelledAt time.Time) error
	CancelPublicByCorrelation(ctx context.Context, key model.CorrelationKey, cancelledAt time.Time) (int64, error)

	WatchPublic(ctx context.Context) (<-chan []*model.Booking, error)
	WatchUser(ctx context.Context, userID string) (<-chan []*model.Booking, error)
}

type mongoBookingRepository struct {
	cfg     *config.Config
	db      *mongo.Database
	public  *mongo.Collection
	private *mongo.Collection
}

func NewMongoBookingRepository(cfg *config.Config) BookingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingRepository{
		cfg:     cfg,
		db:      db,
		public:  db.Collection(PublicCollectionName),
		private: db.Collection(PrivateCollectionName),
	}
}

func (r *mongoBookingRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	deadline, hasDeadline := ctx.Deadline()
	if hasDeadline && time.Until(deadline) < timeout {
		return context.WithTimeout(ctx, time.Until(deadline))
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoBookingRepository) create(ctx context.Context, coll *mongo.Collection, booking *model.Booking) (string, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	// Each copy gets its own store-assigned id, never reuse the mirror's.
	insert := *booking
	insert.ID = ""

	result, err := coll.InsertOne(ctx, &insert)
	if err != nil {
		return "", fmt.Errorf("failed to create booking in %s: %w", coll.Name(), err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		return oid.Hex(), nil
	}
	return "", nil
}

func (r *mongoBookingRepository) CreatePrivate(ctx context.Context, booking *model.Booking) error {
	id, err := r.create(ctx, r.private, booking)
	if err != nil {
		return err
	}
	booking.ID = id
	return nil
}

func (r *mongoBookingRepository) CreatePublic(ctx context.Context, booking *model.Booking) error {
	// The public copy's id is not reported back: callers address the
	// public copy by correlation key only.
	_, err := r.create(ctx, r.public, booking)
	return err
}

func (r *mongoBookingRepository) FindPrivateByID(ctx context.Context, id string) (*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	var booking model.Booking
	err = r.private.FindOne(ctx, bson.M{"_id": objectID}).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}

	return &booking, nil
}

func (r *mongoBookingRepository) FindPrivateByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "start_date", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.private.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings for user: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []*model.Booking
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}

	return bookings, nil
}

func (r *mongoBookingRepository) CountPrivateByUser(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.private.CountDocuments(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings for user: %w", err)
	}
	return count, nil
}

// FindPublicBooked returns every active booking for one equipment from the
// shared collection. This is the conflict resolver's point-in-time read:
// a one-shot query, not a subscription.
func (r *mongoBookingRepository) FindPublicBooked(ctx context.Context, equipmentID string) ([]*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"equipment_id": equipmentID,
		"status":       model.StatusBooked,
	}

	opts := options.Find().SetSort(bson.D{{Key: "start_date", Value: 1}})

	cursor, err := r.public.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find booked windows: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []*model.Booking
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}

	return bookings, nil
}

func (r *mongoBookingRepository) FindPublicByCorrelation(ctx context.Context, key model.CorrelationKey) ([]*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	cursor, err := r.public.Find(ctx, correlationFilter(key))
	if err != nil {
		return nil, fmt.Errorf("failed to find public copy by correlation key: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []*model.Booking
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}

	return bookings, nil
}

func (r *mongoBookingRepository) FindAllPublic(ctx context.Context, limit int, offset int64) ([]*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "start_date", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.public.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find public bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []*model.Booking
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}

	return bookings, nil
}

func (r *mongoBookingRepository) CountPublic(ctx context.Context) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.public.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count public bookings: %w", err)
	}
	return count, nil
}

// FindAllPrivate walks the whole private collection. Only the reconciler
// uses it.
func (r *mongoBookingRepository) FindAllPrivate(ctx context.Context) ([]*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	cursor, err := r.private.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to find private bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []*model.Booking
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}

	return bookings, nil
}

func (r *mongoBookingRepository) CancelPrivate(ctx context.Context, id string, cancelledAt time.Time) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	update := bson.M{
		"$set": bson.M{
			"status":       model.StatusCancelled,
			"cancelled_at": cancelledAt,
		},
	}

	result, err := r.private.UpdateOne(ctx, bson.M{"_id": objectID}, update)
	if err != nil {
		return fmt.Errorf("failed to cancel booking: %w", err)
	}
	if result.MatchedCount == 0 {
		return bookingserrors.ErrNotFound
	}

	return nil
}

// CancelPublicByCorrelation updates every public document matching the
// correlation key and reports how many matched. Zero is possible when the
// mirror write was lost; the caller decides what to do about it.
func (r *mongoBookingRepository) CancelPublicByCorrelation(ctx context.Context, key model.CorrelationKey, cancelledAt time.Time) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	update := bson.M{
		"$set": bson.M{
			"status":       model.StatusCancelled,
			"cancelled_at": cancelledAt,
		},
	}

	result, err := r.public.UpdateMany(ctx, correlationFilter(key), update)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel public copy: %w", err)
	}

	return result.MatchedCount, nil
}

func correlationFilter(key model.CorrelationKey) bson.M {
	return bson.M{
		"equipment_id": key.EquipmentID,
		"user_id":      key.UserID,
		"booked_at":    key.BookedAt,
	}
}
