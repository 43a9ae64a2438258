package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	equipmenterrors "labreserve/internal/equipment/errors"
	"labreserve/pkg/config"
	"labreserve/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Equipment"
)

type EquipmentRepository interface {
	Create(ctx context.Context, equipment *model.Equipment) error
	FindByID(ctx context.Context, id string) (*model.Equipment, error)
	FindAll(ctx context.Context, limit int, offset int64) ([]*model.Equipment, error)
	Count(ctx context.Context) (int64, error)
	Update(ctx context.Context, id string, equipment *model.Equipment) error
	Delete(ctx context.Context, id string) error
	Watch(ctx context.Context) (<-chan []*model.Equipment, error)
}

type mongoEquipmentRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
}

func NewMongoEquipmentRepository(cfg *config.Config) EquipmentRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoEquipmentRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoEquipmentRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	deadline, hasDeadline := ctx.Deadline()
	if hasDeadline && time.Until(deadline) < timeout {
		return context.WithTimeout(ctx, time.Until(deadline))
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoEquipmentRepository) Create(ctx context.Context, equipment *model.Equipment) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	equipment.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.InsertOne(ctx, equipment)
	if err != nil {
		return fmt.Errorf("failed to create equipment: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		equipment.ID = oid.Hex()
	}
	return nil
}

func (r *mongoEquipmentRepository) FindByID(ctx context.Context, id string) (*model.Equipment, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", equipmenterrors.ErrInvalidID, id)
	}

	var equipment model.Equipment
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&equipment)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, equipmenterrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find equipment: %w", err)
	}

	return &equipment, nil
}

func (r *mongoEquipmentRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Equipment, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find equipment: %w", err)
	}
	defer cursor.Close(ctx)

	var equipment []*model.Equipment
	if err = cursor.All(ctx, &equipment); err != nil {
		return nil, fmt.Errorf("failed to decode equipment: %w", err)
	}

	return equipment, nil
}

func (r *mongoEquipmentRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count equipment: %w", err)
	}

	return count, nil
}

func (r *mongoEquipmentRepository) Update(ctx context.Context, id string, equipment *model.Equipment) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", equipmenterrors.ErrInvalidID, id)
	}

	update := bson.M{
		"$set": bson.M{
			"name":        equipment.Name,
			"description": equipment.Description,
			"updated_at":  equipment.UpdatedAt,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID}, update)
	if err != nil {
		return fmt.Errorf("failed to update equipment: %w", err)
	}

	if result.MatchedCount == 0 {
		return equipmenterrors.ErrNotFound
	}

	return nil
}

func (r *mongoEquipmentRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", equipmenterrors.ErrInvalidID, id)
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return fmt.Errorf("failed to delete equipment: %w", err)
	}

	if result.DeletedCount == 0 {
		return equipmenterrors.ErrNotFound
	}

	return nil
}

// Watch streams full snapshots of the catalog: one immediately, then one
// per change notification. The channel closes when ctx is cancelled.
func (r *mongoEquipmentRepository) Watch(ctx context.Context) (<-chan []*model.Equipment, error) {
	stream, err := r.collection.Watch(ctx, mongo.Pipeline{})
	if err != nil {
		return nil, fmt.Errorf("failed to open change stream on %s: %w", CollectionName, err)
	}

	out := make(chan []*model.Equipment, 1)

	go func() {
		defer close(out)
		defer stream.Close(context.Background())

		if !r.pushSnapshot(ctx, out) {
			return
		}

		for stream.Next(ctx) {
			if !r.pushSnapshot(ctx, out) {
				return
			}
		}
	}()

	return out, nil
}

func (r *mongoEquipmentRepository) pushSnapshot(ctx context.Context, out chan []*model.Equipment) bool {
	qctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := r.collection.Find(qctx, bson.M{}, opts)
	if err != nil {
		r.cfg.Log.Error("Equipment snapshot query failed", "error", err)
		return ctx.Err() == nil
	}
	defer cursor.Close(qctx)

	var equipment []*model.Equipment
	if err = cursor.All(qctx, &equipment); err != nil {
		r.cfg.Log.Error("Equipment snapshot decode failed", "error", err)
		return ctx.Err() == nil
	}
	if equipment == nil {
		equipment = []*model.Equipment{}
	}

	select {
	case <-out:
	default:
	}

	select {
	case out <- equipment:
		return true
	case <-ctx.Done():
		return false
	}
}
