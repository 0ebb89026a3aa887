package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Aidana2201/Connection_Hub/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrDuplicatePair is returned by Insert when a connection for the unordered
// user pair already exists. The unique index on pair_key raises it, which is
// what serializes concurrent first requests between the same two users.
var ErrDuplicatePair = errors.New("connection already exists for this pair")

type ConnectionRepository struct {
	collection *mongo.Collection
}

func NewConnectionRepository(db *mongo.Database) *ConnectionRepository {
	return &ConnectionRepository{
		collection: db.Collection("connections"),
	}
}

// Insert creates a fresh pending connection for the pair.
func (r *ConnectionRepository) Insert(ctx context.Context, from, to primitive.ObjectID) (*models.Connection, error) {
	now := time.Now()
	conn := &models.Connection{
		PairKey:    models.PairKeyFor(from, to),
		FromUserID: from,
		ToUserID:   to,
		Status:     models.StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	result, err := r.collection.InsertOne(ctx, conn)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicatePair
		}
		return nil, fmt.Errorf("failed to insert connection: %v", err)
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return nil, fmt.Errorf("failed to cast inserted ID")
	}
	conn.ID = insertedID

	return conn, nil
}

// FindByID returns the connection or nil when it does not exist.
func (r *ConnectionRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Connection, error) {
	var conn models.Connection
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&conn)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find connection: %v", err)
	}
	return &conn, nil
}

// FindByPair returns the single connection between two users regardless of
// direction, or nil when none exists.
func (r *ConnectionRepository) FindByPair(ctx context.Context, a, b primitive.ObjectID) (*models.Connection, error) {
	var conn models.Connection
	err := r.collection.FindOne(ctx, bson.M{"pair_key": models.PairKeyFor(a, b)}).Decode(&conn)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find connection by pair: %v", err)
	}
	return &conn, nil
}

// UpdateStatus moves a pending connection to the given status. The status
// precondition in the filter makes exactly one of two concurrent resolutions
// win; the loser gets nil back.
func (r *ConnectionRepository) UpdateStatus(ctx context.Context, id primitive.ObjectID, status string) (*models.Connection, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	filter := bson.M{"_id": id, "status": models.StatusPending}
	update := bson.M{"$set": bson.M{"status": status, "updated_at": time.Now()}}

	var conn models.Connection
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&conn)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update connection status: %v", err)
	}
	return &conn, nil
}

// Recycle reuses a rejected connection for a new request, overwriting the
// direction and putting it back into pending. Returns nil when the record is
// no longer rejected.
func (r *ConnectionRepository) Recycle(ctx context.Context, id primitive.ObjectID, from, to primitive.ObjectID) (*models.Connection, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	filter := bson.M{"_id": id, "status": models.StatusRejected}
	update := bson.M{"$set": bson.M{
		"from_user_id": from,
		"to_user_id":   to,
		"status":       models.StatusPending,
		"updated_at":   time.Now(),
	}}

	var conn models.Connection
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&conn)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to recycle connection: %v", err)
	}
	return &conn, nil
}

// DeletePending removes a connection while it is still pending. Reports
// whether a document was actually deleted.
func (r *ConnectionRepository) DeletePending(ctx context.Context, id primitive.ObjectID) (bool, error) {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "status": models.StatusPending})
	if err != nil {
		return false, fmt.Errorf("failed to delete connection: %v", err)
	}
	return result.DeletedCount > 0, nil
}

// ListForUser returns the user's connections, optionally filtered by status
// and direction ("sent" or "received"), most recently updated first.
func (r *ConnectionRepository) ListForUser(ctx context.Context, userID primitive.ObjectID, status, direction string, limit, skip int64) ([]models.Connection, error) {
	filter := bson.M{}
	switch direction {
	case "sent":
		filter["from_user_id"] = userID
	case "received":
		filter["to_user_id"] = userID
	default:
		filter["$or"] = []bson.M{
			{"from_user_id": userID},
			{"to_user_id": userID},
		}
	}
	if status != "" {
		filter["status"] = status
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "updated_at", Value: -1}}).
		SetLimit(limit).
		SetSkip(skip)

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %v", err)
	}
	defer cursor.Close(ctx)

	connections := []models.Connection{}
	if err := cursor.All(ctx, &connections); err != nil {
		return nil, fmt.Errorf("failed to decode connections: %v", err)
	}
	return connections, nil
}
