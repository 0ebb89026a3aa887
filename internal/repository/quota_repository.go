package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Aidana2201/Connection_Hub/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// QuotaRepository is the durable ledger of per-user request credits. All
// mutation goes through single conditional updates so concurrent requests
// from the same user cannot overdraw the daily or lifetime allowance.
type QuotaRepository struct {
	collection     *mongo.Collection
	defaultDaily   int
	defaultCredits int
}

func NewQuotaRepository(db *mongo.Database, defaultDailyLimit, defaultTotalCredits int) *QuotaRepository {
	return &QuotaRepository{
		collection:     db.Collection("quotas"),
		defaultDaily:   defaultDailyLimit,
		defaultCredits: defaultTotalCredits,
	}
}

// GetOrCreate materializes the user's quota record with defaults if it does
// not exist yet. Upsert semantics keep concurrent first-time creation safe.
func (r *QuotaRepository) GetOrCreate(ctx context.Context, userID primitive.ObjectID) (*models.QuotaRecord, error) {
	now := time.Now()
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	update := bson.M{"$setOnInsert": bson.M{
		"daily_count":      0,
		"daily_reset_date": models.QuotaDate(now),
		"daily_limit":      r.defaultDaily,
		"total_available":  r.defaultCredits,
		"total_used":       0,
		"created_at":       now,
		"updated_at":       now,
	}}

	var record models.QuotaRecord
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": userID}, update, opts).Decode(&record)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create quota record: %v", err)
	}
	return &record, nil
}

// TryConsume spends one request credit in a single atomic conditional update.
// On success the post-consumption record is returned. On refusal the current
// record is returned together with the reason, so callers can hand the client
// a fresh snapshot without another round-trip.
func (r *QuotaRepository) TryConsume(ctx context.Context, userID primitive.ObjectID) (*models.QuotaRecord, models.QuotaRefusal, error) {
	if _, err := r.GetOrCreate(ctx, userID); err != nil {
		return nil, "", err
	}

	now := time.Now()
	today := models.QuotaDate(now)
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	hasCredits := bson.M{"$lt": bson.A{"$total_used", "$total_available"}}

	// Same-day branch: the daily window is current, increment both counters
	// only while the effective daily count is still below the limit.
	sameDay := bson.M{
		"_id":              userID,
		"daily_reset_date": today,
		"$expr": bson.M{"$and": bson.A{
			hasCredits,
			bson.M{"$or": bson.A{
				bson.M{"$eq": bson.A{"$daily_limit", models.UnlimitedDaily}},
				bson.M{"$lt": bson.A{"$daily_count", "$daily_limit"}},
			}},
		}},
	}
	sameDayUpdate := bson.M{
		"$inc": bson.M{"daily_count": 1, "total_used": 1},
		"$set": bson.M{"updated_at": now},
	}

	var record models.QuotaRecord
	err := r.collection.FindOneAndUpdate(ctx, sameDay, sameDayUpdate, opts).Decode(&record)
	if err == nil {
		return &record, "", nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, "", fmt.Errorf("failed to consume quota credit: %v", err)
	}

	// Stale-day branch: the stored window belongs to a previous day, so the
	// same update also commits the lazy reset (count starts over at 1).
	staleDay := bson.M{
		"_id":              userID,
		"daily_reset_date": bson.M{"$ne": today},
		"$expr": bson.M{"$and": bson.A{
			hasCredits,
			bson.M{"$or": bson.A{
				bson.M{"$eq": bson.A{"$daily_limit", models.UnlimitedDaily}},
				bson.M{"$gt": bson.A{"$daily_limit", 0}},
			}},
		}},
	}
	staleDayUpdate := bson.M{
		"$set": bson.M{
			"daily_count":      1,
			"daily_reset_date": today,
			"updated_at":       now,
		},
		"$inc": bson.M{"total_used": 1},
	}

	err = r.collection.FindOneAndUpdate(ctx, staleDay, staleDayUpdate, opts).Decode(&record)
	if err == nil {
		return &record, "", nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, "", fmt.Errorf("failed to consume quota credit: %v", err)
	}

	// Neither branch matched: the quota is exhausted. Read the record to name
	// the reason and give the caller the current snapshot.
	current, err := r.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	allowed, refusal := current.Allow(today)
	if allowed {
		// A concurrent reset/credit-grant slipped in between; report the
		// daily window as the conservative reason.
		refusal = models.RefusalDailyLimit
	}
	return current, refusal, nil
}

// AddCredits grants additional lifetime credits, optionally lifting the daily
// limit (used for purchased credit packs).
func (r *QuotaRepository) AddCredits(ctx context.Context, userID primitive.ObjectID, amount int, removeDailyLimit bool) (*models.QuotaRecord, error) {
	if _, err := r.GetOrCreate(ctx, userID); err != nil {
		return nil, err
	}

	set := bson.M{"updated_at": time.Now()}
	if removeDailyLimit {
		set["daily_limit"] = models.UnlimitedDaily
	}
	update := bson.M{
		"$inc": bson.M{"total_available": amount},
		"$set": set,
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var record models.QuotaRecord
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": userID}, update, opts).Decode(&record)
	if err != nil {
		return nil, fmt.Errorf("failed to add credits: %v", err)
	}
	return &record, nil
}

// SetDailyLimit overrides the user's daily limit. models.UnlimitedDaily
// removes the cap.
func (r *QuotaRepository) SetDailyLimit(ctx context.Context, userID primitive.ObjectID, limit int) (*models.QuotaRecord, error) {
	if _, err := r.GetOrCreate(ctx, userID); err != nil {
		return nil, err
	}

	update := bson.M{"$set": bson.M{"daily_limit": limit, "updated_at": time.Now()}}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var record models.QuotaRecord
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": userID}, update, opts).Decode(&record)
	if err != nil {
		return nil, fmt.Errorf("failed to set daily limit: %v", err)
	}
	return &record, nil
}
