package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func counterID(year int) string {
	return fmt.Sprintf("tripSegment-%d", year)
}

// NextTripSegmentSeq atomically bumps the per-year counter and returns the new value.
// Every year starts again at 1.
func NextTripSegmentSeq(ctx context.Context, db *mongo.Database, year int) (int64, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc struct {
		Seq int64 `bson:"seq"`
	}
	err := db.Collection(CountersCollection).FindOneAndUpdate(
		ctx,
		bson.M{"_id": counterID(year)},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("failed to increment trip segment counter: %w", err)
	}
	return doc.Seq, nil
}
