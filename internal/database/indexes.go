package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the indexes the repositories rely on. Safe to run on every start.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	specs := map[string][]mongo.IndexModel{
		TripSegmentsCollection: {
			{
				Keys:    bson.D{{Key: "tripSegmentNumber", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("uniq_trip_segment_number"),
			},
			{
				Keys:    bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}},
				Options: options.Index().SetName("status_created"),
			},
			{
				Keys:    bson.D{{Key: "containerNumber", Value: 1}},
				Options: options.Index().SetName("container_number"),
			},
		},
		UsersCollection: {
			{
				Keys:    bson.D{{Key: "username", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("uniq_username"),
			},
			{
				// One PIN device per user; users without a PIN have no field at all.
				Keys:    bson.D{{Key: "pinDeviceID", Value: 1}},
				Options: options.Index().SetUnique(true).SetSparse(true).SetName("uniq_pin_device"),
			},
		},
	}

	for coll, models := range specs {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", coll, err)
		}
	}
	return nil
}
