package mongodb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"container-inspection-api-server/internal/database"
	"container-inspection-api-server/internal/models"
	"container-inspection-api-server/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type UserRepo struct {
	coll *mongo.Collection
}

func NewUserRepo(db *mongo.Database) *UserRepo {
	return &UserRepo{coll: db.Collection(database.UsersCollection)}
}

var _ repository.UserRepository = (*UserRepo)(nil)

func (r *UserRepo) Create(ctx context.Context, u *models.User) error {
	u.Username = strings.ToLower(strings.TrimSpace(u.Username))
	res, err := r.coll.InsertOne(ctx, u)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("user %s: %w", u.Username, repository.ErrDuplicate)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		u.ID = oid
	}
	return nil
}

func (r *UserRepo) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var u models.User
	if err := r.coll.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to retrieve user: %w", err)
	}
	return &u, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, repository.ErrNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"username": strings.ToLower(strings.TrimSpace(username))})
}

func (r *UserRepo) GetByPinDevice(ctx context.Context, deviceID string) (*models.User, error) {
	if deviceID == "" {
		return nil, repository.ErrNotFound
	}
	return r.findOne(ctx, bson.M{"pinDeviceID": deviceID})
}

func (r *UserRepo) SetPin(ctx context.Context, id, pinHash, deviceID string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return repository.ErrNotFound
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{
		"pin":              pinHash,
		"pinDeviceID":      deviceID,
		"pinSetupRequired": false,
		"updatedAt":        time.Now().UTC(),
	}})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("device %s: %w", deviceID, repository.ErrDuplicate)
		}
		return fmt.Errorf("failed to set pin: %w", err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *UserRepo) TouchLogin(ctx context.Context, id string, at time.Time) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return repository.ErrNotFound
	}
	_, err = r.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"lastLoginAt": at}})
	return err
}

func (r *UserRepo) CountByRole(ctx context.Context, role string) (int64, error) {
	return r.coll.CountDocuments(ctx, bson.M{"role": role})
}

func (r *UserRepo) List(ctx context.Context) ([]models.User, error) {
	cursor, err := r.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "username", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer cursor.Close(ctx)

	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	if users == nil {
		users = []models.User{}
	}
	return users, nil
}
