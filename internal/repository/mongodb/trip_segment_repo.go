package mongodb

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"container-inspection-api-server/internal/database"
	"container-inspection-api-server/internal/models"
	"container-inspection-api-server/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type TripSegmentRepo struct {
	db   *mongo.Database
	coll *mongo.Collection
	now  func() time.Time
}

func NewTripSegmentRepo(db *mongo.Database) *TripSegmentRepo {
	return &TripSegmentRepo{
		db:   db,
		coll: db.Collection(database.TripSegmentsCollection),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

var _ repository.TripSegmentRepository = (*TripSegmentRepo)(nil)

func (r *TripSegmentRepo) Create(ctx context.Context, t *models.TripSegment) error {
	now := r.now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	t.Year = t.CreatedAt.Year()

	seq, err := database.NextTripSegmentSeq(ctx, r.db, t.Year)
	if err != nil {
		return err
	}
	t.TripSegmentNumber = models.FormatTripSegmentNumber(t.Year, seq)
	if t.Photos == nil {
		t.Photos = map[models.PhotoKind]models.MediaPointer{}
	}
	if t.Damage == nil {
		t.Damage = map[models.DamageLocation]models.DamageReport{}
	}
	if t.DamageLocations == nil {
		t.DamageLocations = []models.DamageLocation{}
	}

	res, err := r.coll.InsertOne(ctx, t)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("trip segment %s: %w", t.TripSegmentNumber, repository.ErrDuplicate)
		}
		return fmt.Errorf("failed to insert trip segment: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		t.ID = oid
	}
	return nil
}

func (r *TripSegmentRepo) GetByID(ctx context.Context, id string) (*models.TripSegment, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, repository.ErrNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *TripSegmentRepo) GetByNumber(ctx context.Context, number string) (*models.TripSegment, error) {
	return r.findOne(ctx, bson.M{"tripSegmentNumber": number})
}

func (r *TripSegmentRepo) findOne(ctx context.Context, filter bson.M) (*models.TripSegment, error) {
	var t models.TripSegment
	if err := r.coll.FindOne(ctx, filter).Decode(&t); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to retrieve trip segment: %w", err)
	}
	return &t, nil
}

func listFilter(f repository.TripSegmentFilter) bson.M {
	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.Year != 0 {
		filter["year"] = f.Year
	}
	if f.Container != "" {
		filter["containerNumber"] = bson.M{"$regex": "^" + regexp.QuoteMeta(f.Container), "$options": "i"}
	}
	if f.HasDamage != nil {
		filter["hasDamage"] = *f.HasDamage
	}
	if f.CreatedBy != "" {
		filter["createdBy"] = f.CreatedBy
	}
	return filter
}

func (r *TripSegmentRepo) List(ctx context.Context, f repository.TripSegmentFilter) ([]models.TripSegment, int64, error) {
	filter := listFilter(f)

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count trip segments: %w", err)
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}
	if f.Offset > 0 {
		opts.SetSkip(int64(f.Offset))
	}

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query trip segments: %w", err)
	}
	defer cursor.Close(ctx)

	var segments []models.TripSegment
	if err := cursor.All(ctx, &segments); err != nil {
		return nil, 0, fmt.Errorf("failed to decode trip segments: %w", err)
	}
	if segments == nil {
		segments = []models.TripSegment{}
	}
	return segments, total, nil
}

func (r *TripSegmentRepo) Update(ctx context.Context, id string, u repository.TripSegmentUpdate) (*models.TripSegment, error) {
	set := bson.M{}
	str := map[string]*string{
		"containerNumber": u.ContainerNumber,
		"containerSize":   u.ContainerSize,
		"containerType":   u.ContainerType,
		"truckNumber":     u.TruckNumber,
		"trailerNumber":   u.TrailerNumber,
		"chassisNumber":   u.ChassisNumber,
		"sealNumber":      u.SealNumber,
		"loadStatus":      u.LoadStatus,
		"yardStatus":      u.YardStatus,
	}
	for field, v := range str {
		if v != nil {
			set[field] = *v
		}
	}
	if u.Billing != nil {
		set["billing"] = *u.Billing
	}
	if len(set) == 0 {
		return r.GetByID(ctx, id)
	}
	set["updatedAt"] = r.now()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, repository.ErrNotFound
	}
	return r.findOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
}

// updateOpen applies update to a segment that is still in progress. update is
// an update document or a mongo.Pipeline.
func (r *TripSegmentRepo) updateOpen(ctx context.Context, id string, update any) (*models.TripSegment, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, repository.ErrNotFound
	}
	t, err := r.findOneAndUpdate(ctx, bson.M{"_id": oid, "status": bson.M{"$ne": models.TripStatusCompleted}}, update)
	if errors.Is(err, repository.ErrNotFound) {
		// Either missing or already completed; tell them apart.
		if _, gerr := r.GetByID(ctx, id); gerr == nil {
			return nil, repository.ErrAlreadyCompleted
		}
	}
	return t, err
}

func (r *TripSegmentRepo) findOneAndUpdate(ctx context.Context, filter bson.M, update any) (*models.TripSegment, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var t models.TripSegment
	if err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&t); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update trip segment: %w", err)
	}
	return &t, nil
}

func (r *TripSegmentRepo) SetPhoto(ctx context.Context, id string, kind models.PhotoKind, media models.MediaPointer) (*models.TripSegment, error) {
	return r.updateOpen(ctx, id, bson.M{"$set": bson.M{
		"photos." + string(kind): media,
		"updatedAt":              r.now(),
	}})
}

func (r *TripSegmentRepo) SetDamage(ctx context.Context, id string, loc models.DamageLocation, hasDamage bool, notes, reportedBy string) (*models.TripSegment, error) {
	return r.updateOpen(ctx, id, damagePipeline(loc, bson.M{
		"hasDamage":  hasDamage,
		"notes":      notes,
		"reportedBy": reportedBy,
		"reportedAt": r.now(),
	}, nil, r.now()))
}

func (r *TripSegmentRepo) AddDamagePhotos(ctx context.Context, id string, loc models.DamageLocation, reportedBy string, media ...models.MediaPointer) (*models.TripSegment, error) {
	return r.updateOpen(ctx, id, damagePipeline(loc, bson.M{
		"hasDamage":  true,
		"reportedBy": reportedBy,
		"reportedAt": r.now(),
	}, media, r.now()))
}

// damagePipeline merges fields into damage.<loc>, appends photos, and
// recomputes hasDamage/damageLocations in the same atomic update, so
// concurrent writes on different sides cannot leave a stale summary.
// Values go through $literal so user text starting with "$" stays text.
func damagePipeline(loc models.DamageLocation, fields bson.M, photos []models.MediaPointer, now time.Time) mongo.Pipeline {
	path := "damage." + string(loc)
	merged := bson.A{bson.M{"$ifNull": bson.A{"$" + path, bson.M{}}}, bson.M{"$literal": fields}}
	set := bson.D{
		{Key: path, Value: bson.M{"$mergeObjects": merged}},
		{Key: "updatedAt", Value: now},
	}
	pipeline := mongo.Pipeline{{{Key: "$set", Value: set}}}
	if len(photos) > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$set", Value: bson.D{{
			Key: path + ".photos",
			Value: bson.M{"$concatArrays": bson.A{
				bson.M{"$ifNull": bson.A{"$" + path + ".photos", bson.A{}}},
				bson.M{"$literal": photos},
			}},
		}}}})
	}
	return append(pipeline, damageSummaryStages()...)
}

// damageSummaryStages derive damageLocations (wizard order) and hasDamage
// from the damage map.
func damageSummaryStages() mongo.Pipeline {
	order := make(bson.A, len(models.DamageLocations))
	for i, l := range models.DamageLocations {
		order[i] = string(l)
	}
	damaged := bson.M{"$map": bson.M{
		"input": bson.M{"$filter": bson.M{
			"input": bson.M{"$objectToArray": bson.M{"$ifNull": bson.A{"$damage", bson.M{}}}},
			"as":    "d",
			"cond":  bson.M{"$eq": bson.A{"$$d.v.hasDamage", true}},
		}},
		"as": "d",
		"in": "$$d.k",
	}}
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{{Key: "damageLocations", Value: bson.M{"$let": bson.M{
			"vars": bson.M{"damaged": damaged},
			"in": bson.M{"$filter": bson.M{
				"input": bson.M{"$literal": order},
				"as":    "loc",
				"cond":  bson.M{"$in": bson.A{"$$loc", "$$damaged"}},
			}},
		}}}}}},
		{{Key: "$set", Value: bson.D{{Key: "hasDamage", Value: bson.M{"$gt": bson.A{bson.M{"$size": "$damageLocations"}, 0}}}}}},
	}
}

func (r *TripSegmentRepo) SetStep(ctx context.Context, id, step string) (*models.TripSegment, error) {
	return r.updateOpen(ctx, id, bson.M{"$set": bson.M{
		"currentStep": step,
		"updatedAt":   r.now(),
	}})
}

func (r *TripSegmentRepo) Complete(ctx context.Context, id string, driver models.DriverDetails, truckNumber, trailerNumber string, at time.Time) (*models.TripSegment, error) {
	set := bson.M{
		"driver":      driver,
		"status":      models.TripStatusCompleted,
		"currentStep": models.TripStatusCompleted,
		"completedAt": at,
		"updatedAt":   at,
	}
	if truckNumber != "" {
		set["truckNumber"] = truckNumber
	}
	if trailerNumber != "" {
		set["trailerNumber"] = trailerNumber
	}
	return r.updateOpen(ctx, id, bson.M{"$set": set})
}
