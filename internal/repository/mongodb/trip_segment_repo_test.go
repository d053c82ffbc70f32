package mongodb

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"container-inspection-api-server/internal/models"
	"container-inspection-api-server/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestListFilterEmpty(t *testing.T) {
	assert.Equal(t, bson.M{}, listFilter(repository.TripSegmentFilter{}))
}

func TestListFilterAllFields(t *testing.T) {
	damaged := true
	f := listFilter(repository.TripSegmentFilter{
		Status:    "completed",
		Year:      2026,
		Container: "MSCU.1",
		HasDamage: &damaged,
		CreatedBy: "u1",
	})

	assert.Equal(t, "completed", f["status"])
	assert.Equal(t, 2026, f["year"])
	assert.Equal(t, true, f["hasDamage"])
	assert.Equal(t, "u1", f["createdBy"])
	assert.Equal(t, bson.M{"$regex": `^MSCU\.1`, "$options": "i"}, f["containerNumber"])
}

func TestDamagePipelineEndsWithSummary(t *testing.T) {
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	p := damagePipeline(models.PhotoLeftWall, bson.M{"notes": "$where"}, []models.MediaPointer{{ID: "a"}}, now)
	require.Len(t, p, 4)

	first := p[0][0].Value.(bson.D)
	assert.Equal(t, "damage.left-wall", first[0].Key)
	merge := first[0].Value.(bson.M)["$mergeObjects"].(bson.A)
	assert.Equal(t, bson.M{"$literal": bson.M{"notes": "$where"}}, merge[1])
	assert.Equal(t, now, first[1].Value)

	photos := p[1][0].Value.(bson.D)
	assert.Equal(t, "damage.left-wall.photos", photos[0].Key)

	assert.Equal(t, "damageLocations", p[2][0].Value.(bson.D)[0].Key)
	assert.Equal(t, "hasDamage", p[3][0].Value.(bson.D)[0].Key)

	assert.Len(t, damagePipeline(models.PhotoInside, bson.M{"hasDamage": false}, nil, now), 3)
}

// Runs against a real server when MONGO_TEST_URI is set.
func TestConcurrentDamageWritesKeepSummary(t *testing.T) {
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	defer client.Disconnect(context.Background())
	db := client.Database(fmt.Sprintf("inspection_test_%d", time.Now().UnixNano()))
	defer db.Drop(context.Background())

	repo := NewTripSegmentRepo(db)
	ts := &models.TripSegment{ContainerNumber: "MSCU1234565", Status: models.TripStatusInProgress}
	require.NoError(t, repo.Create(ctx, ts))
	id := ts.ID.Hex()

	for round := 0; round < 10; round++ {
		var wg sync.WaitGroup
		for _, loc := range models.DamageLocations {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.SetDamage(ctx, id, loc, true, "$dent", "u1")
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		got, err := repo.GetByID(ctx, id)
		require.NoError(t, err)
		assert.True(t, got.HasDamage)
		assert.Equal(t, models.DamageLocations, got.DamageLocations)
		assert.Equal(t, "$dent", got.Damage[models.PhotoInside].Notes)
	}

	got, err := repo.AddDamagePhotos(ctx, id, models.PhotoFrontWall, "u1", models.MediaPointer{ID: "p1"}, models.MediaPointer{ID: "p2"})
	require.NoError(t, err)
	assert.Len(t, got.Damage[models.PhotoFrontWall].Photos, 2)

	for _, loc := range models.DamageLocations {
		got, err = repo.SetDamage(ctx, id, loc, false, "", "u1")
		require.NoError(t, err)
	}
	assert.False(t, got.HasDamage)
	assert.Empty(t, got.DamageLocations)
	assert.Len(t, got.Damage[models.PhotoFrontWall].Photos, 2, "photos are kept when the flag flips")
}
