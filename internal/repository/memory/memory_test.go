package memory

import (
	"context"
	"testing"
	"time"

	"container-inspection-api-server/internal/models"
	"container-inspection-api-server/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTripSegmentNumberingRestartsPerYear(t *testing.T) {
	ctx := context.Background()
	repo := NewTripSegmentRepo()

	first := &models.TripSegment{CreatedAt: time.Date(2026, 12, 31, 23, 0, 0, 0, time.UTC)}
	second := &models.TripSegment{CreatedAt: time.Date(2026, 12, 31, 23, 30, 0, 0, time.UTC)}
	third := &models.TripSegment{CreatedAt: time.Date(2027, 1, 1, 0, 5, 0, 0, time.UTC)}
	for _, ts := range []*models.TripSegment{first, second, third} {
		require.NoError(t, repo.Create(ctx, ts))
	}

	assert.Equal(t, "TS-2026-00001", first.TripSegmentNumber)
	assert.Equal(t, "TS-2026-00002", second.TripSegmentNumber)
	assert.Equal(t, "TS-2027-00001", third.TripSegmentNumber)

	got, err := repo.GetByNumber(ctx, "TS-2026-00002")
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)
}

func TestDamageAndCompletion(t *testing.T) {
	ctx := context.Background()
	repo := NewTripSegmentRepo()
	ts := &models.TripSegment{ContainerNumber: "MSCU1234565", Status: models.TripStatusInProgress}
	require.NoError(t, repo.Create(ctx, ts))
	id := ts.ID.Hex()

	got, err := repo.SetDamage(ctx, id, models.PhotoLeftWall, true, "dent", "u1")
	require.NoError(t, err)
	assert.True(t, got.HasDamage)
	assert.Equal(t, []models.DamageLocation{models.PhotoLeftWall}, got.DamageLocations)

	got, err = repo.AddDamagePhotos(ctx, id, models.PhotoInside, "u1", models.MediaPointer{ID: "a"}, models.MediaPointer{ID: "b"})
	require.NoError(t, err)
	assert.Len(t, got.Damage[models.PhotoInside].Photos, 2)
	assert.Len(t, got.DamageLocations, 2)

	got, err = repo.SetDamage(ctx, id, models.PhotoInside, false, "", "u1")
	require.NoError(t, err)
	assert.Len(t, got.Damage[models.PhotoInside].Photos, 2, "photos are kept when the flag flips")
	assert.Equal(t, []models.DamageLocation{models.PhotoLeftWall}, got.DamageLocations)

	at := time.Now().UTC()
	got, err = repo.Complete(ctx, id, models.DriverDetails{Name: "Minh", LicenseNumber: "B2-1"}, "51C-12345", "", at)
	require.NoError(t, err)
	assert.Equal(t, models.TripStatusCompleted, got.Status)
	assert.Equal(t, "51C-12345", got.TruckNumber)

	_, err = repo.SetStep(ctx, id, "front_wall")
	assert.ErrorIs(t, err, repository.ErrAlreadyCompleted)
	_, err = repo.Complete(ctx, id, models.DriverDetails{}, "", "", at)
	assert.ErrorIs(t, err, repository.ErrAlreadyCompleted)
}

func TestReturnedSegmentsAreCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewTripSegmentRepo()
	ts := &models.TripSegment{}
	require.NoError(t, repo.Create(ctx, ts))

	got, err := repo.GetByID(ctx, ts.ID.Hex())
	require.NoError(t, err)
	got.Photos[models.PhotoSeal] = models.MediaPointer{ID: "mutated"}

	again, err := repo.GetByID(ctx, ts.ID.Hex())
	require.NoError(t, err)
	assert.NotContains(t, again.Photos, models.PhotoSeal)
}

func TestListFiltersAndPages(t *testing.T) {
	ctx := context.Background()
	repo := NewTripSegmentRepo()
	for _, c := range []string{"MSCU0000001", "MSCU0000002", "TGHU0000003"} {
		require.NoError(t, repo.Create(ctx, &models.TripSegment{ContainerNumber: c, Status: models.TripStatusInProgress}))
	}

	items, total, err := repo.List(ctx, repository.TripSegmentFilter{Container: "mscu", Limit: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, items, 1)
	assert.Equal(t, "MSCU0000002", items[0].ContainerNumber, "newest first")

	items, _, err = repo.List(ctx, repository.TripSegmentFilter{Offset: 10})
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestUserPinDeviceIsUnique(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepo()
	a := &models.User{Username: "Alice"}
	b := &models.User{Username: "bob"}
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, b))
	assert.Equal(t, "alice", a.Username)

	require.ErrorIs(t, repo.Create(ctx, &models.User{Username: "ALICE"}), repository.ErrDuplicate)

	require.NoError(t, repo.SetPin(ctx, a.ID.Hex(), "hash", "device-1"))
	assert.ErrorIs(t, repo.SetPin(ctx, b.ID.Hex(), "hash", "device-1"), repository.ErrDuplicate)

	got, err := repo.GetByPinDevice(ctx, "device-1")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	assert.False(t, got.PinSetupRequired)

	_, err = repo.GetByPinDevice(ctx, "")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
