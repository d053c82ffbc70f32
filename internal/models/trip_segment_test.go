package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDamageStatusAggregates(t *testing.T) {
	ts := &TripSegment{Damage: map[DamageLocation]DamageReport{
		PhotoRightWall: {HasDamage: true},
		PhotoFrontWall: {HasDamage: true},
		PhotoInside:    {HasDamage: false},
	}}

	st := ts.DamageStatus()
	assert.True(t, st.HasDamage)
	assert.Equal(t, []DamageLocation{PhotoFrontWall, PhotoRightWall}, st.DamageLocations)
	assert.False(t, st.Locations[PhotoInside])
	assert.True(t, st.Locations[PhotoRightWall])

	ts.RecomputeDamage()
	assert.True(t, ts.HasDamage)
	assert.Len(t, ts.DamageLocations, 2)
}

func TestDamageStatusEmpty(t *testing.T) {
	st := (&TripSegment{}).DamageStatus()
	assert.False(t, st.HasDamage)
	assert.NotNil(t, st.DamageLocations)
	assert.Empty(t, st.DamageLocations)
}

func TestPhotoKindValid(t *testing.T) {
	assert.True(t, PhotoFrontWall.Valid())
	assert.False(t, PhotoKind("roof").Valid())
	assert.True(t, IsDamageLocation(PhotoInside))
	assert.False(t, IsDamageLocation(PhotoSeal))
}

func TestUserPermissions(t *testing.T) {
	admin := &User{Role: RoleAdmin}
	assert.True(t, admin.HasPermission(PermBillingWrite))

	insp := &User{Role: RoleInspector, Permissions: DefaultPermissions(RoleInspector)}
	assert.True(t, insp.HasPermission(PermTripsWrite))
	assert.False(t, insp.HasPermission(PermBillingWrite))
	assert.False(t, ValidRole("driver"))
}

func TestFormatTripSegmentNumber(t *testing.T) {
	assert.Equal(t, "TS-2026-00001", FormatTripSegmentNumber(2026, 1))
	assert.Equal(t, "TS-2027-123456", FormatTripSegmentNumber(2027, 123456))
}
