package s3

import (
	"fmt"

	"github.com/google/uuid"
)

// PhotoKey builds the object key for an inspection photo and returns the
// generated id with it: trip-segments/TS-2026-00042/front-wall/<uuid>.jpg
func PhotoKey(tripSegmentNumber, kind string) (key, id string) {
	id = uuid.New().String()
	return fmt.Sprintf("trip-segments/%s/%s/%s.jpg", tripSegmentNumber, kind, id), id
}

// DamagePhotoKey is PhotoKey under the damage/ prefix of the location.
func DamagePhotoKey(tripSegmentNumber, location string) (key, id string) {
	return PhotoKey(tripSegmentNumber, "damage/"+location)
}
