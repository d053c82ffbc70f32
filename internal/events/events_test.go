package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"container-inspection-api-server/internal/models"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestMessageIsPersistentJSON(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	msg, err := Message(map[string]string{"a": "b"}, at)
	require.NoError(t, err)

	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, at, msg.Timestamp)
	assert.NotEmpty(t, msg.MessageId)
	assert.JSONEq(t, `{"a":"b"}`, string(msg.Body))
}

func TestCompletedEventFromSegment(t *testing.T) {
	done := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)
	ts := &models.TripSegment{
		ID:                primitive.NewObjectID(),
		TripSegmentNumber: "TS-2026-00007",
		ContainerNumber:   "MSCU1234565",
		HasDamage:         true,
		DamageLocations:   []models.DamageLocation{models.PhotoInside},
		Driver:            &models.DriverDetails{Name: "Lan"},
		CompletedAt:       &done,
	}
	ev := NewTripSegmentCompleted(ts, "u1")

	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	var back map[string]any
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, ts.ID.Hex(), back["tripSegmentId"])
	assert.Equal(t, "TS-2026-00007", back["tripSegmentNumber"])
	assert.Equal(t, []any{"inside"}, back["damageLocations"])
	assert.Equal(t, done, ev.CompletedAt)
}

func TestDamageReportedCountsPhotos(t *testing.T) {
	ts := &models.TripSegment{Damage: map[models.DamageLocation]models.DamageReport{
		models.PhotoLeftWall: {HasDamage: true, Photos: make([]models.MediaPointer, 3)},
	}}
	ev := NewDamageReported(ts, models.PhotoLeftWall, "u2")
	assert.True(t, ev.HasDamage)
	assert.Equal(t, 3, ev.PhotoCount)
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), KeyTripSegmentDamage, struct{}{}))
	assert.NoError(t, p.Close())
}
