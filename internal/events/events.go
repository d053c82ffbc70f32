package events

import (
	"context"
	"time"

	"container-inspection-api-server/internal/models"
)

// Routing keys on the topic exchange.
const (
	KeyTripSegmentCompleted = "tripsegment.completed"
	KeyTripSegmentDamage    = "tripsegment.damage"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
	Close() error
}

type TripSegmentCompleted struct {
	TripSegmentID     string                  `json:"tripSegmentId"`
	TripSegmentNumber string                  `json:"tripSegmentNumber"`
	ContainerNumber   string                  `json:"containerNumber"`
	TruckNumber       string                  `json:"truckNumber,omitempty"`
	TrailerNumber     string                  `json:"trailerNumber,omitempty"`
	Driver            *models.DriverDetails   `json:"driver,omitempty"`
	HasDamage         bool                    `json:"hasDamage"`
	DamageLocations   []models.DamageLocation `json:"damageLocations"`
	Billing           models.Billing          `json:"billing"`
	CompletedBy       string                  `json:"completedBy"`
	CompletedAt       time.Time               `json:"completedAt"`
}

func NewTripSegmentCompleted(t *models.TripSegment, by string) TripSegmentCompleted {
	ev := TripSegmentCompleted{
		TripSegmentID:     t.ID.Hex(),
		TripSegmentNumber: t.TripSegmentNumber,
		ContainerNumber:   t.ContainerNumber,
		TruckNumber:       t.TruckNumber,
		TrailerNumber:     t.TrailerNumber,
		Driver:            t.Driver,
		HasDamage:         t.HasDamage,
		DamageLocations:   t.DamageLocations,
		Billing:           t.Billing,
		CompletedBy:       by,
	}
	if t.CompletedAt != nil {
		ev.CompletedAt = *t.CompletedAt
	}
	return ev
}

type DamageReported struct {
	TripSegmentID     string                `json:"tripSegmentId"`
	TripSegmentNumber string                `json:"tripSegmentNumber"`
	Location          models.DamageLocation `json:"location"`
	HasDamage         bool                  `json:"hasDamage"`
	PhotoCount        int                   `json:"photoCount"`
	ReportedBy        string                `json:"reportedBy"`
	ReportedAt        time.Time             `json:"reportedAt"`
}

func NewDamageReported(t *models.TripSegment, loc models.DamageLocation, by string) DamageReported {
	rep := t.Damage[loc]
	return DamageReported{
		TripSegmentID:     t.ID.Hex(),
		TripSegmentNumber: t.TripSegmentNumber,
		Location:          loc,
		HasDamage:         rep.HasDamage,
		PhotoCount:        len(rep.Photos),
		ReportedBy:        by,
		ReportedAt:        rep.ReportedAt,
	}
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }
func (NopPublisher) Close() error { return nil }
