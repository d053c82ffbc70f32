// server/internal/models/trip_segment.go
package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	TripStatusInProgress = "in_progress"
	TripStatusCompleted  = "completed"

	LoadStatusLoaded = "loaded"
	LoadStatusEmpty  = "empty"

	YardStatusInYard  = "in_yard"
	YardStatusInGate  = "in_gate"
	YardStatusOutGate = "out_gate"
)

// PhotoKind names a picture slot on a trip segment. The values double as the
// middle part of the upload route, e.g. "s3-front-wall-photo".
type PhotoKind string

const (
	PhotoContainerNumber PhotoKind = "container-number"
	PhotoFrontWall       PhotoKind = "front-wall"
	PhotoBackWall        PhotoKind = "back-wall"
	PhotoLeftWall        PhotoKind = "left-wall"
	PhotoRightWall       PhotoKind = "right-wall"
	PhotoInside          PhotoKind = "inside"
	PhotoSeal            PhotoKind = "seal"
	PhotoTruckPlate      PhotoKind = "truck-plate"
	PhotoTrailerPlate    PhotoKind = "trailer-plate"
	PhotoDriverLicense   PhotoKind = "driver-license"
)

var photoKinds = map[PhotoKind]bool{
	PhotoContainerNumber: true,
	PhotoFrontWall:       true,
	PhotoBackWall:        true,
	PhotoLeftWall:        true,
	PhotoRightWall:       true,
	PhotoInside:          true,
	PhotoSeal:            true,
	PhotoTruckPlate:      true,
	PhotoTrailerPlate:    true,
	PhotoDriverLicense:   true,
}

func (k PhotoKind) Valid() bool { return photoKinds[k] }

// DamageLocation is one of the container sides that get a damage check.
type DamageLocation = PhotoKind

// DamageLocations lists the inspectable sides in wizard order.
var DamageLocations = []DamageLocation{
	PhotoFrontWall,
	PhotoLeftWall,
	PhotoBackWall,
	PhotoRightWall,
	PhotoInside,
}

func IsDamageLocation(k PhotoKind) bool {
	for _, l := range DamageLocations {
		if l == k {
			return true
		}
	}
	return false
}

type DamageReport struct {
	HasDamage  bool           `bson:"hasDamage" json:"hasDamage"`
	Notes      string         `bson:"notes,omitempty" json:"notes,omitempty"`
	Photos     []MediaPointer `bson:"photos" json:"photos"`
	ReportedBy string         `bson:"reportedBy,omitempty" json:"reportedBy,omitempty"`
	ReportedAt time.Time      `bson:"reportedAt" json:"reportedAt"`
}

type DriverDetails struct {
	Name          string `bson:"name" json:"name"`
	LicenseNumber string `bson:"licenseNumber" json:"licenseNumber"`
	Phone         string `bson:"phone,omitempty" json:"phone,omitempty"`
	Company       string `bson:"company,omitempty" json:"company,omitempty"`
}

type Billing struct {
	Billable  bool    `bson:"billable" json:"billable"`
	Customer  string  `bson:"customer,omitempty" json:"customer,omitempty"`
	Reference string  `bson:"reference,omitempty" json:"reference,omitempty"`
	Rate      float64 `bson:"rate,omitempty" json:"rate,omitempty"`
	Currency  string  `bson:"currency,omitempty" json:"currency,omitempty"`
}

// TripSegment is one container inspection pass. It is created on the first
// wizard screen and filled in step by step until the driver details close it.
type TripSegment struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TripSegmentNumber string             `bson:"tripSegmentNumber" json:"tripSegmentNumber"` // TS-2026-00042
	Year              int                `bson:"year" json:"year"`

	ContainerNumber string `bson:"containerNumber" json:"containerNumber"`
	ContainerSize   string `bson:"containerSize,omitempty" json:"containerSize,omitempty"` // 20ft, 40ft, 45ft
	ContainerType   string `bson:"containerType,omitempty" json:"containerType,omitempty"`

	Photos map[PhotoKind]MediaPointer      `bson:"photos" json:"photos"`
	Damage map[DamageLocation]DamageReport `bson:"damage" json:"damage"`

	// Denormalized from Damage so list queries can filter on it.
	HasDamage       bool             `bson:"hasDamage" json:"hasDamage"`
	DamageLocations []DamageLocation `bson:"damageLocations" json:"damageLocations"`

	TruckNumber   string         `bson:"truckNumber,omitempty" json:"truckNumber,omitempty"`
	TrailerNumber string         `bson:"trailerNumber,omitempty" json:"trailerNumber,omitempty"`
	ChassisNumber string         `bson:"chassisNumber,omitempty" json:"chassisNumber,omitempty"`
	SealNumber    string         `bson:"sealNumber,omitempty" json:"sealNumber,omitempty"`
	Driver        *DriverDetails `bson:"driver,omitempty" json:"driver,omitempty"`

	LoadStatus  string  `bson:"loadStatus,omitempty" json:"loadStatus,omitempty"`
	YardStatus  string  `bson:"yardStatus,omitempty" json:"yardStatus,omitempty"`
	Status      string  `bson:"status" json:"status"`
	CurrentStep string  `bson:"currentStep" json:"currentStep"`
	Billing     Billing `bson:"billing" json:"billing"`

	CreatedBy   string     `bson:"createdBy" json:"createdBy"`
	CreatedAt   time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time  `bson:"updatedAt" json:"updatedAt"`
	CompletedAt *time.Time `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
}

// FormatTripSegmentNumber renders the public number, e.g. TS-2026-00042.
func FormatTripSegmentNumber(year int, seq int64) string {
	return fmt.Sprintf("TS-%d-%05d", year, seq)
}

// DamageStatus is the compact view the wizard polls to decide back-routing.
type DamageStatus struct {
	HasDamage       bool                    `json:"hasDamage"`
	DamageLocations []DamageLocation        `json:"damageLocations"`
	Locations       map[DamageLocation]bool `json:"locations"`
}

func (t *TripSegment) DamageStatus() DamageStatus {
	st := DamageStatus{
		DamageLocations: []DamageLocation{},
		Locations:       make(map[DamageLocation]bool, len(t.Damage)),
	}
	for loc, rep := range t.Damage {
		st.Locations[loc] = rep.HasDamage
	}
	for _, loc := range DamageLocations {
		if st.Locations[loc] {
			st.HasDamage = true
			st.DamageLocations = append(st.DamageLocations, loc)
		}
	}
	return st
}

// RecomputeDamage refreshes the denormalized damage fields.
func (t *TripSegment) RecomputeDamage() {
	st := t.DamageStatus()
	t.HasDamage = st.HasDamage
	t.DamageLocations = st.DamageLocations
}
