package repository

import (
	"context"
	"errors"
	"time"

	"container-inspection-api-server/internal/models"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate key")
)

type TripSegmentFilter struct {
	Status    string
	Year      int
	Container string // prefix match, case-insensitive
	HasDamage *bool
	CreatedBy string
	Limit     int
	Offset    int
}

// TripSegmentUpdate carries the partial metadata update of PUT /trip-segments/:id.
// Nil fields are left untouched.
type TripSegmentUpdate struct {
	ContainerNumber *string
	ContainerSize   *string
	ContainerType   *string
	TruckNumber     *string
	TrailerNumber   *string
	ChassisNumber   *string
	SealNumber      *string
	LoadStatus      *string
	YardStatus      *string
	Billing         *models.Billing
}

func (u TripSegmentUpdate) Empty() bool {
	return u == TripSegmentUpdate{}
}

type TripSegmentRepository interface {
	// Create assigns the next per-year number and inserts the segment.
	Create(ctx context.Context, t *models.TripSegment) error
	GetByID(ctx context.Context, id string) (*models.TripSegment, error)
	GetByNumber(ctx context.Context, number string) (*models.TripSegment, error)
	List(ctx context.Context, f TripSegmentFilter) ([]models.TripSegment, int64, error)
	Update(ctx context.Context, id string, u TripSegmentUpdate) (*models.TripSegment, error)
	SetPhoto(ctx context.Context, id string, kind models.PhotoKind, media models.MediaPointer) (*models.TripSegment, error)
	SetDamage(ctx context.Context, id string, loc models.DamageLocation, hasDamage bool, notes, reportedBy string) (*models.TripSegment, error)
	AddDamagePhotos(ctx context.Context, id string, loc models.DamageLocation, reportedBy string, media ...models.MediaPointer) (*models.TripSegment, error)
	SetStep(ctx context.Context, id, step string) (*models.TripSegment, error)
	Complete(ctx context.Context, id string, driver models.DriverDetails, truckNumber, trailerNumber string, at time.Time) (*models.TripSegment, error)
}

type UserRepository interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByPinDevice(ctx context.Context, deviceID string) (*models.User, error)
	SetPin(ctx context.Context, id, pinHash, deviceID string) error
	TouchLogin(ctx context.Context, id string, at time.Time) error
	CountByRole(ctx context.Context, role string) (int64, error)
	List(ctx context.Context) ([]models.User, error)
}

// ErrAlreadyCompleted is returned when a finished trip segment is modified.
var ErrAlreadyCompleted = errors.New("trip segment already completed")
