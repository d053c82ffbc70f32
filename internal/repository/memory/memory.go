// Package memory keeps trip segments and users in process memory. It backs
// MONGO_URI=memory:// for local runs and the handler tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"container-inspection-api-server/internal/models"
	"container-inspection-api-server/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TripSegmentRepo struct {
	mu       sync.Mutex
	segments map[primitive.ObjectID]*models.TripSegment
	order    []primitive.ObjectID
	counters map[int]int64
	Now      func() time.Time
}

func NewTripSegmentRepo() *TripSegmentRepo {
	return &TripSegmentRepo{
		segments: make(map[primitive.ObjectID]*models.TripSegment),
		counters: make(map[int]int64),
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

var _ repository.TripSegmentRepository = (*TripSegmentRepo)(nil)

func cloneSegment(t *models.TripSegment) *models.TripSegment {
	c := *t
	c.Photos = make(map[models.PhotoKind]models.MediaPointer, len(t.Photos))
	for k, v := range t.Photos {
		c.Photos[k] = v
	}
	c.Damage = make(map[models.DamageLocation]models.DamageReport, len(t.Damage))
	for k, v := range t.Damage {
		v.Photos = append([]models.MediaPointer(nil), v.Photos...)
		c.Damage[k] = v
	}
	c.DamageLocations = append([]models.DamageLocation{}, t.DamageLocations...)
	if t.Driver != nil {
		d := *t.Driver
		c.Driver = &d
	}
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		c.CompletedAt = &at
	}
	return &c
}

func (r *TripSegmentRepo) Create(_ context.Context, t *models.TripSegment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	t.Year = t.CreatedAt.Year()
	r.counters[t.Year]++
	t.TripSegmentNumber = models.FormatTripSegmentNumber(t.Year, r.counters[t.Year])
	t.ID = primitive.NewObjectID()
	if t.Photos == nil {
		t.Photos = map[models.PhotoKind]models.MediaPointer{}
	}
	if t.Damage == nil {
		t.Damage = map[models.DamageLocation]models.DamageReport{}
	}
	if t.DamageLocations == nil {
		t.DamageLocations = []models.DamageLocation{}
	}

	r.segments[t.ID] = cloneSegment(t)
	r.order = append(r.order, t.ID)
	return nil
}

func (r *TripSegmentRepo) lookup(id string) (*models.TripSegment, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, repository.ErrNotFound
	}
	t, ok := r.segments[oid]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return t, nil
}

func (r *TripSegmentRepo) GetByID(_ context.Context, id string) (*models.TripSegment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	return cloneSegment(t), nil
}

func (r *TripSegmentRepo) GetByNumber(_ context.Context, number string) (*models.TripSegment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.segments {
		if t.TripSegmentNumber == number {
			return cloneSegment(t), nil
		}
	}
	return nil, repository.ErrNotFound
}

func matches(t *models.TripSegment, f repository.TripSegmentFilter) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Year != 0 && t.Year != f.Year {
		return false
	}
	if f.Container != "" && !strings.HasPrefix(strings.ToUpper(t.ContainerNumber), strings.ToUpper(f.Container)) {
		return false
	}
	if f.HasDamage != nil && t.HasDamage != *f.HasDamage {
		return false
	}
	if f.CreatedBy != "" && t.CreatedBy != f.CreatedBy {
		return false
	}
	return true
}

func (r *TripSegmentRepo) List(_ context.Context, f repository.TripSegmentFilter) ([]models.TripSegment, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var all []models.TripSegment
	// Newest first, like the Mongo sort on createdAt.
	for i := len(r.order) - 1; i >= 0; i-- {
		t := r.segments[r.order[i]]
		if matches(t, f) {
			all = append(all, *cloneSegment(t))
		}
	}
	total := int64(len(all))

	if f.Offset > 0 {
		if f.Offset >= len(all) {
			all = nil
		} else {
			all = all[f.Offset:]
		}
	}
	if f.Limit > 0 && len(all) > f.Limit {
		all = all[:f.Limit]
	}
	if all == nil {
		all = []models.TripSegment{}
	}
	return all, total, nil
}

func (r *TripSegmentRepo) Update(_ context.Context, id string, u repository.TripSegmentUpdate) (*models.TripSegment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	if u.Empty() {
		return cloneSegment(t), nil
	}

	assign := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	assign(&t.ContainerNumber, u.ContainerNumber)
	assign(&t.ContainerSize, u.ContainerSize)
	assign(&t.ContainerType, u.ContainerType)
	assign(&t.TruckNumber, u.TruckNumber)
	assign(&t.TrailerNumber, u.TrailerNumber)
	assign(&t.ChassisNumber, u.ChassisNumber)
	assign(&t.SealNumber, u.SealNumber)
	assign(&t.LoadStatus, u.LoadStatus)
	assign(&t.YardStatus, u.YardStatus)
	if u.Billing != nil {
		t.Billing = *u.Billing
	}
	t.UpdatedAt = r.Now()
	return cloneSegment(t), nil
}

// mutateOpen runs fn on a segment that is still in progress.
func (r *TripSegmentRepo) mutateOpen(id string, fn func(t *models.TripSegment)) (*models.TripSegment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	if t.Status == models.TripStatusCompleted {
		return nil, repository.ErrAlreadyCompleted
	}
	fn(t)
	t.UpdatedAt = r.Now()
	return cloneSegment(t), nil
}

func (r *TripSegmentRepo) SetPhoto(_ context.Context, id string, kind models.PhotoKind, media models.MediaPointer) (*models.TripSegment, error) {
	return r.mutateOpen(id, func(t *models.TripSegment) {
		t.Photos[kind] = media
	})
}

func (r *TripSegmentRepo) SetDamage(_ context.Context, id string, loc models.DamageLocation, hasDamage bool, notes, reportedBy string) (*models.TripSegment, error) {
	return r.mutateOpen(id, func(t *models.TripSegment) {
		rep := t.Damage[loc]
		rep.HasDamage = hasDamage
		rep.Notes = notes
		rep.ReportedBy = reportedBy
		rep.ReportedAt = r.Now()
		t.Damage[loc] = rep
		t.RecomputeDamage()
	})
}

func (r *TripSegmentRepo) AddDamagePhotos(_ context.Context, id string, loc models.DamageLocation, reportedBy string, media ...models.MediaPointer) (*models.TripSegment, error) {
	return r.mutateOpen(id, func(t *models.TripSegment) {
		rep := t.Damage[loc]
		rep.HasDamage = true
		rep.Photos = append(rep.Photos, media...)
		rep.ReportedBy = reportedBy
		rep.ReportedAt = r.Now()
		t.Damage[loc] = rep
		t.RecomputeDamage()
	})
}

func (r *TripSegmentRepo) SetStep(_ context.Context, id, step string) (*models.TripSegment, error) {
	return r.mutateOpen(id, func(t *models.TripSegment) {
		t.CurrentStep = step
	})
}

func (r *TripSegmentRepo) Complete(_ context.Context, id string, driver models.DriverDetails, truckNumber, trailerNumber string, at time.Time) (*models.TripSegment, error) {
	return r.mutateOpen(id, func(t *models.TripSegment) {
		d := driver
		t.Driver = &d
		if truckNumber != "" {
			t.TruckNumber = truckNumber
		}
		if trailerNumber != "" {
			t.TrailerNumber = trailerNumber
		}
		t.Status = models.TripStatusCompleted
		t.CurrentStep = models.TripStatusCompleted
		t.CompletedAt = &at
	})
}

type UserRepo struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*models.User
}

func NewUserRepo() *UserRepo {
	return &UserRepo{users: make(map[primitive.ObjectID]*models.User)}
}

var _ repository.UserRepository = (*UserRepo)(nil)

func cloneUser(u *models.User) *models.User {
	c := *u
	c.Permissions = append([]string(nil), u.Permissions...)
	return &c
}

func (r *UserRepo) Create(_ context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u.Username = strings.ToLower(strings.TrimSpace(u.Username))
	for _, existing := range r.users {
		if existing.Username == u.Username {
			return repository.ErrDuplicate
		}
		if u.PinDeviceID != "" && existing.PinDeviceID == u.PinDeviceID {
			return repository.ErrDuplicate
		}
	}
	u.ID = primitive.NewObjectID()
	r.users[u.ID] = cloneUser(u)
	return nil
}

func (r *UserRepo) lookup(id string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, repository.ErrNotFound
	}
	u, ok := r.users[oid]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

func (r *UserRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	return cloneUser(u), nil
}

func (r *UserRepo) find(pred func(*models.User) bool) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if pred(u) {
			return cloneUser(u), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *UserRepo) GetByUsername(_ context.Context, username string) (*models.User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	return r.find(func(u *models.User) bool { return u.Username == username })
}

func (r *UserRepo) GetByPinDevice(_ context.Context, deviceID string) (*models.User, error) {
	if deviceID == "" {
		return nil, repository.ErrNotFound
	}
	return r.find(func(u *models.User) bool { return u.PinDeviceID == deviceID })
}

func (r *UserRepo) SetPin(_ context.Context, id, pinHash, deviceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, err := r.lookup(id)
	if err != nil {
		return err
	}
	for _, other := range r.users {
		if other.ID != u.ID && deviceID != "" && other.PinDeviceID == deviceID {
			return repository.ErrDuplicate
		}
	}
	u.Pin = pinHash
	u.PinDeviceID = deviceID
	u.PinSetupRequired = false
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *UserRepo) TouchLogin(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, err := r.lookup(id)
	if err != nil {
		return err
	}
	u.LastLoginAt = &at
	return nil
}

func (r *UserRepo) CountByRole(_ context.Context, role string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, u := range r.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

func (r *UserRepo) List(_ context.Context) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, *cloneUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}
