package inspectclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"container-inspection-api-server/internal/imaging"
	"container-inspection-api-server/internal/models"
	"container-inspection-api-server/internal/workflow"
)

var (
	ErrAnswerRequired = errors.New("answer the damage question to leave this step")
	ErrWrongStep      = errors.New("action not available on this step")
)

// StepError is a backend failure the wizard moved past.
type StepError struct {
	Step workflow.Step
	Op   string
	Err  error
}

func (e *StepError) Error() string { return fmt.Sprintf("%s on %s: %v", e.Op, e.Step, e.Err) }
func (e *StepError) Unwrap() error { return e.Err }

// Session is one inspection in progress. It keeps the draft trip segment and
// the wizard position. Saving failures while capturing do not block the
// inspector: they are kept in Errors and the wizard moves on. Only finishing
// with driver details must succeed.
type Session struct {
	client *Client
	id     string

	mu      sync.Mutex
	segment *models.TripSegment
	step    workflow.Step
	damage  workflow.DamageStatus
	errs    []error
	// pending holds steps taken locally that the server has not saved yet.
	pending []workflow.Step
}

// Start creates the trip segment for containerNumber.
func Start(ctx context.Context, client *Client, in CreateTripSegmentInput) (*Session, error) {
	t, err := client.CreateTripSegment(ctx, in)
	if err != nil {
		return nil, err
	}
	return &Session{client: client, id: t.ID.Hex(), segment: t, step: workflow.First(), damage: workflow.DamageStatus{}}, nil
}

// Resume picks up a trip segment where its last saved step left it.
func Resume(ctx context.Context, client *Client, id string) (*Session, error) {
	t, err := client.GetTripSegment(ctx, id)
	if err != nil {
		return nil, err
	}
	step, err := workflow.Parse(t.CurrentStep)
	if err != nil {
		step = workflow.First()
	}
	return &Session{
		client:  client,
		id:      id,
		segment: t,
		step:    step,
		damage:  workflow.DamageStatus(t.DamageStatus().Locations),
	}, nil
}

func (s *Session) ID() string { return s.id }

func (s *Session) Step() workflow.Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// Segment returns the draft as last known to the session.
func (s *Session) Segment() *models.TripSegment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.segment
}

func (s *Session) Errors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.errs...)
}

func (s *Session) record(op string, err error) {
	s.errs = append(s.errs, &StepError{Step: s.step, Op: op, Err: err})
}

// moveTo changes the local step and saves it on the server.
func (s *Session) moveTo(ctx context.Context, next workflow.Step) workflow.Step {
	s.step = next
	s.pending = append(s.pending, next)
	s.flush(ctx)
	return s.step
}

// flush saves the unsaved steps in the order they were taken, so each save is
// a move the server accepts. A transient failure keeps them for the next move.
func (s *Session) flush(ctx context.Context) {
	for len(s.pending) > 0 {
		t, err := s.client.SetStep(ctx, s.id, s.pending[0])
		if err != nil {
			s.record("save step", err)
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict {
				s.resync(ctx)
			}
			return
		}
		s.segment = t
		s.pending = s.pending[1:]
	}
}

// resync reloads the segment after the server refused a step. The server
// takes the local step when that is a valid move from where it is; otherwise
// the session follows the server.
func (s *Session) resync(ctx context.Context) {
	s.pending = nil
	t, err := s.client.GetTripSegment(ctx, s.id)
	if err != nil {
		s.record("reload trip segment", err)
		return
	}
	s.segment = t
	s.damage = workflow.DamageStatus(t.DamageStatus().Locations)
	if t.CurrentStep == string(s.step) {
		return
	}
	if saved, err := s.client.SetStep(ctx, s.id, s.step); err == nil {
		s.segment = saved
		return
	}
	if step, err := workflow.Parse(t.CurrentStep); err == nil {
		s.step = step
	}
}

// Capture uploads a photo into its slot without moving the wizard. A failed
// upload is recorded and the capture counts as done.
func (s *Session) Capture(ctx context.Context, kind models.PhotoKind, photo Photo, guide *imaging.Guide) {
	s.mu.Lock()
	defer s.mu.Unlock()

	media, err := s.client.UploadPhoto(ctx, s.ID(), kind, photo, guide)
	if err != nil {
		s.record("upload "+string(kind), err)
		return
	}
	if s.segment.Photos == nil {
		s.segment.Photos = map[models.PhotoKind]models.MediaPointer{}
	}
	s.segment.Photos[kind] = *media
}

// Continue leaves a step that has no damage question.
func (s *Session) Continue(ctx context.Context) (workflow.Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.step.Inspectable() {
		return s.step, ErrAnswerRequired
	}
	if s.step == workflow.StepDriverDetails || s.step == workflow.StepCompleted || s.step.IsDamage() {
		return s.step, ErrWrongStep
	}
	next, err := workflow.Next(s.step, false)
	if err != nil {
		return s.step, err
	}
	return s.moveTo(ctx, next), nil
}

// AnswerDamage answers "is this side damaged?" on a wall or inside step. Yes
// leads to the damage photos of the side, no to the next side.
func (s *Session) AnswerDamage(ctx context.Context, damaged bool, notes string) (workflow.Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	loc, ok := s.step.Side()
	if !ok || s.step.IsDamage() {
		return s.step, ErrWrongStep
	}
	s.damage[loc] = damaged
	if _, err := s.client.UpdateDamageStatus(ctx, s.ID(), loc, damaged, notes); err != nil {
		s.record("update damage status", err)
	}

	next, err := workflow.Next(s.step, damaged)
	if err != nil {
		return s.step, err
	}
	return s.moveTo(ctx, next), nil
}

// CaptureDamage uploads the damage photos of the current damage step in one
// request and moves on to the next side.
func (s *Session) CaptureDamage(ctx context.Context, photos []Photo, progress ProgressFunc) (workflow.Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.step.IsDamage() {
		return s.step, ErrWrongStep
	}
	loc, _ := s.step.Side()
	res, err := s.client.UploadDamagePhotos(ctx, s.ID(), loc, photos, progress)
	if err != nil {
		s.record("upload damage photos", err)
	} else {
		s.damage = workflow.DamageStatus(res.DamageStatus.Locations)
	}

	next, err := workflow.Next(s.step, true)
	if err != nil {
		return s.step, err
	}
	return s.moveTo(ctx, next), nil
}

// Back goes to the previous screen. After a damaged side that is the side's
// damage photos.
func (s *Session) Back(ctx context.Context) workflow.Step {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := workflow.Back(s.step, s.damage)
	if prev == s.step {
		return s.step
	}
	return s.moveTo(ctx, prev)
}

// SubmitDriver finishes the inspection. Unlike the capture steps a failure
// here leaves the session on the driver step.
func (s *Session) SubmitDriver(ctx context.Context, in DriverDetailsInput) (*models.TripSegment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.step != workflow.StepDriverDetails {
		return nil, ErrWrongStep
	}
	t, err := s.client.SubmitDriverDetails(ctx, s.ID(), in)
	if err != nil {
		return nil, err
	}
	s.segment = t
	s.step = workflow.StepCompleted
	return t, nil
}
