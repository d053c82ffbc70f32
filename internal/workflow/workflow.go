// Package workflow holds the inspection wizard's navigation rules: the order of
// the capture steps, the damage-photo detour after a damaged side, and where
// "back" lands depending on what has been reported damaged.
package workflow

import (
	"errors"
	"fmt"
	"strings"

	"container-inspection-api-server/internal/models"
)

type Step string

const (
	StepContainerNumber Step = "container_number"
	StepFrontWall       Step = "front_wall"
	StepLeftWall        Step = "left_wall"
	StepBackWall        Step = "back_wall"
	StepRightWall       Step = "right_wall"
	StepInside          Step = "inside"
	StepTruckDetails    Step = "truck_details"
	StepDriverDetails   Step = "driver_details"
	StepCompleted       Step = "completed"

	damagePrefix = "damage_"
)

// MainSteps is the wizard order without damage detours.
var MainSteps = []Step{
	StepContainerNumber,
	StepFrontWall,
	StepLeftWall,
	StepBackWall,
	StepRightWall,
	StepInside,
	StepTruckDetails,
	StepDriverDetails,
	StepCompleted,
}

var sides = map[Step]models.DamageLocation{
	StepFrontWall: models.PhotoFrontWall,
	StepLeftWall:  models.PhotoLeftWall,
	StepBackWall:  models.PhotoBackWall,
	StepRightWall: models.PhotoRightWall,
	StepInside:    models.PhotoInside,
}

var (
	ErrUnknownStep    = errors.New("unknown step")
	ErrTerminal       = errors.New("inspection already completed")
	ErrNotInspectable = errors.New("step has no damage check")
)

// DamageStatus tells, per side, whether damage was reported.
type DamageStatus map[models.DamageLocation]bool

func First() Step { return StepContainerNumber }

// Parse validates a step name coming from a client.
func Parse(s string) (Step, error) {
	st := Step(strings.TrimSpace(s))
	if st.mainIndex() >= 0 {
		return st, nil
	}
	if _, ok := st.Side(); ok && st.IsDamage() {
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStep, s)
}

func (s Step) mainIndex() int {
	for i, m := range MainSteps {
		if m == s {
			return i
		}
	}
	return -1
}

// IsDamage reports whether s is a damage-photo detour step.
func (s Step) IsDamage() bool { return strings.HasPrefix(string(s), damagePrefix) }

// Inspectable reports whether the wizard asks "damage?" on s.
func (s Step) Inspectable() bool {
	_, ok := sides[s]
	return ok
}

// Side returns the container side a wall step or damage step belongs to.
func (s Step) Side() (models.DamageLocation, bool) {
	loc, ok := sides[s.parent()]
	return loc, ok
}

// parent maps damage_front_wall to front_wall and leaves main steps alone.
func (s Step) parent() Step {
	if s.IsDamage() {
		return Step(strings.TrimPrefix(string(s), damagePrefix))
	}
	return s
}

// DamageStep returns the detour step for an inspectable side.
func DamageStep(s Step) (Step, error) {
	if !s.Inspectable() {
		return "", fmt.Errorf("%w: %s", ErrNotInspectable, s)
	}
	return Step(damagePrefix + string(s)), nil
}

// StepForSide is the main step that photographs loc.
func StepForSide(loc models.DamageLocation) (Step, bool) {
	for st, l := range sides {
		if l == loc {
			return st, true
		}
	}
	return "", false
}

// Next returns the step after s. damaged is the answer to the damage question
// and only matters on inspectable steps.
func Next(s Step, damaged bool) (Step, error) {
	if s == StepCompleted {
		return "", ErrTerminal
	}
	if s.IsDamage() {
		return nextMain(s.parent())
	}
	if s.mainIndex() < 0 {
		return "", fmt.Errorf("%w: %q", ErrUnknownStep, s)
	}
	if damaged && s.Inspectable() {
		return DamageStep(s)
	}
	return nextMain(s)
}

func nextMain(s Step) (Step, error) {
	i := s.mainIndex()
	if i < 0 {
		return "", fmt.Errorf("%w: %q", ErrUnknownStep, s)
	}
	return MainSteps[i+1], nil
}

// Back returns where the back button leads from s. Leaving a main step whose
// predecessor is a damaged side lands on that side's damage photos instead of
// the side itself.
func Back(s Step, status DamageStatus) Step {
	if s.IsDamage() {
		return s.parent()
	}
	i := s.mainIndex()
	if i <= 0 {
		return s
	}
	prev := MainSteps[i-1]
	if loc, ok := sides[prev]; ok && status[loc] {
		d, _ := DamageStep(prev)
		return d
	}
	return prev
}

// Validate accepts staying put and every move Next or Back can produce.
func Validate(from, to Step, status DamageStatus) error {
	if from == StepCompleted {
		return ErrTerminal
	}
	if _, err := Parse(string(to)); err != nil {
		return err
	}
	if to == from || to == Back(from, status) {
		return nil
	}
	for _, damaged := range []bool{false, true} {
		if n, err := Next(from, damaged); err == nil && n == to {
			return nil
		}
	}
	return fmt.Errorf("cannot move from %s to %s", from, to)
}

// Progress returns the 1-based position of s among the main steps and their
// count. Damage steps report the position of their side.
func Progress(s Step) (int, int) {
	return s.parent().mainIndex() + 1, len(MainSteps)
}
