package workflow

import (
	"testing"

	"container-inspection-api-server/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextWalksMainStepsWithoutDamage(t *testing.T) {
	var seen []Step
	for s := First(); s != StepCompleted; {
		seen = append(seen, s)
		n, err := Next(s, false)
		require.NoError(t, err)
		s = n
	}
	assert.Equal(t, MainSteps[:len(MainSteps)-1], seen)

	_, err := Next(StepCompleted, false)
	assert.ErrorIs(t, err, ErrTerminal)
}

func TestNextDamageDetour(t *testing.T) {
	n, err := Next(StepLeftWall, true)
	require.NoError(t, err)
	assert.Equal(t, Step("damage_left_wall"), n)

	n, err = Next(n, false)
	require.NoError(t, err)
	assert.Equal(t, StepBackWall, n)

	// The damage answer is ignored where no question is asked.
	n, err = Next(StepTruckDetails, true)
	require.NoError(t, err)
	assert.Equal(t, StepDriverDetails, n)

	n, err = Next(Step("damage_inside"), true)
	require.NoError(t, err)
	assert.Equal(t, StepTruckDetails, n)
}

func TestBackRoutesThroughDamagedSide(t *testing.T) {
	none := DamageStatus{}
	assert.Equal(t, StepFrontWall, Back(StepLeftWall, none))

	damaged := DamageStatus{models.PhotoFrontWall: true, models.PhotoInside: true}
	assert.Equal(t, Step("damage_front_wall"), Back(StepLeftWall, damaged))
	assert.Equal(t, Step("damage_inside"), Back(StepTruckDetails, damaged))
	assert.Equal(t, StepFrontWall, Back(Step("damage_front_wall"), damaged))
	assert.Equal(t, StepContainerNumber, Back(StepFrontWall, damaged))
	assert.Equal(t, StepContainerNumber, Back(StepContainerNumber, damaged))

	cleared := DamageStatus{models.PhotoFrontWall: false}
	assert.Equal(t, StepFrontWall, Back(StepLeftWall, cleared))
}

func TestValidate(t *testing.T) {
	st := DamageStatus{models.PhotoBackWall: true}

	assert.NoError(t, Validate(StepBackWall, StepBackWall, st))
	assert.NoError(t, Validate(StepBackWall, StepRightWall, st))
	assert.NoError(t, Validate(StepBackWall, "damage_back_wall", st))
	assert.NoError(t, Validate(StepRightWall, "damage_back_wall", st))
	assert.Error(t, Validate(StepRightWall, StepBackWall, st))
	assert.Error(t, Validate(StepFrontWall, StepInside, st))
	assert.ErrorIs(t, Validate(StepFrontWall, "roof", st), ErrUnknownStep)
	assert.ErrorIs(t, Validate(StepCompleted, StepFrontWall, st), ErrTerminal)
}

func TestParseAndSides(t *testing.T) {
	s, err := Parse(" damage_right_wall ")
	require.NoError(t, err)
	loc, ok := s.Side()
	require.True(t, ok)
	assert.Equal(t, models.PhotoRightWall, loc)

	_, err = Parse("damage_truck_details")
	assert.ErrorIs(t, err, ErrUnknownStep)

	_, err = DamageStep(StepDriverDetails)
	assert.ErrorIs(t, err, ErrNotInspectable)

	st, ok := StepForSide(models.PhotoInside)
	assert.True(t, ok)
	assert.Equal(t, StepInside, st)
}

func TestProgress(t *testing.T) {
	pos, total := Progress(StepFrontWall)
	assert.Equal(t, 2, pos)
	assert.Equal(t, len(MainSteps), total)

	pos, _ = Progress("damage_front_wall")
	assert.Equal(t, 2, pos)
}
