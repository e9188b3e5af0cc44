package progress

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStagePercentages(t *testing.T) {
	t.Parallel()

	want := []int{5, 15, 25, 40, 50, 60, 85, 95, 100}
	stages := Stages()
	require.Len(t, stages, len(want))

	for i, s := range stages {
		assert.Equal(t, want[i], s.Percent(), s.String())
		assert.NotEmpty(t, s.Label())
		if i > 0 {
			assert.Greater(t, s.Percent(), stages[i-1].Percent())
		}
	}
}

func TestTracker_ForwardOnly(t *testing.T) {
	t.Parallel()

	var events []Event
	tr := NewTracker("task-1", func(e Event) { events = append(events, e) })

	require.NoError(t, tr.Advance(StageInit))
	require.NoError(t, tr.Advance(StageValidate))
	// skipping stages forward is allowed
	require.NoError(t, tr.Advance(StageInstall))

	err := tr.Advance(StageVerify)
	assert.ErrorIs(t, err, ErrBackwardTransition)
	err = tr.Advance(StageInstall)
	assert.ErrorIs(t, err, ErrBackwardTransition)

	assert.Equal(t, StageInstall, tr.Stage())
	require.Len(t, events, 3)
	assert.Equal(t, Event{TaskID: "task-1", Stage: StageInstall, Percent: 60, Attempt: 1}, events[2])
}

func TestTracker_FullRunIsMonotonic(t *testing.T) {
	t.Parallel()

	var percents []int
	tr := NewTracker("t", func(e Event) { percents = append(percents, e.Percent) })

	for _, s := range Stages() {
		require.NoError(t, tr.Advance(s))
	}

	assert.Equal(t, []int{5, 15, 25, 40, 50, 60, 85, 95, 100}, percents)
	assert.ErrorIs(t, tr.Advance(StageComplete), ErrBackwardTransition)
}

func TestTracker_RetryInstall(t *testing.T) {
	t.Parallel()

	var events []Event
	tr := NewTracker("t", func(e Event) { events = append(events, e) })

	// not yet installing
	require.NoError(t, tr.Advance(StageCheckDependencies))
	assert.Error(t, tr.RetryInstall(2))

	require.NoError(t, tr.Advance(StageInstall))
	require.NoError(t, tr.RetryInstall(2))
	assert.Equal(t, 2, tr.Attempt())
	assert.Error(t, tr.RetryInstall(2))

	last := events[len(events)-1]
	assert.Equal(t, StageInstall, last.Stage)
	assert.Equal(t, 60, last.Percent)
	assert.Equal(t, 2, last.Attempt)

	require.NoError(t, tr.Advance(StageConfigure))
	assert.Error(t, tr.RetryInstall(3))
}

func TestTracker_UnknownStage(t *testing.T) {
	t.Parallel()

	tr := NewTracker("t", nil)
	assert.Error(t, tr.Advance(StageNone))
	assert.Error(t, tr.Advance(Stage(42)))
}

func TestEvent_JSON(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(Event{TaskID: "x", Stage: StageConfigure, Percent: 85, Attempt: 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"task_id":"x","stage":"configure","percent":85,"attempt":1}`, string(data))
}
