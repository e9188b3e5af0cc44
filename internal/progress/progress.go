// Package progress models the ordered stages a single installation passes through.
package progress

import (
	"errors"
	"fmt"
	"sync"
)

// Stage is one step of the installation pipeline
type Stage int

const (
	StageNone Stage = iota
	StageInit
	StageValidate
	StageVerify
	StageReadMetadata
	StageCheckDependencies
	StageInstall
	StageConfigure
	StageFinalize
	StageComplete
)

var stagePercent = map[Stage]int{
	StageNone:              0,
	StageInit:              5,
	StageValidate:          15,
	StageVerify:            25,
	StageReadMetadata:      40,
	StageCheckDependencies: 50,
	StageInstall:           60,
	StageConfigure:         85,
	StageFinalize:          95,
	StageComplete:          100,
}

var stageNames = map[Stage]string{
	StageNone:              "none",
	StageInit:              "init",
	StageValidate:          "validate",
	StageVerify:            "verify",
	StageReadMetadata:      "read_metadata",
	StageCheckDependencies: "check_dependencies",
	StageInstall:           "install",
	StageConfigure:         "configure",
	StageFinalize:          "finalize",
	StageComplete:          "complete",
}

var stageLabels = map[Stage]string{
	StageInit:              "Preparing",
	StageValidate:          "Validating package",
	StageVerify:            "Verifying integrity",
	StageReadMetadata:      "Reading metadata",
	StageCheckDependencies: "Checking requirements",
	StageInstall:           "Installing",
	StageConfigure:         "Configuring",
	StageFinalize:          "Finalizing",
	StageComplete:          "Complete",
}

// Stages returns the pipeline stages in order
func Stages() []Stage {
	return []Stage{
		StageInit, StageValidate, StageVerify, StageReadMetadata, StageCheckDependencies,
		StageInstall, StageConfigure, StageFinalize, StageComplete,
	}
}

// Percent returns the fixed completion percentage of the stage
func (s Stage) Percent() int {
	return stagePercent[s]
}

// String returns the stable identifier of the stage
func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Label returns a short human-readable description
func (s Stage) Label() string {
	return stageLabels[s]
}

// MarshalText implements encoding.TextMarshaler
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ErrBackwardTransition is returned when a stage does not move strictly forward
var ErrBackwardTransition = errors.New("stage transition must move forward")

// Event is emitted on every stage transition
type Event struct {
	TaskID  string `json:"task_id"`
	Stage   Stage  `json:"stage"`
	Percent int    `json:"percent"`
	Attempt int    `json:"attempt"`
}

// Observer receives progress events. It is called synchronously.
type Observer func(Event)

// Tracker enforces forward-only stage transitions for a single task
type Tracker struct {
	mu       sync.Mutex
	taskID   string
	stage    Stage
	attempt  int
	observer Observer
}

// NewTracker creates a tracker positioned before StageInit
func NewTracker(taskID string, observer Observer) *Tracker {
	return &Tracker{
		taskID:   taskID,
		attempt:  1,
		observer: observer,
	}
}

// Stage returns the current stage
func (t *Tracker) Stage() Stage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stage
}

// Attempt returns the current install attempt, starting at 1
func (t *Tracker) Attempt() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attempt
}

// Advance moves to next, which must come strictly after the current stage
func (t *Tracker) Advance(next Stage) error {
	t.mu.Lock()
	if _, ok := stagePercent[next]; !ok || next == StageNone {
		t.mu.Unlock()
		return fmt.Errorf("unknown stage %d", int(next))
	}
	if next <= t.stage {
		current := t.stage
		t.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrBackwardTransition, current, next)
	}
	t.stage = next
	ev := t.eventLocked()
	t.mu.Unlock()

	t.emit(ev)
	return nil
}

// RetryInstall starts a new install attempt. This is the only transition
// allowed to revisit a stage: the tracker must be at StageInstall and the
// attempt number must grow.
func (t *Tracker) RetryInstall(attempt int) error {
	t.mu.Lock()
	if t.stage != StageInstall {
		current := t.stage
		t.mu.Unlock()
		return fmt.Errorf("retry requires stage %s, tracker is at %s", StageInstall, current)
	}
	if attempt <= t.attempt {
		current := t.attempt
		t.mu.Unlock()
		return fmt.Errorf("retry attempt %d must be greater than %d", attempt, current)
	}
	t.attempt = attempt
	ev := t.eventLocked()
	t.mu.Unlock()

	t.emit(ev)
	return nil
}

func (t *Tracker) eventLocked() Event {
	return Event{
		TaskID:  t.taskID,
		Stage:   t.stage,
		Percent: t.stage.Percent(),
		Attempt: t.attempt,
	}
}

func (t *Tracker) emit(ev Event) {
	if t.observer != nil {
		t.observer(ev)
	}
}
