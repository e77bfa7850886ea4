// Package jobstate tracks per-source-unit pipeline progress so reruns skip
// completed steps and one source's failure does not abort the batch.
package jobstate

import (
	"fmt"
	"sync"
)

// Status is the lifecycle state of one pipeline step.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
	// StatusSkipped marks a step that legitimately has nothing to do, such
	// as concat after an empty selection. Unlike failed it is not an error
	// and survives resume the same way done does.
	StatusSkipped Status = "skipped"
)

// Step names one stage of a source-unit's pipeline.
type Step string

const (
	StepSplit  Step = "split"
	StepScore  Step = "score"
	StepSelect Step = "select"
	StepConcat Step = "concat"
)

// VideoSteps is the strict step order for a source video.
var VideoSteps = []Step{StepSplit, StepScore, StepSelect, StepConcat}

// PhotoSteps is the collapsed order for a photo batch.
var PhotoSteps = []Step{StepScore, StepSelect}

// Machine tracks step status for every source-unit in a run. All methods are
// safe for concurrent use; parallel workers own disjoint source-units but
// share the machine.
type Machine struct {
	mu    sync.Mutex
	order []Step
	units map[string]map[Step]Status
}

// New creates a machine enforcing the given step order.
func New(order []Step) *Machine {
	return &Machine{
		order: order,
		units: make(map[string]map[Step]Status),
	}
}

// Add registers a source-unit with every step pending. Adding an existing
// unit is a no-op.
func (m *Machine) Add(sourceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.units[sourceID]; ok {
		return
	}
	m.units[sourceID] = m.freshUnit()
}

// Restore seeds a source-unit from persisted statuses. Done steps stay done
// so they are skipped this run. Failed steps become pending again (failure
// is terminal only within the run that recorded it), as do steps persisted
// as running by a crashed run. Unknown steps are ignored.
func (m *Machine) Restore(sourceID string, statuses map[Step]Status) {
	m.mu.Lock()
	defer m.mu.Unlock()

	unit := m.freshUnit()
	for _, step := range m.order {
		if s := statuses[step]; s == StatusDone || s == StatusSkipped {
			unit[step] = s
		}
	}
	m.units[sourceID] = unit
}

// Reset forces every step of a source-unit back to pending.
func (m *Machine) Reset(sourceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.units[sourceID] = m.freshUnit()
}

// Start transitions a step to running. The step must be pending and its
// predecessor in the configured order must be done.
func (m *Machine) Start(sourceID string, step Step) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	unit, ok := m.units[sourceID]
	if !ok {
		return fmt.Errorf("unknown source unit %q", sourceID)
	}
	if unit[step] != StatusPending {
		return fmt.Errorf("step %s of %s is %s, not pending", step, sourceID, unit[step])
	}
	if pred, hasPred := m.predecessor(step); hasPred && unit[pred] != StatusDone {
		return fmt.Errorf("step %s of %s requires %s done, have %s", step, sourceID, pred, unit[pred])
	}

	unit[step] = StatusRunning
	return nil
}

// Done transitions a running step to done.
func (m *Machine) Done(sourceID string, step Step) error {
	return m.finish(sourceID, step, StatusDone)
}

// Skip marks a pending step skipped without running it. Like Start it
// requires the predecessor to be done; a selection that admitted nothing
// skips concat this way.
func (m *Machine) Skip(sourceID string, step Step) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	unit, ok := m.units[sourceID]
	if !ok {
		return fmt.Errorf("unknown source unit %q", sourceID)
	}
	if unit[step] != StatusPending {
		return fmt.Errorf("step %s of %s is %s, not pending", step, sourceID, unit[step])
	}
	if pred, hasPred := m.predecessor(step); hasPred && unit[pred] != StatusDone {
		return fmt.Errorf("step %s of %s requires %s done, have %s", step, sourceID, pred, unit[pred])
	}

	unit[step] = StatusSkipped
	return nil
}

// Fail transitions a running step to failed, marking the owning source-unit
// failed for this run. Sibling units are unaffected.
func (m *Machine) Fail(sourceID string, step Step) error {
	return m.finish(sourceID, step, StatusFailed)
}

// Status reports the current status of one step.
func (m *Machine) Status(sourceID string, step Step) Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	unit, ok := m.units[sourceID]
	if !ok {
		return StatusPending
	}
	return unit[step]
}

// UnitFailed reports whether any step of the source-unit failed this run.
func (m *Machine) UnitFailed(sourceID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, status := range m.units[sourceID] {
		if status == StatusFailed {
			return true
		}
	}
	return false
}

// UnitComplete reports whether every step of the source-unit finished, with
// done or skipped. A complete unit has nothing left to run.
func (m *Machine) UnitComplete(sourceID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	unit, ok := m.units[sourceID]
	if !ok {
		return false
	}
	for _, step := range m.order {
		if unit[step] != StatusDone && unit[step] != StatusSkipped {
			return false
		}
	}
	return true
}

// SnapshotUnit returns a copy of one unit's statuses for persistence.
func (m *Machine) SnapshotUnit(sourceID string) map[Step]Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyUnit(m.units[sourceID])
}

// Snapshot returns a deep copy of all unit statuses for persistence.
func (m *Machine) Snapshot() map[string]map[Step]Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]map[Step]Status, len(m.units))
	for id, unit := range m.units {
		out[id] = copyUnit(unit)
	}
	return out
}

func (m *Machine) finish(sourceID string, step Step, to Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	unit, ok := m.units[sourceID]
	if !ok {
		return fmt.Errorf("unknown source unit %q", sourceID)
	}
	if unit[step] != StatusRunning {
		return fmt.Errorf("step %s of %s is %s, not running", step, sourceID, unit[step])
	}

	unit[step] = to
	return nil
}

func (m *Machine) freshUnit() map[Step]Status {
	unit := make(map[Step]Status, len(m.order))
	for _, step := range m.order {
		unit[step] = StatusPending
	}
	return unit
}

func (m *Machine) predecessor(step Step) (Step, bool) {
	for i, s := range m.order {
		if s == step {
			if i == 0 {
				return "", false
			}
			return m.order[i-1], true
		}
	}
	return "", false
}

func copyUnit(unit map[Step]Status) map[Step]Status {
	out := make(map[Step]Status, len(unit))
	for step, status := range unit {
		out[step] = status
	}
	return out
}
