package jobstate

import "testing"

func TestFreshUnitAllPending(t *testing.T) {
	m := New(VideoSteps)
	m.Add("vid1")

	for _, step := range VideoSteps {
		if got := m.Status("vid1", step); got != StatusPending {
			t.Errorf("fresh %s = %s, want pending", step, got)
		}
	}
}

func TestLegalProgression(t *testing.T) {
	m := New(VideoSteps)
	m.Add("vid1")

	for _, step := range VideoSteps {
		if err := m.Start("vid1", step); err != nil {
			t.Fatalf("Start(%s) error: %v", step, err)
		}
		if got := m.Status("vid1", step); got != StatusRunning {
			t.Fatalf("after Start, %s = %s, want running", step, got)
		}
		if err := m.Done("vid1", step); err != nil {
			t.Fatalf("Done(%s) error: %v", step, err)
		}
	}

	if m.UnitFailed("vid1") {
		t.Error("UnitFailed = true after clean run")
	}
}

func TestStartRequiresPredecessorDone(t *testing.T) {
	m := New(VideoSteps)
	m.Add("vid1")

	if err := m.Start("vid1", StepScore); err == nil {
		t.Error("Start(score) with split pending expected error")
	}

	if err := m.Start("vid1", StepSplit); err != nil {
		t.Fatal(err)
	}
	if err := m.Start("vid1", StepScore); err == nil {
		t.Error("Start(score) with split running expected error")
	}
}

func TestStartRejectsNonPending(t *testing.T) {
	m := New(PhotoSteps)
	m.Add("batch")

	if err := m.Start("batch", StepScore); err != nil {
		t.Fatal(err)
	}
	if err := m.Start("batch", StepScore); err == nil {
		t.Error("Start on running step expected error")
	}
	if err := m.Done("batch", StepScore); err != nil {
		t.Fatal(err)
	}
	if err := m.Start("batch", StepScore); err == nil {
		t.Error("Start on done step expected error")
	}
}

func TestDoneRequiresRunning(t *testing.T) {
	m := New(PhotoSteps)
	m.Add("batch")

	if err := m.Done("batch", StepScore); err == nil {
		t.Error("Done on pending step expected error")
	}
	if err := m.Fail("batch", StepScore); err == nil {
		t.Error("Fail on pending step expected error")
	}
}

func TestFailureIsolation(t *testing.T) {
	m := New(VideoSteps)
	m.Add("good")
	m.Add("bad")

	if err := m.Start("bad", StepSplit); err != nil {
		t.Fatal(err)
	}
	if err := m.Fail("bad", StepSplit); err != nil {
		t.Fatal(err)
	}

	if err := m.Start("good", StepSplit); err != nil {
		t.Fatal(err)
	}
	if err := m.Done("good", StepSplit); err != nil {
		t.Fatal(err)
	}

	if !m.UnitFailed("bad") {
		t.Error("UnitFailed(bad) = false, want true")
	}
	if m.UnitFailed("good") {
		t.Error("UnitFailed(good) = true, want false")
	}
	if got := m.Status("good", StepSplit); got != StatusDone {
		t.Errorf("good split = %s, want done", got)
	}
}

func TestRestore(t *testing.T) {
	m := New(VideoSteps)
	m.Restore("vid1", map[Step]Status{
		StepSplit:  StatusDone,
		StepScore:  StatusFailed,
		StepSelect: StatusRunning,
	})

	if got := m.Status("vid1", StepSplit); got != StatusDone {
		t.Errorf("restored split = %s, want done", got)
	}
	// Failed and crashed-while-running steps are retryable on a new run.
	if got := m.Status("vid1", StepScore); got != StatusPending {
		t.Errorf("restored score = %s, want pending", got)
	}
	if got := m.Status("vid1", StepSelect); got != StatusPending {
		t.Errorf("restored select = %s, want pending", got)
	}

	// Resumption picks up right after the done step.
	if err := m.Start("vid1", StepScore); err != nil {
		t.Errorf("Start(score) after restored split: %v", err)
	}
}

func TestSkip(t *testing.T) {
	m := New(VideoSteps)
	m.Add("vid1")

	// Skip honors the same ordering rules as Start.
	if err := m.Skip("vid1", StepConcat); err == nil {
		t.Error("Skip(concat) with select pending expected error")
	}

	for _, step := range []Step{StepSplit, StepScore, StepSelect} {
		if err := m.Start("vid1", step); err != nil {
			t.Fatal(err)
		}
		if err := m.Done("vid1", step); err != nil {
			t.Fatal(err)
		}
	}

	if err := m.Skip("vid1", StepConcat); err != nil {
		t.Fatalf("Skip(concat) error: %v", err)
	}
	if got := m.Status("vid1", StepConcat); got != StatusSkipped {
		t.Errorf("concat = %s, want skipped", got)
	}
	if m.UnitFailed("vid1") {
		t.Error("UnitFailed = true after skip")
	}
	if !m.UnitComplete("vid1") {
		t.Error("UnitComplete = false with done+skipped steps")
	}
}

func TestRestoreKeepsSkipped(t *testing.T) {
	m := New(VideoSteps)
	m.Restore("vid1", map[Step]Status{
		StepSplit:  StatusDone,
		StepScore:  StatusDone,
		StepSelect: StatusDone,
		StepConcat: StatusSkipped,
	})

	if got := m.Status("vid1", StepConcat); got != StatusSkipped {
		t.Errorf("restored concat = %s, want skipped", got)
	}
	if !m.UnitComplete("vid1") {
		t.Error("UnitComplete = false after restoring a finished unit")
	}
}

func TestUnitCompleteFalseWhilePending(t *testing.T) {
	m := New(PhotoSteps)
	m.Add("batch")
	if m.UnitComplete("batch") {
		t.Error("UnitComplete = true for fresh unit")
	}
	if m.UnitComplete("ghost") {
		t.Error("UnitComplete = true for unknown unit")
	}
}

func TestResetForcesPending(t *testing.T) {
	m := New(PhotoSteps)
	m.Restore("batch", map[Step]Status{StepScore: StatusDone, StepSelect: StatusDone})

	m.Reset("batch")
	for _, step := range PhotoSteps {
		if got := m.Status("batch", step); got != StatusPending {
			t.Errorf("after Reset, %s = %s, want pending", step, got)
		}
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	m := New(PhotoSteps)
	m.Add("batch")

	snap := m.Snapshot()
	snap["batch"][StepScore] = StatusDone

	if got := m.Status("batch", StepScore); got != StatusPending {
		t.Errorf("mutating snapshot changed machine state: %s", got)
	}

	unit := m.SnapshotUnit("batch")
	if len(unit) != len(PhotoSteps) {
		t.Errorf("SnapshotUnit has %d steps, want %d", len(unit), len(PhotoSteps))
	}
}

func TestUnknownUnit(t *testing.T) {
	m := New(PhotoSteps)
	if err := m.Start("ghost", StepScore); err == nil {
		t.Error("Start on unknown unit expected error")
	}
	if got := m.Status("ghost", StepScore); got != StatusPending {
		t.Errorf("Status on unknown unit = %s, want pending", got)
	}
}
