package input

import "testing"

func TestSetKeyUpdatesLogicalFlags(t *testing.T) {
	tracker := NewTracker()

	tracker.SetKey("w", true)
	tracker.SetKey("ShiftLeft", true)

	state := tracker.Snapshot()
	if !state.Forward {
		t.Fatal("expected forward flag after w press")
	}
	if !state.Sprint {
		t.Fatal("expected sprint flag after shift press")
	}
	if state.Backward || state.Left || state.Right || state.Jump {
		t.Fatalf("unexpected flags set: %+v", state)
	}

	tracker.SetKey("w", false)
	if tracker.Snapshot().Forward {
		t.Fatal("forward flag should clear once w is released")
	}
}

func TestSetKeyIsCaseInsensitive(t *testing.T) {
	tracker := NewTracker()

	tracker.SetKey("ArrowUp", true)
	if !tracker.Snapshot().Forward {
		t.Fatal("expected forward flag from ArrowUp")
	}
	tracker.SetKey("ARROWUP", false)
	if tracker.Snapshot().Forward {
		t.Fatal("release with different casing should clear the flag")
	}
}

func TestDualBoundKeysAreTrackedIndependently(t *testing.T) {
	tracker := NewTracker()

	//1.- Hold both keys bound to forward, then release only one.
	tracker.SetKey("w", true)
	tracker.SetKey("arrowup", true)
	tracker.SetKey("w", false)

	if !tracker.Snapshot().Forward {
		t.Fatal("forward must stay set while arrowup is still held")
	}

	tracker.SetKey("arrowup", false)
	if tracker.Snapshot().Forward {
		t.Fatal("forward must clear once every bound key is released")
	}
}

func TestUnrecognisedKeysAreNoOps(t *testing.T) {
	tracker := NewTracker()

	tracker.SetKey("q", true)
	tracker.SetKey("", true)
	tracker.SetKey("escape", true)

	if state := tracker.Snapshot(); state != (State{}) {
		t.Fatalf("unknown keys must not set flags, got %+v", state)
	}
}

func TestSpaceBarMapsToJump(t *testing.T) {
	tracker := NewTracker()

	tracker.SetKey(" ", true)
	if !tracker.Snapshot().Jump {
		t.Fatal("expected jump flag from the literal space identifier")
	}
	tracker.SetKey(" ", false)
	if tracker.Snapshot().Jump {
		t.Fatal("jump flag should clear on space release")
	}
}

func TestResetClearsEveryFlag(t *testing.T) {
	tracker := NewTracker()
	tracker.SetKey("w", true)
	tracker.SetKey("a", true)
	tracker.SetKey("space", true)

	tracker.Reset()

	if state := tracker.Snapshot(); state != (State{}) {
		t.Fatalf("expected cleared state after reset, got %+v", state)
	}
}

func TestNilTrackerIsSafe(t *testing.T) {
	var tracker *Tracker
	tracker.SetKey("w", true)
	if state := tracker.Snapshot(); state != (State{}) {
		t.Fatalf("nil tracker should report an empty state, got %+v", state)
	}
}
