package input

import (
	"strings"
	"sync"
)

// SchemaVersion identifies the inbound key frame payload layout.
const SchemaVersion = "walkd.input.v1"

// Action identifies a logical movement control independent of physical keys.
type Action string

const (
	ActionForward  Action = "forward"
	ActionBackward Action = "backward"
	ActionLeft     Action = "left"
	ActionRight    Action = "right"
	ActionJump     Action = "jump"
	ActionSprint   Action = "sprint"
)

// State is the snapshot of logical flags the integrator consumes each frame.
type State struct {
	Forward  bool
	Backward bool
	Left     bool
	Right    bool
	Jump     bool
	Sprint   bool
}

// defaultBindings maps normalised physical key identifiers to logical actions.
// Both WASD and the arrow keys drive the planar actions.
var defaultBindings = map[string]Action{
	"w":          ActionForward,
	"arrowup":    ActionForward,
	"s":          ActionBackward,
	"arrowdown":  ActionBackward,
	"a":          ActionLeft,
	"arrowleft":  ActionLeft,
	"d":          ActionRight,
	"arrowright": ActionRight,
	" ":          ActionJump,
	"space":      ActionJump,
	"spacebar":   ActionJump,
	"shift":      ActionSprint,
	"shiftleft":  ActionSprint,
	"shiftright": ActionSprint,
}

// Bindings returns a copy of the key binding table for documentation endpoints.
func Bindings() map[string]Action {
	clone := make(map[string]Action, len(defaultBindings))
	for key, action := range defaultBindings {
		clone[key] = action
	}
	return clone
}

// Tracker converts raw key transitions into the persistent logical flag set.
// Each action tracks the set of physical keys currently held so that releasing
// one of two bound keys does not clear a flag the other key still asserts.
type Tracker struct {
	mu   sync.RWMutex
	held map[Action]map[string]struct{}
}

// NewTracker constructs a tracker with every flag cleared.
func NewTracker() *Tracker {
	return &Tracker{held: make(map[Action]map[string]struct{})}
}

// SetKey records a key transition. Unrecognised identifiers are silent no-ops.
func (t *Tracker) SetKey(identifier string, pressed bool) {
	if t == nil {
		return
	}
	//1.- Normalise the identifier so browser KeyboardEvent values match regardless of case.
	// The literal " " (the space bar) survives normalisation untouched.
	key := strings.ToLower(identifier)
	if trimmed := strings.TrimSpace(key); trimmed != "" {
		key = trimmed
	}
	action, ok := defaultBindings[key]
	if !ok {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	//2.- Maintain the per-action held-key set; a flag stays up while any bound key is down.
	keys := t.held[action]
	if pressed {
		if keys == nil {
			keys = make(map[string]struct{}, 2)
			t.held[action] = keys
		}
		keys[key] = struct{}{}
		return
	}
	if keys != nil {
		delete(keys, key)
		if len(keys) == 0 {
			delete(t.held, action)
		}
	}
}

// Snapshot returns the current logical flag set. Safe for re-entrant reads and
// always reflects the latest transition applied before the call.
func (t *Tracker) Snapshot() State {
	if t == nil {
		return State{}
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return State{
		Forward:  len(t.held[ActionForward]) > 0,
		Backward: len(t.held[ActionBackward]) > 0,
		Left:     len(t.held[ActionLeft]) > 0,
		Right:    len(t.held[ActionRight]) > 0,
		Jump:     len(t.held[ActionJump]) > 0,
		Sprint:   len(t.held[ActionSprint]) > 0,
	}
}

// Reset clears every held key, typically when a session loses pointer lock.
func (t *Tracker) Reset() {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.held = make(map[Action]map[string]struct{})
	t.mu.Unlock()
}
