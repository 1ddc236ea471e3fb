// Package lifecycle tracks mutating actions that are in flight per target so
// the same action is never submitted twice for one target.
package lifecycle

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrInFlight = errors.New("action already in flight for target")

type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhasePending Phase = "pending"
	// PhaseSettled is held for the settle delay after End so clients can
	// show the outcome before the control returns to idle.
	PhaseSettled Phase = "settled"
)

type entry struct {
	phase Phase
	gen   uint64
	timer *time.Timer
}

// Tracker holds the in-flight targets of one action type.
type Tracker struct {
	name        string
	settleDelay time.Duration

	mu      sync.Mutex
	entries map[string]*entry
	gen     uint64

	onChange func(action, target string, phase Phase)
}

func NewTracker(name string, settleDelay time.Duration) *Tracker {
	return &Tracker{
		name:        name,
		settleDelay: settleDelay,
		entries:     make(map[string]*entry),
	}
}

// OnChange registers a callback fired on every phase transition.
// It must be set before the tracker is used.
func (t *Tracker) OnChange(fn func(action, target string, phase Phase)) {
	t.onChange = fn
}

func (t *Tracker) Name() string {
	return t.name
}

// Begin marks target as pending. It fails with ErrInFlight if target is
// already pending. A settled target may begin again.
func (t *Tracker) Begin(target string) error {
	t.mu.Lock()
	if e, ok := t.entries[target]; ok {
		if e.phase == PhasePending {
			t.mu.Unlock()
			return ErrInFlight
		}
		if e.timer != nil {
			e.timer.Stop()
		}
	}
	t.gen++
	t.entries[target] = &entry{phase: PhasePending, gen: t.gen}
	t.mu.Unlock()

	t.notify(target, PhasePending)
	return nil
}

// End settles target and forgets it once the settle delay has passed.
func (t *Tracker) End(target string) {
	t.mu.Lock()
	e, ok := t.entries[target]
	if !ok {
		t.mu.Unlock()
		return
	}

	if t.settleDelay <= 0 {
		delete(t.entries, target)
		t.mu.Unlock()
		t.notify(target, PhaseIdle)
		return
	}

	e.phase = PhaseSettled
	gen := e.gen
	e.timer = time.AfterFunc(t.settleDelay, func() { t.expire(target, gen) })
	t.mu.Unlock()

	t.notify(target, PhaseSettled)
}

func (t *Tracker) expire(target string, gen uint64) {
	t.mu.Lock()
	e, ok := t.entries[target]
	if !ok || e.gen != gen || e.phase != PhaseSettled {
		t.mu.Unlock()
		return
	}
	delete(t.entries, target)
	t.mu.Unlock()

	t.notify(target, PhaseIdle)
}

func (t *Tracker) Phase(target string) Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[target]; ok {
		return e.phase
	}
	return PhaseIdle
}

func (t *Tracker) InFlight(target string) bool {
	return t.Phase(target) == PhasePending
}

// Snapshot lists every target that is not idle.
func (t *Tracker) Snapshot() map[string]Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]Phase, len(t.entries))
	for target, e := range t.entries {
		out[target] = e.phase
	}
	return out
}

// Do runs one action against target through the Action state machine.
// apply only runs after call has succeeded; End always runs.
func (t *Tracker) Do(ctx context.Context, target string, call func(context.Context) error, apply func()) error {
	action := NewAction(t.name, target)

	if err := t.Begin(target); err != nil {
		return err
	}
	defer t.End(target)

	if err := action.Start(); err != nil {
		return err
	}
	if err := call(ctx); err != nil {
		action.Fail(err)
		return err
	}
	if err := action.Succeed(); err != nil {
		return err
	}
	return action.Apply(apply)
}

func (t *Tracker) notify(target string, phase Phase) {
	if t.onChange != nil {
		t.onChange(t.name, target, phase)
	}
}
