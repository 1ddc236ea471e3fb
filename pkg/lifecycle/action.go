package lifecycle

import (
	"fmt"
)

type Step string

const (
	StepIdle      Step = "idle"
	StepPending   Step = "pending"
	StepSucceeded Step = "succeeded"
	StepApplied   Step = "applied"
	StepFailed    Step = "failed"
)

var transitions = map[Step][]Step{
	StepIdle:      {StepPending},
	StepPending:   {StepSucceeded, StepFailed},
	StepSucceeded: {StepApplied},
}

// Action is a single mutating call:
//
//	idle -> pending -> succeeded -> applied
//	idle -> pending -> failed
//
// Local list changes are only allowed on the succeeded -> applied edge, so a
// failed call never leaves the view diverged from the server.
type Action struct {
	Kind   string
	Target string
	step   Step
	err    error
}

func NewAction(kind, target string) *Action {
	return &Action{Kind: kind, Target: target, step: StepIdle}
}

func (a *Action) Step() Step {
	return a.step
}

func (a *Action) Err() error {
	return a.err
}

func (a *Action) Start() error {
	return a.move(StepPending)
}

func (a *Action) Succeed() error {
	return a.move(StepSucceeded)
}

func (a *Action) Fail(err error) {
	if a.move(StepFailed) == nil {
		a.err = err
	}
}

// Apply runs fn and moves to applied. It refuses unless the call succeeded.
func (a *Action) Apply(fn func()) error {
	if a.step != StepSucceeded {
		return fmt.Errorf("%s %s: cannot apply from step %s", a.Kind, a.Target, a.step)
	}
	if fn != nil {
		fn()
	}
	return a.move(StepApplied)
}

func (a *Action) move(to Step) error {
	for _, allowed := range transitions[a.step] {
		if allowed == to {
			a.step = to
			return nil
		}
	}
	return fmt.Errorf("%s %s: invalid transition %s -> %s", a.Kind, a.Target, a.step, to)
}
