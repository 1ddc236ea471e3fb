// Package aggregate fans a view's sections out concurrently and keeps their
// results ordered across repeated runs.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"learnlink-be/internal/pkg/logger"

	"golang.org/x/sync/errgroup"
)

var (
	ErrUnknownSection = errors.New("unknown section")
	ErrClosed         = errors.New("view closed")
)

// Runner is one independently loading section. Load must record its own
// failures and must ignore a run older than one it already started.
type Runner interface {
	Name() string
	Load(ctx context.Context, run uint64)
}

// Orchestrator issues every section of a view at once and joins them with
// settle-all semantics: a failing section never cancels its siblings.
//
// Each invocation captures a new run number. Sections compare it with the
// newest run they started, so a slow section from an old run cannot
// overwrite the result of a newer one.
type Orchestrator struct {
	runners []Runner
	byName  map[string]Runner
	logger  logger.ILogger

	lifetime context.Context
	cancel   context.CancelFunc

	run     atomic.Uint64
	invoked atomic.Bool
}

func New(log logger.ILogger, runners ...Runner) *Orchestrator {
	if log == nil {
		log = logger.NewNopLogger()
	}

	byName := make(map[string]Runner, len(runners))
	for _, r := range runners {
		byName[r.Name()] = r
	}

	lifetime, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		runners:  runners,
		byName:   byName,
		logger:   log,
		lifetime: lifetime,
		cancel:   cancel,
	}
}

// Start launches a run without waiting for it. The view can be rendered
// right away with per-section loading flags.
func (o *Orchestrator) Start() uint64 {
	run, _ := o.launch(o.runners)
	return run
}

// Refresh launches a run and waits until every section has settled. If ctx
// ends first the sections keep running and still apply their results.
func (o *Orchestrator) Refresh(ctx context.Context) (uint64, error) {
	return o.wait(ctx, o.runners)
}

// RefreshSections is Refresh restricted to the named sections.
func (o *Orchestrator) RefreshSections(ctx context.Context, names ...string) (uint64, error) {
	runners := make([]Runner, 0, len(names))
	for _, name := range names {
		r, ok := o.byName[name]
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrUnknownSection, name)
		}
		runners = append(runners, r)
	}
	return o.wait(ctx, runners)
}

// InitialLoading is true until the orchestrator has been invoked once.
func (o *Orchestrator) InitialLoading() bool {
	return !o.invoked.Load()
}

// LastRun is the number of the most recent invocation, 0 if none.
func (o *Orchestrator) LastRun() uint64 {
	return o.run.Load()
}

func (o *Orchestrator) Sections() []string {
	names := make([]string, len(o.runners))
	for i, r := range o.runners {
		names[i] = r.Name()
	}
	return names
}

// Close ends the view lifetime. Results that arrive afterwards are dropped.
func (o *Orchestrator) Close() {
	o.cancel()
}

func (o *Orchestrator) Active() bool {
	return o.lifetime.Err() == nil
}

func (o *Orchestrator) wait(ctx context.Context, runners []Runner) (uint64, error) {
	if !o.Active() {
		return 0, ErrClosed
	}

	run, done := o.launch(runners)
	select {
	case <-done:
		return run, nil
	case <-ctx.Done():
		return run, ctx.Err()
	}
}

func (o *Orchestrator) launch(runners []Runner) (uint64, <-chan struct{}) {
	run := o.run.Add(1)
	o.invoked.Store(true)

	done := make(chan struct{})
	if !o.Active() {
		close(done)
		return run, done
	}

	o.logger.Debug("Orchestrator", "Run started", map[string]interface{}{"run": run, "sections": len(runners)})

	// All sections are started before anything is awaited.
	var g errgroup.Group
	for _, r := range runners {
		g.Go(func() error {
			r.Load(o.lifetime, run)
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		close(done)
		o.logger.Debug("Orchestrator", "Run settled", map[string]interface{}{"run": run})
	}()

	return run, done
}
