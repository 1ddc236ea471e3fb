package lifecycle_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"learnlink-be/pkg/lifecycle"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBeginTwiceWithoutEndFails(t *testing.T) {
	tr := lifecycle.NewTracker("send", 0)

	require.NoError(t, tr.Begin("u2"))
	assert.ErrorIs(t, tr.Begin("u2"), lifecycle.ErrInFlight)
	assert.True(t, tr.InFlight("u2"))
	assert.NoError(t, tr.Begin("u3"), "targets are independent")

	tr.End("u2")
	assert.Equal(t, lifecycle.PhaseIdle, tr.Phase("u2"))
	assert.NoError(t, tr.Begin("u2"))
}

func TestEndSettlesThenExpires(t *testing.T) {
	tr := lifecycle.NewTracker("send", 30*time.Millisecond)

	require.NoError(t, tr.Begin("u2"))
	tr.End("u2")
	assert.Equal(t, lifecycle.PhaseSettled, tr.Phase("u2"))
	assert.False(t, tr.InFlight("u2"))
	assert.Equal(t, map[string]lifecycle.Phase{"u2": lifecycle.PhaseSettled}, tr.Snapshot())

	require.Eventually(t, func() bool {
		return tr.Phase("u2") == lifecycle.PhaseIdle
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, tr.Snapshot())
}

func TestBeginDuringSettleCancelsExpiry(t *testing.T) {
	tr := lifecycle.NewTracker("send", 20*time.Millisecond)

	require.NoError(t, tr.Begin("u2"))
	tr.End("u2")
	require.NoError(t, tr.Begin("u2"))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, lifecycle.PhasePending, tr.Phase("u2"), "the old timer must not drop the new entry")
}

func TestDoAppliesOnlyAfterSuccess(t *testing.T) {
	tr := lifecycle.NewTracker("send", 0)
	applied := false

	err := tr.Do(context.Background(), "u2", func(context.Context) error {
		assert.True(t, tr.InFlight("u2"))
		assert.False(t, applied, "nothing may be applied before the call returns")
		return nil
	}, func() { applied = true })

	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, lifecycle.PhaseIdle, tr.Phase("u2"))
}

func TestDoFailureSkipsApplyAndStillEnds(t *testing.T) {
	tr := lifecycle.NewTracker("send", 0)
	boom := errors.New("boom")
	applied := false

	err := tr.Do(context.Background(), "u2", func(context.Context) error { return boom }, func() { applied = true })

	assert.ErrorIs(t, err, boom)
	assert.False(t, applied)
	assert.Equal(t, lifecycle.PhaseIdle, tr.Phase("u2"))
}

func TestDoSuppressesConcurrentDuplicates(t *testing.T) {
	tr := lifecycle.NewTracker("send", 0)
	release := make(chan struct{})
	var calls atomic.Int32

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = tr.Do(context.Background(), "u2", func(context.Context) error {
			calls.Add(1)
			<-release
			return nil
		}, nil)
	}()

	require.Eventually(t, func() bool { return tr.InFlight("u2") }, time.Second, time.Millisecond)
	err := tr.Do(context.Background(), "u2", func(context.Context) error {
		calls.Add(1)
		return nil
	}, nil)
	assert.ErrorIs(t, err, lifecycle.ErrInFlight)

	close(release)
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
}

func TestOnChangeSequence(t *testing.T) {
	tr := lifecycle.NewTracker("accept", 0)
	var phases []lifecycle.Phase
	tr.OnChange(func(action, target string, phase lifecycle.Phase) {
		assert.Equal(t, "accept", action)
		assert.Equal(t, "r1", target)
		phases = append(phases, phase)
	})

	require.NoError(t, tr.Do(context.Background(), "r1", func(context.Context) error { return nil }, nil))
	assert.Equal(t, []lifecycle.Phase{lifecycle.PhasePending, lifecycle.PhaseIdle}, phases)
}

func TestActionTransitions(t *testing.T) {
	a := lifecycle.NewAction("send", "u2")
	assert.Equal(t, lifecycle.StepIdle, a.Step())

	assert.Error(t, a.Apply(nil), "cannot apply before success")
	assert.Error(t, a.Succeed(), "cannot succeed before starting")

	require.NoError(t, a.Start())
	a.Fail(errors.New("nope"))
	assert.Equal(t, lifecycle.StepFailed, a.Step())
	assert.EqualError(t, a.Err(), "nope")
	assert.Error(t, a.Apply(nil))

	b := lifecycle.NewAction("send", "u3")
	require.NoError(t, b.Start())
	require.NoError(t, b.Succeed())
	require.NoError(t, b.Apply(func() {}))
	assert.Equal(t, lifecycle.StepApplied, b.Step())
}
