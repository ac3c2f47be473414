package timer

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GriffinCanCode/StudyDesk/backend/internal/shared/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDriveManualSource(t *testing.T) {
	tm := New(nil)
	tm.Start(types.ModeFocus, 10, StartOptions{})

	src := NewManualSource(0)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Drive(ctx, src, func(time.Time) { tm.Tick() })
	}()

	for i := 0; i < 4; i++ {
		src.Fire()
	}
	cancel()

	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 6, tm.Session().TimeLeft)
}

func TestDriveStopsWhenSourceCloses(t *testing.T) {
	src := NewManualSource(2)
	src.Fire()
	src.Fire()
	close(src.ch)

	var calls int
	err := Drive(context.Background(), src, func(time.Time) { calls++ })
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestMissedTicksAreNotCompensated(t *testing.T) {
	tm := New(nil)
	tm.Start(types.ModeFocus, 1000, StartOptions{})

	src := NewIntervalSource(time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	var received atomic.Int64
	start := time.Now()
	Drive(ctx, src, func(time.Time) {
		received.Add(1)
		tm.Tick()
		time.Sleep(5 * time.Millisecond)
	})
	elapsed := time.Since(start)

	got := int64(1000 - tm.Session().TimeLeft)
	assert.Equal(t, received.Load(), got, "one decrement per delivered tick")
	assert.Less(t, got, int64(elapsed/time.Millisecond), "ticks dropped while the consumer was busy stay dropped")
}
