package schedule

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorker_LazyStart(t *testing.T) {
	w := NewWorker(0, time.Hour)
	defer w.Close()

	assert.False(t, w.Running(), "worker running before first job")

	done := make(chan struct{})
	require.True(t, w.Submit(func() { close(done) }))
	<-done
	assert.True(t, w.Running())
	assert.Equal(t, uint64(1), w.Stats().Starts)
}

func TestWorker_RunsInOrder(t *testing.T) {
	w := NewWorker(16, time.Hour)
	defer w.Close()

	var seq []int
	done := make(chan struct{})
	for i := range 10 {
		require.True(t, w.Submit(func() { seq = append(seq, i) }))
	}
	require.True(t, w.Submit(func() { close(done) }))
	<-done
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, seq)
}

func TestWorker_IdleExitAndRestart(t *testing.T) {
	w := NewWorker(4, 20*time.Millisecond)
	defer w.Close()

	require.True(t, w.Submit(func() {}))
	require.Eventually(t, func() bool { return !w.Running() }, 2*time.Second, 5*time.Millisecond,
		"worker did not exit after idle timeout")

	var ran atomic.Bool
	require.True(t, w.Submit(func() { ran.Store(true) }))
	require.Eventually(t, ran.Load, time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(2), w.Stats().Starts)
}

func TestWorker_QueueFull(t *testing.T) {
	w := NewWorker(1, time.Hour)
	defer w.Close()

	started := make(chan struct{})
	release := make(chan struct{})
	require.True(t, w.Submit(func() {
		close(started)
		<-release
	}))
	<-started

	require.True(t, w.Submit(func() {}), "queue slot should be free")
	assert.False(t, w.Submit(func() {}), "submit to a full queue should fail")
	assert.Equal(t, 1, w.Pending())
	assert.Equal(t, uint64(1), w.Stats().Rejected)

	close(release)
}

func TestWorker_RecoversPanic(t *testing.T) {
	w := NewWorker(4, time.Hour)
	defer w.Close()

	done := make(chan struct{})
	require.True(t, w.Submit(func() { panic("boom") }))
	require.True(t, w.Submit(func() { close(done) }))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker died after a panicking job")
	}
}

func TestWorker_Close(t *testing.T) {
	w := NewWorker(4, time.Hour)
	var ran atomic.Int32
	for range 3 {
		w.Submit(func() { ran.Add(1) })
	}
	w.Close()
	w.Close()
	w.Wait()

	assert.Equal(t, int32(3), ran.Load(), "queued jobs should run after Close")
	assert.False(t, w.Submit(func() {}))
	assert.False(t, w.Running())
}
