package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLooper_DrainOrder(t *testing.T) {
	l := NewLooper()
	var got []int
	for i := range 5 {
		require.True(t, l.Post(func() { got = append(got, i) }))
	}
	assert.Equal(t, 5, l.Len())

	n := l.Drain()
	assert.Equal(t, 5, n)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
	assert.Zero(t, l.Len())
}

func TestLooper_PostDuringDrain(t *testing.T) {
	l := NewLooper()
	var got []string
	l.Post(func() {
		got = append(got, "first")
		l.Post(func() { got = append(got, "nested") })
	})
	l.Post(func() { got = append(got, "second") })

	assert.Equal(t, 3, l.Drain())
	assert.Equal(t, []string{"first", "second", "nested"}, got)
}

func TestLooper_ConcurrentPost(t *testing.T) {
	l := NewLooper()
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				l.Post(func() {})
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 800, l.Drain())
}

func TestLooper_Run(t *testing.T) {
	l := NewLooper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	ran := make(chan struct{})
	l.Post(func() { close(ran) })

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("Run did not execute posted callback")
	}
	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestLooper_Close(t *testing.T) {
	l := NewLooper()
	ran := 0
	l.Post(func() { ran++ })
	l.Post(func() { ran++ })
	l.Close()
	assert.Equal(t, 2, ran, "pending callbacks run on Close")

	assert.False(t, l.Post(func() { t.Error("callback posted after Close ran") }))
	assert.Zero(t, l.Drain())
	assert.Zero(t, l.Len())
}
