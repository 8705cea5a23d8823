package gpio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"

	"github.com/mklimuk/ds7505/environment"
)

func TestEdgeFor(t *testing.T) {
	assert.Equal(t, gpio.RisingEdge, EdgeFor(environment.ActiveHigh))
	assert.Equal(t, gpio.FallingEdge, EdgeFor(environment.ActiveLow))
	assert.Equal(t, gpio.High, ActiveLevel(environment.ActiveHigh))
	assert.Equal(t, gpio.Low, ActiveLevel(environment.ActiveLow))
	assert.Equal(t, gpio.PullUp, PullFor(environment.ActiveLow))
	assert.Equal(t, gpio.PullDown, PullFor(environment.ActiveHigh))
}

func TestEdgeWatcher_Watch(t *testing.T) {
	pin := &gpiotest.Pin{N: "GPIO17", Num: 17, EdgesChan: make(chan gpio.Level, 1)}
	w := NewEdgeWatcher(pin, environment.ActiveLow, WithPoll(5*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	alerts := make(chan Alert, 1)
	done := make(chan error, 1)
	go func() {
		done <- w.Watch(ctx, func(ctx context.Context, a Alert) {
			alerts <- a
		})
	}()
	// In flushes buffered edges, so wait until the pin is configured
	require.Eventually(t, func() bool {
		pin.Lock()
		defer pin.Unlock()
		return pin.P == gpio.PullUp
	}, time.Second, time.Millisecond)
	pin.EdgesChan <- gpio.Low

	select {
	case a := <-alerts:
		assert.True(t, a.Active)
		assert.Equal(t, gpio.Low, a.Level)
	case <-time.After(time.Second):
		t.Fatal("no alert")
	}
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestEdgeWatcher_PinError(t *testing.T) {
	// edge detection needs EdgesChan on the fake pin
	w := NewEdgeWatcher(&gpiotest.Pin{N: "GPIO4"}, environment.ActiveHigh)
	err := w.Watch(context.Background(), func(context.Context, Alert) {})
	assert.Error(t, err)
}

func levels(seq ...gpio.Level) LevelFunc {
	i := 0
	return func(ctx context.Context) (gpio.Level, error) {
		if i >= len(seq) {
			return seq[len(seq)-1], nil
		}
		l := seq[i]
		i++
		return l, nil
	}
}

func collect(t *testing.T, w Watcher, wait time.Duration) []Alert {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	var got []Alert
	err := w.Watch(ctx, func(ctx context.Context, a Alert) {
		got = append(got, a)
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	return got
}

func TestPolledWatcher_ActiveOnly(t *testing.T) {
	w := NewPolledWatcher(levels(gpio.High, gpio.High, gpio.Low, gpio.High, gpio.Low), environment.ActiveLow, WithPoll(time.Millisecond))
	got := collect(t, w, 100*time.Millisecond)
	require.Len(t, got, 2)
	assert.True(t, got[0].Active)
	assert.True(t, got[1].Active)
}

func TestPolledWatcher_BothEdges(t *testing.T) {
	w := NewPolledWatcher(levels(gpio.Low, gpio.High, gpio.Low), environment.ActiveHigh, WithPoll(time.Millisecond), WithBothEdges())
	got := collect(t, w, 100*time.Millisecond)
	require.Len(t, got, 2)
	assert.True(t, got[0].Active)
	assert.Equal(t, gpio.High, got[0].Level)
	assert.False(t, got[1].Active)
}

func TestPolledWatcher_ReadError(t *testing.T) {
	errRead := errors.New("usb gone")
	w := NewPolledWatcher(func(context.Context) (gpio.Level, error) {
		return gpio.Low, errRead
	}, environment.ActiveLow)
	err := w.Watch(context.Background(), func(context.Context, Alert) {})
	assert.ErrorIs(t, err, errRead)
}

func TestWithPoll_NonPositive(t *testing.T) {
	assert.Equal(t, defaultPoll, newOpts([]WatcherOpt{WithPoll(0)}).Poll)
	assert.Equal(t, defaultPoll, newOpts([]WatcherOpt{WithPoll(-time.Second)}).Poll)
	assert.Equal(t, 5*time.Millisecond, newOpts([]WatcherOpt{WithPoll(5*time.Millisecond)}).Poll)
	assert.Equal(t, defaultPoll, newOpts([]WatcherOpt{func(o *WatcherOpts) { o.Poll = 0 }}).Poll)

	w := NewPolledWatcher(levels(gpio.High, gpio.Low), environment.ActiveLow, WithPoll(0))
	assert.NotPanics(t, func() {
		got := collect(t, w, 250*time.Millisecond)
		require.Len(t, got, 1)
		assert.True(t, got[0].Active)
	})
}
