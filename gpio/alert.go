// Package gpio watches the DS7505 O.S. (thermostat output) pin. The driver
// only tells which polarity is configured; the pin itself belongs to the host.
package gpio

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"periph.io/x/conn/v3/gpio"

	"github.com/mklimuk/ds7505/adapter"
	"github.com/mklimuk/ds7505/environment"
)

// Alert is a single O.S. transition.
type Alert struct {
	Active bool
	Level  gpio.Level
	Time   time.Time
}

type AlertHandler func(ctx context.Context, alert Alert)

// Watcher blocks delivering alerts until ctx is done or the pin fails.
type Watcher interface {
	Watch(ctx context.Context, handler AlertHandler) error
}

// EdgeFor returns the edge on which the output becomes active.
func EdgeFor(pol environment.Polarity) gpio.Edge {
	if pol == environment.ActiveHigh {
		return gpio.RisingEdge
	}
	return gpio.FallingEdge
}

// ActiveLevel returns the pin level of an asserted output.
func ActiveLevel(pol environment.Polarity) gpio.Level {
	return pol == environment.ActiveHigh
}

// PullFor returns the idle pull: the O.S. output is open drain.
func PullFor(pol environment.Polarity) gpio.Pull {
	if pol == environment.ActiveHigh {
		return gpio.PullDown
	}
	return gpio.PullUp
}

type WatcherOpts struct {
	BothEdges bool
	Poll      time.Duration
}

type WatcherOpt func(*WatcherOpts)

// WithBothEdges reports deassertion as well as assertion.
func WithBothEdges() WatcherOpt {
	return func(o *WatcherOpts) {
		o.BothEdges = true
	}
}

// WithPoll sets how often the context is checked while waiting for an edge,
// or the sampling period of a PolledWatcher. Non-positive values keep the
// default of 100ms.
func WithPoll(poll time.Duration) WatcherOpt {
	return func(o *WatcherOpts) {
		if poll > 0 {
			o.Poll = poll
		}
	}
}

const defaultPoll = 100 * time.Millisecond

func newOpts(opts []WatcherOpt) WatcherOpts {
	o := WatcherOpts{Poll: defaultPoll}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Poll <= 0 {
		o.Poll = defaultPoll
	}
	return o
}

var _ Watcher = &EdgeWatcher{}
var _ Watcher = &PolledWatcher{}

// EdgeWatcher uses pin edge detection.
type EdgeWatcher struct {
	pin      gpio.PinIn
	polarity environment.Polarity
	opts     WatcherOpts
}

func NewEdgeWatcher(pin gpio.PinIn, pol environment.Polarity, opts ...WatcherOpt) *EdgeWatcher {
	return &EdgeWatcher{pin: pin, polarity: pol, opts: newOpts(opts)}
}

func (w *EdgeWatcher) Watch(ctx context.Context, handler AlertHandler) error {
	edge := EdgeFor(w.polarity)
	if w.opts.BothEdges {
		edge = gpio.BothEdges
	}
	if err := w.pin.In(PullFor(w.polarity), edge); err != nil {
		return fmt.Errorf("could not configure %s for %s edge: %w", w.pin, edge, err)
	}
	slog.DebugContext(ctx, "watching thermostat output", "pin", w.pin.String(), "edge", edge.String())
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !w.pin.WaitForEdge(w.opts.Poll) {
			continue
		}
		level := w.pin.Read()
		handler(ctx, Alert{
			Active: level == ActiveLevel(w.polarity),
			Level:  level,
			Time:   time.Now(),
		})
	}
}

// LevelFunc samples a pin.
type LevelFunc func(ctx context.Context) (gpio.Level, error)

// MCP2221Level samples GP0..GP3 of an MCP2221 bridge.
func MCP2221Level(a *adapter.MCP2221, pin int) LevelFunc {
	return func(ctx context.Context) (gpio.Level, error) {
		values, err := a.ReadGPIO(ctx)
		if err != nil {
			return gpio.Low, err
		}
		v, err := values.Value(pin)
		if err != nil {
			return gpio.Low, err
		}
		return v != 0, nil
	}
}

// PolledWatcher samples a level and reports changes. The first sample only
// sets the reference level.
type PolledWatcher struct {
	read     LevelFunc
	polarity environment.Polarity
	opts     WatcherOpts
}

func NewPolledWatcher(read LevelFunc, pol environment.Polarity, opts ...WatcherOpt) *PolledWatcher {
	return &PolledWatcher{read: read, polarity: pol, opts: newOpts(opts)}
}

func (w *PolledWatcher) Watch(ctx context.Context, handler AlertHandler) error {
	ticker := time.NewTicker(w.opts.Poll)
	defer ticker.Stop()
	active := ActiveLevel(w.polarity)
	var last gpio.Level
	first := true
	for {
		level, err := w.read(ctx)
		if err != nil {
			return fmt.Errorf("could not sample thermostat output: %w", err)
		}
		if first {
			last = level
			first = false
		} else if level != last {
			last = level
			if w.opts.BothEdges || level == active {
				handler(ctx, Alert{Active: level == active, Level: level, Time: time.Now()})
			}
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
