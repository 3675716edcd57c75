// driver.go
// Purpose: Owns the authoritative tick counter. Each tick lets the dispatcher
// retry pending calls, steps every car once and reports what was served.
package elevclock

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"elevcore/common"
	"elevcore/elevassigner"
	"elevcore/logger"
)

var Log = logger.GetLogger()

type Options struct {
	Mode         string
	TickInterval time.Duration
	// Run stops after this many ticks, 0 runs until the context ends.
	MaxTicks uint64
	// Step the cars concurrently within a tick.
	Parallel bool
}

func OptionsFromConfig(cfg common.DriverConfig) Options {
	return Options{
		Mode:         cfg.Mode,
		TickInterval: cfg.TickInterval,
		MaxTicks:     cfg.MaxTicks,
		Parallel:     cfg.Parallel,
	}
}

// Observer receives its own copy of the car states after every tick.
type Observer func(tick uint64, states []common.CarState)

type Driver struct {
	d    *elevassigner.Dispatcher
	opts Options

	// Serializes Advance; a tick is never interleaved with another.
	advanceMu sync.Mutex
	tick      atomic.Uint64

	obsMu     sync.Mutex
	observers []Observer
}

func NewDriver(d *elevassigner.Dispatcher, opts Options) *Driver {
	if opts.Mode == "" {
		opts.Mode = common.ModeFast
	}
	return &Driver{d: d, opts: opts}
}

func (dr *Driver) Now() uint64 { return dr.tick.Load() }

func (dr *Driver) Dispatcher() *elevassigner.Dispatcher { return dr.d }

func (dr *Driver) OnTick(obs Observer) {
	dr.obsMu.Lock()
	defer dr.obsMu.Unlock()
	dr.observers = append(dr.observers, obs)
}

// Advance runs one tick and returns the new tick count.
func (dr *Driver) Advance() uint64 {
	dr.advanceMu.Lock()
	defer dr.advanceMu.Unlock()

	dr.d.Tick(dr.tick.Load())

	served := dr.stepCars()
	for _, s := range served {
		dr.d.Complete(s)
	}

	now := dr.tick.Add(1)
	dr.notify(now)
	return now
}

// stepCars steps every car exactly once. Results are kept per car in id order
// so a parallel tick reports the same thing as a sequential one.
func (dr *Driver) stepCars() [][]common.Request {
	cars := dr.d.Cars()
	served := make([][]common.Request, len(cars))
	if !dr.opts.Parallel {
		for i, car := range cars {
			served[i] = car.Step()
		}
		return served
	}

	var g errgroup.Group
	for i, car := range cars {
		i, car := i, car
		g.Go(func() error {
			served[i] = car.Step()
			return nil
		})
	}
	_ = g.Wait()
	return served
}

func (dr *Driver) notify(now uint64) {
	dr.obsMu.Lock()
	observers := append([]Observer(nil), dr.observers...)
	dr.obsMu.Unlock()
	if len(observers) == 0 {
		return
	}

	states := dr.d.Snapshot()
	for _, obs := range observers {
		cp, err := common.CopyCarStates(states)
		if err != nil {
			Log.Error().Err(err).Msg("copying car states for observer")
			cp = states
		}
		obs(now, cp)
	}
}

// Run advances ticks until ctx ends or MaxTicks is reached. Fast mode does
// not wait between ticks, real-time mode advances once per TickInterval.
func (dr *Driver) Run(ctx context.Context) error {
	Log.Info().Str("mode", dr.opts.Mode).Dur("interval", dr.opts.TickInterval).Uint64("maxTicks", dr.opts.MaxTicks).Msg("driver started")

	switch dr.opts.Mode {
	case common.ModeFast:
		for !dr.done() {
			if err := ctx.Err(); err != nil {
				return err
			}
			dr.Advance()
		}
		return nil

	case common.ModeRealTime:
		if dr.opts.TickInterval <= 0 {
			return fmt.Errorf("realtime driver needs a positive tick interval, got %v", dr.opts.TickInterval)
		}
		ticker := time.NewTicker(dr.opts.TickInterval)
		defer ticker.Stop()
		for !dr.done() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				dr.Advance()
			}
		}
		return nil
	}
	return fmt.Errorf("unknown driver mode %q", dr.opts.Mode)
}

func (dr *Driver) done() bool {
	return dr.opts.MaxTicks > 0 && dr.Now() >= dr.opts.MaxTicks
}

// RunUntilIdle advances until nothing is pending and every working car is
// parked, or maxTicks ticks have passed. It reports the tick reached and
// whether the system went idle.
func (dr *Driver) RunUntilIdle(maxTicks int) (uint64, bool) {
	for i := 0; i < maxTicks; i++ {
		if dr.d.Idle() {
			return dr.Now(), true
		}
		dr.Advance()
	}
	return dr.Now(), dr.d.Idle()
}
