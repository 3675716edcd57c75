package elevfsm

import (
	"elevcore/common"
)

// Step advances the car by one tick. A tick does at most one of: pause at a
// reversal point, keep or close an open door, open the door to serve the
// current floor, or move one floor. It returns the requests served.
func (c *Car) Step() []common.Request {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ticks++
	if c.failed {
		return nil
	}

	if c.timer.pausing() {
		c.timer.tickPause()
		return nil
	}

	if c.door == common.Open {
		// Late arrivals going the boarding way get on without the door
		// cycling. The other way waits for the door to close so riders
		// already aboard can still pick a floor.
		if served := c.clearAtCurrentFloor(c.boarding); len(served) > 0 {
			c.timer.startDoor(c.opts.DoorOpenTicks)
			c.logServed(served)
			return served
		}
		if !c.timer.tickDoor() {
			return nil
		}
		c.door = common.Closed
		c.setDirn(c.chooseDirection())
		Log.Debug().Int("car", c.id).Int("floor", c.floor).Str("dirn", c.dirn.String()).Msg("door closed")
		return nil
	}

	if served := c.clearAtCurrentFloor(common.Idle); len(served) > 0 {
		c.door = common.Open
		c.timer.startDoor(c.opts.DoorOpenTicks)
		c.logServed(served)
		return served
	}

	next := c.chooseDirection()
	if next == common.Idle {
		c.setDirn(common.Idle)
		return nil
	}

	if c.opts.ReversalDwellTicks > 0 && !c.reversed && c.lastMove != common.Idle && next == c.lastMove.Opposite() {
		c.dirn = next
		c.reversed = true
		c.timer.startPause(c.opts.ReversalDwellTicks)
		c.timer.tickPause()
		Log.Debug().Int("car", c.id).Int("floor", c.floor).Str("dirn", next.String()).Msg("pausing at reversal point")
		return nil
	}

	target := c.floor + int(next)
	if err := common.CheckFloor(target, c.minFloor, c.maxFloor); err != nil {
		Log.Error().Err(err).Int("car", c.id).Msg("refusing to move outside the building")
		c.setDirn(common.Idle)
		return nil
	}
	c.dirn = next
	c.floor = target
	c.lastMove = next
	c.reversed = false
	return nil
}

// AddRequest offers a hall call to the car. An idle car always accepts; a
// moving car accepts only calls it can reach without turning around first.
func (c *Car) AddRequest(r common.Request) AddResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failed || common.CheckFloor(r.Floor, c.minFloor, c.maxFloor) != nil {
		return Deferred
	}
	if r.Kind == common.Car {
		if _, err := c.addCarCallLocked(r); err != nil {
			return Deferred
		}
		return Accepted
	}
	if r.Direction != common.Up && r.Direction != common.Down {
		return Deferred
	}
	if existing, ok := c.hallTable(r.Direction)[r.Floor]; ok {
		if existing.ID == r.ID {
			return Accepted
		}
		return Deferred
	}
	if c.dirn != common.Idle && !c.ahead(r.Floor) && !c.servableHere(r) {
		Log.Debug().Int("car", c.id).Str("request", r.String()).Int("floor", c.floor).Str("dirn", c.dirn.String()).Msg("request deferred")
		return Deferred
	}

	c.hallTable(r.Direction)[r.Floor] = r
	c.wake(r.Floor)
	Log.Debug().Int("car", c.id).Str("request", r.String()).Str("dirn", c.dirn.String()).Msg("request accepted")
	return Accepted
}

// AddCarCall registers a destination chosen by a rider inside the car.
func (c *Car) AddCarCall(floor int) (common.Request, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addCarCallLocked(common.NewCarRequest(floor, c.ticks))
}

// AddCarCallAt is AddCarCall with the creation tick supplied by the caller,
// so car calls and hall calls share one clock.
func (c *Car) AddCarCallAt(floor int, now uint64) (common.Request, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addCarCallLocked(common.NewCarRequest(floor, now))
}

func (c *Car) addCarCallLocked(r common.Request) (common.Request, error) {
	if c.failed {
		return common.Request{}, common.ErrCarFailed
	}
	if err := common.CheckFloor(r.Floor, c.minFloor, c.maxFloor); err != nil {
		return common.Request{}, err
	}
	if existing, ok := c.carCalls[r.Floor]; ok {
		return existing, nil
	}
	if c.opts.Capacity > 0 && len(c.carCalls) >= c.opts.Capacity {
		return common.Request{}, &common.CarFullError{CarID: c.id, Capacity: c.opts.Capacity}
	}
	c.carCalls[r.Floor] = r
	c.wake(r.Floor)
	Log.Debug().Int("car", c.id).Str("request", r.String()).Str("dirn", c.dirn.String()).Msg("car call registered")
	return r, nil
}

// Cancel withdraws a request the car holds. An emptied car parks; an open
// door still closes on its own dwell.
func (c *Car) Cancel(id common.RequestID) (common.Request, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.findLocked(id)
	if !ok {
		return common.Request{}, false
	}
	delete(c.tableFor(r), r.Floor)
	if c.empty() && c.door == common.Closed {
		c.timer.stop()
		c.setDirn(common.Idle)
	}
	Log.Debug().Int("car", c.id).Str("request", r.String()).Msg("request cancelled")
	return r, true
}

// Drain takes the car out of service. Hall calls are returned for
// reassignment, car calls cannot follow their riders and are dropped.
func (c *Car) Drain() (halls []common.Request, dropped []common.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range c.hallUp {
		halls = append(halls, r)
	}
	for _, r := range c.hallDown {
		halls = append(halls, r)
	}
	for _, r := range c.carCalls {
		dropped = append(dropped, r)
	}
	common.SortByFloor(halls)
	common.SortByAge(halls)
	common.SortByFloor(dropped)
	common.SortByAge(dropped)

	c.hallUp = make(map[int]common.Request)
	c.hallDown = make(map[int]common.Request)
	c.carCalls = make(map[int]common.Request)
	c.failed = true
	c.door = common.Closed
	c.timer.stop()
	c.setDirn(common.Idle)
	return halls, dropped
}

// wake points an idle car at new work. A hall call already waiting at the
// current floor keeps its own direction so it is still served first, unless
// riders are boarding through the open door.
func (c *Car) wake(floor int) {
	if c.dirn != common.Idle || floor == c.floor {
		return
	}
	if c.door == common.Open && c.boarding != common.Idle {
		c.dirn = c.towards(floor)
		return
	}
	_, up := c.hallUp[c.floor]
	_, down := c.hallDown[c.floor]
	switch {
	case up && !down:
		c.dirn = common.Up
	case down && !up:
		c.dirn = common.Down
	default:
		c.dirn = c.towards(floor)
	}
}

func (c *Car) setDirn(d common.Direction) {
	c.dirn = d
	if d == common.Idle {
		c.lastMove = common.Idle
		c.reversed = false
	}
}

func (c *Car) logServed(served []common.Request) {
	for _, r := range served {
		Log.Info().Int("car", c.id).Int("floor", c.floor).Str("request", r.String()).Str("id", string(r.ID)).Msg("request served")
	}
}
