package elevfsm

import (
	"elevcore/common"
)

// clearAtCurrentFloor removes every request servable at the current floor and
// returns them. Servability is decided on the state before anything is
// removed, so an opposite hall call waits while a same-way call is here.
// Unless only is Idle, hall calls going the other way are left for later.
func (c *Car) clearAtCurrentFloor(only common.Direction) []common.Request {
	var served []common.Request

	up, hasUp := c.hallUp[c.floor]
	down, hasDown := c.hallDown[c.floor]
	serveUp := hasUp && only != common.Down && c.servableHere(up)
	serveDown := hasDown && only != common.Up && c.servableHere(down)

	if r, ok := c.carCalls[c.floor]; ok {
		served = append(served, r)
		delete(c.carCalls, c.floor)
	}
	if serveUp {
		served = append(served, up)
		delete(c.hallUp, c.floor)
	}
	if serveDown {
		served = append(served, down)
		delete(c.hallDown, c.floor)
	}
	if len(served) == 0 {
		return nil
	}

	switch {
	case c.dirn == common.Up && serveDown && !serveUp:
		c.dirn = common.Down
	case c.dirn == common.Down && serveUp && !serveDown:
		c.dirn = common.Up
	}
	if c.empty() {
		c.setDirn(common.Idle)
	} else if c.dirn == common.Idle {
		c.setDirn(c.chooseDirection())
	}

	switch {
	case serveUp && serveDown:
		c.boarding = common.Idle
	case serveUp:
		c.boarding = common.Up
	case serveDown:
		c.boarding = common.Down
	case only == common.Idle:
		// Only riders getting off, the car's next sweep decides.
		c.boarding = c.dirn
	}
	return served
}
