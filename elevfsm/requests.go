package elevfsm

import (
	"elevcore/common"
)

func (c *Car) requestsAbove() bool {
	for _, table := range []map[int]common.Request{c.hallUp, c.hallDown, c.carCalls} {
		for f := range table {
			if f > c.floor {
				return true
			}
		}
	}
	return false
}

func (c *Car) requestsBelow() bool {
	for _, table := range []map[int]common.Request{c.hallUp, c.hallDown, c.carCalls} {
		for f := range table {
			if f < c.floor {
				return true
			}
		}
	}
	return false
}

func (c *Car) requestsHere() bool {
	_, up := c.hallUp[c.floor]
	_, down := c.hallDown[c.floor]
	_, cab := c.carCalls[c.floor]
	return up || down || cab
}

func (c *Car) requestsBeyond(dir common.Direction) bool {
	switch dir {
	case common.Up:
		return c.requestsAbove()
	case common.Down:
		return c.requestsBelow()
	}
	return false
}

func (c *Car) empty() bool {
	return len(c.hallUp) == 0 && len(c.hallDown) == 0 && len(c.carCalls) == 0
}

// chooseDirection keeps the current sweep while anything remains ahead (or at
// this floor) and reverses only once that side is drained.
func (c *Car) chooseDirection() common.Direction {
	switch c.dirn {
	case common.Up:
		switch {
		case c.requestsAbove(), c.requestsHere():
			return common.Up
		case c.requestsBelow():
			return common.Down
		}
	case common.Down:
		switch {
		case c.requestsBelow(), c.requestsHere():
			return common.Down
		case c.requestsAbove():
			return common.Up
		}
	default:
		switch {
		case c.requestsHere():
			return common.Idle
		case c.requestsAbove() && c.requestsBelow():
			return c.oldestSide()
		case c.requestsAbove():
			return common.Up
		case c.requestsBelow():
			return common.Down
		}
	}
	return common.Idle
}

// oldestSide picks the side holding the oldest request so an idle car with
// work on both sides does not favour one of them forever.
func (c *Car) oldestSide() common.Direction {
	var oldest common.Request
	found := false
	for _, table := range []map[int]common.Request{c.hallUp, c.hallDown, c.carCalls} {
		for _, r := range table {
			if r.Floor == c.floor {
				continue
			}
			if !found || older(r, oldest, c.floor) {
				oldest = r
				found = true
			}
		}
	}
	if found && oldest.Floor < c.floor {
		return common.Down
	}
	return common.Up
}

// older orders by age, then nearest to floor, then the higher floor, so the
// choice never depends on map iteration order.
func older(a, b common.Request, floor int) bool {
	if a.CreatedAt != b.CreatedAt {
		return a.CreatedAt < b.CreatedAt
	}
	da, db := common.Abs(a.Floor-floor), common.Abs(b.Floor-floor)
	if da != db {
		return da < db
	}
	return a.Floor > b.Floor
}

// towards returns the direction an idle car takes to reach floor.
func (c *Car) towards(floor int) common.Direction {
	switch {
	case floor > c.floor:
		return common.Up
	case floor < c.floor:
		return common.Down
	}
	return common.Idle
}

// servableHere decides whether r may be served at the current floor. Hall
// calls against the sweep are served only at the terminal reversal point.
func (c *Car) servableHere(r common.Request) bool {
	if r.Floor != c.floor {
		return false
	}
	if r.Kind == common.Car || c.dirn == common.Idle || r.Direction == c.dirn {
		return true
	}
	if c.requestsBeyond(c.dirn) {
		return false
	}
	_, sameWay := c.hallTable(c.dirn)[c.floor]
	return !sameWay
}

// ahead reports whether floor lies strictly in front of the car's sweep.
func (c *Car) ahead(floor int) bool {
	switch c.dirn {
	case common.Up:
		return floor > c.floor
	case common.Down:
		return floor < c.floor
	}
	return true
}
