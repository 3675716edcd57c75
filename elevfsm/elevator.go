package elevfsm

import (
	"fmt"
	"sort"
	"sync"

	"elevcore/common"
	"elevcore/logger"
)

var Log = logger.GetLogger()

type AddResult int

const (
	Accepted AddResult = iota
	Deferred
)

func (r AddResult) String() string {
	if r == Accepted {
		return "accepted"
	}
	return "deferred"
}

type CarOptions struct {
	// Maximum outstanding car calls, 0 means unbounded.
	Capacity           int
	DoorOpenTicks      int
	ReversalDwellTicks int
}

// Car is one independently stepped SCAN state machine. All exported methods
// are safe for concurrent use.
type Car struct {
	mu sync.Mutex

	id       int
	minFloor int
	maxFloor int
	opts     CarOptions

	floor  int
	dirn   common.Direction
	door   common.DoorState
	timer  tickTimer
	failed bool
	ticks  uint64

	// Direction of the last floor change, used to detect a reversal.
	lastMove common.Direction
	reversed bool
	// Way the riders boarding through the open door travel, Idle when either.
	boarding common.Direction

	hallUp   map[int]common.Request
	hallDown map[int]common.Request
	carCalls map[int]common.Request
}

func NewCar(id, minFloor, maxFloor, startFloor int, opts CarOptions) (*Car, error) {
	if minFloor > maxFloor {
		return nil, fmt.Errorf("car %d: minFloor %d above maxFloor %d", id, minFloor, maxFloor)
	}
	if err := common.CheckFloor(startFloor, minFloor, maxFloor); err != nil {
		return nil, fmt.Errorf("car %d start floor: %w", id, err)
	}
	if opts.DoorOpenTicks < 1 {
		opts.DoorOpenTicks = 1
	}
	if opts.ReversalDwellTicks < 0 {
		opts.ReversalDwellTicks = 0
	}
	if opts.Capacity < 0 {
		opts.Capacity = 0
	}
	return &Car{
		id:       id,
		minFloor: minFloor,
		maxFloor: maxFloor,
		opts:     opts,
		floor:    startFloor,
		dirn:     common.Idle,
		door:     common.Closed,
		hallUp:   make(map[int]common.Request),
		hallDown: make(map[int]common.Request),
		carCalls: make(map[int]common.Request),
	}, nil
}

// NewCarsFromConfig builds the configured pool, sorted by id.
func NewCarsFromConfig(cfg common.Config) ([]*Car, error) {
	cars := make([]*Car, 0, len(cfg.Cars))
	for _, cc := range cfg.Cars {
		car, err := NewCar(cc.ID, cfg.Building.MinFloor, cfg.Building.MaxFloor, cc.StartFloor, CarOptions{
			Capacity:           cc.Capacity,
			DoorOpenTicks:      cfg.Building.DoorOpenTicks,
			ReversalDwellTicks: cfg.Building.ReversalDwellTicks,
		})
		if err != nil {
			return nil, err
		}
		cars = append(cars, car)
	}
	sort.Slice(cars, func(i, j int) bool { return cars[i].id < cars[j].id })
	return cars, nil
}

func (c *Car) ID() int { return c.id }

// Bounds returns the building floors this car may visit.
func (c *Car) Bounds() (int, int) { return c.minFloor, c.maxFloor }

func (c *Car) Snapshot() common.CarState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Car) snapshotLocked() common.CarState {
	floors := make(map[int]bool)
	reqs := make([]common.Request, 0, len(c.hallUp)+len(c.hallDown)+len(c.carCalls))
	for _, table := range []map[int]common.Request{c.hallUp, c.hallDown, c.carCalls} {
		for f, r := range table {
			floors[f] = true
			reqs = append(reqs, r)
		}
	}
	common.SortByFloor(reqs)

	up := []int{}
	down := []int{}
	for f := range floors {
		switch {
		case f > c.floor:
			up = append(up, f)
		case f < c.floor:
			down = append(down, f)
		}
	}
	sort.Ints(up)
	sort.Sort(sort.Reverse(sort.IntSlice(down)))

	return common.CarState{
		ID:        c.id,
		Floor:     c.floor,
		Direction: c.dirn,
		Door:      c.door,
		UpQueue:   up,
		DownQueue: down,
		Requests:  reqs,
		CarCalls:  len(c.carCalls),
		Capacity:  c.opts.Capacity,
		Failed:    c.failed,
	}
}

// Holds reports whether the car still owns the request.
func (c *Car) Holds(id common.RequestID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.findLocked(id)
	return ok
}

// HasHall returns the hall call the car holds for floor and dir, if any.
func (c *Car) HasHall(floor int, dir common.Direction) (common.Request, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.hallTable(dir)[floor]
	return r, ok
}

func (c *Car) Failed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failed
}

func (c *Car) hallTable(dir common.Direction) map[int]common.Request {
	if dir == common.Down {
		return c.hallDown
	}
	return c.hallUp
}

func (c *Car) findLocked(id common.RequestID) (common.Request, bool) {
	for _, table := range []map[int]common.Request{c.hallUp, c.hallDown, c.carCalls} {
		for _, r := range table {
			if r.ID == id {
				return r, true
			}
		}
	}
	return common.Request{}, false
}

func (c *Car) tableFor(r common.Request) map[int]common.Request {
	if r.Kind == common.Car {
		return c.carCalls
	}
	return c.hallTable(r.Direction)
}
