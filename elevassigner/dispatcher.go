package elevassigner

import (
	"fmt"
	"sort"
	"sync"

	"elevcore/common"
	"elevcore/elevfsm"
	"elevcore/logger"
)

var Log = logger.GetLogger()

type Status int

const (
	StatusPending Status = iota
	StatusAssigned
	StatusServed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusAssigned:
		return "assigned"
	case StatusServed:
		return "served"
	case StatusCancelled:
		return "cancelled"
	default:
		return "undefined"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type RequestStatus struct {
	Request common.Request `json:"request"`
	Status  Status         `json:"status"`
	// Car holding or having served the request, 0 while pending.
	CarID int    `json:"carId"`
	Age   uint64 `json:"age"`
}

type hallKey struct {
	floor int
	dir   common.Direction
}

type ledgerEntry struct {
	req    common.Request
	status Status
	carID  int
	doneAt uint64
	warned bool
}

// Dispatcher owns the car pool and assigns every hall call to exactly one car.
// All methods are safe for concurrent use. The dispatcher lock is always taken
// before a car lock.
type Dispatcher struct {
	mu sync.Mutex

	cars     []*elevfsm.Car
	byID     map[int]*elevfsm.Car
	minFloor int
	maxFloor int
	opts     Options

	now     uint64
	pending []common.Request
	ledger  map[common.RequestID]*ledgerEntry
	// Outstanding hall calls, for de-duplication.
	calls map[hallKey]common.RequestID
}

func New(cars []*elevfsm.Car, opts Options) (*Dispatcher, error) {
	if len(cars) == 0 {
		return nil, &common.NoCarsConfiguredError{}
	}
	sorted := append([]*elevfsm.Car(nil), cars...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID() < sorted[j].ID() })

	d := &Dispatcher{
		cars:   sorted,
		byID:   make(map[int]*elevfsm.Car, len(sorted)),
		opts:   opts,
		ledger: make(map[common.RequestID]*ledgerEntry),
		calls:  make(map[hallKey]common.RequestID),
	}
	d.minFloor, d.maxFloor = sorted[0].Bounds()
	for _, car := range sorted {
		if _, dup := d.byID[car.ID()]; dup {
			return nil, fmt.Errorf("duplicate car id %d", car.ID())
		}
		if lo, hi := car.Bounds(); lo != d.minFloor || hi != d.maxFloor {
			return nil, fmt.Errorf("car %d bounds [%d,%d] differ from [%d,%d]", car.ID(), lo, hi, d.minFloor, d.maxFloor)
		}
		d.byID[car.ID()] = car
	}
	return d, nil
}

// RequestElevator registers a hall call and returns at once. The call is
// either accepted by a car or parked as pending and retried every tick. An
// identical call still outstanding is returned instead of a new one.
func (d *Dispatcher) RequestElevator(floor int, dir common.Direction) (common.RequestID, error) {
	if err := common.CheckFloor(floor, d.minFloor, d.maxFloor); err != nil {
		return "", err
	}
	if dir != common.Up && dir != common.Down {
		return "", fmt.Errorf("hall call at floor %d: %w %q", floor, common.ErrInvalidDirection, dir)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	key := hallKey{floor: floor, dir: dir}
	if id, ok := d.calls[key]; ok {
		Log.Debug().Int("floor", floor).Str("dirn", dir.String()).Str("id", string(id)).Msg("duplicate hall call")
		return id, nil
	}

	r := common.NewHallRequest(floor, dir, d.now)
	d.calls[key] = r.ID
	entry := &ledgerEntry{req: r}
	d.ledger[r.ID] = entry
	d.placeLocked(entry)
	return r.ID, nil
}

// placeLocked hands the entry to the cheapest car that accepts it, or parks it.
func (d *Dispatcher) placeLocked(entry *ledgerEntry) {
	if carID, ok := d.assignLocked(entry.req); ok {
		entry.status = StatusAssigned
		entry.carID = carID
		return
	}
	entry.status = StatusPending
	entry.carID = 0
	d.pending = append(d.pending, entry.req)
	Log.Debug().Str("request", entry.req.String()).Str("id", string(entry.req.ID)).Msg("no car available, request pending")
}

func (d *Dispatcher) assignLocked(r common.Request) (int, bool) {
	states := make([]common.CarState, 0, len(d.cars))
	for _, car := range d.cars {
		states = append(states, car.Snapshot())
	}
	for _, c := range rankCars(states, r.Floor, r.Direction, d.opts) {
		if d.byID[c.carID].AddRequest(r) == elevfsm.Accepted {
			Log.Info().Str("request", r.String()).Str("id", string(r.ID)).Int("car", c.carID).Int("cost", c.cost).Msg("request assigned")
			return c.carID, true
		}
	}
	return 0, false
}

// Tick retries the pending calls oldest first and prunes finished ledger
// entries. The driver calls it once per tick before stepping the cars.
func (d *Dispatcher) Tick(now uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.now = now
	d.pruneLocked()

	if len(d.pending) == 0 {
		return
	}
	retry := d.pending
	d.pending = nil
	common.SortByAge(retry)
	for _, r := range retry {
		entry := d.ledger[r.ID]
		d.placeLocked(entry)
		if entry.status != StatusPending {
			continue
		}
		waiting := now - r.CreatedAt
		if d.opts.StarvationWarnTicks > 0 && waiting >= d.opts.StarvationWarnTicks && !entry.warned {
			entry.warned = true
			Log.Warn().Str("request", r.String()).Str("id", string(r.ID)).Uint64("waiting", waiting).Msg("request starving")
		}
	}
}

func (d *Dispatcher) pruneLocked() {
	if d.opts.ServedRetentionTicks == 0 {
		return
	}
	for id, entry := range d.ledger {
		if entry.status != StatusServed && entry.status != StatusCancelled {
			continue
		}
		if d.now-entry.doneAt >= d.opts.ServedRetentionTicks {
			delete(d.ledger, id)
		}
	}
}

// Complete records the requests the cars served this tick.
func (d *Dispatcher) Complete(served []common.Request) {
	if len(served) == 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, r := range served {
		entry, ok := d.ledger[r.ID]
		if !ok {
			continue
		}
		entry.status = StatusServed
		entry.doneAt = d.now
		d.forgetCallLocked(r)
	}
}

// Cancel withdraws a pending or assigned request.
func (d *Dispatcher) Cancel(id common.RequestID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.ledger[id]
	if !ok || (entry.status != StatusPending && entry.status != StatusAssigned) {
		return fmt.Errorf("cancel %s: %w", id, common.ErrUnknownRequest)
	}

	switch entry.status {
	case StatusPending:
		for i, r := range d.pending {
			if r.ID == id {
				d.pending = append(d.pending[:i], d.pending[i+1:]...)
				break
			}
		}
	case StatusAssigned:
		if _, held := d.byID[entry.carID].Cancel(id); !held {
			// Served this tick, Complete has not run yet.
			return fmt.Errorf("cancel %s: already served: %w", id, common.ErrUnknownRequest)
		}
	}
	entry.status = StatusCancelled
	entry.doneAt = d.now
	d.forgetCallLocked(entry.req)
	Log.Info().Str("request", entry.req.String()).Str("id", string(id)).Msg("request cancelled")
	return nil
}

func (d *Dispatcher) forgetCallLocked(r common.Request) {
	if r.Kind != common.Hall {
		return
	}
	key := hallKey{floor: r.Floor, dir: r.Direction}
	if d.calls[key] == r.ID {
		delete(d.calls, key)
	}
}

// AddCarCall routes a destination chosen inside a car to that car.
func (d *Dispatcher) AddCarCall(carID, floor int) (common.RequestID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	car, ok := d.byID[carID]
	if !ok {
		return "", fmt.Errorf("car call to car %d: %w", carID, common.ErrUnknownCar)
	}
	r, err := car.AddCarCallAt(floor, d.now)
	if err != nil {
		return "", fmt.Errorf("car call to car %d: %w", carID, err)
	}
	if _, known := d.ledger[r.ID]; !known {
		d.ledger[r.ID] = &ledgerEntry{req: r, status: StatusAssigned, carID: carID}
	}
	return r.ID, nil
}

// Status reports where a request is. A pending request also yields a
// *common.NoAvailableCarError carrying its waiting time.
func (d *Dispatcher) Status(id common.RequestID) (RequestStatus, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.ledger[id]
	if !ok {
		return RequestStatus{}, fmt.Errorf("status %s: %w", id, common.ErrUnknownRequest)
	}
	age := uint64(0)
	if d.now > entry.req.CreatedAt {
		age = d.now - entry.req.CreatedAt
	}
	st := RequestStatus{Request: entry.req, Status: entry.status, CarID: entry.carID, Age: age}
	if entry.status == StatusPending {
		return st, &common.NoAvailableCarError{RequestID: id, WaitingTicks: age}
	}
	return st, nil
}

// FailCar takes a car out of service. Its hall calls go back through normal
// assignment keeping their ids and age; its car calls are dropped.
func (d *Dispatcher) FailCar(carID int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	car, ok := d.byID[carID]
	if !ok {
		return fmt.Errorf("fail car %d: %w", carID, common.ErrUnknownCar)
	}
	if car.Failed() {
		return nil
	}
	halls, dropped := car.Drain()
	Log.Warn().Int("car", carID).Int("reassigning", len(halls)).Int("dropped", len(dropped)).Msg("car out of service")

	for _, r := range dropped {
		if entry, ok := d.ledger[r.ID]; ok {
			entry.status = StatusCancelled
			entry.doneAt = d.now
		}
		Log.Warn().Int("car", carID).Str("request", r.String()).Msg("car call dropped")
	}
	for _, r := range halls {
		entry, ok := d.ledger[r.ID]
		if !ok {
			entry = &ledgerEntry{req: r}
			d.ledger[r.ID] = entry
			d.calls[hallKey{floor: r.Floor, dir: r.Direction}] = r.ID
		}
		d.placeLocked(entry)
	}
	return nil
}

// Cars returns the pool sorted by id, failed cars included.
func (d *Dispatcher) Cars() []*elevfsm.Car {
	return append([]*elevfsm.Car(nil), d.cars...)
}

func (d *Dispatcher) Snapshot() []common.CarState {
	states := make([]common.CarState, 0, len(d.cars))
	for _, car := range d.cars {
		states = append(states, car.Snapshot())
	}
	return states
}

// Pending returns the unassigned hall calls, oldest first.
func (d *Dispatcher) Pending() []common.Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := append([]common.Request(nil), d.pending...)
	common.SortByAge(out)
	return out
}

// Idle reports whether nothing is pending and every working car is parked.
func (d *Dispatcher) Idle() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.pending) > 0 {
		return false
	}
	for _, car := range d.cars {
		if s := car.Snapshot(); !s.Failed && !s.IsIdle() {
			return false
		}
	}
	return true
}

func (d *Dispatcher) Bounds() (int, int) { return d.minFloor, d.maxFloor }
