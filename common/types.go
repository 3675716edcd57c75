package common

import (
	"fmt"

	"github.com/google/uuid"
)

// Direction is both the travel direction of a car and the desired direction
// of a hall call. Car calls carry Idle.
type Direction int

const (
	Down Direction = -1
	Idle Direction = 0
	Up   Direction = 1
)

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	case Idle:
		return "idle"
	default:
		return "undefined"
	}
}

// Opposite returns the reverse travel direction. Idle stays Idle.
func (d Direction) Opposite() Direction {
	return -d
}

func (d Direction) MarshalText() ([]byte, error) {
	if d != Up && d != Down && d != Idle {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDirection, int(d))
	}
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(b []byte) error {
	parsed, err := ParseDirection(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDirection accepts the strings produced by Direction.String.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "up", "Up", "UP":
		return Up, nil
	case "down", "Down", "DOWN":
		return Down, nil
	case "idle", "Idle", "", "stop":
		return Idle, nil
	}
	return Idle, fmt.Errorf("%w: %q", ErrInvalidDirection, s)
}

type Kind int

const (
	Hall Kind = iota
	Car
)

func (k Kind) String() string {
	switch k {
	case Hall:
		return "hall"
	case Car:
		return "car"
	default:
		return "undefined"
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "hall":
		*k = Hall
	case "car":
		*k = Car
	default:
		return fmt.Errorf("unknown request kind %q", string(b))
	}
	return nil
}

type DoorState int

const (
	Closed DoorState = iota
	Open
)

func (ds DoorState) String() string {
	if ds == Open {
		return "open"
	}
	return "closed"
}

func (ds DoorState) MarshalText() ([]byte, error) {
	return []byte(ds.String()), nil
}

func (ds *DoorState) UnmarshalText(b []byte) error {
	switch string(b) {
	case "open":
		*ds = Open
	case "closed":
		*ds = Closed
	default:
		return fmt.Errorf("unknown door state %q", string(b))
	}
	return nil
}

type RequestID string

func NewRequestID() RequestID {
	return RequestID(uuid.NewString())
}

// Request is never mutated after creation; cars and the dispatcher only
// ever add or remove whole values.
type Request struct {
	ID        RequestID `json:"id"`
	Floor     int       `json:"floor"`
	Direction Direction `json:"direction"`
	Kind      Kind      `json:"kind"`
	CreatedAt uint64    `json:"createdAt"`
}

func NewHallRequest(floor int, dir Direction, now uint64) Request {
	return Request{ID: NewRequestID(), Floor: floor, Direction: dir, Kind: Hall, CreatedAt: now}
}

func NewCarRequest(floor int, now uint64) Request {
	return Request{ID: NewRequestID(), Floor: floor, Direction: Idle, Kind: Car, CreatedAt: now}
}

func (r Request) String() string {
	if r.Kind == Car {
		return fmt.Sprintf("car(%d)", r.Floor)
	}
	return fmt.Sprintf("hall(%d,%s)", r.Floor, r.Direction)
}

// CarState is the read-only view of a car handed to observers.
type CarState struct {
	ID        int       `json:"id"`
	Floor     int       `json:"floor"`
	Direction Direction `json:"direction"`
	Door      DoorState `json:"door"`
	UpQueue   []int     `json:"upQueue"`
	DownQueue []int     `json:"downQueue"`
	Requests  []Request `json:"requests"`
	CarCalls  int       `json:"carCalls"`
	Capacity  int       `json:"capacity"`
	Failed    bool      `json:"failed"`
}

// IsIdle reports whether the car is parked with nothing left to do.
func (cs CarState) IsIdle() bool {
	return cs.Direction == Idle && cs.Door == Closed && len(cs.Requests) == 0
}
