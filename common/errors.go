package common

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidDirection = errors.New("invalid direction")
	ErrCarFailed        = errors.New("car is out of service")
	ErrUnknownRequest   = errors.New("unknown request")
	ErrUnknownCar       = errors.New("unknown car")
)

// InvalidFloorError is returned synchronously; the request is never queued.
type InvalidFloorError struct {
	Floor int
	Min   int
	Max   int
}

func (e *InvalidFloorError) Error() string {
	return fmt.Sprintf("floor %d outside building bounds [%d,%d]", e.Floor, e.Min, e.Max)
}

// CheckFloor returns an *InvalidFloorError when floor is outside [min,max].
func CheckFloor(floor, min, max int) error {
	if floor < min || floor > max {
		return &InvalidFloorError{Floor: floor, Min: min, Max: max}
	}
	return nil
}

type NoCarsConfiguredError struct{}

func (e *NoCarsConfiguredError) Error() string {
	return "dispatcher has no cars configured"
}

// NoAvailableCarError is transient: the request sits in the pending list and
// is retried every tick.
type NoAvailableCarError struct {
	RequestID    RequestID
	WaitingTicks uint64
}

func (e *NoAvailableCarError) Error() string {
	return fmt.Sprintf("no car available for request %s (waiting %d ticks)", e.RequestID, e.WaitingTicks)
}

type CarFullError struct {
	CarID    int
	Capacity int
}

func (e *CarFullError) Error() string {
	return fmt.Sprintf("car %d already holds %d car calls", e.CarID, e.Capacity)
}
