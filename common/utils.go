// utils.go
// Purpose: Small helpers shared by the packages (request ordering, snapshot
// copies handed to several observers).
package common

import (
	"sort"

	"github.com/tiendc/go-deepcopy"
)

// SortByFloor orders requests by floor, hall calls before car calls on the
// same floor, then by creation tick.
func SortByFloor(reqs []Request) {
	sort.SliceStable(reqs, func(i, j int) bool {
		if reqs[i].Floor != reqs[j].Floor {
			return reqs[i].Floor < reqs[j].Floor
		}
		if reqs[i].Kind != reqs[j].Kind {
			return reqs[i].Kind < reqs[j].Kind
		}
		if reqs[i].CreatedAt != reqs[j].CreatedAt {
			return reqs[i].CreatedAt < reqs[j].CreatedAt
		}
		return reqs[i].Direction > reqs[j].Direction
	})
}

// SortByAge orders requests oldest first.
func SortByAge(reqs []Request) {
	sort.SliceStable(reqs, func(i, j int) bool {
		return reqs[i].CreatedAt < reqs[j].CreatedAt
	})
}

// TrimZeros strips the zero padding of a fixed-size frame.
func TrimZeros(b []byte) []byte {
	i := len(b)
	for i > 0 && b[i-1] == 0 {
		i--
	}
	return b[:i]
}

func Abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// CopyCarStates returns a deep copy so observers can keep a snapshot while the
// next tick mutates the cars.
func CopyCarStates(states []CarState) ([]CarState, error) {
	if states == nil {
		return nil, nil
	}
	out := make([]CarState, 0, len(states))
	if err := deepcopy.Copy(&out, &states); err != nil {
		return nil, err
	}
	return out, nil
}
