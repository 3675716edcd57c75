package elevassigner

import (
	"sort"

	"elevcore/common"
)

type Options struct {
	IdlePenalty     int
	WrongWayPenalty int
	// A pending request older than this is logged as starving. 0 disables the warning.
	StarvationWarnTicks uint64
	// Served and cancelled requests stay queryable this long. 0 keeps them forever.
	ServedRetentionTicks uint64
}

func DefaultOptions() Options {
	return OptionsFromConfig(common.DefaultConfig().Dispatch)
}

func OptionsFromConfig(cfg common.DispatchConfig) Options {
	return Options{
		IdlePenalty:          cfg.IdlePenalty,
		WrongWayPenalty:      cfg.WrongWayPenalty,
		StarvationWarnTicks:  cfg.StarvationWarnTicks,
		ServedRetentionTicks: cfg.ServedRetentionTicks,
	}
}

// Cost scores how well a car suits a hall call at floor going dir. Lower is
// better:
//
//	moving towards the call in its direction  |d|
//	idle and not past the call                |d| + IdlePenalty
//	anything else                             WrongWayPenalty + |d|
func Cost(state common.CarState, floor int, dir common.Direction, opts Options) int {
	distance := common.Abs(state.Floor - floor)
	passed := (dir == common.Up && state.Floor > floor) ||
		(dir == common.Down && state.Floor < floor)

	switch {
	case passed:
		return opts.WrongWayPenalty + distance
	case state.Direction == dir:
		return distance
	case state.Direction == common.Idle:
		return distance + opts.IdlePenalty
	default:
		return opts.WrongWayPenalty + distance
	}
}

type candidate struct {
	carID int
	cost  int
}

// rankCars orders the working cars by (cost, id).
func rankCars(states []common.CarState, floor int, dir common.Direction, opts Options) []candidate {
	ranked := make([]candidate, 0, len(states))
	for _, s := range states {
		if s.Failed {
			continue
		}
		ranked = append(ranked, candidate{carID: s.ID, cost: Cost(s, floor, dir, opts)})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].cost != ranked[j].cost {
			return ranked[i].cost < ranked[j].cost
		}
		return ranked[i].carID < ranked[j].carID
	})
	return ranked
}
