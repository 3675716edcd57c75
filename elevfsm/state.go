package elevfsm

import (
	"elevcore/common"
)

// Behaviour condenses a car state into the label used in logs and on panels.
func Behaviour(cs common.CarState) string {
	switch {
	case cs.Failed:
		return "failed"
	case cs.Door == common.Open:
		return "doorOpen"
	case cs.Direction == common.Idle:
		return "idle"
	default:
		return "moving"
	}
}
