// timer.go
// Purpose: Tick-counted timers for door dwell and the optional pause at a
// reversal point. Simulated time only advances through Step.
package elevfsm

type tickTimer struct {
	doorTicksLeft  int
	pauseTicksLeft int
}

func (t *tickTimer) startDoor(ticks int) {
	t.doorTicksLeft = ticks
}

// tickDoor consumes one tick of dwell and reports whether the door may close.
func (t *tickTimer) tickDoor() bool {
	if t.doorTicksLeft > 0 {
		t.doorTicksLeft--
	}
	return t.doorTicksLeft == 0
}

func (t *tickTimer) startPause(ticks int) {
	t.pauseTicksLeft = ticks
}

func (t *tickTimer) pausing() bool {
	return t.pauseTicksLeft > 0
}

func (t *tickTimer) tickPause() {
	if t.pauseTicksLeft > 0 {
		t.pauseTicksLeft--
	}
}

func (t *tickTimer) stop() {
	t.doorTicksLeft = 0
	t.pauseTicksLeft = 0
}
