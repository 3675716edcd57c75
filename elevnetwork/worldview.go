package elevnetwork

import (
	"sync"

	"elevcore/common"
)

// WorldView caches the car states of the latest tick, so a panel that joins
// between ticks still gets a picture of the building.
type WorldView struct {
	mu     sync.RWMutex
	tick   uint64
	states []common.CarState
	ready  bool
}

func NewWorldView() *WorldView {
	return &WorldView{}
}

// Update stores a copy of states. Older ticks are ignored.
func (wv *WorldView) Update(tick uint64, states []common.CarState) {
	cp, err := common.CopyCarStates(states)
	if err != nil {
		Log.Error().Err(err).Uint64("tick", tick).Msg("world view copy failed")
		return
	}
	wv.mu.Lock()
	defer wv.mu.Unlock()
	if wv.ready && tick < wv.tick {
		return
	}
	wv.tick = tick
	wv.states = cp
	wv.ready = true
}

// Snapshot returns a copy of the latest states and whether any tick was seen.
func (wv *WorldView) Snapshot() (uint64, []common.CarState, bool) {
	wv.mu.RLock()
	defer wv.mu.RUnlock()
	if !wv.ready {
		return 0, nil, false
	}
	cp, err := common.CopyCarStates(wv.states)
	if err != nil {
		Log.Error().Err(err).Msg("world view copy failed")
		return 0, nil, false
	}
	return wv.tick, cp, true
}

// Ready reports whether a tick has been recorded.
func (wv *WorldView) Ready() bool {
	wv.mu.RLock()
	defer wv.mu.RUnlock()
	return wv.ready
}
