package main

import (
	"context"
	"errors"

	"elevcore/common"
	"elevcore/elevclock"
	"elevcore/elevfsm"
	"elevcore/logger"
)

// fsmThread drives every car until ctx ends or the configured tick budget is
// used up. Behaviour changes are logged per car.
func fsmThread(ctx context.Context, dr *elevclock.Driver) {
	log := logger.GetLogger()

	last := map[int]string{}
	dr.OnTick(func(tick uint64, states []common.CarState) {
		for _, s := range states {
			behaviour := elevfsm.Behaviour(s)
			if last[s.ID] == behaviour {
				continue
			}
			last[s.ID] = behaviour
			log.Debug().Uint64("tick", tick).Int("car", s.ID).Int("floor", s.Floor).Str("behaviour", behaviour).Str("dirn", s.Direction.String()).Msg("fsmThread: car changed behaviour")
		}
	})

	if err := dr.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("fsmThread: driver stopped")
	}
}
