package main

import (
	"context"
	"strings"

	"github.com/eiannone/keyboard"

	"elevcore/common"
	"elevcore/elevnetwork"
	"elevcore/logger"
)

const consoleHelp = "keys: 0-9 pick floor, u/d hall call, c car call (car 1), s snapshot, Ctrl+C quit"

// consoleThread turns single key presses into panel messages, for poking at a
// running system without a panel.
func consoleThread(ctx context.Context, cancel context.CancelFunc, cfg common.Config, panelCmdCh chan<- panelCmd) {
	log := logger.GetLogger()

	if err := keyboard.Open(); err != nil {
		log.Error().Err(err).Msg("consoleThread: keyboard unavailable")
		return
	}
	defer keyboard.Close()
	log.Info().Msg(consoleHelp)

	floor := cfg.Building.MinFloor
	carID := cfg.CarIDs()[0]
	for ctx.Err() == nil {
		char, key, err := keyboard.GetKey()
		if err != nil {
			log.Error().Err(err).Msg("consoleThread: reading key")
			return
		}
		if key == keyboard.KeyCtrlC {
			cancel()
			return
		}

		var msg elevnetwork.PanelMsg
		switch {
		case char >= '0' && char <= '9':
			floor = cfg.Building.MinFloor + int(char-'0')
			log.Info().Int("floor", floor).Msg("consoleThread: floor selected")
			continue
		case strings.ContainsRune("uU", char):
			msg = elevnetwork.PanelMsg{Op: elevnetwork.OpHall, Floor: floor, Direction: common.Up}
		case strings.ContainsRune("dD", char):
			msg = elevnetwork.PanelMsg{Op: elevnetwork.OpHall, Floor: floor, Direction: common.Down}
		case strings.ContainsRune("cC", char):
			msg = elevnetwork.PanelMsg{Op: elevnetwork.OpCar, Floor: floor, CarID: carID}
		case strings.ContainsRune("sS", char):
			msg = elevnetwork.PanelMsg{Op: elevnetwork.OpSnapshot}
		default:
			log.Info().Msg(consoleHelp)
			continue
		}

		reply, err := submit(ctx, panelCmdCh, msg)
		if err != nil {
			return
		}
		if msg.Op == elevnetwork.OpSnapshot {
			for _, s := range reply.Cars {
				log.Info().Int("car", s.ID).Int("floor", s.Floor).Str("dirn", s.Direction.String()).Str("door", s.Door.String()).Ints("up", s.UpQueue).Ints("down", s.DownQueue).Msg("consoleThread: car")
			}
			continue
		}
		log.Info().Str("op", msg.Op).Int("floor", floor).Str("id", string(reply.RequestID)).Str("error", reply.Error).Msg("consoleThread: submitted")
	}
}
