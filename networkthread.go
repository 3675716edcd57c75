// networkthread.go
package main

import (
	"context"

	"elevcore/common"
	"elevcore/elevclock"
	"elevcore/elevnetwork"
	"elevcore/logger"
)

func networkThread(ctx context.Context, cfg common.Config, dr *elevclock.Driver, panelCmdCh chan<- panelCmd) {
	log := logger.GetLogger()

	server := elevnetwork.NewPanelServer(cfg.Network.ServerID, func(msg elevnetwork.PanelMsg) elevnetwork.PanelReply {
		reply, err := submit(ctx, panelCmdCh, msg)
		if err != nil {
			return elevnetwork.PanelReply{Seq: msg.Seq, Op: msg.Op, Error: err.Error()}
		}
		return reply
	})
	dr.OnTick(server.Broadcast)

	if err := server.ListenAndServe(ctx, cfg.Network.ListenAddr); err != nil {
		log.Error().Err(err).Str("addr", cfg.Network.ListenAddr).Msg("networkThread: panel server stopped")
	}
}
