package main

import (
	"context"

	"elevcore/elevassigner"
	"elevcore/elevnetwork"
	"elevcore/logger"
)

// panelCmd carries one panel message to the assigner and its reply back.
type panelCmd struct {
	msg   elevnetwork.PanelMsg
	reply chan<- elevnetwork.PanelReply
}

// assignerThread is the single place where panel and console input reaches
// the dispatcher.
func assignerThread(ctx context.Context, d *elevassigner.Dispatcher, panelCmdCh <-chan panelCmd) {
	log := logger.GetLogger()
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-panelCmdCh:
			reply := elevnetwork.Apply(d, cmd.msg)
			if reply.Error != "" {
				log.Warn().Str("op", cmd.msg.Op).Str("error", reply.Error).Msg("assignerThread: request rejected")
			}
			if cmd.reply != nil {
				cmd.reply <- reply
			}
		}
	}
}

// submit hands msg to the assigner and waits for the reply.
func submit(ctx context.Context, panelCmdCh chan<- panelCmd, msg elevnetwork.PanelMsg) (elevnetwork.PanelReply, error) {
	replyCh := make(chan elevnetwork.PanelReply, 1)
	select {
	case panelCmdCh <- panelCmd{msg: msg, reply: replyCh}:
	case <-ctx.Done():
		return elevnetwork.PanelReply{}, ctx.Err()
	}
	select {
	case reply := <-replyCh:
		return reply, nil
	case <-ctx.Done():
		return elevnetwork.PanelReply{}, ctx.Err()
	}
}
