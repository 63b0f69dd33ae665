/*
Copyright 2023 AmidaWare Inc.

Licensed under the Tactical RMM License Version 1.0 (the “License”).
You may only use the Licensed Software in accordance with the License.
A copy of the License is available at:

https://license.tacticalrmm.com

*/

package agent

import (
	"context"

	nats "github.com/nats-io/nats.go"
	"github.com/ugorji/go/codec"
	rmm "github.com/vpscope/vpsagent/shared"
)

func (a *Agent) NatsMessage(nc *nats.Conn, mode string) {
	var resp []byte
	var payload interface{}
	ret := codec.NewEncoderBytes(&resp, new(codec.MsgpackHandle))

	switch mode {
	case "agent-hello":
		payload = rmm.CheckInNats{
			Agentid:  a.AgentID,
			Version:  a.Version,
			Hostname: a.Hostname,
			Platform: a.Platform,
			GoArch:   a.GoArch,
			Sessions: len(a.Commands.Sessions()),
		}
	case "agent-metrics":
		ctx, cancel := context.WithTimeout(context.Background(), defaultRPCTimeout)
		defer cancel()

		snap, err := a.Metrics.Get(ctx)
		if err != nil {
			a.Logger.Errorln("NatsMessage() metrics:", err)
			return
		}
		payload = rmm.MetricsNats{
			Agentid:  a.AgentID,
			Snapshot: snap,
		}
	default:
		a.Logger.Debugln("NatsMessage() unknown mode", mode)
		return
	}

	a.Logger.Debugln(mode)
	if err := ret.Encode(payload); err != nil {
		a.Logger.Errorln("NatsMessage()", mode, err)
		return
	}
	if err := nc.PublishRequest(a.AgentID, mode, resp); err != nil {
		a.Logger.Debugln("NatsMessage()", mode, err)
	}
}
