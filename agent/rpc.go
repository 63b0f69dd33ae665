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
	"errors"
	"fmt"
	"time"

	nats "github.com/nats-io/nats.go"
	"github.com/ugorji/go/codec"
	"github.com/vpscope/vpsagent/agent/network"
	"github.com/vpscope/vpsagent/agent/publisher"
	rmm "github.com/vpscope/vpsagent/shared"
)

const defaultRPCTimeout = 30 * time.Second

var errNoSubject = errors.New("runcmd requires a subject")

func (a *Agent) setupNatsOptions() []nats.Option {
	opts := make([]nats.Option, 0)
	opts = append(opts, nats.Name("VPSAgent"))
	opts = append(opts, nats.UserInfo(a.AgentID, a.Token))
	opts = append(opts, nats.ReconnectWait(time.Second*5))
	opts = append(opts, nats.RetryOnFailedConnect(true))
	opts = append(opts, nats.MaxReconnects(-1))
	opts = append(opts, nats.ReconnectBufSize(-1))
	opts = append(opts, nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
		if err != nil {
			a.Logger.Warnln("nats disconnected:", err)
		}
	}))
	opts = append(opts, nats.ReconnectHandler(func(nc *nats.Conn) {
		a.Logger.Infoln("nats reconnected to", nc.ConnectedUrl())
	}))
	return opts
}

func (a *Agent) RunRPC() {
	a.Logger.Infoln("Agent service started")

	opts := a.setupNatsOptions()
	nc, err := nats.Connect(a.NatsServer, opts...)
	if err != nil {
		a.Logger.Fatalln("RunRPC() nats.Connect()", err)
	}
	a.Logger.Debugf("%+v\n", nc.Opts)

	go a.RunAsService(nc)

	_, err = nc.Subscribe(a.AgentID, func(msg *nats.Msg) {
		var payload *rmm.RPCMsg
		var mh codec.MsgpackHandle
		mh.RawToString = true

		dec := codec.NewDecoderBytes(msg.Data, &mh)
		if err := dec.Decode(&payload); err != nil {
			a.Logger.Errorln(err)
			return
		}

		go func(p *rmm.RPCMsg) {
			var resp []byte
			ret := codec.NewEncoderBytes(&resp, new(codec.MsgpackHandle))
			ret.Encode(a.dispatch(nc, p))
			if err := msg.Respond(resp); err != nil {
				a.Logger.Debugln(p.Func, "Respond():", err)
			}
		}(payload)
	})
	if err != nil {
		a.Logger.Fatalln("RunRPC() nc.Subscribe()", err)
	}
	nc.Flush()

	if err := nc.LastError(); err != nil {
		a.Logger.Errorln("RunRPC()", err)
	}

	<-a.done
	a.Commands.Shutdown()
	nc.Flush()
	nc.Close()
}

// dispatch runs one rpc call and returns the value to encode as the reply
func (a *Agent) dispatch(nc publisher.MsgPublisher, p *rmm.RPCMsg) interface{} {
	timeout := defaultRPCTimeout
	if p.Timeout > 0 {
		timeout = time.Duration(p.Timeout) * time.Second
	}

	switch p.Func {
	case "ping":
		a.Logger.Debugln("pong")
		return "pong"

	case "runcmd":
		// events are not replayed, the caller must be subscribed before the first one
		subject := p.Data["subject"]
		if subject == "" {
			return rmm.RunCmdResp{Error: errNoSubject.Error()}
		}
		sink := publisher.NewNatsSink(nc, subject)

		id, err := a.Commands.Start(p.Data["command"], a.Instruments.Sink(sink))
		a.Instruments.SessionStarted(err)
		resp := rmm.RunCmdResp{Session: id, Subject: subject}
		if err != nil {
			resp.Error = err.Error()
		}
		return resp

	case "killcmd":
		if err := a.Commands.Cancel(p.Data["session"]); err != nil {
			a.Logger.Debugln("killcmd:", err)
			return err.Error()
		}
		return "ok"

	case "sessions":
		return a.Commands.Sessions()

	case "metrics":
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		snap, err := a.Metrics.Get(ctx)
		if err != nil {
			a.Logger.Errorln("metrics:", err)
			return err.Error()
		}
		return snap

	case "procs":
		return a.GetProcsRPC()

	case "killproc":
		if err := a.KillProcRPC(p.ProcPID); err != nil {
			a.Logger.Debugln("killproc:", err)
			return err.Error()
		}
		return "ok"

	case "pinghost":
		res, err := network.DoPing(p.Data["host"])
		if err != nil {
			return err.Error()
		}
		return res
	}

	return fmt.Sprintf("unknown func %q", p.Func)
}
