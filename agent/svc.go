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
	"net/http"
	"time"

	"github.com/kardianos/service"
	nats "github.com/nats-io/nats.go"
	"github.com/vpscope/vpsagent/agent/utils"
)

const (
	helloInterval   = 60 * time.Second
	shutdownTimeout = 10 * time.Second
)

func (a *Agent) RunAsService(nc *nats.Conn) {
	if len(a.Listen) > 0 {
		go func() {
			if err := a.Serve(); err != nil {
				a.Logger.Errorln("Serve():", err)
			}
		}()
	}

	if a.Reporter != nil {
		go a.Reporter.Run(a.context(), a.ReportInterval, a.Metrics.Get)
	}

	a.AgentSvc(nc)
}

func (a *Agent) AgentSvc(nc *nats.Conn) {
	sleepDelay := utils.RandRange(1, 5)
	a.Logger.Debugf("AgentSvc() sleeping for %v seconds", sleepDelay)
	select {
	case <-a.done:
		return
	case <-time.After(time.Duration(sleepDelay) * time.Second):
	}

	a.NatsMessage(nc, "agent-hello")
	a.NatsMessage(nc, "agent-metrics")

	checkInHelloTicker := time.NewTicker(helloInterval)
	defer checkInHelloTicker.Stop()
	checkInMetricsTicker := time.NewTicker(a.ReportInterval)
	defer checkInMetricsTicker.Stop()

	for {
		select {
		case <-a.done:
			return
		case <-checkInHelloTicker.C:
			a.NatsMessage(nc, "agent-hello")
		case <-checkInMetricsTicker.C:
			a.NatsMessage(nc, "agent-metrics")
		}
	}
}

// RunServe runs the http surface without nats until Shutdown
func (a *Agent) RunServe() {
	a.Logger.Infoln("Agent http server started")

	if a.Reporter != nil {
		go a.Reporter.Run(a.context(), a.ReportInterval, a.Metrics.Get)
	}

	if err := a.Serve(); err != nil {
		a.Logger.Fatalln("RunServe()", err)
	}
	<-a.done
}

func (a *Agent) Serve() error {
	a.Logger.Infoln("listening on", a.srv.Addr)
	err := a.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the http server and every running command
func (a *Agent) Shutdown() {
	a.stopOnce.Do(func() {
		close(a.done)

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.srv.Shutdown(ctx); err != nil {
			a.Logger.Debugln("srv.Shutdown():", err)
		}

		a.Commands.Shutdown()
		a.Logger.Infoln("Agent service stopped")
	})
}

// context is cancelled by Shutdown
func (a *Agent) context() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-a.done
		cancel()
	}()
	return ctx
}

func (a *Agent) Start(_ service.Service) error {
	go a.RunRPC()
	return nil
}

func (a *Agent) Stop(_ service.Service) error {
	a.Shutdown()
	return nil
}

func (a *Agent) InstallService() error {
	s, err := service.New(a, a.ServiceConfig)
	if err != nil {
		return err
	}

	return service.Control(s, "install")
}
