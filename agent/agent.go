/*
Copyright 2023 AmidaWare Inc.

Licensed under the Tactical RMM License Version 1.0 (the “License”).
You may only use the Licensed Software in accordance with the License.
A copy of the License is available at:

https://license.tacticalrmm.com

*/

package agent

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/kardianos/service"
	"github.com/sirupsen/logrus"
	"github.com/vpscope/vpsagent/agent/command"
	"github.com/vpscope/vpsagent/agent/config"
	"github.com/vpscope/vpsagent/agent/metrics"
	"github.com/vpscope/vpsagent/agent/network"
	"github.com/vpscope/vpsagent/agent/publisher"
	"github.com/vpscope/vpsagent/agent/system"
	rmm "github.com/vpscope/vpsagent/shared"
)

const (
	progFilesName = "VPSAgent"
	winExeName    = "vpsagent.exe"
	svcName       = "vpsagent"
)

func New(logger *logrus.Logger, version string) *Agent {
	return NewWithConfig(config.NewAgentConfig(), logger, version)
}

// NewWithConfig wires the command and metrics subsystems from ac
func NewWithConfig(ac *rmm.AgentConfig, logger *logrus.Logger, version string) *Agent {
	info, err := system.GetHostInfo()
	if err != nil {
		logger.Debugln("GetHostInfo():", err)
	}

	exe, err := os.Executable()
	if err != nil || runtime.GOOS == "windows" {
		exe = filepath.Join(os.Getenv("ProgramFiles"), progFilesName, winExeName)
	}

	svcConf := &service.Config{
		Executable:  exe,
		Name:        svcName,
		DisplayName: "VPS Agent Service",
		Arguments:   []string{"-m", "svc"},
		Description: "Remote shell and live metrics agent",
		Option: service.KeyValue{
			"StartType":              "automatic",
			"OnFailure":              "restart",
			"OnFailureDelayDuration": "5s",
			"OnFailureResetPeriod":   10,
			"Restart":                "always",
		},
	}

	inst := NewInstruments()

	pub := publisher.New(logger)
	runner := command.NewRunner(ac.Shell, logger)
	cmds := command.NewManager(runner, pub, ac.CommandTimeout, logger)

	sampler := inst.Sampler(metrics.NewSystemSampler(metrics.DefaultProviders(), logger))
	cache := metrics.NewCache(sampler, ac.MetricsTTL, ac.SampleTimeout, logger)

	var reporter *network.Reporter
	if len(ac.ReportURL) > 0 {
		reporter = network.NewReporter(ac.ReportURL, ac.Token, ac.Proxy, logger)
	}

	a := &Agent{
		Hostname:       info.Hostname,
		Arch:           info.Arch,
		AgentID:        ac.AgentID,
		Token:          ac.Token,
		NatsServer:     ac.NatsServer,
		Listen:         ac.Listen,
		Proxy:          ac.Proxy,
		ReportURL:      ac.ReportURL,
		ReportInterval: ac.ReportInterval,
		AllowedOrigins: ac.AllowedOrigins,
		Logger:         logger,
		Version:        version,
		Debug:          logger.IsLevelEnabled(logrus.DebugLevel),
		Platform:       runtime.GOOS,
		GoArch:         runtime.GOARCH,
		ServiceConfig:  svcConf,
		Commands:       cmds,
		Metrics:        cache,
		Reporter:       reporter,
		Instruments:    inst,
		done:           make(chan struct{}),
	}
	a.srv = &http.Server{
		Addr:              ac.Listen,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a
}

func ShowVersionInfo(ver string) {
	fmt.Println("VPS Agent", ver, runtime.GOARCH)
	if runtime.GOOS == "windows" {
		fmt.Println("Program Directory:", filepath.Join(os.Getenv("ProgramFiles"), progFilesName))
	}
}

func ShowStatus(version string) {
	system.ShowStatus(version)
}
