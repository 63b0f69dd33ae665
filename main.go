/*
Copyright 2023 AmidaWare Inc.

Licensed under the Tactical RMM License Version 1.0 (the “License”).
You may only use the Licensed Software in accordance with the License.
A copy of the License is available at:

https://license.tacticalrmm.com

*/

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/kardianos/service"
	"github.com/sirupsen/logrus"
	"github.com/vpscope/vpsagent/agent"
	"github.com/vpscope/vpsagent/agent/publisher"
	rmm "github.com/vpscope/vpsagent/shared"
)

var (
	version = "1.0.0"
	log     = logrus.New()
	logFile *os.File
)

func main() {
	ver := flag.Bool("version", false, "Prints version")
	mode := flag.String("m", "", "The mode to run")
	logLevel := flag.String("log", "INFO", "The log level")
	logTo := flag.String("logto", "file", "Where to log to")
	command := flag.String("c", "", "Command to run in exec mode")
	flag.Parse()

	if *ver {
		agent.ShowVersionInfo(version)
		return
	}

	if len(os.Args) == 1 {
		agent.ShowStatus(version)
		return
	}

	setupLogging(logLevel, logTo)
	defer logFile.Close()

	a := agent.New(log, version)
	a.Logger.Debugf("%+v\n", a)

	switch *mode {
	case "installsvc":
		if err := a.InstallService(); err != nil {
			log.Fatalln("InstallService():", err)
		}
	case "rpc":
		go stopOnSignal(a)
		a.RunRPC()
	case "svc":
		if runtime.GOOS == "windows" {
			s, err := service.New(a, a.ServiceConfig)
			if err != nil {
				log.Fatalln(err)
			}
			if err := s.Run(); err != nil {
				log.Errorln(err)
			}
		} else {
			go stopOnSignal(a)
			a.RunRPC()
		}
	case "serve":
		go stopOnSignal(a)
		a.RunServe()
	case "metrics":
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		snap, err := a.Metrics.Get(ctx)
		if err != nil {
			log.Fatalln(err)
		}
		printJSON(snap)
	case "exec":
		os.Exit(execCommand(a, *command))
	default:
		agent.ShowStatus(version)
	}
}

// execCommand streams one command to stdout as json lines and returns its exit code
func execCommand(a *agent.Agent, command string) int {
	code := -1
	sink := publisher.SinkFunc(func(ev rmm.OutputEvent) error {
		if ev.Terminal() {
			code = ev.ExitCode
			if ev.Kind == rmm.EventBlocked {
				code = 1
			}
		}
		printJSON(ev.Wire())
		return nil
	})

	if _, err := a.Commands.Start(command, sink); err != nil {
		log.Debugln("exec:", err)
	}
	a.Commands.Wait()
	return code
}

func printJSON(v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Errorln(err)
		return
	}
	fmt.Println(string(b))
}

func stopOnSignal(a *agent.Agent) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	a.Shutdown()
}

func setupLogging(level, to *string) {
	ll, err := logrus.ParseLevel(*level)
	if err != nil {
		ll = logrus.InfoLevel
	}
	log.SetLevel(ll)

	if *to == "stdout" {
		log.SetOutput(os.Stdout)
	} else {
		switch runtime.GOOS {
		case "windows":
			logFile, _ = os.OpenFile(filepath.Join(os.Getenv("ProgramFiles"), "VPSAgent", "agent.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0664)
		default:
			logFile, _ = os.OpenFile(filepath.Join("/var/log/", "vpsagent.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0664)
		}
		log.SetOutput(logFile)
	}
}
