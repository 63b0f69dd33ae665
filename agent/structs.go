package agent

import (
	"net/http"
	"sync"
	"time"

	"github.com/kardianos/service"
	"github.com/sirupsen/logrus"
	"github.com/vpscope/vpsagent/agent/command"
	"github.com/vpscope/vpsagent/agent/metrics"
	"github.com/vpscope/vpsagent/agent/network"
)

// Agent struct
type Agent struct {
	Hostname       string
	Arch           string
	AgentID        string
	Token          string
	NatsServer     string
	Listen         string
	Proxy          string
	ReportURL      string
	ReportInterval time.Duration
	AllowedOrigins []string
	Logger         *logrus.Logger
	Version        string
	Debug          bool
	Platform       string
	GoArch         string
	ServiceConfig  *service.Config

	Commands    *command.Manager
	Metrics     *metrics.Cache
	Reporter    *network.Reporter
	Instruments *Instruments

	srv      *http.Server
	stopOnce sync.Once
	done     chan struct{}
}
