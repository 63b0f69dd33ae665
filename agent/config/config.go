package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/vpscope/vpsagent/agent/utils"
	rmm "github.com/vpscope/vpsagent/shared"
)

const (
	configName = "vpsagent"
	envPrefix  = "VPSAGENT"

	MinMetricsTTL = 3 * time.Second
	MaxMetricsTTL = 5 * time.Second
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("natsserver", "nats://127.0.0.1:4222")
	v.SetDefault("listen", "127.0.0.1:8686")
	v.SetDefault("metricsttl", MinMetricsTTL)
	v.SetDefault("sampletimeout", 10*time.Second)
	v.SetDefault("commandtimeout", time.Duration(0))
	v.SetDefault("reportinterval", 60*time.Second)
}

// NewAgentConfig reads vpsagent.json from the platform config dirs.
// A missing or unreadable file yields the defaults.
func NewAgentConfig() *rmm.AgentConfig {
	v := viper.New()
	v.SetConfigName(configName)
	v.SetConfigType("json")
	for _, p := range configPaths() {
		v.AddConfigPath(p)
	}
	_ = v.ReadInConfig()

	return FromViper(v)
}

// FromViper builds an AgentConfig from an already loaded viper instance
func FromViper(v *viper.Viper) *rmm.AgentConfig {
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	ret := &rmm.AgentConfig{
		AgentID:        utils.StripAll(v.GetString("agentid")),
		Token:          utils.StripAll(v.GetString("token")),
		NatsServer:     utils.StripAll(v.GetString("natsserver")),
		Listen:         utils.StripAll(v.GetString("listen")),
		Shell:          utils.StripAll(v.GetString("shell")),
		MetricsTTL:     ClampTTL(v.GetDuration("metricsttl")),
		SampleTimeout:  v.GetDuration("sampletimeout"),
		CommandTimeout: v.GetDuration("commandtimeout"),
		ReportURL:      utils.StripAll(v.GetString("reporturl")),
		ReportInterval: v.GetDuration("reportinterval"),
		Proxy:          utils.StripAll(v.GetString("proxy")),
		AllowedOrigins: v.GetStringSlice("allowedorigins"),
	}

	if ret.ReportInterval <= 0 {
		ret.ReportInterval = 60 * time.Second
	}
	if ret.SampleTimeout < 0 {
		ret.SampleTimeout = 0
	}
	if ret.CommandTimeout < 0 {
		ret.CommandTimeout = 0
	}
	return ret
}

// ClampTTL keeps the metrics cache lifetime between 3 and 5 seconds
func ClampTTL(ttl time.Duration) time.Duration {
	switch {
	case ttl < MinMetricsTTL:
		return MinMetricsTTL
	case ttl > MaxMetricsTTL:
		return MaxMetricsTTL
	}
	return ttl
}
