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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vpscope/vpsagent/agent/command"
	"github.com/vpscope/vpsagent/agent/metrics"
	"github.com/vpscope/vpsagent/agent/publisher"
	rmm "github.com/vpscope/vpsagent/shared"
)

// Instruments are the agent's own prometheus collectors, kept on a private
// registry so several agents can live in one test binary.
type Instruments struct {
	Registry *prometheus.Registry

	Sessions       *prometheus.CounterVec
	Events         *prometheus.CounterVec
	Samples        *prometheus.CounterVec
	SampleDuration prometheus.Histogram
}

func NewInstruments() *Instruments {
	i := &Instruments{Registry: prometheus.NewRegistry()}

	i.Sessions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vpsagent_command_sessions_total",
			Help: "Command sessions by validation result",
		},
		[]string{"result"},
	)

	i.Events = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vpsagent_command_events_total",
			Help: "Output events delivered to sinks",
		},
		[]string{"kind"},
	)

	i.Samples = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vpsagent_metrics_samples_total",
			Help: "Metrics sampling passes",
		},
		[]string{"status"},
	)

	i.SampleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vpsagent_metrics_sample_duration_seconds",
			Help:    "Duration of one sampling pass",
			Buckets: prometheus.DefBuckets,
		},
	)

	i.Registry.MustRegister(
		i.Sessions,
		i.Events,
		i.Samples,
		i.SampleDuration,
	)
	return i
}

func (i *Instruments) Handler() http.Handler {
	return promhttp.HandlerFor(i.Registry, promhttp.HandlerOpts{})
}

func (i *Instruments) SessionStarted(err error) {
	switch {
	case err == nil:
		i.Sessions.WithLabelValues("accepted").Inc()
	case errors.Is(err, command.ErrEmptyCommand):
		i.Sessions.WithLabelValues("empty").Inc()
	default:
		i.Sessions.WithLabelValues("blocked").Inc()
	}
}

// Sink counts every event handed to s
func (i *Instruments) Sink(s publisher.Sink) publisher.Sink {
	return publisher.SinkFunc(func(ev rmm.OutputEvent) error {
		i.Events.WithLabelValues(ev.Kind.String()).Inc()
		return s.Deliver(ev)
	})
}

// Sampler times every pass of s
func (i *Instruments) Sampler(s metrics.Sampler) metrics.Sampler {
	return &timedSampler{inst: i, next: s}
}

type timedSampler struct {
	inst *Instruments
	next metrics.Sampler
}

func (t *timedSampler) Sample(ctx context.Context) (*rmm.Snapshot, error) {
	start := time.Now()
	snap, err := t.next.Sample(ctx)
	t.inst.SampleDuration.Observe(time.Since(start).Seconds())

	status := "ok"
	if err != nil {
		status = "error"
	}
	t.inst.Samples.WithLabelValues(status).Inc()
	return snap, err
}
