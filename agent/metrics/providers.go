package metrics

import (
	"context"
	"errors"
	"strings"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/sirupsen/logrus"
	"github.com/vpscope/vpsagent/agent/disk"
	"github.com/vpscope/vpsagent/agent/utils"
	rmm "github.com/vpscope/vpsagent/shared"
)

var ErrNoSensors = errors.New("no temperature sensors")

// TemperatureProvider reads sensor temperatures grouped by chip
type TemperatureProvider interface {
	Name() string
	Temperatures(ctx context.Context) (map[string][]rmm.TempReading, error)
}

// ProcessProvider lists processes with their cpu share since the previous call
type ProcessProvider interface {
	Processes(ctx context.Context) ([]rmm.ProcessSample, error)
}

// Providers are the data sources the sampler falls back through, in order
type Providers struct {
	Disks     []disk.Provider
	Temps     []TemperatureProvider
	Processes ProcessProvider
}

func DefaultProviders() Providers {
	return Providers{
		Disks:     disk.DefaultProviders(),
		Temps:     defaultTempProviders(),
		Processes: NewProcessTable(IdleProcessName),
	}
}

// collectTemperatures returns the first non-empty reading set, or an empty map
func collectTemperatures(ctx context.Context, providers []TemperatureProvider, logger logrus.FieldLogger) map[string][]rmm.TempReading {
	for _, p := range providers {
		if ctx.Err() != nil {
			break
		}

		temps, err := p.Temperatures(ctx)
		if len(temps) > 0 {
			if err != nil {
				logger.Debugln("temperature provider", p.Name(), "partial:", err)
			}
			return temps
		}
		if err == nil {
			err = ErrNoSensors
		}
		logger.Debugln("temperature provider", p.Name(), err)
	}

	return map[string][]rmm.TempReading{}
}

// Sensors is the gopsutil backed temperature provider
type Sensors struct{}

func (Sensors) Name() string { return "gopsutil" }

func (Sensors) Temperatures(ctx context.Context) (map[string][]rmm.TempReading, error) {
	stats, err := host.SensorsTemperaturesWithContext(ctx)
	ret := make(map[string][]rmm.TempReading)
	for _, st := range stats {
		chip, label := splitSensorKey(st.SensorKey)
		ret[chip] = append(ret[chip], rmm.TempReading{
			Label:    label,
			Current:  utils.Round2(st.Temperature),
			High:     threshold(st.High),
			Critical: threshold(st.Critical),
		})
	}
	return ret, err
}

func splitSensorKey(key string) (chip, label string) {
	if i := strings.Index(key, "_"); i > 0 {
		return key[:i], key[i+1:]
	}
	return key, key
}

func threshold(v float64) *float64 {
	if v <= 0 {
		return nil
	}
	r := utils.Round2(v)
	return &r
}
