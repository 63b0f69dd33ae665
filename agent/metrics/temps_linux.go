package metrics

import (
	"context"

	"github.com/prometheus/procfs/sysfs"
	"github.com/vpscope/vpsagent/agent/utils"
	rmm "github.com/vpscope/vpsagent/shared"
)

func defaultTempProviders() []TemperatureProvider {
	return []TemperatureProvider{Sensors{}, ThermalZones{}}
}

// ThermalZones reads /sys/class/thermal
type ThermalZones struct{}

func (ThermalZones) Name() string { return "sysfs" }

func (ThermalZones) Temperatures(ctx context.Context) (map[string][]rmm.TempReading, error) {
	ret := make(map[string][]rmm.TempReading)

	fs, err := sysfs.NewDefaultFS()
	if err != nil {
		return ret, err
	}

	zones, err := fs.ClassThermalZoneStats()
	if err != nil {
		return ret, err
	}

	for _, z := range zones {
		chip := z.Type
		if chip == "" {
			chip = "thermal"
		}
		ret[chip] = append(ret[chip], rmm.TempReading{
			Label:   "thermal_zone" + z.Name,
			Current: utils.Round2(float64(z.Temp) / 1000),
		})
	}
	return ret, nil
}
