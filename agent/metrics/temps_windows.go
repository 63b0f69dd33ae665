package metrics

import (
	"context"

	"github.com/StackExchange/wmi"
	"github.com/vpscope/vpsagent/agent/utils"
	rmm "github.com/vpscope/vpsagent/shared"
)

func defaultTempProviders() []TemperatureProvider {
	return []TemperatureProvider{Sensors{}, ThermalZones{}}
}

type MSAcpi_ThermalZoneTemperature struct {
	InstanceName       string
	CurrentTemperature uint32
	CriticalTripPoint  uint32
}

// ThermalZones reads ACPI thermal zones through WMI
type ThermalZones struct{}

func (ThermalZones) Name() string { return "wmi" }

func (ThermalZones) Temperatures(ctx context.Context) (map[string][]rmm.TempReading, error) {
	ret := make(map[string][]rmm.TempReading)

	var dst []MSAcpi_ThermalZoneTemperature
	q := wmi.CreateQuery(&dst, "")
	if err := wmi.QueryNamespace(q, &dst, `root\wmi`); err != nil {
		return ret, err
	}

	for _, z := range dst {
		ret["acpitz"] = append(ret["acpitz"], rmm.TempReading{
			Label:    z.InstanceName,
			Current:  utils.Round2(kelvinTenths(z.CurrentTemperature)),
			Critical: threshold(kelvinTenths(z.CriticalTripPoint)),
		})
	}
	return ret, nil
}

func kelvinTenths(v uint32) float64 {
	if v == 0 {
		return 0
	}
	return float64(v)/10 - 273.15
}
