package metrics

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
	"github.com/sirupsen/logrus"
	"github.com/vpscope/vpsagent/agent/disk"
	"github.com/vpscope/vpsagent/agent/system"
	"github.com/vpscope/vpsagent/agent/utils"
	rmm "github.com/vpscope/vpsagent/shared"
)

var ErrSamplingUnavailable = errors.New("metrics sampling unavailable")

const bootTimeLayout = "2006-01-02T15:04:05"

// Sampler performs one full sampling pass
type Sampler interface {
	Sample(ctx context.Context) (*rmm.Snapshot, error)
}

// SystemSampler samples the local host. Every field is collected
// independently; a field that fails is logged and left zero.
type SystemSampler struct {
	providers Providers
	logger    logrus.FieldLogger
	cwd       func() (string, error)
}

func NewSystemSampler(providers Providers, logger logrus.FieldLogger) *SystemSampler {
	return &SystemSampler{
		providers: providers,
		logger:    logger,
		cwd:       os.Getwd,
	}
}

func (s *SystemSampler) Sample(ctx context.Context) (*rmm.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSamplingUnavailable, err)
	}

	snap := &rmm.Snapshot{
		AllDisks:     []rmm.DiskInfo{},
		Processes:    []rmm.ProcessSample{},
		Temperatures: map[string][]rmm.TempReading{},
	}

	s.sampleCPU(ctx, snap)
	s.sampleMemory(ctx, snap)
	s.sampleDisks(ctx, snap)
	s.sampleNetwork(ctx, snap)
	s.sampleHost(snap)
	s.sampleLoad(ctx, snap)
	s.sampleProcesses(ctx, snap)
	snap.Temperatures = collectTemperatures(ctx, s.providers.Temps, s.logger)

	if err := ctx.Err(); err != nil {
		s.logger.Warnln("metrics pass incomplete:", err)
	}

	return snap, nil
}

func (s *SystemSampler) sampleCPU(ctx context.Context, snap *rmm.Snapshot) {
	if pct, err := cpu.PercentWithContext(ctx, 0, false); err != nil {
		s.logger.Debugln("cpu.Percent():", err)
	} else if len(pct) > 0 {
		snap.CPUPercent = utils.Round2(pct[0])
	}

	if n, err := cpu.CountsWithContext(ctx, true); err != nil {
		s.logger.Debugln("cpu.Counts():", err)
	} else {
		snap.CPUCount = n
	}

	if info, err := cpu.InfoWithContext(ctx); err != nil {
		s.logger.Debugln("cpu.Info():", err)
	} else if len(info) > 0 {
		var max float64
		for _, i := range info {
			if i.Mhz > max {
				max = i.Mhz
			}
		}
		snap.CPUFreqMax = utils.Round2(max)
		snap.CPUFreqCurrent = snap.CPUFreqMax
	}

	if cur, ok := currentMHz(); ok {
		snap.CPUFreqCurrent = utils.Round2(cur)
		if snap.CPUFreqMax == 0 {
			snap.CPUFreqMax = snap.CPUFreqCurrent
		}
	}
}

func (s *SystemSampler) sampleMemory(ctx context.Context, snap *rmm.Snapshot) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err == nil {
		snap.RAMUsed = vm.Used
		snap.RAMTotal = vm.Total
		snap.RAMPercent = utils.Round2(vm.UsedPercent)
		return
	}
	s.logger.Debugln("mem.VirtualMemory():", err)

	total, used, err := system.MemoryFallback()
	if err != nil {
		s.logger.Debugln("memory fallback:", err)
		return
	}
	snap.RAMUsed = used
	snap.RAMTotal = total
	if total > 0 {
		snap.RAMPercent = utils.Round2(float64(used) / float64(total) * 100)
	}
}

func (s *SystemSampler) sampleDisks(ctx context.Context, snap *rmm.Snapshot) {
	snap.AllDisks = disk.Collect(ctx, s.providers.Disks, s.logger)

	cwd, err := s.cwd()
	if err != nil {
		s.logger.Debugln("Getwd():", err)
	}

	primary, ok := disk.Primary(snap.AllDisks, cwd)
	if !ok {
		return
	}
	snap.DiskUsed = primary.Used
	snap.DiskTotal = primary.Total
	snap.DiskFree = primary.Free
	snap.DiskPercent = primary.Percent
}

func (s *SystemSampler) sampleNetwork(ctx context.Context, snap *rmm.Snapshot) {
	counters, err := net.IOCountersWithContext(ctx, false)
	if err != nil {
		s.logger.Debugln("net.IOCounters():", err)
		return
	}
	if len(counters) > 0 {
		snap.NetSent = counters[0].BytesSent
		snap.NetRecv = counters[0].BytesRecv
	}
}

func (s *SystemSampler) sampleHost(snap *rmm.Snapshot) {
	snap.OS = system.OsName()

	info, err := system.GetHostInfo()
	if err != nil {
		s.logger.Debugln("GetHostInfo():", err)
	}
	snap.Hostname = info.Hostname
	snap.Machine = info.Arch
	snap.Version = info.KernelVersion

	if !info.BootTime.IsZero() {
		snap.BootTime = info.BootTime.Local().Format(bootTimeLayout)
		snap.UptimeSeconds = int64(time.Since(info.BootTime).Seconds())
	}
}

func (s *SystemSampler) sampleLoad(ctx context.Context, snap *rmm.Snapshot) {
	la, err := loadAvg(ctx)
	if err != nil {
		s.logger.Debugln("load.Avg():", err)
		return
	}
	snap.LoadAvg = la
}

func (s *SystemSampler) sampleProcesses(ctx context.Context, snap *rmm.Snapshot) {
	if s.providers.Processes == nil {
		return
	}

	procs, err := s.providers.Processes.Processes(ctx)
	if err != nil {
		s.logger.Debugln("Processes():", err)
	}

	snap.ProcessesCount = len(procs)
	snap.Processes, snap.TotalCPUProcesses = TopProcesses(procs, MaxProcesses)
}
