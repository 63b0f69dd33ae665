package system

import (
	"fmt"
	"runtime"
	"time"

	ps "github.com/elastic/go-sysinfo"
	psHost "github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// HostInfo is the static identity of the machine
type HostInfo struct {
	Hostname      string
	Arch          string
	KernelVersion string
	BootTime      time.Time
}

func ShowStatus(version string) {
	fmt.Println(version)
}

// GetHostInfo prefers go-sysinfo and falls back to gopsutil for the boot time
func GetHostInfo() (HostInfo, error) {
	var ret HostInfo

	host, err := ps.Host()
	if err == nil {
		info := host.Info()
		ret.Hostname = info.Hostname
		ret.Arch = info.Architecture
		ret.KernelVersion = info.KernelVersion
		ret.BootTime = info.BootTime
	}

	if ret.BootTime.IsZero() {
		bt, btErr := psHost.BootTime()
		if btErr != nil {
			if err != nil {
				return ret, err
			}
			return ret, btErr
		}
		ret.BootTime = time.Unix(int64(bt), 0)
	}

	if ret.Hostname == "" || ret.KernelVersion == "" {
		h, hErr := psHost.Info()
		if hErr == nil {
			if ret.Hostname == "" {
				ret.Hostname = h.Hostname
			}
			if ret.KernelVersion == "" {
				ret.KernelVersion = h.KernelVersion
			}
			if ret.Arch == "" {
				ret.Arch = h.KernelArch
			}
		}
	}

	if ret.Arch == "" {
		ret.Arch = runtime.GOARCH
	}

	return ret, nil
}

// OsName returns the title cased platform family, e.g. Linux or Windows
func OsName() string {
	return cases.Title(language.English).String(runtime.GOOS)
}

// MemoryFallback reads total and used memory through go-sysinfo
func MemoryFallback() (total, used uint64, err error) {
	host, err := ps.Host()
	if err != nil {
		return 0, 0, err
	}

	mem, err := host.Memory()
	if err != nil {
		return 0, 0, err
	}

	return mem.Total, mem.Used, nil
}

// KillProc kills a process and its children
func KillProc(pid int32) error {
	p, err := process.NewProcess(pid)
	if err != nil {
		return err
	}

	children, err := p.Children()
	if err == nil {
		for _, child := range children {
			if err := child.Kill(); err != nil {
				continue
			}
		}
	}

	if err := p.Kill(); err != nil {
		return err
	}

	return nil
}
