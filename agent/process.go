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
	"os"

	ps "github.com/elastic/go-sysinfo"
	gops "github.com/shirou/gopsutil/v3/process"
	"github.com/vpscope/vpsagent/agent/system"
	rmm "github.com/vpscope/vpsagent/shared"
)

// GetProcsRPC lists every process with its memory and cpu usage
func (a *Agent) GetProcsRPC() []rmm.ProcessMsg {
	ret := make([]rmm.ProcessMsg, 0)

	procs, err := ps.Processes()
	if err != nil {
		a.Logger.Debugln("ps.Processes():", err)
		return ret
	}

	for i, process := range procs {
		p, err := process.Info()
		if err != nil {
			continue
		}
		if p.PID == 0 {
			continue
		}

		var rss uint64
		if m, err := process.Memory(); err == nil {
			rss = m.Resident
		}

		proc, gerr := gops.NewProcess(int32(p.PID))
		if gerr != nil {
			continue
		}
		cpu, _ := proc.CPUPercent()
		user, _ := proc.Username()

		ret = append(ret, rmm.ProcessMsg{
			Name:     p.Name,
			Pid:      p.PID,
			MemBytes: rss,
			Username: user,
			UID:      i,
			CPU:      fmt.Sprintf("%.1f", cpu),
		})
	}
	return ret
}

// KillProcRPC kills a process tree, refusing to kill the agent itself
func (a *Agent) KillProcRPC(pid int32) error {
	if pid <= 0 {
		return fmt.Errorf("invalid pid %d", pid)
	}
	if int(pid) == os.Getpid() {
		return fmt.Errorf("refusing to kill the agent (pid %d)", pid)
	}
	return system.KillProc(pid)
}
