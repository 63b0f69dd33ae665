package metrics

import (
	"context"
	"sort"
	"sync"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/vpscope/vpsagent/agent/utils"
	rmm "github.com/vpscope/vpsagent/shared"
)

const MaxProcesses = 20

// ProcessTable keeps process handles between passes so each cpu percent
// covers the time since the previous pass.
type ProcessTable struct {
	idle string

	mu    sync.Mutex
	procs map[int32]*process.Process
}

func NewProcessTable(idle string) *ProcessTable {
	return &ProcessTable{
		idle:  idle,
		procs: make(map[int32]*process.Process),
	}
}

// Processes samples every visible process. Processes that exit mid-scan or
// deny access are skipped.
func (pt *ProcessTable) Processes(ctx context.Context) ([]rmm.ProcessSample, error) {
	pids, err := process.PidsWithContext(ctx)
	if err != nil {
		return nil, err
	}

	pt.mu.Lock()
	defer pt.mu.Unlock()

	seen := make(map[int32]bool, len(pids))
	ret := make([]rmm.ProcessSample, 0, len(pids))
	for _, pid := range pids {
		if ctx.Err() != nil {
			return ret, ctx.Err()
		}

		p, ok := pt.procs[pid]
		if !ok {
			p, err = process.NewProcessWithContext(ctx, pid)
			if err != nil {
				continue
			}
			pt.procs[pid] = p
		}
		seen[pid] = true

		name, err := p.NameWithContext(ctx)
		if err != nil || name == "" || name == pt.idle {
			continue
		}

		cpu, err := p.PercentWithContext(ctx, 0)
		if err != nil {
			continue
		}

		mem, err := p.MemoryPercentWithContext(ctx)
		if err != nil {
			mem = 0
		}

		ret = append(ret, rmm.ProcessSample{
			Pid:           pid,
			Name:          name,
			CPUPercent:    cpu,
			MemoryPercent: utils.Round2(float64(mem)),
		})
	}

	for pid := range pt.procs {
		if !seen[pid] {
			delete(pt.procs, pid)
		}
	}

	return ret, nil
}

// TopProcesses sorts by cpu descending, keeps the first limit entries and
// scales their cpu down proportionally when the kept entries sum above 100.
// It returns the list and its cpu total.
func TopProcesses(procs []rmm.ProcessSample, limit int) ([]rmm.ProcessSample, float64) {
	ret := append(make([]rmm.ProcessSample, 0, len(procs)), procs...)
	sort.SliceStable(ret, func(i, j int) bool {
		return ret[i].CPUPercent > ret[j].CPUPercent
	})
	if len(ret) > limit {
		ret = ret[:limit]
	}

	var total float64
	for _, p := range ret {
		total += p.CPUPercent
	}

	if total > 100 {
		scale := 100 / total
		total = 0
		for i := range ret {
			ret[i].CPUPercent *= scale
			total += ret[i].CPUPercent
		}
	}

	return ret, total
}
