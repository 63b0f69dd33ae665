/*
Copyright 2023 AmidaWare Inc.

Licensed under the Tactical RMM License Version 1.0 (the “License”).
You may only use the Licensed Software in accordance with the License.
A copy of the License is available at:

https://license.tacticalrmm.com

*/

package shared

import (
	"time"
)

// EventKind distinguishes a streamed output line from the terminal marker
type EventKind int

const (
	EventOutput EventKind = iota
	EventExit
	EventError
	EventBlocked
)

func (k EventKind) String() string {
	switch k {
	case EventOutput:
		return "output"
	case EventExit:
		return "exit"
	case EventError:
		return "error"
	case EventBlocked:
		return "blocked"
	}
	return "unknown"
}

// OutputEvent is one ordered event of a command session.
// Seq starts at 1 and increases by one per event within a session.
type OutputEvent struct {
	SessionID string    `json:"session"`
	Seq       uint64    `json:"seq"`
	Kind      EventKind `json:"kind"`
	Line      string    `json:"line,omitempty"`
	ExitCode  int       `json:"exit_code"`
}

// Terminal reports whether no further events follow for the session
func (e OutputEvent) Terminal() bool {
	return e.Kind != EventOutput
}

// Wire returns the payload in the shape browser clients expect:
// {"output": line}, {"exit": code}, {"output": reason} or {"output": err, "exit": -1}
func (e OutputEvent) Wire() CmdOutput {
	var ret CmdOutput
	switch e.Kind {
	case EventOutput, EventBlocked:
		line := e.Line
		ret.Output = &line
	case EventExit:
		code := e.ExitCode
		ret.Exit = &code
	case EventError:
		line := e.Line
		code := e.ExitCode
		ret.Output = &line
		ret.Exit = &code
	}
	return ret
}

// CmdOutput is the client facing form of an OutputEvent
type CmdOutput struct {
	Output *string `json:"output,omitempty" codec:"output,omitempty"`
	Exit   *int    `json:"exit,omitempty" codec:"exit,omitempty"`
}

// CmdRequest is what a terminal client sends
type CmdRequest struct {
	Command string `json:"command"`
}

// RPCMsg is the msgpack payload received on the agent's nats subject
type RPCMsg struct {
	Func    string            `json:"func"`
	Timeout int               `json:"timeout"`
	Data    map[string]string `json:"payload"`
	ProcPID int32             `json:"procpid"`
	ID      int               `json:"id"`
}

// RunCmdResp is returned to the caller as soon as a command is accepted
type RunCmdResp struct {
	Session string `json:"session"`
	Subject string `json:"subject"`
	Error   string `json:"error,omitempty"`
}

type ProcessMsg struct {
	Name     string `json:"name"`
	Pid      int    `json:"pid"`
	MemBytes uint64 `json:"membytes"`
	Username string `json:"username"`
	UID      int    `json:"id"`
	CPU      string `json:"cpu_percent"`
}

type PingResult struct {
	Status string `json:"status"`
	Output string `json:"output"`
}

// SessionInfo describes a live command session
type SessionInfo struct {
	ID        string    `json:"id"`
	Command   string    `json:"command"`
	State     string    `json:"state"`
	StartedAt time.Time `json:"started_at"`
}

// CheckInNats is the periodic hello an agent publishes
type CheckInNats struct {
	Agentid  string `json:"agent_id"`
	Version  string `json:"version"`
	Hostname string `json:"hostname"`
	Platform string `json:"platform"`
	GoArch   string `json:"goarch"`
	Sessions int    `json:"sessions"`
}

type MetricsNats struct {
	Agentid  string    `json:"agent_id"`
	Snapshot *Snapshot `json:"snapshot"`
}

type AgentConfig struct {
	AgentID        string
	Token          string
	NatsServer     string
	Listen         string
	Shell          string
	MetricsTTL     time.Duration
	SampleTimeout  time.Duration
	CommandTimeout time.Duration
	ReportURL      string
	ReportInterval time.Duration
	Proxy          string
	AllowedOrigins []string
}

type DiskInfo struct {
	Device     string  `json:"device"`
	Mountpoint string  `json:"mountpoint"`
	Fstype     string  `json:"fstype"`
	Total      uint64  `json:"total"`
	Used       uint64  `json:"used"`
	Free       uint64  `json:"free"`
	Percent    float64 `json:"percent"`
}

type ProcessSample struct {
	Pid           int32   `json:"pid"`
	Name          string  `json:"name"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
}

// TempReading is one sensor of a chip. High and Critical are nil when the
// sensor does not report a threshold.
type TempReading struct {
	Label    string   `json:"label"`
	Current  float64  `json:"current"`
	High     *float64 `json:"high"`
	Critical *float64 `json:"critical"`
}

// Snapshot is one sampling pass. Optional values (load average, temperatures)
// are serialized as null / {} instead of being omitted.
type Snapshot struct {
	Timestamp time.Time `json:"timestamp"`

	CPUPercent     float64 `json:"cpu_percent"`
	CPUCount       int     `json:"cpu_count"`
	CPUFreqCurrent float64 `json:"cpu_freq_current"`
	CPUFreqMax     float64 `json:"cpu_freq_max"`

	RAMUsed    uint64  `json:"ram_used"`
	RAMTotal   uint64  `json:"ram_total"`
	RAMPercent float64 `json:"ram_percent"`

	DiskUsed    uint64     `json:"disk_used"`
	DiskTotal   uint64     `json:"disk_total"`
	DiskFree    uint64     `json:"disk_free"`
	DiskPercent float64    `json:"disk_percent"`
	AllDisks    []DiskInfo `json:"all_disks"`

	NetSent uint64 `json:"net_sent"`
	NetRecv uint64 `json:"net_recv"`

	BootTime      string      `json:"boot_time"`
	UptimeSeconds int64       `json:"uptime_seconds"`
	LoadAvg       *[3]float64 `json:"load_avg"`

	Processes         []ProcessSample `json:"processes"`
	ProcessesCount    int             `json:"processes_count"`
	TotalCPUProcesses float64         `json:"total_cpu_processes"`

	Temperatures map[string][]TempReading `json:"temperatures"`

	OS       string `json:"os"`
	Hostname string `json:"hostname"`
	Machine  string `json:"machine"`
	Version  string `json:"version"`
}

// Clone returns a deep copy so callers never share slices or maps with the cache
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}

	ret := *s
	ret.AllDisks = append(make([]DiskInfo, 0, len(s.AllDisks)), s.AllDisks...)
	ret.Processes = append(make([]ProcessSample, 0, len(s.Processes)), s.Processes...)

	if s.LoadAvg != nil {
		la := *s.LoadAvg
		ret.LoadAvg = &la
	}

	ret.Temperatures = make(map[string][]TempReading, len(s.Temperatures))
	for chip, readings := range s.Temperatures {
		cp := make([]TempReading, len(readings))
		for i, r := range readings {
			cp[i] = r
			if r.High != nil {
				h := *r.High
				cp[i].High = &h
			}
			if r.Critical != nil {
				c := *r.Critical
				cp[i].Critical = &c
			}
		}
		ret.Temperatures[chip] = cp
	}

	return &ret
}
