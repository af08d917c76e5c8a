package domain

import (
	"encoding/json"
	"time"
)

// Unavailable is how an unset Optional renders in text output.
const Unavailable = "N/A"

type Trend struct {
	Samples []float64 // normalized 0..1
	Window  time.Duration
}

// Optional is a string fact that may not have been fetched.
// The zero value means "unavailable", which is different from Some("").
type Optional struct {
	Value string
	Valid bool
}

func Some(v string) Optional { return Optional{Value: v, Valid: true} }

func (o Optional) String() string {
	if !o.Valid {
		return Unavailable
	}
	return o.Value
}

func (o Optional) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

func (o Optional) MarshalYAML() (interface{}, error) {
	if !o.Valid {
		return nil, nil
	}
	return o.Value, nil
}

type VMState string

const (
	StateRunning VMState = "running"
	StateStopped VMState = "stopped"
	StatePaused  VMState = "paused"
	StateUnknown VMState = "unknown"
)

// VMRecord is one VM as seen by a single aggregation pass.
type VMRecord struct {
	ID    int     `json:"vmid" yaml:"vmid"`
	Name  string  `json:"name" yaml:"name"`
	State VMState `json:"state" yaml:"state"`

	// raw signals from the summary endpoint
	Status    string `json:"status" yaml:"status"`
	QMPStatus string `json:"qmpstatus,omitempty" yaml:"qmpstatus,omitempty"`

	CPUs    int     `json:"cpus" yaml:"cpus"`
	CPU     float64 `json:"cpu" yaml:"cpu"` // 0..1
	Mem     uint64  `json:"mem" yaml:"mem"`
	MaxMem  uint64  `json:"maxmem" yaml:"maxmem"`
	Disk    uint64  `json:"disk" yaml:"disk"`
	MaxDisk uint64  `json:"maxdisk" yaml:"maxdisk"`
	Uptime  int64   `json:"uptime" yaml:"uptime"` // seconds, only meaningful when running

	Bridge     Optional `json:"bridge" yaml:"bridge"`
	IPv4       Optional `json:"ip" yaml:"ip"`
	Storage    Optional `json:"storage" yaml:"storage"`
	ConfigPath Optional `json:"config_path" yaml:"config_path"`

	CPUTrend Trend `json:"-" yaml:"-"`
}

func (r VMRecord) Running() bool { return r.State == StateRunning }

// MemRatio is used/allotted memory in 0..1.
func (r VMRecord) MemRatio() float64 {
	if r.MaxMem == 0 {
		return 0
	}
	return float64(r.Mem) / float64(r.MaxMem)
}

type Action string

const (
	ActionStart    Action = "start"
	ActionStop     Action = "stop"
	ActionShutdown Action = "shutdown"
	ActionReboot   Action = "reboot"
	ActionSuspend  Action = "suspend"
	ActionResume   Action = "resume"
	ActionDestroy  Action = "destroy"
)

func (a Action) String() string { return string(a) }

func (a Action) IsValid() bool {
	switch a {
	case ActionStart, ActionStop, ActionShutdown, ActionReboot, ActionSuspend, ActionResume, ActionDestroy:
		return true
	default:
		return false
	}
}

// Destructive actions need an explicit confirmation before anything is sent.
func (a Action) Destructive() bool { return a == ActionDestroy }

type CommandOutcome struct {
	ID     int    `json:"vmid" yaml:"vmid"`
	OK     bool   `json:"ok" yaml:"ok"`
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`
	Task   string `json:"task,omitempty" yaml:"task,omitempty"` // UPID when the API returned one
}

type RunSummary struct {
	Action    Action           `json:"action" yaml:"action"`
	Outcomes  []CommandOutcome `json:"outcomes" yaml:"outcomes"`
	Succeeded int              `json:"succeeded" yaml:"succeeded"`
	Failed    int              `json:"failed" yaml:"failed"`
}

func (s RunSummary) HasFailures() bool { return s.Failed > 0 }
