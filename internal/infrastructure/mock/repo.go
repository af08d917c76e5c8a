package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/HaPhanBaoMinh/vmanager/internal/batch"
	"github.com/HaPhanBaoMinh/vmanager/internal/domain"
	"github.com/HaPhanBaoMinh/vmanager/internal/infrastructure/pve"
)

type vm struct {
	rec   domain.VMRecord
	trend []float64
	// agent is false for guests without qemu-guest-agent; they never get an ip
	agent bool
}

// Repo is an in-memory node for --mock demos. It serves the fleet listing
// and, as a batch.Transport, the action endpoints, so lifecycle commands go
// through the real executor.
type Repo struct {
	mu   sync.Mutex
	rnd  *rand.Rand
	node string
	vms  map[int]*vm
}

var (
	_ domain.FleetRepo = (*Repo)(nil)
	_ batch.Transport  = (*Repo)(nil)
)

func New(node string) *Repo {
	if node == "" {
		node = "pve"
	}
	r := &Repo{
		rnd:  rand.New(rand.NewSource(time.Now().UnixNano())),
		node: node,
		vms:  map[int]*vm{},
	}
	seed := []struct {
		id      int
		name    string
		state   domain.VMState
		cpus    int
		memGiB  uint64
		diskGiB uint64
		bridge  string
		storage string
		ip      string
	}{
		{100, "gateway", domain.StateRunning, 2, 2, 16, "vmbr0", "local-lvm", "192.168.10.2"},
		{101, "web-01", domain.StateRunning, 4, 8, 64, "vmbr0", "local-lvm", "192.168.10.21"},
		{102, "web-02", domain.StateRunning, 4, 8, 64, "vmbr0", "local-lvm", ""},
		{110, "db-primary", domain.StateRunning, 8, 32, 256, "vmbr1", "ceph-pool", "10.10.0.5"},
		{111, "db-replica", domain.StatePaused, 8, 32, 256, "vmbr1", "ceph-pool", "10.10.0.6"},
		{120, "ci-runner", domain.StateStopped, 16, 16, 128, "vmbr0", "local-zfs", ""},
		{200, "win-build", domain.StateStopped, 8, 16, 200, "vmbr0", "local-zfs", ""},
	}
	for _, s := range seed {
		rec := domain.VMRecord{
			ID:      s.id,
			Name:    s.name,
			State:   s.state,
			Status:  coarse(s.state),
			CPUs:    s.cpus,
			MaxMem:  s.memGiB << 30,
			MaxDisk: s.diskGiB << 30,
			Bridge:  domain.Some(s.bridge),
			Storage: domain.Some(s.storage),
		}
		if s.state == domain.StatePaused {
			rec.QMPStatus = "paused"
		}
		if s.ip != "" {
			rec.IPv4 = domain.Some(s.ip)
		}
		r.vms[s.id] = &vm{rec: rec, agent: s.ip != ""}
	}
	return r
}

func (r *Repo) ListFleet(ctx context.Context, node string, detailed bool) ([]domain.VMRecord, error) {
	if node != r.node {
		return nil, &pve.ProtocolError{Method: "GET", Path: pve.QemuPath(node, 0), StatusCode: 500, Message: fmt.Sprintf("hostname lookup '%s' failed", node)}
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.VMRecord, 0, len(r.vms))
	for _, v := range r.vms {
		r.tickLocked(v)
		out = append(out, r.viewLocked(v, detailed))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *Repo) StatusOf(ctx context.Context, node string, id int) (domain.VMRecord, error) {
	if node != r.node {
		return domain.VMRecord{}, &pve.ProtocolError{Method: "GET", Path: pve.QemuPath(node, id, "status", "current"), StatusCode: 500, Message: "no such node"}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.vms[id]
	if !ok {
		return domain.VMRecord{}, notFound(node, id)
	}
	r.tickLocked(v)
	return r.viewLocked(v, true), nil
}

// Post answers POST /nodes/{node}/qemu/{id}/status/{action} the way a node
// would: a task UPID, or a 500 when the guest is in the wrong state.
func (r *Repo) Post(ctx context.Context, path string, form url.Values) (json.RawMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, rest, err := r.lookupLocked("POST", path)
	if err != nil {
		return nil, err
	}
	if len(rest) != 2 || rest[0] != "status" {
		return nil, notImplemented("POST", path)
	}
	id := v.rec.ID
	fail := func(msg string) error {
		return &pve.ProtocolError{Method: "POST", Path: path, StatusCode: 500, Message: fmt.Sprintf("VM %d %s", id, msg)}
	}

	action := domain.Action(rest[1])
	st := v.rec.State
	switch action {
	case domain.ActionStart:
		if st == domain.StateRunning {
			return nil, fail("already running")
		}
		r.setLocked(v, domain.StateRunning)
	case domain.ActionStop, domain.ActionShutdown:
		if st == domain.StateStopped {
			return nil, fail("not running")
		}
		r.setLocked(v, domain.StateStopped)
	case domain.ActionReboot:
		if st != domain.StateRunning {
			return nil, fail("not running")
		}
		v.rec.Uptime = 0
	case domain.ActionSuspend:
		if st != domain.StateRunning {
			return nil, fail("not running")
		}
		r.setLocked(v, domain.StatePaused)
	case domain.ActionResume:
		if st != domain.StatePaused {
			return nil, fail("not paused")
		}
		r.setLocked(v, domain.StateRunning)
	default:
		return nil, notImplemented("POST", path)
	}
	return r.taskLocked(action, id), nil
}

// Delete answers DELETE /nodes/{node}/qemu/{id}. Like a node it refuses to
// remove a guest that is still running.
func (r *Repo) Delete(ctx context.Context, path string) (json.RawMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, rest, err := r.lookupLocked("DELETE", path)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, notImplemented("DELETE", path)
	}
	id := v.rec.ID
	if v.rec.State != domain.StateStopped {
		return nil, &pve.ProtocolError{Method: "DELETE", Path: path, StatusCode: 500, Message: fmt.Sprintf("VM %d is running - destroy failed", id)}
	}
	delete(r.vms, id)
	return r.taskLocked(domain.ActionDestroy, id), nil
}

// lookupLocked splits /nodes/{node}/qemu/{id}/rest... and finds the vm.
func (r *Repo) lookupLocked(method, path string) (*vm, []string, error) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 4 || parts[0] != "nodes" || parts[2] != "qemu" {
		return nil, nil, notImplemented(method, path)
	}
	id, err := strconv.Atoi(parts[3])
	if err != nil {
		return nil, nil, &pve.ProtocolError{Method: method, Path: path, StatusCode: 400, Message: "vmid: invalid format"}
	}
	v, ok := r.vms[id]
	if parts[1] != r.node || !ok {
		return nil, nil, notFound(parts[1], id)
	}
	return v, parts[4:], nil
}

func (r *Repo) taskLocked(action domain.Action, id int) json.RawMessage {
	upid := fmt.Sprintf("UPID:%s:%08X:%08X:%s:%d:mock@pve:", r.node, r.rnd.Uint32(), time.Now().Unix(), taskType(action), id)
	b, _ := json.Marshal(upid)
	return b
}

func (r *Repo) setLocked(v *vm, s domain.VMState) {
	v.rec.State = s
	v.rec.Status = coarse(s)
	v.rec.QMPStatus = ""
	if s == domain.StatePaused {
		v.rec.QMPStatus = "paused"
	}
	if s == domain.StateStopped {
		v.rec.Uptime = 0
	}
}

// tickLocked advances counters as if time had passed since the last pass.
func (r *Repo) tickLocked(v *vm) {
	rec := &v.rec
	if rec.State != domain.StateRunning {
		rec.CPU, rec.Mem = 0, 0
		if rec.State == domain.StatePaused {
			rec.Mem = rec.MaxMem / 2
		}
	} else {
		rec.CPU = clamp01(rec.CPU + (r.rnd.Float64()-0.45)*0.15)
		if rec.CPU == 0 {
			rec.CPU = 0.05
		}
		rec.Mem = uint64(float64(rec.MaxMem) * clamp01(0.35+0.4*r.rnd.Float64()))
		rec.Uptime += 30
	}
	rec.Disk = rec.MaxDisk / 3
	v.trend = append(v.trend, rec.CPU)
	if len(v.trend) > 90 {
		v.trend = v.trend[len(v.trend)-90:]
	}
}

func (r *Repo) viewLocked(v *vm, detailed bool) domain.VMRecord {
	rec := v.rec
	rec.CPUTrend = domain.Trend{Samples: append([]float64(nil), v.trend...), Window: 45 * time.Minute}
	if !detailed {
		rec.Bridge, rec.IPv4, rec.Storage, rec.ConfigPath = domain.Optional{}, domain.Optional{}, domain.Optional{}, domain.Optional{}
		return rec
	}
	rec.ConfigPath = domain.Some(pve.ConfigPath(r.node, rec.ID))
	if rec.State != domain.StateRunning || !v.agent {
		rec.IPv4 = domain.Optional{}
	}
	return rec
}

func notImplemented(method, path string) error {
	return &pve.ProtocolError{Method: method, Path: path, StatusCode: 501, Message: fmt.Sprintf("Method '%s %s' not implemented", method, path)}
}

func notFound(node string, id int) error {
	return &pve.ProtocolError{
		Method:     "GET",
		Path:       pve.QemuPath(node, id, "status", "current"),
		StatusCode: 500,
		Message:    fmt.Sprintf("Configuration file 'nodes/%s/qemu-server/%d.conf' does not exist", node, id),
	}
}

func coarse(s domain.VMState) string {
	if s == domain.StateStopped {
		return "stopped"
	}
	return "running"
}

func taskType(a domain.Action) string {
	if a == domain.ActionDestroy {
		return "qmdestroy"
	}
	return "qm" + a.String()
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
