package pve

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/HaPhanBaoMinh/vmanager/internal/domain"
)

// 90 samples ~ 45 min at the default refresh
const (
	trendSamples = 90
	trendWindow  = 45 * time.Minute
)

// API is the subset of Client the inventory needs.
type API interface {
	ListQemu(ctx context.Context, node string) ([]QemuSummary, error)
	CurrentStatus(ctx context.Context, node string, vmid int) (QemuSummary, error)
	Config(ctx context.Context, node string, vmid int) (QemuConfig, error)
	GuestInterfaces(ctx context.Context, node string, vmid int) ([]GuestInterface, error)
}

type RepoOptions struct {
	Policy domain.StatePolicy
	// DetailConcurrency bounds the per-VM detail fan-out; 1 keeps it sequential.
	DetailConcurrency int
	Logger            *slog.Logger
}

// Repo merges the summary, config and guest-agent answers into domain.VMRecord.
type Repo struct {
	api         API
	policy      domain.StatePolicy
	concurrency int
	logger      *slog.Logger

	mu       sync.Mutex
	cpuTrend map[int][]float64
}

func NewRepo(api API, opts RepoOptions) *Repo {
	if opts.Policy == "" {
		opts.Policy = domain.PolicyReference
	}
	if opts.DetailConcurrency < 1 {
		opts.DetailConcurrency = 1
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Repo{
		api:         api,
		policy:      opts.Policy,
		concurrency: opts.DetailConcurrency,
		logger:      opts.Logger,
		cpuTrend:    make(map[int][]float64),
	}
}

// ListFleet fails as a whole when the summary call fails; detail failures
// only leave fields unavailable.
func (r *Repo) ListFleet(ctx context.Context, node string, detailed bool) ([]domain.VMRecord, error) {
	// 1) summary rows
	rows, err := r.api.ListQemu(ctx, node)
	if err != nil {
		return nil, fmt.Errorf("list vms on %s: %w", node, err)
	}

	out := make([]domain.VMRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, r.fromSummary(row))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	r.recordTrends(out)

	if !detailed {
		return out, nil
	}

	// 2) config + guest network per vm; each goroutine owns out[i]
	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i := range out {
		i := i
		g.Go(func() error {
			r.fillDetails(ctx, node, &out[i])
			return nil
		})
	}
	_ = g.Wait()

	return out, nil
}

func (r *Repo) StatusOf(ctx context.Context, node string, id int) (domain.VMRecord, error) {
	if id <= 0 {
		return domain.VMRecord{}, &domain.ValidationError{Field: "vmid", Value: fmt.Sprint(id), Reason: "must be a positive integer"}
	}
	row, err := r.api.CurrentStatus(ctx, node, id)
	if err != nil {
		return domain.VMRecord{}, fmt.Errorf("status of vm %d: %w", id, err)
	}
	rec := r.fromSummary(row)
	rec.ID = id
	rec.CPUTrend = r.trendOf(id)
	r.fillDetails(ctx, node, &rec)
	return rec, nil
}

func (r *Repo) fromSummary(row QemuSummary) domain.VMRecord {
	id := int(row.VMID)
	return domain.VMRecord{
		ID:        id,
		Name:      row.Name,
		State:     r.policy.Derive(row.Status, row.QMPStatus),
		Status:    row.Status,
		QMPStatus: row.QMPStatus,
		CPUs:      int(row.CPUs),
		CPU:       clamp01(row.CPU),
		Mem:       toBytes(row.Mem),
		MaxMem:    toBytes(row.MaxMem),
		Disk:      toBytes(row.Disk),
		MaxDisk:   toBytes(row.MaxDisk),
		Uptime:    int64(row.Uptime),
	}
}

func (r *Repo) fillDetails(ctx context.Context, node string, rec *domain.VMRecord) {
	if cfg, err := r.api.Config(ctx, node, rec.ID); err != nil {
		r.logger.Debug("config fetch failed", "node", node, "vmid", rec.ID, "error", err)
	} else {
		if net0, ok := cfg.String("net0"); ok {
			if bridge, ok := bridgeFromNet(net0); ok {
				rec.Bridge = domain.Some(bridge)
			}
		}
		if storage, ok := storageFromConfig(cfg); ok {
			rec.Storage = domain.Some(storage)
		}
		rec.ConfigPath = domain.Some(ConfigPath(node, rec.ID))
	}

	// the guest agent only answers for running guests
	if rec.State != domain.StateRunning {
		return
	}
	ifaces, err := r.api.GuestInterfaces(ctx, node, rec.ID)
	if err != nil {
		r.logger.Debug("guest network fetch failed", "node", node, "vmid", rec.ID, "error", err)
		return
	}
	if ip, ok := firstIPv4(ifaces); ok {
		rec.IPv4 = domain.Some(ip)
	}
}

// recordTrends appends one cpu sample per listed vm. The history is rebuilt
// from the ids of this pass, so vms that disappeared are forgotten.
func (r *Repo) recordTrends(recs []domain.VMRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make(map[int][]float64, len(recs))
	for i := range recs {
		id := recs[i].ID
		s := append(r.cpuTrend[id], recs[i].CPU)
		if len(s) > trendSamples {
			s = s[len(s)-trendSamples:]
		}
		next[id] = s
		recs[i].CPUTrend = domain.Trend{Samples: append([]float64(nil), s...), Window: trendWindow}
	}
	r.cpuTrend = next
}

// trendOf returns the history without adding to it.
func (r *Repo) trendOf(id int) domain.Trend {
	r.mu.Lock()
	defer r.mu.Unlock()
	return domain.Trend{Samples: append([]float64(nil), r.cpuTrend[id]...), Window: trendWindow}
}

func toBytes(f float64) uint64 {
	if f <= 0 {
		return 0
	}
	return uint64(f)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
