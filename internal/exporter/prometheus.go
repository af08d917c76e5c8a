package exporter

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/HaPhanBaoMinh/vmanager/internal/domain"
)

var vmLabels = []string{"node", "vmid", "name"}

type FleetExporter struct {
	up       *prometheus.GaugeVec
	state    *prometheus.GaugeVec
	cpuRatio *prometheus.GaugeVec
	cpus     *prometheus.GaugeVec
	memUsed  *prometheus.GaugeVec
	memMax   *prometheus.GaugeVec
	diskMax  *prometheus.GaugeVec
	uptime   *prometheus.GaugeVec
}

func NewFleetExporter(reg prometheus.Registerer) *FleetExporter {
	e := &FleetExporter{
		up: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "vmanager_vm_running", Help: "1 if the VM is running."},
			vmLabels,
		),
		state: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "vmanager_vm_state", Help: "Derived VM state, always 1 for the current state."},
			append(append([]string(nil), vmLabels...), "state"),
		),
		cpuRatio: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "vmanager_vm_cpu_ratio", Help: "CPU usage as a fraction of allotted cores."},
			vmLabels,
		),
		cpus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "vmanager_vm_cpus", Help: "Allotted CPU cores."},
			vmLabels,
		),
		memUsed: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "vmanager_vm_memory_used_bytes", Help: "Memory in use (bytes)."},
			vmLabels,
		),
		memMax: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "vmanager_vm_memory_max_bytes", Help: "Allotted memory (bytes)."},
			vmLabels,
		),
		diskMax: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "vmanager_vm_disk_max_bytes", Help: "Boot disk size (bytes)."},
			vmLabels,
		),
		uptime: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "vmanager_vm_uptime_seconds", Help: "Uptime of running VMs (seconds)."},
			vmLabels,
		),
	}

	reg.MustRegister(e.up, e.state, e.cpuRatio, e.cpus, e.memUsed, e.memMax, e.diskMax, e.uptime)
	return e
}

// Update replaces every series, so destroyed VMs disappear.
func (e *FleetExporter) Update(node string, recs []domain.VMRecord) {
	e.Reset()
	for _, r := range recs {
		labels := prometheus.Labels{"node": node, "vmid": strconv.Itoa(r.ID), "name": r.Name}
		running := 0.0
		if r.Running() {
			running = 1
		}
		e.up.With(labels).Set(running)
		e.state.WithLabelValues(node, strconv.Itoa(r.ID), r.Name, string(r.State)).Set(1)
		e.cpuRatio.With(labels).Set(r.CPU)
		e.cpus.With(labels).Set(float64(r.CPUs))
		e.memUsed.With(labels).Set(float64(r.Mem))
		e.memMax.With(labels).Set(float64(r.MaxMem))
		e.diskMax.With(labels).Set(float64(r.MaxDisk))
		e.uptime.With(labels).Set(float64(r.Uptime))
	}
}

func (e *FleetExporter) Reset() {
	e.up.Reset()
	e.state.Reset()
	e.cpuRatio.Reset()
	e.cpus.Reset()
	e.memUsed.Reset()
	e.memMax.Reset()
	e.diskMax.Reset()
	e.uptime.Reset()
}

// Handler serves only what was registered on reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

type ScrapeMetrics struct {
	duration    prometheus.Histogram
	errors      prometheus.Counter
	lastSuccess prometheus.Gauge
}

func NewScrapeMetrics(reg prometheus.Registerer) *ScrapeMetrics {
	m := &ScrapeMetrics{
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "vmanager_scrape_duration_seconds",
			Help:    "Duration of the last fleet scrape in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vmanager_scrape_errors_total",
			Help: "Total number of failed fleet scrapes.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vmanager_scrape_last_success_timestamp",
			Help: "Unix timestamp of the last successful fleet scrape.",
		}),
	}

	reg.MustRegister(m.duration, m.errors, m.lastSuccess)
	return m
}

func (m *ScrapeMetrics) Observe(err error, elapsed time.Duration) {
	m.duration.Observe(elapsed.Seconds())
	if err != nil {
		m.errors.Inc()
		return
	}
	m.lastSuccess.Set(float64(time.Now().Unix()))
}

// Poller scrapes the fleet on an interval and feeds the exporter.
type Poller struct {
	Repo     domain.FleetRepo
	Node     string
	Interval time.Duration
	Exporter *FleetExporter
	Scrape   *ScrapeMetrics
	Logger   *slog.Logger
}

// Once runs a single scrape. A failed scrape keeps the previous series.
func (p *Poller) Once(ctx context.Context) error {
	start := time.Now()
	recs, err := p.Repo.ListFleet(ctx, p.Node, false)
	if p.Scrape != nil {
		p.Scrape.Observe(err, time.Since(start))
	}
	if err != nil {
		return err
	}
	p.Exporter.Update(p.Node, recs)
	return nil
}

// Run scrapes until ctx is done. Scrape errors are logged, not returned.
func (p *Poller) Run(ctx context.Context) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := p.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := p.Once(ctx); err != nil {
			logger.Warn("fleet scrape failed", "node", p.Node, "error", err)
		} else {
			logger.Debug("fleet scraped", "node", p.Node)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
