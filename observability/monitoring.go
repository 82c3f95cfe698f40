package observability

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/process"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Gauges are read from the live runtime on every refresh.
type Gauges struct {
	Connections int
	Targets     int
	OnlineUsers int
}

// MonitoringStats is the snapshot served by the health endpoint.
type MonitoringStats struct {
	Node        string `json:"node"`
	Uptime      string `json:"uptime"`
	Connections int    `json:"connections"`
	Targets     int    `json:"targets"`
	OnlineUsers int    `json:"online_users"`

	Accepted     uint64 `json:"connections_accepted"`
	Rejected     uint64 `json:"connections_rejected"`
	Disconnected uint64 `json:"connections_closed"`
	Delivered    uint64 `json:"frames_delivered"`
	Dropped      uint64 `json:"frames_dropped"`
	Degraded     uint64 `json:"broadcasts_degraded"`

	RSSMb      uint64  `json:"rss_mb"`
	CPUPercent float64 `json:"cpu_percent"`
	AllocMemMb uint64  `json:"alloc_mem_mb"`
	NumGC      uint32  `json:"num_gc"`
	Goroutines int     `json:"goroutines"`
}

// MonitoringManager keeps the realtime counters. Every increment goes to an
// atomic counter for the local snapshot and to an OpenTelemetry counter for
// whatever exporter the process installs.
type MonitoringManager struct {
	log         *slog.Logger
	node        string
	started     time.Time
	mu          sync.RWMutex
	latestStats MonitoringStats
	gauges      func() Gauges
	proc        *process.Process

	accepted     uint64
	rejected     uint64
	disconnected uint64
	delivered    uint64
	dropped      uint64
	degraded     uint64

	acceptedCounter  metric.Int64Counter
	rejectedCounter  metric.Int64Counter
	closedCounter    metric.Int64Counter
	deliveredCounter metric.Int64Counter
	droppedCounter   metric.Int64Counter
	degradedCounter  metric.Int64Counter
}

func NewMonitoringManager(log *slog.Logger, node string) *MonitoringManager {
	meter := otel.Meter("chat-realtime")
	mm := &MonitoringManager{
		log:     log,
		node:    node,
		started: time.Now(),
		gauges:  func() Gauges { return Gauges{} },
	}
	mm.acceptedCounter, _ = meter.Int64Counter("realtime_connections_accepted_total",
		metric.WithDescription("Connections accepted by the gateway"))
	mm.rejectedCounter, _ = meter.Int64Counter("realtime_connections_rejected_total",
		metric.WithDescription("Connections rejected at handshake"))
	mm.closedCounter, _ = meter.Int64Counter("realtime_connections_closed_total",
		metric.WithDescription("Connections closed"))
	mm.deliveredCounter, _ = meter.Int64Counter("realtime_frames_delivered_total",
		metric.WithDescription("Frames accepted by connection queues"))
	mm.droppedCounter, _ = meter.Int64Counter("realtime_frames_dropped_total",
		metric.WithDescription("Frames dropped by a full connection queue"))
	mm.degradedCounter, _ = meter.Int64Counter("realtime_broadcasts_degraded_total",
		metric.WithDescription("Packets the shared broadcaster refused"))

	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		mm.proc = p
	} else {
		log.Warn("Process stats unavailable", "error", err)
	}
	return mm
}

// WatchGauges installs the source of the live gauges.
func (mm *MonitoringManager) WatchGauges(fn func() Gauges) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.gauges = fn
}

func (mm *MonitoringManager) IncrAccepted() {
	atomic.AddUint64(&mm.accepted, 1)
	mm.acceptedCounter.Add(context.Background(), 1)
}

func (mm *MonitoringManager) IncrRejected(reason string) {
	atomic.AddUint64(&mm.rejected, 1)
	mm.rejectedCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (mm *MonitoringManager) IncrDisconnected() {
	atomic.AddUint64(&mm.disconnected, 1)
	mm.closedCounter.Add(context.Background(), 1)
}

func (mm *MonitoringManager) AddDelivered(n int) {
	if n <= 0 {
		return
	}
	atomic.AddUint64(&mm.delivered, uint64(n))
	mm.deliveredCounter.Add(context.Background(), int64(n))
}

func (mm *MonitoringManager) IncrDropped() {
	atomic.AddUint64(&mm.dropped, 1)
	mm.droppedCounter.Add(context.Background(), 1)
}

func (mm *MonitoringManager) IncrDegraded() {
	atomic.AddUint64(&mm.degraded, 1)
	mm.degradedCounter.Add(context.Background(), 1)
}

// Refresh recomputes the snapshot from counters, gauges and process stats.
func (mm *MonitoringManager) Refresh() MonitoringStats {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	g := mm.gauges()
	stats := MonitoringStats{
		Node:         mm.node,
		Uptime:       time.Since(mm.started).Truncate(time.Second).String(),
		Connections:  g.Connections,
		Targets:      g.Targets,
		OnlineUsers:  g.OnlineUsers,
		Accepted:     atomic.LoadUint64(&mm.accepted),
		Rejected:     atomic.LoadUint64(&mm.rejected),
		Disconnected: atomic.LoadUint64(&mm.disconnected),
		Delivered:    atomic.LoadUint64(&mm.delivered),
		Dropped:      atomic.LoadUint64(&mm.dropped),
		Degraded:     atomic.LoadUint64(&mm.degraded),
		Goroutines:   runtime.NumGoroutine(),
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	stats.AllocMemMb = m.Alloc / 1024 / 1024
	stats.NumGC = m.NumGC

	if mm.proc != nil {
		if memInfo, err := mm.proc.MemoryInfo(); err == nil {
			stats.RSSMb = memInfo.RSS / 1024 / 1024
		}
		if cpu, err := mm.proc.CPUPercent(); err == nil {
			stats.CPUPercent = cpu
		}
	}

	mm.latestStats = stats
	return stats
}

func (mm *MonitoringManager) GetLatest() MonitoringStats {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	return mm.latestStats
}
