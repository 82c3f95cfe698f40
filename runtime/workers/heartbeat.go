package workers

import (
	"chat-realtime/observability"
	"context"
	"log/slog"
	"time"
)

// HeartbeatWorker refreshes the monitoring snapshot on a fixed interval and
// logs a one-line summary of it.
type HeartbeatWorker struct {
	log        *slog.Logger
	monitoring *observability.MonitoringManager
	interval   time.Duration
}

func NewHeartbeatWorker(log *slog.Logger, monitoring *observability.MonitoringManager, interval time.Duration) *HeartbeatWorker {
	return &HeartbeatWorker{log: log, monitoring: monitoring, interval: interval}
}

func (w *HeartbeatWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			stats := w.monitoring.Refresh()
			w.log.Debug("Heartbeat",
				"connections", stats.Connections,
				"online_users", stats.OnlineUsers,
				"delivered", stats.Delivered,
				"dropped", stats.Dropped,
				"degraded", stats.Degraded,
				"rss_mb", stats.RSSMb,
				"cpu", stats.CPUPercent)
		}
	}
}
