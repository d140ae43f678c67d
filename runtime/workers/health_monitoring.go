package workers

import (
	"chat-relay/contract"
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// HealthMonitoringWorker periodically logs the relay load next to the
// process resource usage.
type HealthMonitoringWorker struct {
	log            *slog.Logger
	stats          contract.StatsProvider
	metricInterval time.Duration
}

func NewHealthMonitoringWorker(log *slog.Logger, stats contract.StatsProvider, metricInterval time.Duration) *HealthMonitoringWorker {
	return &HealthMonitoringWorker{log: log, stats: stats, metricInterval: metricInterval}
}

func (w *HealthMonitoringWorker) Run(ctx context.Context) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping health report")
			return nil
		case <-ticker.C:
			w.report(p)
		}
	}
}

func (w *HealthMonitoringWorker) report(p *process.Process) {
	stats := w.stats.Stats()
	attrs := []any{
		"sessions", stats.Sessions,
		"members", stats.Members,
		"pending_lines", stats.PendingLines,
	}
	rss, cpu, err := selfStats(p)
	if err != nil {
		w.log.Debug("Failed to collect self stats", "error", err)
	} else {
		attrs = append(attrs, "rss_bytes", rss, "cpu_percent", cpu)
	}
	w.log.Info("Relay health", attrs...)
}

// selfStats returns the resident memory and CPU usage of p.
func selfStats(p *process.Process) (uint64, float64, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	return memInfo.RSS, cpuPercent, nil
}
