package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"

	"task-chat/observability"
)

const heartbeatInterval = 5 * time.Second

// HeartbeatWorker logs node health (CPU, RAM, OS status) together with the
// latest pipeline snapshot so operators can follow a running node from the
// structured logs alone.
type HeartbeatWorker struct {
	log     *slog.Logger
	nodeID  string
	monitor *observability.Monitor
}

func NewHeartbeatWorker(log *slog.Logger, nodeID string, monitor *observability.Monitor) *HeartbeatWorker {
	return &HeartbeatWorker{log: log, nodeID: nodeID, monitor: monitor}
}

// Run executes the main loop of the worker, reporting health metrics every 5 seconds.
func (w *HeartbeatWorker) Run(ctx context.Context) error {
	w.log.Info("Starting heartbeat worker", "node", w.nodeID)
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			rss, cpu, status, err := getSelfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}

			stats := w.monitor.GetLatest()
			w.log.Info("Heartbeat",
				"node", w.nodeID,
				"pid", os.Getpid(),
				"pid_status", status,
				"cpu_percent", cpu,
				"ram_bytes", rss,
				"messages_stored", stats.MessagesStored,
				"messages_per_sec", stats.MessagesPerSec,
			)
		}
	}
}

// getSelfStats retrieves technical metrics (Memory, CPU, and OS Status) for the given process.
func getSelfStats(p *process.Process) (uint64, float64, string, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, "", err
	}

	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, "", err
	}

	status, err := p.Status()
	if err != nil {
		return 0, 0, "", err
	}
	return memInfo.RSS, cpuPercent, status, nil
}
