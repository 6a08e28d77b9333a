package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"vibehive/runtime"

	"github.com/shirou/gopsutil/process"
)

type statsSource interface {
	Stats() runtime.RegistryStats
}

// StatsWorker periodically logs how many rooms and connections are live,
// along with the resident memory of the process.
type StatsWorker struct {
	log      *slog.Logger
	source   statsSource
	interval time.Duration
}

func NewStatsWorker(log *slog.Logger, source statsSource, interval time.Duration) *StatsWorker {
	return &StatsWorker{log: log, source: source, interval: interval}
}

func (w *StatsWorker) Run(ctx context.Context) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping stats")
			return nil
		case <-ticker.C:
			w.report(p)
		}
	}
}

func (w *StatsWorker) report(p *process.Process) {
	stats := w.source.Stats()
	attrs := []any{"rooms", stats.Rooms, "connections", stats.Connections}
	if mem, err := p.MemoryInfo(); err == nil {
		attrs = append(attrs, "rss_bytes", mem.RSS)
	} else {
		w.log.Debug("Error while reading process memory", "err", err)
	}
	w.log.Info("Realtime stats", attrs...)
}
