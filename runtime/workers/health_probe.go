package workers

import (
	"chat-relay/contract"
	"chat-relay/errors"
	"chat-relay/observability"
	"context"
	stderrors "errors"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// probeIdentity is looked up on every probe. Not finding it still proves the store answers.
const probeIdentity = "health-probe"

type ServingSetter interface {
	SetServing(serving bool)
}

// HealthProbeWorker periodically checks the store and samples the relay process,
// publishing the result to the health service and the metrics.
type HealthProbeWorker struct {
	log      *slog.Logger
	users    contract.IUserRepository
	status   ServingSetter
	metrics  *observability.Metrics
	interval time.Duration
	timeout  time.Duration
}

func NewHealthProbeWorker(log *slog.Logger, users contract.IUserRepository, status ServingSetter,
	metrics *observability.Metrics, interval, timeout time.Duration) *HealthProbeWorker {
	return &HealthProbeWorker{
		log:      log,
		users:    users,
		status:   status,
		metrics:  metrics,
		interval: interval,
		timeout:  timeout,
	}
}

func (w *HealthProbeWorker) Run(ctx context.Context) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		w.log.Warn("Process sampling disabled", "error", err)
		p = nil
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		if ctx.Err() != nil {
			w.status.SetServing(false)
			return ctx.Err()
		}
		w.probeStore(ctx)
		if p != nil {
			w.sampleProcess(p)
		}
		select {
		case <-ctx.Done():
		case <-ticker.C:
		}
	}
}

func (w *HealthProbeWorker) probeStore(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	_, err := w.users.GetUser(ctx, probeIdentity)
	healthy := err == nil || stderrors.Is(err, errors.ErrUserNotFound)
	w.status.SetServing(healthy)
	if healthy {
		w.metrics.StoreUp.Set(1)
		return
	}
	w.metrics.StoreUp.Set(0)
	w.log.Warn("Store probe failed", "error", err)
}

func (w *HealthProbeWorker) sampleProcess(p *process.Process) {
	if cpu, err := p.CPUPercent(); err == nil {
		w.metrics.ProcessCPUPercent.Set(cpu)
	}
	if mem, err := p.MemoryInfo(); err == nil {
		w.metrics.ProcessRSSBytes.Set(float64(mem.RSS))
	}
}
