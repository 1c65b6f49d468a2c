package pool

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/joshu-sajeev/coursenotify/internal/notify"
	"github.com/joshu-sajeev/coursenotify/internal/worker"
)

// Queue is what the pool needs from the job queue: the worker side plus
// lease reclamation for the janitor.
type Queue interface {
	worker.Queue
	ReclaimExpired(ctx context.Context) (released, buried int, err error)
}

// Pruner deletes delivery records older than a cutoff.
type Pruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type Option func(*WorkerPool)

// WithNotificationRetention makes the janitor delete delivery records older
// than retention.
func WithNotificationRetention(pruner Pruner, retention time.Duration) Option {
	return func(p *WorkerPool) {
		p.pruner = pruner
		p.retention = retention
	}
}

type WorkerPool struct {
	workers         []*worker.Worker
	q               Queue
	pruner          Pruner
	retention       time.Duration
	janitorInterval time.Duration
	logger          *slog.Logger
	wg              sync.WaitGroup
	leaseCtx        context.Context
	stopLeasing     context.CancelFunc
	workCtx         context.Context
	abandonWork     context.CancelFunc
}

// NewWorkerPool creates perType workers for every processor.
func NewWorkerPool(
	q Queue,
	processors []notify.Processor,
	perType int,
	processTimeout, janitorInterval time.Duration,
	logger *slog.Logger,
	opts ...Option,
) *WorkerPool {
	leaseCtx, stopLeasing := context.WithCancel(context.Background())
	workCtx, abandonWork := context.WithCancel(context.Background())
	p := &WorkerPool{
		q:               q,
		janitorInterval: janitorInterval,
		logger:          logger,
		leaseCtx:        leaseCtx,
		stopLeasing:     stopLeasing,
		workCtx:         workCtx,
		abandonWork:     abandonWork,
	}
	for _, opt := range opts {
		opt(p)
	}

	host, err := os.Hostname()
	if err != nil {
		host = "worker"
	}
	for _, proc := range processors {
		for i := 1; i <= perType; i++ {
			id := fmt.Sprintf("%s/%s/%d", host, proc.Type(), i)
			p.workers = append(p.workers, worker.NewWorker(id, q, proc, processTimeout, logger))
		}
	}
	return p
}

func (p *WorkerPool) Start() {
	for _, w := range p.workers {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			w.Run(p.leaseCtx, p.workCtx)
		}()
	}

	p.wg.Add(1)
	go p.janitor()
}

// janitor hands jobs whose lease expired back to the queue, or buries them
// when they are out of attempts, and prunes old delivery records.
func (p *WorkerPool) janitor() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.reclaim()
			p.prune()
		case <-p.leaseCtx.Done():
			return
		}
	}
}

func (p *WorkerPool) reclaim() {
	released, buried, err := p.q.ReclaimExpired(p.leaseCtx)
	if err != nil {
		p.logger.Error("reclaiming expired leases failed", "error", err)
		return
	}
	if released+buried > 0 {
		p.logger.Info("reclaimed expired leases", "released", released, "buried", buried)
	}
}

func (p *WorkerPool) prune() {
	if p.pruner == nil || p.retention <= 0 {
		return
	}
	pruned, err := p.pruner.PruneBefore(p.leaseCtx, time.Now().Add(-p.retention))
	if err != nil {
		p.logger.Error("pruning notification records failed", "error", err)
		return
	}
	if pruned > 0 {
		p.logger.Info("pruned notification records", "count", pruned)
	}
}

// Stop stops leasing new jobs and waits for the jobs in flight. When ctx is
// done first, in-flight jobs are abandoned and their leases left to expire.
func (p *WorkerPool) Stop(ctx context.Context) error {
	p.stopLeasing()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.abandonWork()
		return nil
	case <-ctx.Done():
		p.abandonWork()
		<-done
		return ctx.Err()
	}
}
