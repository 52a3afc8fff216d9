// internal/common/camunda/worker.go
package camunda

import (
	"sync"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"go.uber.org/zap"

	"lead-routing-workers/internal/common/config"
)

// JobHandler is the polling callback every worker package exposes as
// Handler.Handle. Handlers complete or fail the job themselves, so there
// is nothing to return.
type JobHandler func(client worker.JobClient, job entities.Job)

// Registry opens job workers against a shared Zeebe client and closes
// them together on shutdown.
type Registry struct {
	client zbc.Client
	log    *zap.Logger

	mu      sync.Mutex
	workers []openWorker
}

type openWorker struct {
	taskType string
	jw       worker.JobWorker
}

func NewRegistry(client zbc.Client, log *zap.Logger) *Registry {
	return &Registry{
		client: client,
		log:    log,
	}
}

// Register opens a polling job worker for taskType. Workers disabled in
// configuration are skipped with a log line so operators can see what
// is off.
func (r *Registry) Register(taskType string, wcfg config.WorkerConfig, handler JobHandler) {
	if !wcfg.Enabled {
		r.log.Info("worker disabled", zap.String("taskType", taskType))
		return
	}

	jw := r.client.NewJobWorker().
		JobType(taskType).
		Handler(worker.JobHandler(handler)).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(time.Duration(wcfg.Timeout) * time.Millisecond).
		Open()

	r.mu.Lock()
	r.workers = append(r.workers, openWorker{taskType: taskType, jw: jw})
	r.mu.Unlock()

	r.log.Info("worker started",
		zap.String("taskType", taskType),
		zap.Int("maxJobsActive", wcfg.MaxJobsActive),
		zap.Int("timeout_ms", wcfg.Timeout),
	)
}

// Count returns the number of workers currently open.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workers)
}

// Close stops polling on every registered worker and waits until
// in-flight jobs have drained.
func (r *Registry) Close() {
	r.mu.Lock()
	workers := r.workers
	r.workers = nil
	r.mu.Unlock()

	for _, w := range workers {
		r.log.Info("stopping worker", zap.String("taskType", w.taskType))
		w.jw.Close()
	}
	for _, w := range workers {
		w.jw.AwaitClose()
	}
}
