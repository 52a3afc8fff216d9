// internal/workers/routing/route-lead/handler.go
package routelead

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"lead-routing-workers/internal/common/logger"
	"lead-routing-workers/internal/common/metrics"
	"lead-routing-workers/internal/common/observability"
	"lead-routing-workers/internal/routing"
)

const (
	TaskType = "route-lead"
)

var (
	ErrSeedFailed     = errors.New("STORE_SEED_FAILED")
	ErrReserveTimeout = errors.New("RESERVATION_TIMEOUT")
)

type Handler struct {
	config      *Config
	coordinator *routing.Coordinator
	store       routing.ReservationStore
	obs         *observability.Observability
	logger      logger.Logger
}

func NewHandler(config *Config, coordinator *routing.Coordinator, store routing.ReservationStore, obs *observability.Observability, log logger.Logger) *Handler {
	return &Handler{
		config:      config,
		coordinator: coordinator,
		store:       store,
		obs:         obs,
		logger:      log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, "PARSE_ERROR", fmt.Sprintf("parse input: %v", err), 0)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		if h.obs != nil {
			h.obs.RecordLeadRouted(context.Background(), "failed")
		}
		h.failJob(client, job, h.mapErrorToCode(err), err.Error(), h.getRetryCount(err))
		return
	}

	if h.obs != nil {
		h.obs.RecordLeadRouted(context.Background(), output.RoutingStatus)
	}
	h.completeJob(client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, errors.New("input cannot be nil")
	}

	if err := h.seedCounters(ctx, input); err != nil {
		return nil, err
	}

	routeCtx := ctx
	if h.config.ReserveTimeout > 0 {
		var cancel context.CancelFunc
		routeCtx, cancel = context.WithTimeout(ctx, h.config.ReserveTimeout)
		defer cancel()
	}

	result, err := h.coordinator.RouteLead(routeCtx, input.Lead, input.Agents)
	if err != nil {
		if routeCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: %v", ErrReserveTimeout, err)
		}
		return nil, err
	}

	return &Output{
		RoutingStatus:    result.Status,
		AssignedAgentID:  result.AgentID,
		AssignmentRank:   result.Rank,
		ScoreBreakdown:   result.Breakdown,
		RankedCandidates: result.RankedCandidates,
		SkippedAgents:    result.Skipped,
	}, nil
}

// seedCounters pushes the pool snapshot's lead counts into the
// reservation store before routing. Seeding only ever raises stored
// counters, so reservations taken by concurrent routers survive a
// stale snapshot.
func (h *Handler) seedCounters(ctx context.Context, input *Input) error {
	for _, agent := range input.Agents {
		if agent.ID == "" {
			continue
		}
		if err := h.store.Seed(ctx, agent.ID, agent.CurrentLeadCount); err != nil {
			return fmt.Errorf("%w: agent %s: %v", ErrSeedFailed, agent.ID, err)
		}
	}
	return nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, errorCode, errorMessage string, retries int32) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, errorCode).Inc()
	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":       job.Key,
		"errorCode":    errorCode,
		"errorMessage": errorMessage,
		"retries":      retries,
	})

	_, err := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(errorCode).
		ErrorMessage(errorMessage).
		Send(context.Background())
	if err != nil {
		h.logger.Error("failed to throw error", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) mapErrorToCode(err error) string {
	if errors.Is(err, routing.ErrInvalidLead) {
		return "VALIDATION_ERROR"
	} else if errors.Is(err, routing.ErrDuplicateAssignment) {
		return "DUPLICATE_ASSIGNMENT"
	} else if errors.Is(err, routing.ErrPersistFailed) {
		return "ASSIGNMENT_PERSIST_FAILURE"
	} else if errors.Is(err, ErrReserveTimeout) {
		return "RESERVATION_TIMEOUT"
	} else if errors.Is(err, routing.ErrStoreUnavailable) || errors.Is(err, ErrSeedFailed) {
		return "STORE_UNAVAILABLE"
	}
	return "UNKNOWN_ERROR"
}

func (h *Handler) getRetryCount(err error) int32 {
	if errors.Is(err, routing.ErrStoreUnavailable) || errors.Is(err, routing.ErrPersistFailed) || errors.Is(err, ErrSeedFailed) {
		return 3
	} else if errors.Is(err, ErrReserveTimeout) {
		return 2
	}
	return 0
}
