// internal/workers/routing/rank-agents/handler.go
package rankagents

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
	"lead-routing-workers/internal/routing"
)

const (
	TaskType = "rank-agents"
)

var (
	ErrLeadInvalid = errors.New("LEAD_VALIDATION_FAILED")
)

// Handler ranks a candidate pool for a lead without touching any
// store. It is the dry-run half of routing: the same scorer the
// router uses, minus reservations and persistence.
type Handler struct {
	config *Config
	scorer *routing.Scorer
	logger logger.Logger
}

func NewHandler(config *Config, scorer *routing.Scorer, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		scorer: scorer,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
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
		h.failJob(client, job, h.mapErrorToCode(err), err.Error(), h.getRetryCount(err))
		return
	}

	h.completeJob(client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

func (h *Handler) execute(_ context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, errors.New("input cannot be nil")
	}

	ranked, skipped, err := h.scorer.RankAgents(input.Lead, input.Agents)
	if err != nil {
		if errors.Is(err, routing.ErrInvalidLead) {
			return nil, fmt.Errorf("%w: %v", ErrLeadInvalid, err)
		}
		return nil, err
	}

	h.logger.Info("agents ranked", map[string]interface{}{
		"leadId":   input.Lead.ID,
		"poolSize": len(input.Agents),
		"ranked":   len(ranked),
		"skipped":  len(skipped),
	})

	return &Output{
		RankedAgents:  ranked,
		SkippedAgents: skipped,
		PoolSize:      len(input.Agents),
	}, nil
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
	if errors.Is(err, ErrLeadInvalid) {
		return "VALIDATION_ERROR"
	}
	return "UNKNOWN_ERROR"
}

func (h *Handler) getRetryCount(_ error) int32 {
	return 0
}
