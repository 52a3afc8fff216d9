// internal/workers/data-access/fetch-agent-pool/handler.go
package fetchagentpool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"lead-routing-workers/internal/agents"
	"lead-routing-workers/internal/common/logger"
	"lead-routing-workers/internal/common/metrics"
	"lead-routing-workers/internal/routing"
)

const (
	TaskType = "fetch-agent-pool"
)

var (
	ErrPoolQueryFailed = errors.New("AGENT_POOL_QUERY_FAILED")
	ErrPoolTimeout     = errors.New("AGENT_POOL_TIMEOUT")
	ErrIndexNotFound   = errors.New("AGENT_INDEX_NOT_FOUND")
	ErrLeadInvalid     = errors.New("LEAD_VALIDATION_FAILED")
)

type Handler struct {
	config    *Config
	directory *agents.Directory
	logger    logger.Logger
}

func NewHandler(config *Config, directory *agents.Directory, log logger.Logger) *Handler {
	return &Handler{
		config:    config,
		directory: directory,
		logger:    log.WithFields(map[string]interface{}{"taskType": TaskType}),
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

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, errors.New("input cannot be nil")
	}
	if err := routing.ValidateLead(input.Lead); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLeadInvalid, err)
	}

	size := h.config.PoolSize
	if input.PoolSize > 0 {
		size = input.PoolSize
	}

	query := agents.PoolQuery{
		State:      input.Lead.Location.State,
		Country:    input.Lead.Location.Country,
		OnlyActive: !input.IncludeInactive,
		Size:       size,
	}

	pool, err := h.directory.FetchPool(ctx, query)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: %v", ErrPoolTimeout, err)
		}
		if errors.Is(err, agents.ErrIndexNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrIndexNotFound, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrPoolQueryFailed, err)
	}

	// An empty pool is a legitimate answer. The routing step turns it
	// into an exhausted outcome, not an error.
	if len(pool) == 0 {
		h.logger.Info("agent pool empty", map[string]interface{}{
			"leadId":  input.Lead.ID,
			"state":   query.State,
			"country": query.Country,
		})
	}

	return &Output{
		Agents:   pool,
		PoolSize: len(pool),
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
	} else if errors.Is(err, ErrPoolTimeout) {
		return "AGENT_POOL_TIMEOUT"
	} else if errors.Is(err, ErrIndexNotFound) {
		return "AGENT_INDEX_NOT_FOUND"
	} else if errors.Is(err, ErrPoolQueryFailed) {
		return "AGENT_POOL_QUERY_FAILED"
	}
	return "UNKNOWN_ERROR"
}

func (h *Handler) getRetryCount(err error) int32 {
	if errors.Is(err, ErrPoolQueryFailed) {
		return 3
	} else if errors.Is(err, ErrPoolTimeout) {
		return 2
	}
	return 0
}
