// internal/workers/routing/validate-lead/handler.go
package validatelead

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"lead-routing-workers/internal/common/logger"
	"lead-routing-workers/internal/common/metrics"
	"lead-routing-workers/internal/common/validation"
	"lead-routing-workers/internal/models"
	"lead-routing-workers/internal/routing"
	"lead-routing-workers/pkg/registry"
)

const (
	TaskType = "validate-lead"
)

var (
	ErrLeadInvalid  = errors.New("LEAD_VALIDATION_FAILED")
	ErrSchemaBroken = errors.New("SCHEMA_VALIDATION_BROKEN")
)

type Handler struct {
	config   *Config
	activity *registry.Activity
	logger   logger.Logger
}

// NewHandler builds the validation handler. The registry activity is
// optional: without it only the semantic checks run.
func NewHandler(config *Config, activity *registry.Activity, log logger.Logger) *Handler {
	return &Handler{
		config:   config,
		activity: activity,
		logger:   log.WithFields(map[string]interface{}{"taskType": TaskType}),
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

	if h.activity != nil {
		result, err := validation.ValidateAgainstSchema(h.activity.InputSchema, input)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSchemaBroken, err)
		}
		if !result.Valid {
			return nil, fmt.Errorf("%w: %s", ErrLeadInvalid, strings.Join(result.GetErrorMessages(), "; "))
		}
	}

	lead := normalizeLead(input.Lead)
	if err := routing.ValidateLead(lead); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLeadInvalid, err)
	}

	if lead.InsuranceType != "" && !knownInsuranceTypes[lead.InsuranceType] {
		h.logger.Warn("unknown insurance type, routing anyway", map[string]interface{}{
			"leadId":        lead.ID,
			"insuranceType": lead.InsuranceType,
		})
	}

	h.logger.Info("lead validated", map[string]interface{}{
		"leadId":        lead.ID,
		"insuranceType": lead.InsuranceType,
		"state":         lead.Location.State,
	})

	return &Output{
		LeadValid: true,
		Lead:      lead,
	}, nil
}

// normalizeLead trims whitespace everywhere and lowercases the
// insurance type so downstream matching stays case-insensitive even
// when producers disagree about casing.
func normalizeLead(lead models.Lead) models.Lead {
	lead.ID = strings.TrimSpace(lead.ID)
	lead.InsuranceType = strings.ToLower(strings.TrimSpace(lead.InsuranceType))
	lead.Location.City = strings.TrimSpace(lead.Location.City)
	lead.Location.State = strings.TrimSpace(lead.Location.State)
	lead.Location.Country = strings.TrimSpace(lead.Location.Country)
	if lead.Status == "" {
		lead.Status = models.LeadStatusQualified
	}
	return lead
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
	} else if errors.Is(err, ErrSchemaBroken) {
		return "SCHEMA_VALIDATION_BROKEN"
	}
	return "UNKNOWN_ERROR"
}

func (h *Handler) getRetryCount(err error) int32 {
	if errors.Is(err, ErrSchemaBroken) {
		return 3
	}
	return 0
}
