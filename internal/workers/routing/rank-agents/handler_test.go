package rankagents

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"lead-routing-workers/internal/common/logger"
	"lead-routing-workers/internal/models"
	"lead-routing-workers/internal/routing"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestConfig() *Config {
	return &Config{
		Timeout: 5 * time.Second,
	}
}

func createTestHandler(t *testing.T) *Handler {
	scorer, err := routing.NewScorer(routing.DefaultWeights())
	if err != nil {
		t.Fatalf("failed to create scorer: %v", err)
	}
	return NewHandler(createTestConfig(), scorer, logger.NewTestLogger(t))
}

func testLead() models.Lead {
	return models.Lead{
		ID:            "lead-001",
		InsuranceType: "auto",
		Location: models.Location{
			City:  "Los Angeles",
			State: "CA",
		},
	}
}

// testPool is the canonical three-agent pool: a local generalist with
// the right line, an out-of-state specialist with the right line, and a
// nearby star with the wrong line.
func testPool() []models.Agent {
	return []models.Agent{
		{
			ID:               "agent-1",
			Specializations:  []string{"auto", "home"},
			Location:         models.Location{City: "Los Angeles", State: "CA"},
			Rating:           4.5,
			IsActive:         true,
			MaxLeadCapacity:  10,
			CurrentLeadCount: 2,
		},
		{
			ID:               "agent-2",
			Specializations:  []string{"life"},
			Location:         models.Location{City: "San Francisco", State: "CA"},
			Rating:           4.8,
			IsActive:         true,
			MaxLeadCapacity:  10,
			CurrentLeadCount: 1,
		},
		{
			ID:               "agent-3",
			Specializations:  []string{"auto"},
			Location:         models.Location{City: "New York", State: "NY"},
			Rating:           3.5,
			IsActive:         true,
			MaxLeadCapacity:  10,
			CurrentLeadCount: 9,
		},
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_RanksPool(t *testing.T) {
	handler := createTestHandler(t)

	output, err := handler.Execute(context.Background(), &Input{
		Lead:   testLead(),
		Agents: testPool(),
	})

	assert.NoError(t, err)
	assert.NotNil(t, output)
	assert.Equal(t, 3, output.PoolSize)
	assert.Len(t, output.RankedAgents, 3)
	assert.Empty(t, output.SkippedAgents)

	assert.Equal(t, "agent-1", output.RankedAgents[0].AgentID)
	assert.Equal(t, "agent-3", output.RankedAgents[1].AgentID)
	assert.Equal(t, "agent-2", output.RankedAgents[2].AgentID)

	assert.Equal(t, 1, output.RankedAgents[0].Rank)
	assert.Equal(t, 2, output.RankedAgents[1].Rank)
	assert.Equal(t, 3, output.RankedAgents[2].Rank)

	assert.InDelta(t, 0.845, output.RankedAgents[0].Breakdown.FinalScore, 1e-9)
	assert.InDelta(t, 0.525, output.RankedAgents[1].Breakdown.FinalScore, 1e-9)
	assert.InDelta(t, 0.514, output.RankedAgents[2].Breakdown.FinalScore, 1e-9)
}

func TestHandler_Execute_EmptyPool(t *testing.T) {
	handler := createTestHandler(t)

	output, err := handler.Execute(context.Background(), &Input{
		Lead:   testLead(),
		Agents: nil,
	})

	assert.NoError(t, err)
	assert.Equal(t, 0, output.PoolSize)
	assert.Empty(t, output.RankedAgents)
}

func TestHandler_Execute_SkipsMalformedAgents(t *testing.T) {
	handler := createTestHandler(t)

	pool := testPool()
	pool = append(pool,
		models.Agent{ID: "", Rating: 4.0, IsActive: true, MaxLeadCapacity: 5},
		models.Agent{ID: "agent-bad-rating", Rating: 11, IsActive: true, MaxLeadCapacity: 5},
	)

	output, err := handler.Execute(context.Background(), &Input{
		Lead:   testLead(),
		Agents: pool,
	})

	assert.NoError(t, err)
	assert.Equal(t, 5, output.PoolSize, "pool size counts the raw input")
	assert.Len(t, output.RankedAgents, 3)
	assert.Len(t, output.SkippedAgents, 2)

	skippedIDs := []string{output.SkippedAgents[0].AgentID, output.SkippedAgents[1].AgentID}
	assert.Contains(t, skippedIDs, "")
	assert.Contains(t, skippedIDs, "agent-bad-rating")
	for _, s := range output.SkippedAgents {
		assert.NotEmpty(t, s.Reason)
	}
}

func TestHandler_Execute_DoesNotMutateStore(t *testing.T) {
	// rank-agents is a dry run: identical consecutive calls return
	// identical rankings because nothing records the earlier call.
	handler := createTestHandler(t)
	input := &Input{Lead: testLead(), Agents: testPool()}

	first, err := handler.Execute(context.Background(), input)
	assert.NoError(t, err)
	second, err := handler.Execute(context.Background(), input)
	assert.NoError(t, err)

	assert.Equal(t, first.RankedAgents, second.RankedAgents)
}

// ==========================
// Validation Failure Tests
// ==========================

func TestHandler_Execute_InvalidLead(t *testing.T) {
	handler := createTestHandler(t)

	output, err := handler.Execute(context.Background(), &Input{
		Lead:   models.Lead{InsuranceType: "auto"},
		Agents: testPool(),
	})

	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrLeadInvalid))
	assert.Nil(t, output)
}

func TestHandler_Execute_NilInput(t *testing.T) {
	handler := createTestHandler(t)

	output, err := handler.Execute(context.Background(), nil)

	assert.Error(t, err)
	assert.Nil(t, output)
}

// ==========================
// Error Mapping Tests
// ==========================

func TestHandler_MapErrorToCode(t *testing.T) {
	handler := createTestHandler(t)

	assert.Equal(t, "VALIDATION_ERROR", handler.mapErrorToCode(ErrLeadInvalid))
	assert.Equal(t, "UNKNOWN_ERROR", handler.mapErrorToCode(errors.New("boom")))
}

// ==========================
// Benchmarks
// ==========================

func BenchmarkHandler_Execute(b *testing.B) {
	scorer, err := routing.NewScorer(routing.DefaultWeights())
	if err != nil {
		b.Fatalf("failed to create scorer: %v", err)
	}
	handler := NewHandler(createTestConfig(), scorer, logger.NewNoOpLogger())
	input := &Input{Lead: testLead(), Agents: testPool()}
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := handler.Execute(ctx, input)
		if err != nil {
			b.Fatal(err)
		}
	}
}
