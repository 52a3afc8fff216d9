package fetchagentpool

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lead-routing-workers/internal/agents"
	"lead-routing-workers/internal/common/logger"
	"lead-routing-workers/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func esResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header: http.Header{
			"X-Elastic-Product": []string{"Elasticsearch"},
			"Content-Type":      []string{"application/json"},
		},
	}
}

func createTestConfig() *Config {
	return &Config{
		Timeout:  5 * time.Second,
		PoolSize: 50,
	}
}

func createTestHandler(t *testing.T, rt roundTripFunc) *Handler {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{"http://fake-es:9200"},
		Transport: rt,
	})
	require.NoError(t, err)

	log := logger.NewTestLogger(t)
	directory := agents.NewDirectory(client, "agents", log)
	return NewHandler(createTestConfig(), directory, log)
}

func testLead() models.Lead {
	return models.Lead{
		ID:            "lead-001",
		InsuranceType: "auto",
		Location: models.Location{
			City:    "Los Angeles",
			State:   "CA",
			Country: "US",
		},
	}
}

const twoAgentPool = `{
	"took": 3,
	"timed_out": false,
	"hits": {
		"total": {"value": 2, "relation": "eq"},
		"hits": [
			{"_index": "agents", "_id": "agent-1", "_source": {
				"id": "agent-1",
				"specializations": ["auto"],
				"location": {"city": "Los Angeles", "state": "CA", "country": "US"},
				"rating": 4.5,
				"isActive": true,
				"maxLeadCapacity": 10,
				"currentLeadCount": 2
			}},
			{"_index": "agents", "_id": "agent-2", "_source": {
				"id": "agent-2",
				"specializations": ["life"],
				"location": {"city": "San Diego", "state": "CA", "country": "US"},
				"rating": 4.1,
				"isActive": true,
				"maxLeadCapacity": 8,
				"currentLeadCount": 5
			}}
		]
	}
}`

const emptyPool = `{"took":1,"timed_out":false,"hits":{"total":{"value":0,"relation":"eq"},"hits":[]}}`

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_FetchesPool(t *testing.T) {
	var capturedQuery string
	handler := createTestHandler(t, func(r *http.Request) (*http.Response, error) {
		capturedQuery = r.URL.RawQuery
		return esResponse(http.StatusOK, twoAgentPool), nil
	})

	output, err := handler.Execute(context.Background(), &Input{Lead: testLead()})

	assert.NoError(t, err)
	assert.NotNil(t, output)
	assert.Equal(t, 2, output.PoolSize)
	assert.Len(t, output.Agents, 2)
	assert.Equal(t, "agent-1", output.Agents[0].ID)
	assert.Equal(t, 10, output.Agents[0].MaxLeadCapacity)
	assert.Contains(t, capturedQuery, "size=50", "config pool size applies by default")
}

func TestHandler_Execute_PoolSizeOverride(t *testing.T) {
	var capturedQuery string
	handler := createTestHandler(t, func(r *http.Request) (*http.Response, error) {
		capturedQuery = r.URL.RawQuery
		return esResponse(http.StatusOK, emptyPool), nil
	})

	_, err := handler.Execute(context.Background(), &Input{
		Lead:     testLead(),
		PoolSize: 7,
	})

	assert.NoError(t, err)
	assert.Contains(t, capturedQuery, "size=7")
}

func TestHandler_Execute_EmptyPoolIsValid(t *testing.T) {
	handler := createTestHandler(t, func(r *http.Request) (*http.Response, error) {
		return esResponse(http.StatusOK, emptyPool), nil
	})

	output, err := handler.Execute(context.Background(), &Input{Lead: testLead()})

	assert.NoError(t, err, "an empty pool is an answer, not an error")
	assert.Equal(t, 0, output.PoolSize)
	assert.NotNil(t, output.Agents)
	assert.Empty(t, output.Agents)
}

func TestHandler_Execute_IncludeInactive(t *testing.T) {
	var capturedBody string
	handler := createTestHandler(t, func(r *http.Request) (*http.Response, error) {
		if r.Body != nil {
			raw, _ := io.ReadAll(r.Body)
			capturedBody = string(raw)
		}
		return esResponse(http.StatusOK, emptyPool), nil
	})

	_, err := handler.Execute(context.Background(), &Input{
		Lead:            testLead(),
		IncludeInactive: true,
	})

	assert.NoError(t, err)
	assert.NotContains(t, capturedBody, "isActive", "inactive agents stay in the query")

	_, err = handler.Execute(context.Background(), &Input{Lead: testLead()})
	assert.NoError(t, err)
	assert.Contains(t, capturedBody, "isActive", "default restricts to active agents")
}

// ==========================
// Failure Path Tests
// ==========================

func TestHandler_Execute_QueryFailed(t *testing.T) {
	handler := createTestHandler(t, func(r *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})

	output, err := handler.Execute(context.Background(), &Input{Lead: testLead()})

	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrPoolQueryFailed))
	assert.Nil(t, output)
	assert.Equal(t, "AGENT_POOL_QUERY_FAILED", handler.mapErrorToCode(err))
	assert.Equal(t, int32(3), handler.getRetryCount(err))
}

func TestHandler_Execute_IndexNotFound(t *testing.T) {
	handler := createTestHandler(t, func(r *http.Request) (*http.Response, error) {
		return esResponse(http.StatusNotFound,
			`{"error":{"type":"index_not_found_exception","reason":"no such index [agents]"},"status":404}`), nil
	})

	output, err := handler.Execute(context.Background(), &Input{Lead: testLead()})

	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrIndexNotFound))
	assert.Nil(t, output)
	assert.Equal(t, "AGENT_INDEX_NOT_FOUND", handler.mapErrorToCode(err))
	assert.Equal(t, int32(0), handler.getRetryCount(err))
}

func TestHandler_Execute_Timeout(t *testing.T) {
	handler := createTestHandler(t, func(r *http.Request) (*http.Response, error) {
		<-r.Context().Done()
		return nil, r.Context().Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	output, err := handler.Execute(ctx, &Input{Lead: testLead()})

	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrPoolTimeout))
	assert.Nil(t, output)
	assert.Equal(t, "AGENT_POOL_TIMEOUT", handler.mapErrorToCode(err))
	assert.Equal(t, int32(2), handler.getRetryCount(err))
}

func TestHandler_Execute_InvalidLead(t *testing.T) {
	handler := createTestHandler(t, func(r *http.Request) (*http.Response, error) {
		t.Fatal("no query should be issued for an invalid lead")
		return nil, nil
	})

	output, err := handler.Execute(context.Background(), &Input{
		Lead: models.Lead{InsuranceType: "auto"},
	})

	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrLeadInvalid))
	assert.Nil(t, output)
	assert.Equal(t, "VALIDATION_ERROR", handler.mapErrorToCode(err))
}

func TestHandler_Execute_NilInput(t *testing.T) {
	handler := createTestHandler(t, func(r *http.Request) (*http.Response, error) {
		return esResponse(http.StatusOK, emptyPool), nil
	})

	output, err := handler.Execute(context.Background(), nil)

	assert.Error(t, err)
	assert.Nil(t, output)
}
