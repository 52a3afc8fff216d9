package validatelead

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"lead-routing-workers/internal/common/logger"
	"lead-routing-workers/internal/models"
	"lead-routing-workers/pkg/registry"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestConfig() *Config {
	return &Config{
		Timeout: 5 * time.Second,
	}
}

func createTestLogger(t *testing.T) logger.Logger {
	return logger.NewTestLogger(t)
}

func validLead() models.Lead {
	return models.Lead{
		ID:            "lead-001",
		InsuranceType: "auto",
		Location:      models.Location{City: "Los Angeles", State: "CA", Country: "US"},
		Status:        models.LeadStatusQualified,
		QualityScore:  82,
	}
}

// leadEnvelopeSchema mirrors the validate-lead entry in the activity
// registry.
func leadEnvelopeSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"lead"},
		"properties": map[string]interface{}{
			"lead": map[string]interface{}{
				"type":     "object",
				"required": []interface{}{"id"},
				"properties": map[string]interface{}{
					"id": map[string]interface{}{
						"type":      "string",
						"minLength": 1,
					},
					"qualityScore": map[string]interface{}{
						"type":    "number",
						"minimum": 0,
						"maximum": 100,
					},
				},
			},
		},
	}
}

func testActivity() *registry.Activity {
	return &registry.Activity{
		ID:          "validate-lead",
		DisplayName: "Validate Lead",
		TaskType:    TaskType,
		Category:    "routing",
		InputSchema: leadEnvelopeSchema(),
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_ValidLead(t *testing.T) {
	handler := NewHandler(createTestConfig(), testActivity(), createTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{Lead: validLead()})

	assert.NoError(t, err)
	assert.NotNil(t, output)
	assert.True(t, output.LeadValid)
	assert.Equal(t, "lead-001", output.Lead.ID)
	assert.Equal(t, "auto", output.Lead.InsuranceType)
}

func TestHandler_Execute_NormalizesLead(t *testing.T) {
	handler := NewHandler(createTestConfig(), nil, createTestLogger(t))

	input := &Input{
		Lead: models.Lead{
			ID:            "  lead-002  ",
			InsuranceType: "  AUTO ",
			Location:      models.Location{City: " Austin ", State: " TX ", Country: " US "},
		},
	}

	output, err := handler.Execute(context.Background(), input)

	assert.NoError(t, err)
	assert.Equal(t, "lead-002", output.Lead.ID)
	assert.Equal(t, "auto", output.Lead.InsuranceType)
	assert.Equal(t, "Austin", output.Lead.Location.City)
	assert.Equal(t, "TX", output.Lead.Location.State)
	assert.Equal(t, "US", output.Lead.Location.Country)
	assert.Equal(t, models.LeadStatusQualified, output.Lead.Status, "missing status defaults to qualified")
}

func TestHandler_Execute_KeepsExistingStatus(t *testing.T) {
	handler := NewHandler(createTestConfig(), nil, createTestLogger(t))

	lead := validLead()
	lead.Status = models.LeadStatusContacted

	output, err := handler.Execute(context.Background(), &Input{Lead: lead})

	assert.NoError(t, err)
	assert.Equal(t, models.LeadStatusContacted, output.Lead.Status)
}

func TestHandler_Execute_UnknownInsuranceTypeIsAccepted(t *testing.T) {
	handler := NewHandler(createTestConfig(), nil, createTestLogger(t))

	lead := validLead()
	lead.InsuranceType = "pet"

	output, err := handler.Execute(context.Background(), &Input{Lead: lead})

	assert.NoError(t, err)
	assert.True(t, output.LeadValid)
	assert.Equal(t, "pet", output.Lead.InsuranceType)
}

func TestHandler_Execute_MissingLocationIsAccepted(t *testing.T) {
	handler := NewHandler(createTestConfig(), nil, createTestLogger(t))

	lead := models.Lead{ID: "lead-003"}

	output, err := handler.Execute(context.Background(), &Input{Lead: lead})

	assert.NoError(t, err)
	assert.True(t, output.LeadValid)
}

// ==========================
// Validation Failure Tests
// ==========================

func TestHandler_Execute_ValidationErrors(t *testing.T) {
	tests := []struct {
		name        string
		activity    *registry.Activity
		input       *Input
		expectedErr error
	}{
		{
			name:        "missing lead id fails semantic check",
			activity:    nil,
			input:       &Input{Lead: models.Lead{InsuranceType: "auto"}},
			expectedErr: ErrLeadInvalid,
		},
		{
			name:        "whitespace lead id fails semantic check",
			activity:    nil,
			input:       &Input{Lead: models.Lead{ID: "   "}},
			expectedErr: ErrLeadInvalid,
		},
		{
			name:     "empty lead id fails schema check",
			activity: testActivity(),
			input:    &Input{Lead: models.Lead{InsuranceType: "auto"}},
			// Schema runs first: id "" violates minLength before the
			// semantic check would see it.
			expectedErr: ErrLeadInvalid,
		},
		{
			name:     "quality score above schema maximum",
			activity: testActivity(),
			input: &Input{Lead: models.Lead{
				ID:           "lead-004",
				QualityScore: 250,
			}},
			expectedErr: ErrLeadInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHandler(createTestConfig(), tt.activity, createTestLogger(t))

			output, err := handler.Execute(context.Background(), tt.input)

			assert.Error(t, err)
			assert.True(t, errors.Is(err, tt.expectedErr))
			assert.Nil(t, output)
		})
	}
}

func TestHandler_Execute_BrokenSchema(t *testing.T) {
	activity := testActivity()
	activity.InputSchema = map[string]interface{}{
		"type": 123, // not a valid schema
	}
	handler := NewHandler(createTestConfig(), activity, createTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{Lead: validLead()})

	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchemaBroken))
	assert.Nil(t, output)
}

func TestHandler_Execute_NilInput(t *testing.T) {
	handler := NewHandler(createTestConfig(), nil, createTestLogger(t))

	output, err := handler.Execute(context.Background(), nil)

	assert.Error(t, err)
	assert.Nil(t, output)
}

// ==========================
// Normalization Unit Tests
// ==========================

func TestNormalizeLead(t *testing.T) {
	tests := []struct {
		name     string
		in       models.Lead
		expected models.Lead
	}{
		{
			name: "lowercases insurance type",
			in:   models.Lead{ID: "l1", InsuranceType: "Home"},
			expected: models.Lead{
				ID: "l1", InsuranceType: "home", Status: models.LeadStatusQualified,
			},
		},
		{
			name: "trims all location fields",
			in: models.Lead{
				ID:       " l2 ",
				Location: models.Location{City: " a ", State: " b ", Country: " c "},
			},
			expected: models.Lead{
				ID:       "l2",
				Location: models.Location{City: "a", State: "b", Country: "c"},
				Status:   models.LeadStatusQualified,
			},
		},
		{
			name: "existing status survives",
			in:   models.Lead{ID: "l3", Status: models.LeadStatusNew},
			expected: models.Lead{
				ID: "l3", Status: models.LeadStatusNew,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, normalizeLead(tt.in))
		})
	}
}

// ==========================
// Error Mapping Tests
// ==========================

func TestHandler_MapErrorToCode(t *testing.T) {
	handler := NewHandler(createTestConfig(), nil, createTestLogger(t))

	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"lead invalid", ErrLeadInvalid, "VALIDATION_ERROR"},
		{"wrapped lead invalid", errors.New("wrapped"), "UNKNOWN_ERROR"},
		{"schema broken", ErrSchemaBroken, "SCHEMA_VALIDATION_BROKEN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, handler.mapErrorToCode(tt.err))
		})
	}
}

func TestHandler_GetRetryCount(t *testing.T) {
	handler := NewHandler(createTestConfig(), nil, createTestLogger(t))

	assert.Equal(t, int32(0), handler.getRetryCount(ErrLeadInvalid))
	assert.Equal(t, int32(3), handler.getRetryCount(ErrSchemaBroken))
}

// ==========================
// Benchmarks
// ==========================

func BenchmarkHandler_Execute(b *testing.B) {
	handler := NewHandler(createTestConfig(), testActivity(), logger.NewNoOpLogger())
	input := &Input{Lead: validLead()}
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := handler.Execute(ctx, input)
		if err != nil {
			b.Fatal(err)
		}
	}
}
