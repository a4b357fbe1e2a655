package schemas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validFeedback = `{
  "approval_status": "Approved",
  "performance_rating": 8,
  "comments": "Good",
  "submitted_by": "6f1c7c1e-8a53-4c2e-9d8f-2b1c4d5e6f70",
  "submitted_at": "2026-03-01T10:00:00Z",
  "edit_count": 0
}`

func TestStageFeedback_Valid(t *testing.T) {
	schema, err := StageFeedback()
	require.NoError(t, err)

	assert.NoError(t, schema.Validate([]byte(validFeedback)))
}

func TestStageFeedback_Invalid(t *testing.T) {
	schema, err := StageFeedback()
	require.NoError(t, err)

	tests := []struct {
		name string
		doc  string
	}{
		{"missing submitted_at", `{"approval_status":"Approved","performance_rating":8,"comments":"Good","submitted_by":"6f1c7c1e-8a53-4c2e-9d8f-2b1c4d5e6f70"}`},
		{"rating out of range", `{"approval_status":"Approved","performance_rating":11,"comments":"Good","submitted_by":"6f1c7c1e-8a53-4c2e-9d8f-2b1c4d5e6f70","submitted_at":"2026-03-01T10:00:00Z"}`},
		{"rating wrong type", `{"approval_status":"Approved","performance_rating":"8","comments":"Good","submitted_by":"6f1c7c1e-8a53-4c2e-9d8f-2b1c4d5e6f70","submitted_at":"2026-03-01T10:00:00Z"}`},
		{"unknown verdict", `{"approval_status":"Maybe","performance_rating":5,"comments":"Good","submitted_by":"6f1c7c1e-8a53-4c2e-9d8f-2b1c4d5e6f70","submitted_at":"2026-03-01T10:00:00Z"}`},
		{"bad timestamp", `{"approval_status":"Approved","performance_rating":5,"comments":"Good","submitted_by":"6f1c7c1e-8a53-4c2e-9d8f-2b1c4d5e6f70","submitted_at":"yesterday"}`},
		{"not an object", `[1,2,3]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := schema.Validate([]byte(tt.doc))
			require.Error(t, err)

			validationErr, ok := err.(*ValidationError)
			require.True(t, ok, "error should be ValidationError type")
			assert.Greater(t, len(validationErr.Errors), 0)
		})
	}
}

func TestStageFeedback_MalformedJSON(t *testing.T) {
	schema, err := StageFeedback()
	require.NoError(t, err)

	err = schema.Validate([]byte("{ invalid json }"))
	require.Error(t, err)
}

func TestFeedbackTemplates_ValidateValue(t *testing.T) {
	schema, err := FeedbackTemplates()
	require.NoError(t, err)

	doc := map[string]any{
		"categories": []map[string]any{{"key": "strong_candidate", "name": "Strong Candidate"}},
		"templates": []map[string]any{
			{"id": "strong_1", "name": "Excellent", "category": "strong_candidate", "content": "Great fit."},
		},
	}
	assert.NoError(t, schema.ValidateValue(doc))

	doc["templates"] = []map[string]any{
		{"id": "x", "name": "X", "category": "unknown", "content": "..."},
	}
	assert.Error(t, schema.ValidateValue(doc))
}

func TestLoad_UnknownSchema(t *testing.T) {
	_, err := Load("missing.schema.json")
	require.Error(t, err)

	var loadErr *SchemaLoadError
	assert.ErrorAs(t, err, &loadErr)
	assert.Contains(t, err.Error(), "not found")
}
