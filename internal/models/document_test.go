package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		name    string
		from    ProcessingStatus
		to      ProcessingStatus
		allowed bool
	}{
		{"queued to processing", StatusQueued, StatusProcessing, true},
		{"queued to failed", StatusQueued, StatusFailed, true},
		{"queued to completed", StatusQueued, StatusCompleted, false},
		{"processing to processing", StatusProcessing, StatusProcessing, true},
		{"processing to completed", StatusProcessing, StatusCompleted, true},
		{"processing to failed", StatusProcessing, StatusFailed, true},
		{"failed to queued", StatusFailed, StatusQueued, true},
		{"failed to completed", StatusFailed, StatusCompleted, false},
		{"completed is terminal", StatusCompleted, StatusProcessing, false},
		{"completed never fails", StatusCompleted, StatusFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &ProcessingRecord{ID: "doc-1", Status: tt.from}
			assert.Equal(t, tt.allowed, r.CanTransition(tt.to))
		})
	}
}

func TestApplyProgressValidation(t *testing.T) {
	r := &ProcessingRecord{ID: "doc-1", Status: StatusProcessing}
	require.NoError(t, r.ApplyProgress(50, "extracting text"))
	require.NotNil(t, r.Progress)
	assert.Equal(t, 50, *r.Progress)
	assert.Equal(t, "extracting text", r.CurrentOperation)

	// Out-of-range values are rejected, never clamped; stored value stays.
	for _, bad := range []int{-1, 101, 500} {
		err := r.ApplyProgress(bad, "whatever")
		var invalid *ErrInvalidProgress
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, bad, invalid.Value)
		assert.Equal(t, 50, *r.Progress)
		assert.Equal(t, "extracting text", r.CurrentOperation)
	}

	require.NoError(t, r.ApplyProgress(0, "start over"))
	assert.Equal(t, 0, *r.Progress)
	require.NoError(t, r.ApplyProgress(100, "finishing"))
	assert.Equal(t, 100, *r.Progress)
}

func TestProgressPreservesStoredResult(t *testing.T) {
	r := &ProcessingRecord{
		ID:     "doc-1",
		Status: StatusProcessing,
		Result: &OCRResult{Text: "partial", Confidence: 0.5},
	}
	require.NoError(t, r.ApplyProgress(75, "classifying"))
	require.NotNil(t, r.Result)
	assert.Equal(t, "partial", r.Result.Text)
}

func TestApplyCompletion(t *testing.T) {
	r := &ProcessingRecord{ID: "doc-1", Status: StatusProcessing, CurrentOperation: "ocr"}
	res := &OCRResult{Text: "hello", Confidence: 0.93, Language: "en"}
	require.NoError(t, r.ApplyCompletion(res))

	assert.Equal(t, StatusCompleted, r.Status)
	require.NotNil(t, r.Progress)
	assert.Equal(t, 100, *r.Progress)
	assert.Empty(t, r.CurrentOperation)
	assert.Equal(t, res, r.Result)

	// Terminal: nothing moves a completed record.
	var invalid *ErrInvalidTransition
	require.ErrorAs(t, r.ApplyFailure("late failure"), &invalid)
	require.ErrorAs(t, r.ApplyProgress(10, "x"), &invalid)
	require.ErrorAs(t, r.ResetForRetry(), &invalid)
	assert.Equal(t, StatusCompleted, r.Status)
}

func TestApplyFailurePreservesProgress(t *testing.T) {
	p := 60
	r := &ProcessingRecord{ID: "doc-1", Status: StatusProcessing, Progress: &p, CurrentOperation: "ocr"}
	require.NoError(t, r.ApplyFailure("engine crashed"))

	assert.Equal(t, StatusFailed, r.Status)
	assert.Equal(t, "engine crashed", r.ProcessingError)
	require.NotNil(t, r.Progress)
	assert.Equal(t, 60, *r.Progress)
	assert.Empty(t, r.CurrentOperation)
}

func TestResetForRetry(t *testing.T) {
	p := 40
	r := &ProcessingRecord{
		ID:              "doc-1",
		Status:          StatusFailed,
		Progress:        &p,
		ProcessingError: "engine crashed",
		CorrelationID:   "task-stale",
	}
	require.NoError(t, r.ResetForRetry())

	assert.Equal(t, StatusQueued, r.Status)
	assert.Nil(t, r.Progress)
	assert.Empty(t, r.ProcessingError)
	assert.Empty(t, r.CorrelationID)

	// Retry is only valid from FAILED.
	var invalid *ErrInvalidTransition
	require.ErrorAs(t, r.ResetForRetry(), &invalid)
}

func TestMarkSubmitted(t *testing.T) {
	r := &ProcessingRecord{ID: "doc-1", Status: StatusQueued}
	require.NoError(t, r.MarkSubmitted("task-1", false))
	assert.Equal(t, StatusQueued, r.Status)
	assert.Equal(t, "task-1", r.CorrelationID)

	require.NoError(t, r.MarkSubmitted("task-1", true))
	assert.Equal(t, StatusProcessing, r.Status)
}
