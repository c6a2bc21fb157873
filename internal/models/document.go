package models

import (
	"fmt"
	"time"
)

// ProcessingStatus is the closed set of document processing states.
type ProcessingStatus string

const (
	StatusQueued     ProcessingStatus = "queued"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

// ErrInvalidProgress is returned when a progress value falls outside 0-100.
// The stored value is left unchanged; out-of-range input is never clamped.
type ErrInvalidProgress struct {
	Value int
}

func (e *ErrInvalidProgress) Error() string {
	return fmt.Sprintf("progress must be between 0 and 100, got %d", e.Value)
}

// ErrInvalidTransition is returned when a status change is not allowed by
// the transition table.
type ErrInvalidTransition struct {
	From ProcessingStatus
	To   ProcessingStatus
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("illegal status transition %s -> %s", e.From, e.To)
}

// OCRResult holds the extracted output delivered by the OCR engine on
// completion. Metadata and Category are optional; a completed callback
// carrying only text and confidence is valid.
type OCRResult struct {
	Text       string                 `json:"text"`
	Confidence float64                `json:"confidence"`
	Language   string                 `json:"language,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Category   map[string]interface{} `json:"category,omitempty"`
}

// ProcessingRecord is the processing-relevant projection of a document.
// The record id is assigned by the upload path and never changes here.
type ProcessingRecord struct {
	ID               string           `json:"id"`
	FilePath         string           `json:"filePath"`
	Language         string           `json:"language,omitempty"`
	Status           ProcessingStatus `json:"status"`
	Progress         *int             `json:"progress,omitempty"`
	CurrentOperation string           `json:"currentOperation,omitempty"`
	ProcessingError  string           `json:"processingError,omitempty"`
	CorrelationID    string           `json:"correlationId,omitempty"`
	Result           *OCRResult       `json:"result,omitempty"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt,omitempty"`
}

// legal transitions; PROCESSING -> PROCESSING covers repeated progress
// callbacks. COMPLETED is terminal.
var transitions = map[ProcessingStatus][]ProcessingStatus{
	StatusQueued:     {StatusProcessing, StatusFailed},
	StatusProcessing: {StatusProcessing, StatusCompleted, StatusFailed},
	StatusFailed:     {StatusQueued},
	StatusCompleted:  {},
}

// CanTransition reports whether moving from the record's current status to
// the target status is allowed.
func (r *ProcessingRecord) CanTransition(to ProcessingStatus) bool {
	for _, next := range transitions[r.Status] {
		if next == to {
			return true
		}
	}
	return false
}

func (r *ProcessingRecord) transition(to ProcessingStatus) error {
	if !r.CanTransition(to) {
		return &ErrInvalidTransition{From: r.Status, To: to}
	}
	r.Status = to
	r.UpdatedAt = time.Now()
	return nil
}

// MarkSubmitted records a successful hand-off to the OCR engine. The engine
// either accepts into its own queue (record stays QUEUED) or starts work
// immediately (record moves to PROCESSING).
func (r *ProcessingRecord) MarkSubmitted(correlationID string, started bool) error {
	if started {
		if err := r.transition(StatusProcessing); err != nil {
			return err
		}
	} else if r.Status != StatusQueued {
		return &ErrInvalidTransition{From: r.Status, To: StatusQueued}
	}
	r.CorrelationID = correlationID
	r.UpdatedAt = time.Now()
	return nil
}

// ApplyProgress validates and stores a progress update. Previously stored
// OCR output survives progress updates untouched.
func (r *ProcessingRecord) ApplyProgress(progress int, operation string) error {
	if progress < 0 || progress > 100 {
		return &ErrInvalidProgress{Value: progress}
	}
	if err := r.transition(StatusProcessing); err != nil {
		return err
	}
	p := progress
	r.Progress = &p
	r.CurrentOperation = operation
	return nil
}

// ApplyCompletion stores the OCR result and moves the record to COMPLETED.
// Progress is forced to 100 and the current operation is cleared.
func (r *ProcessingRecord) ApplyCompletion(result *OCRResult) error {
	if err := r.transition(StatusCompleted); err != nil {
		return err
	}
	p := 100
	r.Progress = &p
	r.CurrentOperation = ""
	r.Result = result
	return nil
}

// ApplyFailure moves the record to FAILED. The last observed progress is
// kept so operators can see how far processing got before the failure.
func (r *ProcessingRecord) ApplyFailure(message string) error {
	if err := r.transition(StatusFailed); err != nil {
		return err
	}
	r.CurrentOperation = ""
	r.ProcessingError = message
	return nil
}

// ResetForRetry re-opens a FAILED record: error cleared, progress reset,
// stale correlation id discarded. Only valid from FAILED.
func (r *ProcessingRecord) ResetForRetry() error {
	if err := r.transition(StatusQueued); err != nil {
		return err
	}
	r.ProcessingError = ""
	r.Progress = nil
	r.CurrentOperation = ""
	r.CorrelationID = ""
	return nil
}
