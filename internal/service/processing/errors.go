package processing

import "errors"

var (
	// ErrTaskMismatch means a callback carried a task id that does not
	// match the stored correlation id; the callback belongs to a stale or
	// superseded submission.
	ErrTaskMismatch = errors.New("callback task id does not match stored correlation id")

	// ErrRetryNotAllowed means retry was requested for a document that is
	// not in the failed state.
	ErrRetryNotAllowed = errors.New("retry is only allowed for failed documents")

	// ErrNotSubmittable means submission was requested for a document that
	// is not queued; a submission may already be in flight.
	ErrNotSubmittable = errors.New("document is not in a submittable state")

	// ErrMissingResult means a completed callback arrived without the
	// required result fields.
	ErrMissingResult = errors.New("completed callback requires a result with text and confidence")

	// ErrMissingError means a failed callback arrived without an error
	// message.
	ErrMissingError = errors.New("failed callback requires an error message")

	// ErrUnsupportedCallbackStatus means the callback status is not one of
	// processing, completed, failed.
	ErrUnsupportedCallbackStatus = errors.New("unsupported callback status")
)
