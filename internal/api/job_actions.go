package api

import "slidecast/internal/queue"

type RetryJobOutcome string

const (
	RetryJobUpdated      RetryJobOutcome = "retried"
	RetryJobNotFound     RetryJobOutcome = "not_found"
	RetryJobNotRetryable RetryJobOutcome = "not_retryable"
)

type RetryJobResult struct {
	ID        string          `json:"id"`
	Outcome   RetryJobOutcome `json:"outcome"`
	NewStatus string          `json:"newStatus,omitempty"`
}

type RetryJobsResult struct {
	UpdatedCount int64            `json:"updatedCount"`
	Items        []RetryJobResult `json:"items"`
}

type CancelJobOutcome string

const (
	CancelJobUpdated          CancelJobOutcome = "cancelled"
	CancelJobNotFound         CancelJobOutcome = "not_found"
	CancelJobAlreadyCompleted CancelJobOutcome = "already_completed"
	CancelJobAlreadyFailed    CancelJobOutcome = "already_failed"
	CancelJobAlreadyCancelled CancelJobOutcome = "already_cancelled"
)

type CancelJobResult struct {
	ID           string           `json:"id"`
	Outcome      CancelJobOutcome `json:"outcome"`
	PriorStatus  string           `json:"priorStatus,omitempty"`
	ResumeStatus string           `json:"resumeStatus,omitempty"`
}

func outcomeForTerminal(status queue.Status) CancelJobOutcome {
	switch status {
	case queue.StatusCompleted:
		return CancelJobAlreadyCompleted
	case queue.StatusFailed:
		return CancelJobAlreadyFailed
	default:
		return CancelJobAlreadyCancelled
	}
}
