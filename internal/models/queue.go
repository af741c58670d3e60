package models

import "time"

// QueueState tracks an unconfirmed order through the local queue
type QueueState string

const (
	StateQueued  QueueState = "QUEUED"
	StateSyncing QueueState = "SYNCING"
	StateSynced  QueueState = "SYNCED"
)

// QueueEntry wraps one unconfirmed Order with local bookkeeping.
type QueueEntry struct {
	Order         Order      `json:"order"`
	SubmittedAt   time.Time  `json:"submitted_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	RetryCount    int        `json:"retry_count"`
	State         QueueState `json:"state"`
	LastErrorKind ErrorKind  `json:"last_error_kind,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
}

// NeedsReview reports whether the remote store rejected the payload itself,
// which automatic retries cannot fix.
func (e *QueueEntry) NeedsReview() bool {
	return e.LastErrorKind == KindValidation
}
