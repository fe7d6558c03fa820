package domain

import "fmt"

// ProcessingStatus is the lifecycle state of a content item.
type ProcessingStatus string

// Processing states.
const (
	// StatusPending is the initial state of every new item.
	StatusPending ProcessingStatus = "pending"

	// StatusProcessing means a worker has claimed the item.
	StatusProcessing ProcessingStatus = "processing"

	// StatusCompleted means all chunks were stored. Terminal.
	StatusCompleted ProcessingStatus = "completed"

	// StatusFailed means processing was abandoned. Terminal.
	StatusFailed ProcessingStatus = "failed"
)

// transitions lists the allowed next states for each state.
var transitions = map[ProcessingStatus][]ProcessingStatus{
	StatusPending:    {StatusProcessing, StatusFailed},
	StatusProcessing: {StatusCompleted, StatusFailed},
}

// IsValid returns true if the status is recognised.
func (s ProcessingStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for completed and failed.
func (s ProcessingStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// IsQueued returns true if the item still belongs in the processing queue.
func (s ProcessingStatus) IsQueued() bool {
	return s == StatusPending || s == StatusProcessing
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s ProcessingStatus) CanTransitionTo(next ProcessingStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// String returns the string representation.
func (s ProcessingStatus) String() string {
	return string(s)
}

// ParseProcessingStatus converts a string to a ProcessingStatus.
func ParseProcessingStatus(s string) (ProcessingStatus, error) {
	status := ProcessingStatus(s)
	if !status.IsValid() {
		return "", &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", s)}
	}
	return status, nil
}

// QueuedStatuses returns the states that make up the processing queue.
func QueuedStatuses() []ProcessingStatus {
	return []ProcessingStatus{StatusPending, StatusProcessing}
}

// AllStatuses returns every processing state.
func AllStatuses() []ProcessingStatus {
	return []ProcessingStatus{StatusPending, StatusProcessing, StatusCompleted, StatusFailed}
}
