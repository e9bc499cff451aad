package models

import (
	"fmt"
	"strings"
)

// JobStatus defines the lifecycle states of a download job.
type JobStatus string

const (
	JobNotStarted JobStatus = "NotStarted"
	JobRunning    JobStatus = "Running"
	JobCompleted  JobStatus = "Completed"
	JobFailed     JobStatus = "Failed"
)

var validJobStatuses = map[JobStatus]struct{}{
	JobNotStarted: {},
	JobRunning:    {},
	JobCompleted:  {},
	JobFailed:     {},
}

// allowedTransitions lists every legal status change. Terminal states have no entry.
var allowedTransitions = map[JobStatus][]JobStatus{
	JobNotStarted: {JobRunning, JobFailed},
	JobRunning:    {JobCompleted, JobFailed},
}

func IsValidJobStatus(status JobStatus) bool {
	_, ok := validJobStatuses[status]
	return ok
}

// ParseJobStatus accepts the canonical form case-insensitively.
func ParseJobStatus(raw string) (JobStatus, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", fmt.Errorf("status is required")
	}
	for status := range validJobStatuses {
		if strings.EqualFold(string(status), value) {
			return status, nil
		}
	}
	return "", fmt.Errorf("invalid status: %s", value)
}

// IsTerminal reports whether no further transition is possible.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// CanTransition reports whether from -> to is a legal job status change.
func CanTransition(from, to JobStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// SourcesFor returns the statuses from which to is reachable in one step.
func SourcesFor(to JobStatus) []JobStatus {
	out := make([]JobStatus, 0, 2)
	for _, from := range JobStatuses() {
		if CanTransition(from, to) {
			out = append(out, from)
		}
	}
	return out
}

// JobStatuses returns all statuses in lifecycle order.
func JobStatuses() []JobStatus {
	return []JobStatus{JobNotStarted, JobRunning, JobCompleted, JobFailed}
}

func StatusStrings(values []JobStatus) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		out = append(out, string(value))
	}
	return out
}
