package job

import (
	"time"

	"github.com/ahmethakanbesel/nse-scanner/internal/apperror"
	"github.com/ahmethakanbesel/nse-scanner/internal/strategy"
)

type Status string

const (
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

// Terminal reports whether no further writes are accepted.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusError
}

// Job is the state of one asynchronous scan.
type Job struct {
	ID        string            `json:"id"`
	Status    Status            `json:"status"`
	Strategy  string            `json:"strategy"`
	Universe  string            `json:"universe"`
	Total     int               `json:"total"`
	Completed int               `json:"completed"`
	Matches   []strategy.Result `json:"matches"`
	Error     string            `json:"error,omitempty"`
	ErrorCode apperror.Code     `json:"errorCode,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

func (j Job) clone() Job {
	matches := make([]strategy.Result, len(j.Matches))
	for i, m := range j.Matches {
		matches[i] = m.Clone()
	}
	j.Matches = matches
	return j
}
