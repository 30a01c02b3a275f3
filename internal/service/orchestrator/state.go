package orchestrator

import (
	"botdesk/internal/service/assistant"
	"time"
)

// State is a step of a single conversation run
type State int

const (
	NoThread State = iota
	ThreadReady
	MessagePosted
	RunQueued
	RunInProgress
	RunCompleted
	RunFailed
	RunTimeout
)

func (s State) String() string {
	switch s {
	case NoThread:
		return "no_thread"
	case ThreadReady:
		return "thread_ready"
	case MessagePosted:
		return "message_posted"
	case RunQueued:
		return "run_queued"
	case RunInProgress:
		return "run_in_progress"
	case RunCompleted:
		return "run_completed"
	case RunFailed:
		return "run_failed"
	case RunTimeout:
		return "run_timeout"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition follows s
func (s State) Terminal() bool {
	return s == RunCompleted || s == RunFailed || s == RunTimeout
}

// PollPolicy bounds how a run is waited on. MaxAttempts <= 0 polls until the run settles.
type PollPolicy struct {
	Interval    time.Duration
	MaxAttempts int
}

// NextRunState maps a polled run status to the next state. attempt is the number of
// status retrievals done so far, including the one that produced status.
func NextRunState(status string, attempt int, policy PollPolicy) State {
	switch status {
	case assistant.RunStatusQueued, assistant.RunStatusInProgress:
		if policy.MaxAttempts > 0 && attempt >= policy.MaxAttempts {
			return RunTimeout
		}
		if status == assistant.RunStatusQueued {
			return RunQueued
		}
		return RunInProgress
	case assistant.RunStatusCompleted:
		return RunCompleted
	default:
		return RunFailed
	}
}
