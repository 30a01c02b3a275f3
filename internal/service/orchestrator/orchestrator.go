package orchestrator

import (
	"botdesk/internal/clock"
	"botdesk/internal/config"
	"botdesk/internal/logger"
	"botdesk/internal/service/assistant"
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/sirupsen/logrus"
)

var (
	// ErrRunFailed is returned when the run settles in any status other than completed
	ErrRunFailed = errors.New("assistant run failed")
	// ErrRunTimeout is returned when the poll budget is exhausted while the run is still active
	ErrRunTimeout = errors.New("assistant run timed out")
	// ErrNoTextReply is returned when the run completed but the newest message has no text part
	ErrNoTextReply = errors.New("no response received from assistant")
)

var threadIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// RunError describes a run that did not complete. It unwraps to ErrRunFailed or ErrRunTimeout.
type RunError struct {
	Err       error
	ThreadID  string
	RunID     string
	Status    string
	LastError string
	Polls     int
}

func (e *RunError) Error() string {
	msg := fmt.Sprintf("%v (run %s, status %s, %d polls)", e.Err, e.RunID, e.Status, e.Polls)
	if e.LastError != "" {
		msg += ": " + e.LastError
	}
	return msg
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// Request is one user message to run through an assistant
type Request struct {
	AssistantID string
	// ThreadID is optional; an empty id starts a new thread
	ThreadID string
	Message  string
	Policy   PollPolicy
}

// Result is a completed run and its reply
type Result struct {
	ThreadID string
	RunID    string
	Text     string
	State    State
	Polls    int
}

// Orchestrator drives a message through thread, run and reply retrieval
type Orchestrator struct {
	clock          clock.Clock
	threadFallback string
}

// New creates an Orchestrator. threadFallback is config.ThreadFallbackAny or config.ThreadFallbackNotFound.
func New(c clock.Clock, threadFallback string) *Orchestrator {
	if c == nil {
		c = clock.Real{}
	}
	if threadFallback == "" {
		threadFallback = config.ThreadFallbackAny
	}
	return &Orchestrator{clock: c, threadFallback: threadFallback}
}

// Run posts the message, runs the assistant and returns its reply
func (o *Orchestrator) Run(ctx context.Context, client assistant.Client, req Request) (*Result, error) {
	log := logger.Log.WithFields(logrus.Fields{"assistant_id": req.AssistantID, "thread_id": req.ThreadID})

	threadID, err := o.resolveThread(ctx, client, req.ThreadID, log)
	if err != nil {
		return nil, err
	}
	log = log.WithField("thread_id", threadID)

	if err := client.CreateMessage(ctx, threadID, req.Message); err != nil {
		return nil, fmt.Errorf("failed to post message: %w", err)
	}

	run, err := client.CreateRun(ctx, threadID, req.AssistantID)
	if err != nil {
		return nil, fmt.Errorf("failed to start run: %w", err)
	}
	log = log.WithField("run_id", run.ID)
	log.Debug("Run created, polling for completion")

	state, polls, last, err := o.poll(ctx, client, threadID, run.ID, req.Policy)
	if err != nil {
		return nil, err
	}

	switch state {
	case RunCompleted:
	case RunTimeout:
		log.WithField("polls", polls).Warn("Run did not finish within poll budget")
		return nil, &RunError{Err: ErrRunTimeout, ThreadID: threadID, RunID: run.ID, Status: last.Status, Polls: polls}
	default:
		log.WithFields(logrus.Fields{"status": last.Status, "last_error": last.LastError}).Warn("Run failed")
		return nil, &RunError{Err: ErrRunFailed, ThreadID: threadID, RunID: run.ID, Status: last.Status, LastError: last.LastError, Polls: polls}
	}

	msg, err := client.LatestMessage(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to read reply: %w", err)
	}
	if msg == nil || !msg.HasText {
		return nil, ErrNoTextReply
	}

	log.WithField("polls", polls).Info("Run completed")
	return &Result{ThreadID: threadID, RunID: run.ID, Text: msg.Text, State: RunCompleted, Polls: polls}, nil
}

func (o *Orchestrator) resolveThread(ctx context.Context, client assistant.Client, threadID string, log *logrus.Entry) (string, error) {
	if threadID != "" && !threadIDPattern.MatchString(threadID) {
		// never spliced into a provider path; treated like a thread that does not exist
		log.Warn("Malformed thread id, starting a new thread")
		threadID = ""
	}
	if threadID != "" {
		id, err := client.RetrieveThread(ctx, threadID)
		if err == nil {
			return id, nil
		}
		if o.threadFallback == config.ThreadFallbackNotFound && !assistant.IsNotFound(err) {
			return "", fmt.Errorf("failed to retrieve thread: %w", err)
		}
		log.WithError(err).Warn("Thread not retrievable, starting a new thread")
	}

	id, err := client.CreateThread(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to create thread: %w", err)
	}
	return id, nil
}

// poll retrieves the run status until a terminal state. Each retrieval counts as one poll and
// the clock sleeps only between polls.
func (o *Orchestrator) poll(ctx context.Context, client assistant.Client, threadID, runID string, policy PollPolicy) (State, int, *assistant.Run, error) {
	polls := 0
	for {
		run, err := client.RetrieveRun(ctx, threadID, runID)
		if err != nil {
			return RunFailed, polls, nil, fmt.Errorf("failed to retrieve run status: %w", err)
		}
		polls++

		state := NextRunState(run.Status, polls, policy)
		if state.Terminal() {
			return state, polls, run, nil
		}

		if err := o.clock.Sleep(ctx, policy.Interval); err != nil {
			return state, polls, run, err
		}
	}
}
