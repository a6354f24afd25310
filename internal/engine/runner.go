package engine

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/analysta-ai/playwrightium/internal/browser"
	"github.com/analysta-ai/playwrightium/internal/secrets"
)

const (
	PolicyAbort    = "abort"
	PolicyContinue = "continue"
)

// SessionProvider yields the live session a step should run against.
type SessionProvider interface {
	Acquire(ctx context.Context) (*browser.Session, error)
}

// CommandExecutor runs a single command and reports its outcome.
type CommandExecutor interface {
	Execute(ctx context.Context, sess *browser.Session, cmd Command) (StepOutcome, error)
}

// RunResult is the ordered record of one batch execution.
type RunResult struct {
	RunID      string        `json:"runId"`
	Policy     string        `json:"policy"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
	Steps      []StepOutcome `json:"steps"`
	Failed     bool          `json:"failed"`
}

// Runner executes command batches strictly in order. Runs are serialized:
// the browser session is a single shared resource, so overlapping batches
// would interleave page state.
type Runner struct {
	mu        sync.Mutex
	sessions  SessionProvider
	executor  CommandExecutor
	store     secrets.Store
	logger    *log.Logger
	artifacts ArtifactSink
}

func NewRunner(sessions SessionProvider, executor CommandExecutor, store secrets.Store, logger *log.Logger, artifacts ArtifactSink) *Runner {
	return &Runner{
		sessions:  sessions,
		executor:  executor,
		store:     store,
		logger:    logger,
		artifacts: artifacts,
	}
}

// Run interpolates secrets into every command up front, then executes the
// batch step by step. Under the abort policy the first failed step ends the
// run; under continue every step executes and failures accumulate. A missing
// secret or an unknown command type aborts regardless of policy, and the
// partial result is returned alongside the error.
func (r *Runner) Run(ctx context.Context, commands []Command, policy string) (RunResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if policy == "" {
		policy = PolicyAbort
	}

	result := RunResult{
		RunID:     uuid.NewString(),
		Policy:    policy,
		StartedAt: time.Now().UTC(),
		Steps:     make([]StepOutcome, 0, len(commands)),
	}

	resolved, err := interpolateCommands(commands, r.store)
	if err != nil {
		result.Failed = true
		result.FinishedAt = time.Now().UTC()
		return result, err
	}

	if r.artifacts != nil {
		r.artifacts.Begin(result.RunID, result.StartedAt)
	}

	r.logger.Info("run started", "runId", result.RunID, "steps", len(resolved), "policy", policy)

	for i, cmd := range resolved {
		if err := ctx.Err(); err != nil {
			result.Failed = true
			result.FinishedAt = time.Now().UTC()
			return result, err
		}

		sess, err := r.sessions.Acquire(ctx)
		if err != nil {
			result.Failed = true
			result.FinishedAt = time.Now().UTC()
			return result, err
		}

		outcome, err := r.executor.Execute(ctx, sess, cmd)
		if err != nil {
			outcome = StepOutcome{
				StepIndex:   i,
				CommandType: cmd.Type,
				Error:       err.Error(),
			}
			result.Steps = append(result.Steps, outcome)
			result.Failed = true
			result.FinishedAt = time.Now().UTC()
			return result, err
		}
		outcome.StepIndex = i
		result.Steps = append(result.Steps, outcome)

		if !outcome.Success {
			result.Failed = true
			if policy == PolicyAbort {
				r.logger.Warn("run aborted", "runId", result.RunID, "step", i)
				break
			}
		}
	}

	result.FinishedAt = time.Now().UTC()
	r.logger.Info("run finished", "runId", result.RunID,
		"steps", len(result.Steps), "failed", result.Failed)
	return result, nil
}

// interpolateCommands expands secret placeholders in every string-bearing
// field. It never mutates the input slice; a run either starts with every
// placeholder resolved or not at all.
func interpolateCommands(commands []Command, store secrets.Store) ([]Command, error) {
	out := make([]Command, len(commands))
	for i, cmd := range commands {
		fields := []*string{
			&cmd.Selector, &cmd.Value, &cmd.URL, &cmd.Attribute,
			&cmd.Key, &cmd.Script, &cmd.Path, &cmd.Source, &cmd.Target,
		}
		for _, f := range fields {
			expanded, err := secrets.Expand(*f, store)
			if err != nil {
				return nil, err
			}
			*f = expanded
		}
		out[i] = cmd
	}
	return out, nil
}
