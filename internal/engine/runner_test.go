package engine

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/analysta-ai/playwrightium/internal/browser"
	"github.com/analysta-ai/playwrightium/internal/secrets"
)

type fakeSessions struct {
	acquired int
	err      error
}

func (f *fakeSessions) Acquire(context.Context) (*browser.Session, error) {
	f.acquired++
	if f.err != nil {
		return nil, f.err
	}
	return &browser.Session{ID: "fake"}, nil
}

// fakeExecutor fails any command whose selector is "#go" and records
// everything it sees.
type fakeExecutor struct {
	seen []Command
}

func (f *fakeExecutor) Execute(_ context.Context, _ *browser.Session, cmd Command) (StepOutcome, error) {
	f.seen = append(f.seen, cmd)
	if cmd.Type == "explode" {
		return StepOutcome{}, &UnknownCommandError{Type: cmd.Type}
	}
	out := StepOutcome{CommandType: cmd.Type, Success: true}
	if cmd.Selector == "#go" {
		out.Success = false
		out.Error = "element not found"
	}
	return out, nil
}

func newTestRunner(store secrets.Store) (*Runner, *fakeExecutor) {
	exec := &fakeExecutor{}
	r := NewRunner(&fakeSessions{}, exec, store, log.New(io.Discard), nil)
	return r, exec
}

// fakeSink records Begin calls.
type fakeSink struct {
	begun []string
}

func (f *fakeSink) Begin(runID string, _ time.Time) {
	f.begun = append(f.begun, runID)
}

func (f *fakeSink) ArtifactPath(name string) (string, error) {
	return name, nil
}

func TestRunAbortStopsAtFirstFailure(t *testing.T) {
	r, exec := newTestRunner(nil)

	commands := []Command{
		{Type: CmdNavigate, URL: "https://example.com"},
		{Type: CmdClick, Selector: "#go"},
		{Type: CmdGetTitle},
	}
	result, err := r.Run(context.Background(), commands, PolicyAbort)
	require.NoError(t, err)

	assert.True(t, result.Failed)
	require.Len(t, result.Steps, 2)
	assert.True(t, result.Steps[0].Success)
	assert.False(t, result.Steps[1].Success)
	assert.Len(t, exec.seen, 2)
}

func TestRunContinueExecutesEveryStep(t *testing.T) {
	r, exec := newTestRunner(nil)

	commands := []Command{
		{Type: CmdNavigate, URL: "https://example.com"},
		{Type: CmdClick, Selector: "#go"},
		{Type: CmdGetTitle},
	}
	result, err := r.Run(context.Background(), commands, PolicyContinue)
	require.NoError(t, err)

	assert.True(t, result.Failed)
	require.Len(t, result.Steps, 3)
	assert.False(t, result.Steps[1].Success)
	assert.True(t, result.Steps[2].Success)
	assert.Len(t, exec.seen, 3)
}

func TestRunStepIndexesAreSequential(t *testing.T) {
	r, _ := newTestRunner(nil)

	commands := []Command{{Type: CmdGetURL}, {Type: CmdGetTitle}, {Type: CmdReload}}
	result, err := r.Run(context.Background(), commands, PolicyContinue)
	require.NoError(t, err)

	for i, step := range result.Steps {
		assert.Equal(t, i, step.StepIndex)
	}
}

func TestRunDefaultPolicyIsAbort(t *testing.T) {
	r, _ := newTestRunner(nil)

	result, err := r.Run(context.Background(), []Command{{Type: CmdGetURL}}, "")
	require.NoError(t, err)
	assert.Equal(t, PolicyAbort, result.Policy)
}

func TestRunInterpolatesSecretsBeforeExecution(t *testing.T) {
	store := secrets.Store{"HOST": "https://internal.example.com", "TOKEN": "s3cret"}
	r, exec := newTestRunner(store)

	commands := []Command{
		{Type: CmdNavigate, URL: "${{HOST}}/login"},
		{Type: CmdFill, Selector: "label:API token", Value: "${{TOKEN}}"},
	}
	result, err := r.Run(context.Background(), commands, PolicyAbort)
	require.NoError(t, err)
	assert.False(t, result.Failed)

	require.Len(t, exec.seen, 2)
	assert.Equal(t, "https://internal.example.com/login", exec.seen[0].URL)
	assert.Equal(t, "s3cret", exec.seen[1].Value)

	// input batch stays untouched
	assert.Equal(t, "${{HOST}}/login", commands[0].URL)
}

func TestRunMissingSecretFailsBeforeAnyStep(t *testing.T) {
	r, exec := newTestRunner(secrets.Store{})

	commands := []Command{
		{Type: CmdNavigate, URL: "https://example.com"},
		{Type: CmdFill, Selector: "#token", Value: "${{NOPE}}"},
	}
	result, err := r.Run(context.Background(), commands, PolicyContinue)
	require.Error(t, err)

	var missing *secrets.MissingVariableError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "NOPE", missing.Name)

	assert.True(t, result.Failed)
	assert.Empty(t, result.Steps)
	assert.Empty(t, exec.seen, "no command may execute with unresolved placeholders")
}

func TestRunUnknownCommandAbortsUnderContinuePolicy(t *testing.T) {
	r, _ := newTestRunner(nil)

	commands := []Command{
		{Type: CmdGetURL},
		{Type: "explode"},
		{Type: CmdGetTitle},
	}
	result, err := r.Run(context.Background(), commands, PolicyContinue)
	require.Error(t, err)

	var unknown *UnknownCommandError
	require.ErrorAs(t, err, &unknown)

	require.Len(t, result.Steps, 2)
	assert.False(t, result.Steps[1].Success)
	assert.True(t, result.Failed)
}

func TestRunSessionFailureIsFatal(t *testing.T) {
	exec := &fakeExecutor{}
	sessions := &fakeSessions{err: &browser.SessionUnavailableError{Err: assertErr("chrome missing")}}
	r := NewRunner(sessions, exec, nil, log.New(io.Discard), nil)

	result, err := r.Run(context.Background(), []Command{{Type: CmdGetURL}}, PolicyContinue)
	require.Error(t, err)

	var unavailable *browser.SessionUnavailableError
	assert.ErrorAs(t, err, &unavailable)
	assert.True(t, result.Failed)
	assert.Empty(t, result.Steps)
}

func TestRunBeginsArtifactSinkWithRunID(t *testing.T) {
	sink := &fakeSink{}
	r := NewRunner(&fakeSessions{}, &fakeExecutor{}, nil, log.New(io.Discard), sink)

	result, err := r.Run(context.Background(), []Command{{Type: CmdGetURL}}, PolicyAbort)
	require.NoError(t, err)

	require.Len(t, sink.begun, 1)
	assert.Equal(t, result.RunID, sink.begun[0])
}

func TestRunAssignsUniqueRunIDs(t *testing.T) {
	r, _ := newTestRunner(nil)

	a, err := r.Run(context.Background(), []Command{{Type: CmdGetURL}}, PolicyAbort)
	require.NoError(t, err)
	b, err := r.Run(context.Background(), []Command{{Type: CmdGetURL}}, PolicyAbort)
	require.NoError(t, err)

	assert.NotEmpty(t, a.RunID)
	assert.NotEqual(t, a.RunID, b.RunID)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }

func TestInterpolateCommandsCoversAllStringFields(t *testing.T) {
	store := secrets.Store{"V": "x"}
	in := []Command{{
		Type:      CmdClick,
		Selector:  "${{V}}",
		Value:     "${{V}}",
		URL:       "${{V}}",
		Attribute: "${{V}}",
		Key:       "${{V}}",
		Script:    "${{V}}",
		Path:      "${{V}}",
		Source:    "${{V}}",
		Target:    "${{V}}",
	}}
	out, err := interpolateCommands(in, store)
	require.NoError(t, err)

	got := out[0]
	for _, s := range []string{
		got.Selector, got.Value, got.URL, got.Attribute,
		got.Key, got.Script, got.Path, got.Source, got.Target,
	} {
		assert.Equal(t, "x", s)
		assert.False(t, strings.Contains(s, "${{"))
	}
}
