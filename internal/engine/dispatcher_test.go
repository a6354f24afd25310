package engine

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/analysta-ai/playwrightium/internal/config"
)

func testDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	cfg := config.DefaultConfig()
	return NewDispatcher(cfg.Browser, nil, log.New(io.Discard), nil)
}

func TestDispatcherRegistryCoversEveryCommand(t *testing.T) {
	d := testDispatcher(t)

	all := []string{
		CmdNavigate, CmdReload, CmdClick, CmdFill, CmdType, CmdClear,
		CmdPress, CmdCheck, CmdSelectOption, CmdUploadFile, CmdDragAndDrop,
		CmdScroll, CmdWaitForSelector, CmdWaitForText, CmdWait,
		CmdScreenshot, CmdEvaluate, CmdGetText, CmdGetAttribute,
		CmdGetURL, CmdGetTitle, CmdClose,
	}
	for _, typ := range all {
		assert.Contains(t, d.handlers, typ, "no handler registered for %s", typ)
	}
	assert.Len(t, d.handlers, len(all))
}

func TestDispatcherUnknownCommand(t *testing.T) {
	d := testDispatcher(t)

	_, err := d.Execute(context.Background(), nil, Command{Type: "teleport"})
	require.Error(t, err)

	var unknown *UnknownCommandError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "teleport", unknown.Type)
}

func TestDispatcherValidationBecomesFailedOutcome(t *testing.T) {
	d := testDispatcher(t)

	outcome, err := d.Execute(context.Background(), nil, Command{Type: CmdWait})
	require.NoError(t, err)
	assert.False(t, outcome.Success)
	assert.Contains(t, outcome.Error, "duration_ms")
}

func TestDispatcherWait(t *testing.T) {
	d := testDispatcher(t)

	start := time.Now()
	outcome, err := d.Execute(context.Background(), nil, Command{Type: CmdWait, DurationMs: 20})
	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestDispatcherWaitHonorsCancellation(t *testing.T) {
	d := testDispatcher(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome, err := d.Execute(ctx, nil, Command{Type: CmdWait, DurationMs: 5000})
	require.NoError(t, err)
	assert.False(t, outcome.Success)
}

func TestDispatcherScreenshotNeedsSinkOrPath(t *testing.T) {
	d := testDispatcher(t)

	outcome, err := d.Execute(context.Background(), nil, Command{Type: CmdScreenshot})
	require.NoError(t, err)
	assert.False(t, outcome.Success)
	assert.Contains(t, outcome.Error, "artifact sink")
}

func TestDescribeFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "validation passes through",
			err:  missingParam(CmdClick, "selector"),
			want: `validation: command "click" requires parameter "selector"`,
		},
		{
			name: "element not found passes through",
			err:  &ElementNotFoundError{Selector: "#go", Strategy: "css", Err: errors.New("nope")},
			want: `element not found: no css match for "#go" within timeout`,
		},
		{
			name: "deadline becomes timeout",
			err:  context.DeadlineExceeded,
			want: "timeout: context deadline exceeded",
		},
		{
			name: "everything else is an engine error",
			err:  errors.New("websocket closed"),
			want: "engine error: websocket closed",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, describeFailure(tc.err))
		})
	}
}

func TestLookupKey(t *testing.T) {
	for _, name := range []string{"Enter", "Tab", "Escape", "ArrowDown", "PageUp"} {
		_, ok := lookupKey(name)
		assert.True(t, ok, "named key %s", name)
	}

	k, ok := lookupKey("a")
	require.True(t, ok)
	assert.Equal(t, 'a', rune(k))

	_, ok = lookupKey("NotAKey")
	assert.False(t, ok)
}

func TestTimeoutFor(t *testing.T) {
	d := testDispatcher(t)

	assert.Equal(t, d.cfg.CommandTimeout(), d.timeoutFor(Command{}))
	assert.Equal(t, 1500*time.Millisecond, d.timeoutFor(Command{TimeoutMs: 1500}))
}
