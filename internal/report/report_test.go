package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/analysta-ai/playwrightium/internal/engine"
)

func sampleResult(id string, start time.Time) engine.RunResult {
	return engine.RunResult{
		RunID:      id,
		Policy:     engine.PolicyAbort,
		StartedAt:  start,
		FinishedAt: start.Add(3 * time.Second),
		Steps: []engine.StepOutcome{
			{StepIndex: 0, CommandType: engine.CmdNavigate, Success: true},
			{StepIndex: 1, CommandType: engine.CmdClick, Success: false, Error: "element not found"},
		},
		Failed: true,
	}
}

func TestWriterWritesArtifacts(t *testing.T) {
	w, err := NewWriter(t.TempDir(), 5)
	require.NoError(t, err)

	runDir, err := w.Write(sampleResult("abc-123", time.Now()))
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(runDir, "result.json"))
	require.NoError(t, err)

	var decoded engine.RunResult
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "abc-123", decoded.RunID)
	require.Len(t, decoded.Steps, 2)
	assert.Equal(t, engine.CmdClick, decoded.Steps[1].CommandType)

	html, err := os.ReadFile(filepath.Join(runDir, "report.html"))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(html), "abc-123"))
	assert.True(t, strings.Contains(string(html), "element not found"))
}

func TestWriterRotatesOldRuns(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, 2)
	require.NoError(t, err)

	for i, id := range []string{"one", "two", "three"} {
		_, err := w.Write(sampleResult(id, time.Now().Add(time.Duration(i)*time.Second)))
		require.NoError(t, err)
		// distinct mod times for ordering
		time.Sleep(10 * time.Millisecond)
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestArtifactPathLandsInsideRunDirectory(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, 5)
	require.NoError(t, err)

	result := sampleResult("with-shot", time.Now())
	w.Begin(result.RunID, result.StartedAt)

	path, err := w.ArtifactPath("screenshot-1.png")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("png"), 0o644))

	runDir, err := w.Write(result)
	require.NoError(t, err)
	assert.Equal(t, runDir, filepath.Dir(path))

	// nothing loose in the report root
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.True(t, e.IsDir(), "unexpected loose file %s in report root", e.Name())
	}
}

func TestArtifactPathRequiresActiveRun(t *testing.T) {
	w, err := NewWriter(t.TempDir(), 5)
	require.NoError(t, err)

	_, err = w.ArtifactPath("screenshot-1.png")
	assert.Error(t, err)
}

func TestRotationRemovesRunArtifacts(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, 2)
	require.NoError(t, err)

	first := sampleResult("oldest", time.Now())
	w.Begin(first.RunID, first.StartedAt)
	path, err := w.ArtifactPath("screenshot-1.png")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("png"), 0o644))
	_, err = w.Write(first)
	require.NoError(t, err)

	for i, id := range []string{"newer", "newest"} {
		time.Sleep(10 * time.Millisecond)
		_, err := w.Write(sampleResult(id, time.Now().Add(time.Duration(i+1)*time.Second)))
		require.NoError(t, err)
	}

	// the oldest run rotated out, screenshot included
	assert.NoFileExists(t, path)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestWriterLatest(t *testing.T) {
	w, err := NewWriter(t.TempDir(), 5)
	require.NoError(t, err)

	latest, err := w.Latest()
	require.NoError(t, err)
	assert.Empty(t, latest)

	_, err = w.Write(sampleResult("first", time.Now()))
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	newest, err := w.Write(sampleResult("second", time.Now()))
	require.NoError(t, err)

	latest, err = w.Latest()
	require.NoError(t, err)
	assert.Equal(t, newest, latest)

	result, err := w.LatestResult()
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "second", result.RunID)
}
