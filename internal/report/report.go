// Package report persists run results as browsable artifacts.
package report

import (
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/analysta-ai/playwrightium/internal/engine"
)

const DefaultDir = "data/reports"

// Writer stores one directory per run, each holding the machine-readable
// result, a rendered HTML summary, and any artifacts (screenshots) captured
// while the run executed. Old runs rotate out so the report directory stays
// bounded.
type Writer struct {
	mu   sync.Mutex
	dir  string
	keep int

	// current run, set by Begin; its directory materializes lazily on the
	// first artifact so runs without artifacts create no empty dirs.
	currentID    string
	currentStart time.Time
	currentDir   string
}

func NewWriter(dir string, keep int) (*Writer, error) {
	if dir == "" {
		dir = DefaultDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Writer{dir: dir, keep: keep}, nil
}

// Begin marks a run as active so artifacts requested during execution land
// in that run's directory. The directory itself is created on first use.
func (w *Writer) Begin(runID string, startedAt time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.currentID = runID
	w.currentStart = startedAt
	w.currentDir = ""
}

// ArtifactPath allocates a file path inside the active run's directory.
func (w *Writer) ArtifactPath(name string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.currentID == "" {
		return "", fmt.Errorf("no active run")
	}
	if w.currentDir == "" {
		dir, err := w.createRunDirLocked(w.currentID, w.currentStart)
		if err != nil {
			return "", err
		}
		w.currentDir = dir
	}
	return filepath.Join(w.currentDir, name), nil
}

// Write persists a run result and returns the run's report directory. A run
// begun via Begin keeps its artifact directory; anything else gets a fresh
// one.
func (w *Writer) Write(result engine.RunResult) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	runDir := ""
	if result.RunID == w.currentID && w.currentDir != "" {
		runDir = w.currentDir
	}
	if runDir == "" {
		dir, err := w.createRunDirLocked(result.RunID, result.StartedAt)
		if err != nil {
			return "", err
		}
		runDir = dir
	}
	if result.RunID == w.currentID {
		w.currentID = ""
		w.currentDir = ""
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(runDir, "result.json"), data, 0o644); err != nil {
		return "", err
	}

	f, err := os.Create(filepath.Join(runDir, "report.html"))
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := reportTemplate.Execute(f, templateData(result)); err != nil {
		return "", err
	}
	return runDir, nil
}

// createRunDirLocked rotates old runs and creates the directory for a new
// one. Callers hold w.mu.
func (w *Writer) createRunDirLocked(runID string, startedAt time.Time) (string, error) {
	if err := w.rotate(); err != nil {
		return "", fmt.Errorf("rotate reports: %w", err)
	}
	dir := filepath.Join(w.dir, fmt.Sprintf("run_%d_%s", startedAt.UnixMilli(), runID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// Latest returns the most recent run directory, or "" when none exist.
func (w *Writer) Latest() (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	runs, err := w.runDirs()
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", nil
	}
	return filepath.Join(w.dir, runs[0].name), nil
}

// LatestResult loads the most recent result.json, or nil when none exist.
func (w *Writer) LatestResult() (*engine.RunResult, error) {
	dir, err := w.Latest()
	if err != nil || dir == "" {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, "result.json"))
	if err != nil {
		return nil, err
	}
	var result engine.RunResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

type runEntry struct {
	name    string
	modTime time.Time
}

// runDirs lists run directories newest first.
func (w *Writer) runDirs() ([]runEntry, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, err
	}

	var runs []runEntry
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		runs = append(runs, runEntry{e.Name(), info.ModTime()})
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].modTime.After(runs[j].modTime)
	})
	return runs, nil
}

// rotate keeps only the newest keep-1 runs to make room for the next one.
func (w *Writer) rotate() error {
	if w.keep <= 0 {
		return nil
	}
	runs, err := w.runDirs()
	if err != nil {
		return err
	}
	if len(runs) < w.keep {
		return nil
	}
	for i := w.keep - 1; i < len(runs); i++ {
		if err := os.RemoveAll(filepath.Join(w.dir, runs[i].name)); err != nil {
			return err
		}
	}
	return nil
}

type reportView struct {
	Result   engine.RunResult
	Duration time.Duration
	Passed   int
	FailedN  int
}

func templateData(result engine.RunResult) reportView {
	view := reportView{
		Result:   result,
		Duration: result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond),
	}
	for _, s := range result.Steps {
		if s.Success {
			view.Passed++
		} else {
			view.FailedN++
		}
	}
	return view
}

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Run {{.Result.RunID}}</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ccc; padding: 6px 10px; text-align: left; }
.ok { color: #2a7a2a; }
.fail { color: #b22222; }
</style>
</head>
<body>
<h1>Run {{.Result.RunID}}</h1>
<p>
Policy: {{.Result.Policy}} |
Started: {{.Result.StartedAt.Format "2006-01-02 15:04:05 MST"}} |
Duration: {{.Duration}} |
Passed: {{.Passed}} | Failed: {{.FailedN}}
</p>
<table>
<tr><th>#</th><th>Command</th><th>Status</th><th>Details</th></tr>
{{range .Result.Steps}}
<tr>
<td>{{.StepIndex}}</td>
<td>{{.CommandType}}</td>
{{if .Success}}<td class="ok">passed</td><td></td>
{{else}}<td class="fail">failed</td><td>{{.Error}}</td>{{end}}
</tr>
{{end}}
</table>
</body>
</html>
`))
