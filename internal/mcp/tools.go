package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/analysta-ai/playwrightium/internal/browser"
	"github.com/analysta-ai/playwrightium/internal/engine"
	"github.com/analysta-ai/playwrightium/internal/report"
	"github.com/analysta-ai/playwrightium/internal/scenario"
)

// RunCommandsTool executes an inline batch of commands against the shared
// browser session.
type RunCommandsTool struct {
	runner  *engine.Runner
	reports *report.Writer
}

func (t *RunCommandsTool) Name() string { return "run-commands" }
func (t *RunCommandsTool) Description() string {
	return `Execute an ordered batch of browser commands in one call.

Each command is an object with a "type" plus type-specific parameters, e.g.:
  {"type": "navigate", "url": "https://example.com"}
  {"type": "fill", "selector": "label:Username", "value": "${{USER}}"}
  {"type": "click", "selector": "role:button[Sign in]"}

Secret placeholders like ${{NAME}} resolve from the server's environment
before anything runs. Policy "abort" (default) stops at the first failed
step; "continue" runs every step and accumulates failures.`
}
func (t *RunCommandsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"commands": map[string]interface{}{
				"type":        "array",
				"description": "Ordered command objects, each with a 'type' field",
				"items": map[string]interface{}{
					"type": "object",
				},
			},
			"policy": map[string]interface{}{
				"type":        "string",
				"description": "Failure policy: 'abort' (default) or 'continue'",
				"enum":        []string{engine.PolicyAbort, engine.PolicyContinue},
			},
		},
		"required": []string{"commands"},
	}
}
func (t *RunCommandsTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	commands, err := decodeCommands(args["commands"])
	if err != nil {
		return map[string]interface{}{"success": false, "error": err.Error()}, nil
	}
	if len(commands) == 0 {
		return map[string]interface{}{"success": false, "error": "commands is required and must not be empty"}, nil
	}

	policy := getStringArg(args, "policy")
	result, runErr := t.runner.Run(ctx, commands, policy)
	return runPayload(result, runErr, t.reports), nil
}

// RunScenarioTool loads a scenario file from the server host and executes it.
type RunScenarioTool struct {
	runner  *engine.Runner
	reports *report.Writer
}

func (t *RunScenarioTool) Name() string { return "run-scenario" }
func (t *RunScenarioTool) Description() string {
	return "Load a YAML scenario file from the server's filesystem and execute its command batch. The scenario's own policy applies unless overridden."
}
func (t *RunScenarioTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Path to the scenario YAML file",
			},
			"policy": map[string]interface{}{
				"type":        "string",
				"description": "Override the scenario's failure policy",
				"enum":        []string{engine.PolicyAbort, engine.PolicyContinue},
			},
		},
		"required": []string{"path"},
	}
}
func (t *RunScenarioTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	path := getStringArg(args, "path")
	if path == "" {
		return map[string]interface{}{"success": false, "error": "path is required"}, nil
	}

	scn, err := scenario.Load(path)
	if err != nil {
		return map[string]interface{}{"success": false, "error": err.Error()}, nil
	}

	policy := getStringArg(args, "policy")
	if policy == "" {
		policy = scn.RunPolicy()
	}

	result, runErr := t.runner.Run(ctx, scn.Commands, policy)
	payload := runPayload(result, runErr, t.reports)
	payload["scenario"] = scn.Name
	return payload, nil
}

// BrowserCommandTool executes a single command, for interactive exploration.
type BrowserCommandTool struct {
	runner *engine.Runner
}

func (t *BrowserCommandTool) Name() string { return "browser-command" }
func (t *BrowserCommandTool) Description() string {
	return "Execute one browser command and return its outcome. Prefer run-commands for multi-step flows."
}
func (t *BrowserCommandTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"command": map[string]interface{}{
				"type":        "object",
				"description": "A single command object with a 'type' field",
			},
		},
		"required": []string{"command"},
	}
}
func (t *BrowserCommandTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	raw, ok := args["command"]
	if !ok {
		return map[string]interface{}{"success": false, "error": "command is required"}, nil
	}
	commands, err := decodeCommands([]interface{}{raw})
	if err != nil {
		return map[string]interface{}{"success": false, "error": err.Error()}, nil
	}

	result, runErr := t.runner.Run(ctx, commands, engine.PolicyAbort)
	if runErr != nil {
		return map[string]interface{}{"success": false, "error": runErr.Error()}, nil
	}
	if len(result.Steps) == 0 {
		return map[string]interface{}{"success": false, "error": "command did not execute"}, nil
	}

	step := result.Steps[0]
	payload := map[string]interface{}{
		"success": step.Success,
		"type":    step.CommandType,
	}
	if step.Error != "" {
		payload["error"] = step.Error
	}
	if step.Payload != nil {
		payload["result"] = step.Payload
	}
	return payload, nil
}

// SessionStatusTool reports whether a browser session is live.
type SessionStatusTool struct {
	sessions *browser.Manager
}

func (t *SessionStatusTool) Name() string { return "session-status" }
func (t *SessionStatusTool) Description() string {
	return "Report whether a browser session is currently active, with its id and age."
}
func (t *SessionStatusTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}
func (t *SessionStatusTool) Execute(_ context.Context, _ map[string]interface{}) (interface{}, error) {
	sess, ok := t.sessions.Current()
	if !ok {
		return map[string]interface{}{"active": false}, nil
	}
	return map[string]interface{}{
		"active":     true,
		"session_id": sess.ID,
		"created_at": sess.CreatedAt,
	}, nil
}

// CloseSessionTool tears down the browser session. The next command run
// starts a fresh one.
type CloseSessionTool struct {
	sessions *browser.Manager
}

func (t *CloseSessionTool) Name() string { return "close-session" }
func (t *CloseSessionTool) Description() string {
	return "Close the active browser session and release the browser process."
}
func (t *CloseSessionTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}
func (t *CloseSessionTool) Execute(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
	if err := t.sessions.Release(ctx); err != nil {
		return map[string]interface{}{"success": false, "error": err.Error()}, nil
	}
	return map[string]interface{}{"success": true}, nil
}

// LastReportTool returns the most recent run result.
type LastReportTool struct {
	reports *report.Writer
}

func (t *LastReportTool) Name() string { return "last-report" }
func (t *LastReportTool) Description() string {
	return "Return the most recent run report, including every step's outcome."
}
func (t *LastReportTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}
func (t *LastReportTool) Execute(_ context.Context, _ map[string]interface{}) (interface{}, error) {
	result, err := t.reports.LatestResult()
	if err != nil {
		return map[string]interface{}{"success": false, "error": err.Error()}, nil
	}
	if result == nil {
		return map[string]interface{}{"success": false, "error": "no reports recorded yet"}, nil
	}
	return map[string]interface{}{"success": true, "report": result}, nil
}

// decodeCommands round-trips loosely typed tool arguments into Commands so
// unknown fields surface as zero values rather than silent drops.
func decodeCommands(raw interface{}) ([]engine.Command, error) {
	if raw == nil {
		return nil, fmt.Errorf("commands is required")
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid commands: %w", err)
	}
	var commands []engine.Command
	if err := json.Unmarshal(data, &commands); err != nil {
		return nil, fmt.Errorf("invalid commands: %w", err)
	}
	for i, cmd := range commands {
		if cmd.Type == "" {
			return nil, fmt.Errorf("command %d has no type", i)
		}
	}
	return commands, nil
}

// runPayload shapes a run result for the MCP client, persisting the report
// as a side effect.
func runPayload(result engine.RunResult, runErr error, reports *report.Writer) map[string]interface{} {
	payload := map[string]interface{}{
		"success": runErr == nil && !result.Failed,
		"run_id":  result.RunID,
		"policy":  result.Policy,
		"steps":   result.Steps,
		"failed":  result.Failed,
	}
	if runErr != nil {
		payload["error"] = runErr.Error()
	}
	if reports != nil {
		if dir, err := reports.Write(result); err == nil {
			payload["report_dir"] = dir
		}
	}
	return payload
}

func getStringArg(args map[string]interface{}, key string) string {
	val, ok := args[key]
	if !ok {
		return ""
	}
	if s, ok := val.(string); ok {
		return s
	}
	return ""
}
