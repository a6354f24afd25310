// Package engine turns declarative command lists into concrete browser
// operations: a registry-based dispatcher for single commands and a
// sequential runner with per-step result capture.
package engine

// Command is one discrete automation instruction. The Type discriminator
// selects the handler; the remaining fields are type-specific parameters and
// commands are immutable once constructed.
type Command struct {
	Type     string `json:"type" yaml:"type"`
	Selector string `json:"selector,omitempty" yaml:"selector,omitempty"`
	Value    string `json:"value,omitempty" yaml:"value,omitempty"`
	URL      string `json:"url,omitempty" yaml:"url,omitempty"`
	// Attribute names the attribute for getAttribute.
	Attribute string `json:"attribute,omitempty" yaml:"attribute,omitempty"`
	// Key is the keyboard key for press (e.g. "Enter", "a").
	Key string `json:"key,omitempty" yaml:"key,omitempty"`
	// Script is the JavaScript source for evaluate.
	Script string `json:"script,omitempty" yaml:"script,omitempty"`
	// Path is a file path: the upload source for uploadFile, the output
	// target for screenshot (optional; defaults into the artifact dir).
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
	// Source and Target are the drag-and-drop endpoints.
	Source string `json:"source,omitempty" yaml:"source,omitempty"`
	Target string `json:"target,omitempty" yaml:"target,omitempty"`
	// X and Y are scroll coordinates.
	X float64 `json:"x,omitempty" yaml:"x,omitempty"`
	Y float64 `json:"y,omitempty" yaml:"y,omitempty"`
	// TimeoutMs overrides the configured per-command timeout.
	TimeoutMs int `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty"`
	// DelayMs is the per-character delay for type.
	DelayMs int `json:"delay_ms,omitempty" yaml:"delay_ms,omitempty"`
	// DurationMs is the pause length for wait.
	DurationMs int `json:"duration_ms,omitempty" yaml:"duration_ms,omitempty"`
	// FullPage captures beyond the viewport for screenshot.
	FullPage bool `json:"full_page,omitempty" yaml:"full_page,omitempty"`
	// Checked is the desired state for check; nil toggles.
	Checked *bool `json:"checked,omitempty" yaml:"checked,omitempty"`
}

// Command types understood by the dispatcher.
const (
	CmdNavigate        = "navigate"
	CmdReload          = "reload"
	CmdClick           = "click"
	CmdFill            = "fill"
	CmdType            = "type"
	CmdClear           = "clear"
	CmdPress           = "press"
	CmdCheck           = "check"
	CmdSelectOption    = "selectOption"
	CmdUploadFile      = "uploadFile"
	CmdDragAndDrop     = "dragAndDrop"
	CmdScroll          = "scroll"
	CmdWaitForSelector = "waitForSelector"
	CmdWaitForText     = "waitForText"
	CmdWait            = "wait"
	CmdScreenshot      = "screenshot"
	CmdEvaluate        = "evaluate"
	CmdGetText         = "getText"
	CmdGetAttribute    = "getAttribute"
	CmdGetURL          = "getUrl"
	CmdGetTitle        = "getTitle"
	CmdClose           = "close"
)

// StepOutcome records the result of one executed command. The field set and
// ordering of the outcome list form the wire contract consumed by downstream
// report builders.
type StepOutcome struct {
	StepIndex   int            `json:"stepIndex"`
	CommandType string         `json:"commandType"`
	Success     bool           `json:"success"`
	Payload     map[string]any `json:"payload,omitempty"`
	Error       string         `json:"error,omitempty"`
}
