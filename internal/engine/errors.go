package engine

import "fmt"

// UnknownCommandError reports a command type with no registered handler. It
// indicates malformed input rather than a runtime condition, so it aborts the
// run regardless of the continue/abort policy.
type UnknownCommandError struct {
	Type string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command type %q", e.Type)
}

// ValidationError reports a command missing a parameter its handler requires.
// It is recorded as a per-step failure subject to the run policy.
type ValidationError struct {
	CommandType string
	Param       string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: command %q requires parameter %q", e.CommandType, e.Param)
}

// ElementNotFoundError reports that a resolved selector matched nothing
// within the allotted time.
type ElementNotFoundError struct {
	Selector string
	Strategy string
	Err      error
}

func (e *ElementNotFoundError) Error() string {
	return fmt.Sprintf("element not found: no %s match for %q within timeout", e.Strategy, e.Selector)
}

func (e *ElementNotFoundError) Unwrap() error { return e.Err }

func missingParam(cmdType, param string) error {
	return &ValidationError{CommandType: cmdType, Param: param}
}
