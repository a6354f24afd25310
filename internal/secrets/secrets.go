// Package secrets resolves ${{NAME}} placeholders in command parameters
// against an environment-sourced variable store.
package secrets

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// placeholderPattern matches ${{NAME}} with optional inner whitespace.
var placeholderPattern = regexp.MustCompile(`\$\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// Store is a flat, read-only name -> value mapping.
type Store map[string]string

// FromEnviron builds a Store from the current process environment.
func FromEnviron() Store {
	store := make(Store)
	for _, kv := range os.Environ() {
		name, val, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		store[name] = val
	}
	return store
}

// MissingVariableError reports a placeholder that has no entry in the store.
// Interpolation fails instead of substituting an empty string: a credential
// or URL silently becoming "" is a worse failure mode than an explicit abort.
type MissingVariableError struct {
	Name string
}

func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("secret interpolation: variable %q is not defined", e.Name)
}

// Expand replaces every placeholder in a single string. The input is returned
// unchanged when it contains no placeholders.
func Expand(s string, store Store) (string, error) {
	var missing *MissingVariableError
	out := placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		if missing != nil {
			return match
		}
		name := placeholderPattern.FindStringSubmatch(match)[1]
		val, ok := store[name]
		if !ok {
			missing = &MissingVariableError{Name: name}
			return match
		}
		return val
	})
	if missing != nil {
		return "", missing
	}
	return out, nil
}

// Interpolate walks an arbitrary value and expands placeholders inside every
// string it contains. Slices and maps are copied structurally; other values
// pass through untouched. The walk is deterministic and has no side effects,
// and a single missing variable fails the whole value with no partial result.
//
// This is the surface for loosely typed structures (raw tool arguments,
// decoded YAML). Decoded commands take the narrower path: the run engine
// expands each string field directly with Expand before dispatch.
func Interpolate(value any, store Store) (any, error) {
	switch v := value.(type) {
	case string:
		return Expand(v, store)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			resolved, err := Interpolate(item, store)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			resolved, err := Interpolate(item, store)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	case map[string]string:
		out := make(map[string]string, len(v))
		for k, item := range v {
			resolved, err := Expand(item, store)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	default:
		return value, nil
	}
}
