// Package selector classifies selector expressions into concrete addressing
// strategies for the browser layer. Resolution is pure string work;
// "no element found" is an execution-time concern, not a resolution one.
package selector

import "strings"

// Kind identifies the addressing strategy derived from a selector expression.
type Kind int

const (
	// KindCSS passes the expression through as a structural selector.
	KindCSS Kind = iota
	// KindRole looks elements up by ARIA role, optionally scoped to an
	// accessible name.
	KindRole
	// KindTestID matches a data-testid attribute.
	KindTestID
	// KindPlaceholder matches an input placeholder text.
	KindPlaceholder
	// KindLabel matches a form label text.
	KindLabel
	// KindText matches literal visible text content.
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindCSS:
		return "css"
	case KindRole:
		return "role"
	case KindTestID:
		return "testid"
	case KindPlaceholder:
		return "placeholder"
	case KindLabel:
		return "label"
	case KindText:
		return "text"
	default:
		return "unknown"
	}
}

// Strategy describes how the browser layer should locate a target element.
// Value holds the strategy argument (CSS expression, test id, placeholder
// text, label text, or literal text); Role and Name are set for KindRole.
type Strategy struct {
	Kind  Kind
	Value string
	Role  string
	Name  string
}

// Resolve maps a selector expression to its strategy. Rules are evaluated in
// fixed precedence and the first match wins; literal text is the
// unconditional fallback, so it can never shadow a prefixed form.
func Resolve(expr string) Strategy {
	if isStructural(expr) {
		return Strategy{Kind: KindCSS, Value: expr}
	}

	if rest, ok := strings.CutPrefix(expr, "role:"); ok {
		if role, name, ok := parseRole(rest); ok {
			return Strategy{Kind: KindRole, Role: role, Name: name}
		}
	}

	if rest, ok := strings.CutPrefix(expr, "testid:"); ok && rest != "" {
		return Strategy{Kind: KindTestID, Value: rest}
	}

	if rest, ok := strings.CutPrefix(expr, "placeholder:"); ok && rest != "" {
		return Strategy{Kind: KindPlaceholder, Value: rest}
	}

	if rest, ok := strings.CutPrefix(expr, "label:"); ok && rest != "" {
		return Strategy{Kind: KindLabel, Value: rest}
	}

	return Strategy{Kind: KindText, Value: expr}
}

// isStructural reports whether the expression is a CSS-like selector: it
// starts with a class, id, or attribute token, or contains a child/sibling
// combinator.
func isStructural(expr string) bool {
	if expr == "" {
		return false
	}
	switch expr[0] {
	case '.', '#', '[':
		return true
	}
	return strings.ContainsAny(expr, ">+")
}

// parseRole splits "button" or "button[Submit]" into role and accessible name.
func parseRole(rest string) (role, name string, ok bool) {
	if rest == "" {
		return "", "", false
	}
	open := strings.Index(rest, "[")
	if open < 0 {
		return rest, "", true
	}
	if !strings.HasSuffix(rest, "]") || open == 0 {
		return "", "", false
	}
	return rest[:open], rest[open+1 : len(rest)-1], true
}

// EscapeAttr escapes a value for embedding in a double-quoted CSS attribute
// selector.
func EscapeAttr(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}

// AttrSelector renders an [attr="value"] selector with proper escaping.
func AttrSelector(attr, value string) string {
	return "[" + attr + `="` + EscapeAttr(value) + `"]`
}
