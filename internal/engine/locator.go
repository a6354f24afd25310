package engine

import (
	"regexp"
	"strings"
	"time"

	"github.com/go-rod/rod"

	"github.com/analysta-ai/playwrightium/internal/selector"
)

// probeTimeout bounds the cheap first attempt of multi-strategy lookups so a
// miss falls through to the authoritative lookup quickly.
const probeTimeout = 2 * time.Second

// textTargets limits literal-text matching to elements a user would actually
// interact with, so an anchored text match never lands on <html> or a page
// wrapper.
const textTargets = "a, button, summary, label, legend, option, [role], " +
	"span, p, li, td, th, h1, h2, h3, h4, h5, h6"

// implicitRoles maps ARIA roles to the native elements that carry the role
// without an explicit attribute.
var implicitRoles = map[string]string{
	"button":   "button, input[type=button], input[type=submit]",
	"link":     "a[href]",
	"textbox":  "input:not([type]), input[type=text], input[type=email], input[type=password], input[type=search], textarea",
	"checkbox": "input[type=checkbox]",
	"radio":    "input[type=radio]",
	"combobox": "select",
	"heading":  "h1, h2, h3, h4, h5, h6",
	"img":      "img",
	"list":     "ul, ol",
	"listitem": "li",
}

// locate resolves a selector expression and finds the matching element on the
// page, waiting up to timeout. Failures are wrapped as *ElementNotFoundError.
func locate(page *rod.Page, expr string, timeout time.Duration) (*rod.Element, error) {
	strat := selector.Resolve(expr)

	el, err := locateStrategy(page, strat, timeout)
	if err != nil {
		return nil, &ElementNotFoundError{Selector: expr, Strategy: strat.Kind.String(), Err: err}
	}
	return el, nil
}

func locateStrategy(page *rod.Page, strat selector.Strategy, timeout time.Duration) (*rod.Element, error) {
	switch strat.Kind {
	case selector.KindCSS:
		return page.Timeout(timeout).Element(strat.Value)

	case selector.KindRole:
		return locateRole(page, strat.Role, strat.Name, timeout)

	case selector.KindTestID:
		// data-testid is canonical; data-test-id is a common variant.
		el, err := page.Timeout(shortest(timeout, probeTimeout)).
			Element(selector.AttrSelector("data-testid", strat.Value))
		if err == nil {
			return el, nil
		}
		return page.Timeout(timeout).Element(selector.AttrSelector("data-test-id", strat.Value))

	case selector.KindPlaceholder:
		return page.Timeout(timeout).Element(selector.AttrSelector("placeholder", strat.Value))

	case selector.KindLabel:
		return locateLabel(page, strat.Value, timeout)

	default: // KindText
		return page.Timeout(timeout).ElementR(textTargets, anchored(strat.Value))
	}
}

// locateRole matches explicit role attributes and the implicit roles of
// native elements, scoped to the accessible name when one is given.
func locateRole(page *rod.Page, role, name string, timeout time.Duration) (*rod.Element, error) {
	sel := selector.AttrSelector("role", role)
	if implicit, ok := implicitRoles[role]; ok {
		sel = sel + ", " + implicit
	}

	if name == "" {
		return page.Timeout(timeout).Element(sel)
	}

	// Accessible name from aria-label first, visible text second.
	labeled := withAttr(sel, "aria-label", name)
	el, err := page.Timeout(shortest(timeout, probeTimeout)).Element(labeled)
	if err == nil {
		return el, nil
	}
	return page.Timeout(timeout).ElementR(sel, anchored(name))
}

// locateLabel finds the form control a visible label points at, via the
// label's for attribute or by descending into the label element.
func locateLabel(page *rod.Page, text string, timeout time.Duration) (*rod.Element, error) {
	el, err := page.Timeout(shortest(timeout, probeTimeout)).
		Element(selector.AttrSelector("aria-label", text))
	if err == nil {
		return el, nil
	}

	label, err := page.Timeout(timeout).ElementR("label", anchored(text))
	if err != nil {
		return nil, err
	}

	if forAttr, err := label.Attribute("for"); err == nil && forAttr != nil && *forAttr != "" {
		return page.Timeout(timeout).Element(selector.AttrSelector("id", *forAttr))
	}
	return label.Timeout(timeout).Element("input, select, textarea")
}

// withAttr appends an attribute condition to every alternative of a
// comma-separated selector list.
func withAttr(sel, attr, value string) string {
	cond := selector.AttrSelector(attr, value)
	parts := strings.Split(sel, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p) + cond
	}
	return strings.Join(parts, ", ")
}

// anchored builds a whole-text JS regex, tolerating surrounding whitespace.
func anchored(text string) string {
	return `^\s*` + regexp.QuoteMeta(text) + `\s*$`
}

func shortest(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
