package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"

	"github.com/analysta-ai/playwrightium/internal/browser"
	"github.com/analysta-ai/playwrightium/internal/config"
)

type handlerFunc func(ctx context.Context, sess *browser.Session, cmd Command) (map[string]any, error)

// ArtifactSink allocates artifact file paths scoped to the run in progress,
// so captures like screenshots live and rotate with their run's report.
type ArtifactSink interface {
	Begin(runID string, startedAt time.Time)
	ArtifactPath(name string) (string, error)
}

// Dispatcher executes exactly one command against a session and reports a
// StepOutcome. Expected failure classes (missing element, timeout, engine
// error) are captured into the outcome; only an unknown command type is
// returned as a Go error, because it means the input itself is malformed.
type Dispatcher struct {
	cfg       config.BrowserConfig
	sessions  *browser.Manager
	logger    *log.Logger
	artifacts ArtifactSink
	handlers  map[string]handlerFunc
}

func NewDispatcher(cfg config.BrowserConfig, sessions *browser.Manager, logger *log.Logger, artifacts ArtifactSink) *Dispatcher {
	d := &Dispatcher{
		cfg:       cfg,
		sessions:  sessions,
		logger:    logger,
		artifacts: artifacts,
	}
	d.handlers = map[string]handlerFunc{
		CmdNavigate:        d.handleNavigate,
		CmdReload:          d.handleReload,
		CmdClick:           d.handleClick,
		CmdFill:            d.handleFill,
		CmdType:            d.handleType,
		CmdClear:           d.handleClear,
		CmdPress:           d.handlePress,
		CmdCheck:           d.handleCheck,
		CmdSelectOption:    d.handleSelectOption,
		CmdUploadFile:      d.handleUploadFile,
		CmdDragAndDrop:     d.handleDragAndDrop,
		CmdScroll:          d.handleScroll,
		CmdWaitForSelector: d.handleWaitForSelector,
		CmdWaitForText:     d.handleWaitForText,
		CmdWait:            d.handleWait,
		CmdScreenshot:      d.handleScreenshot,
		CmdEvaluate:        d.handleEvaluate,
		CmdGetText:         d.handleGetText,
		CmdGetAttribute:    d.handleGetAttribute,
		CmdGetURL:          d.handleGetURL,
		CmdGetTitle:        d.handleGetTitle,
		CmdClose:           d.handleClose,
	}
	return d
}

// Execute runs one command. The caller assigns the step index.
func (d *Dispatcher) Execute(ctx context.Context, sess *browser.Session, cmd Command) (StepOutcome, error) {
	handler, ok := d.handlers[cmd.Type]
	if !ok {
		return StepOutcome{}, &UnknownCommandError{Type: cmd.Type}
	}

	payload, err := handler(ctx, sess, cmd)
	outcome := StepOutcome{CommandType: cmd.Type}
	if err != nil {
		outcome.Error = describeFailure(err)
		d.logger.Warn("command failed", "type", cmd.Type, "err", err)
		return outcome, nil
	}
	outcome.Success = true
	outcome.Payload = payload
	return outcome, nil
}

// describeFailure maps an error to the step-level failure taxonomy.
func describeFailure(err error) string {
	var notFound *ElementNotFoundError
	var invalid *ValidationError
	switch {
	case errors.As(err, &invalid), errors.As(err, &notFound):
		return err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Sprintf("timeout: %v", err)
	default:
		return fmt.Sprintf("engine error: %v", err)
	}
}

// timeoutFor resolves the effective per-command timeout.
func (d *Dispatcher) timeoutFor(cmd Command) time.Duration {
	if cmd.TimeoutMs > 0 {
		return time.Duration(cmd.TimeoutMs) * time.Millisecond
	}
	return d.cfg.CommandTimeout()
}

func (d *Dispatcher) element(ctx context.Context, sess *browser.Session, cmd Command) (*rod.Element, error) {
	return locate(sess.Page.Context(ctx), cmd.Selector, d.timeoutFor(cmd))
}

func (d *Dispatcher) handleNavigate(ctx context.Context, sess *browser.Session, cmd Command) (map[string]any, error) {
	if cmd.URL == "" {
		return nil, missingParam(cmd.Type, "url")
	}
	timeout := d.cfg.NavigationTimeout()
	if cmd.TimeoutMs > 0 {
		timeout = time.Duration(cmd.TimeoutMs) * time.Millisecond
	}
	page := sess.Page.Context(ctx).Timeout(timeout)
	if err := page.Navigate(cmd.URL); err != nil {
		return nil, err
	}
	if err := page.WaitLoad(); err != nil {
		return nil, err
	}
	return map[string]any{"url": cmd.URL}, nil
}

func (d *Dispatcher) handleReload(ctx context.Context, sess *browser.Session, cmd Command) (map[string]any, error) {
	page := sess.Page.Context(ctx).Timeout(d.cfg.NavigationTimeout())
	if err := page.Reload(); err != nil {
		return nil, err
	}
	if err := page.WaitLoad(); err != nil {
		return nil, err
	}
	return map[string]any{"reloaded": true}, nil
}

func (d *Dispatcher) handleClick(ctx context.Context, sess *browser.Session, cmd Command) (map[string]any, error) {
	if cmd.Selector == "" {
		return nil, missingParam(cmd.Type, "selector")
	}
	el, err := d.element(ctx, sess, cmd)
	if err != nil {
		return nil, err
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return nil, err
	}
	return map[string]any{"clicked": cmd.Selector}, nil
}

func (d *Dispatcher) handleFill(ctx context.Context, sess *browser.Session, cmd Command) (map[string]any, error) {
	if cmd.Selector == "" {
		return nil, missingParam(cmd.Type, "selector")
	}
	el, err := d.element(ctx, sess, cmd)
	if err != nil {
		return nil, err
	}
	if err := clearElement(el); err != nil {
		return nil, err
	}
	if err := el.Input(cmd.Value); err != nil {
		return nil, err
	}
	return map[string]any{"filled": cmd.Selector}, nil
}

func (d *Dispatcher) handleType(ctx context.Context, sess *browser.Session, cmd Command) (map[string]any, error) {
	if cmd.Selector == "" {
		return nil, missingParam(cmd.Type, "selector")
	}
	el, err := d.element(ctx, sess, cmd)
	if err != nil {
		return nil, err
	}
	if err := el.Focus(); err != nil {
		return nil, err
	}

	delay := time.Duration(cmd.DelayMs) * time.Millisecond
	if delay <= 0 {
		if err := el.Input(cmd.Value); err != nil {
			return nil, err
		}
		return map[string]any{"typed": cmd.Selector}, nil
	}

	for _, r := range cmd.Value {
		if err := el.Input(string(r)); err != nil {
			return nil, err
		}
		if err := sleepWithContext(ctx, delay); err != nil {
			return nil, err
		}
	}
	return map[string]any{"typed": cmd.Selector}, nil
}

func (d *Dispatcher) handleClear(ctx context.Context, sess *browser.Session, cmd Command) (map[string]any, error) {
	if cmd.Selector == "" {
		return nil, missingParam(cmd.Type, "selector")
	}
	el, err := d.element(ctx, sess, cmd)
	if err != nil {
		return nil, err
	}
	if err := clearElement(el); err != nil {
		return nil, err
	}
	return map[string]any{"cleared": cmd.Selector}, nil
}

func (d *Dispatcher) handlePress(ctx context.Context, sess *browser.Session, cmd Command) (map[string]any, error) {
	if cmd.Key == "" {
		return nil, missingParam(cmd.Type, "key")
	}
	key, ok := lookupKey(cmd.Key)
	if !ok {
		return nil, fmt.Errorf("unknown key: %s", cmd.Key)
	}
	if err := sess.Page.Context(ctx).Keyboard.Press(key); err != nil {
		return nil, err
	}
	return map[string]any{"pressed": cmd.Key}, nil
}

func (d *Dispatcher) handleCheck(ctx context.Context, sess *browser.Session, cmd Command) (map[string]any, error) {
	if cmd.Selector == "" {
		return nil, missingParam(cmd.Type, "selector")
	}
	el, err := d.element(ctx, sess, cmd)
	if err != nil {
		return nil, err
	}

	current, err := el.Property("checked")
	if err != nil {
		return nil, err
	}
	desired := !current.Bool()
	if cmd.Checked != nil {
		desired = *cmd.Checked
	}
	if current.Bool() != desired {
		if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return nil, err
		}
	}
	return map[string]any{"selector": cmd.Selector, "checked": desired}, nil
}

func (d *Dispatcher) handleSelectOption(ctx context.Context, sess *browser.Session, cmd Command) (map[string]any, error) {
	if cmd.Selector == "" {
		return nil, missingParam(cmd.Type, "selector")
	}
	if cmd.Value == "" {
		return nil, missingParam(cmd.Type, "value")
	}
	el, err := d.element(ctx, sess, cmd)
	if err != nil {
		return nil, err
	}
	if err := el.Select([]string{cmd.Value}, true, rod.SelectorTypeText); err != nil {
		return nil, err
	}
	return map[string]any{"selected": cmd.Value}, nil
}

func (d *Dispatcher) handleUploadFile(ctx context.Context, sess *browser.Session, cmd Command) (map[string]any, error) {
	if cmd.Selector == "" {
		return nil, missingParam(cmd.Type, "selector")
	}
	if cmd.Path == "" {
		return nil, missingParam(cmd.Type, "path")
	}
	el, err := d.element(ctx, sess, cmd)
	if err != nil {
		return nil, err
	}
	if err := el.SetFiles([]string{cmd.Path}); err != nil {
		return nil, err
	}
	return map[string]any{"uploaded": cmd.Path}, nil
}

func (d *Dispatcher) handleDragAndDrop(ctx context.Context, sess *browser.Session, cmd Command) (map[string]any, error) {
	if cmd.Source == "" {
		return nil, missingParam(cmd.Type, "source")
	}
	if cmd.Target == "" {
		return nil, missingParam(cmd.Type, "target")
	}
	page := sess.Page.Context(ctx)
	timeout := d.timeoutFor(cmd)

	src, err := locate(page, cmd.Source, timeout)
	if err != nil {
		return nil, err
	}
	dst, err := locate(page, cmd.Target, timeout)
	if err != nil {
		return nil, err
	}

	from, err := elementCenter(src)
	if err != nil {
		return nil, err
	}
	to, err := elementCenter(dst)
	if err != nil {
		return nil, err
	}

	mouse := page.Mouse
	if err := mouse.MoveTo(*from); err != nil {
		return nil, err
	}
	if err := mouse.Down(proto.InputMouseButtonLeft, 1); err != nil {
		return nil, err
	}
	if err := mouse.MoveLinear(*to, 10); err != nil {
		return nil, err
	}
	if err := mouse.Up(proto.InputMouseButtonLeft, 1); err != nil {
		return nil, err
	}
	return map[string]any{"dragged": cmd.Source, "dropped_on": cmd.Target}, nil
}

func (d *Dispatcher) handleScroll(ctx context.Context, sess *browser.Session, cmd Command) (map[string]any, error) {
	_, err := sess.Page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:      `(x, y) => window.scrollTo(x, y)`,
		JSArgs:  []any{cmd.X, cmd.Y},
		ByValue: true,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"x": cmd.X, "y": cmd.Y}, nil
}

func (d *Dispatcher) handleWaitForSelector(ctx context.Context, sess *browser.Session, cmd Command) (map[string]any, error) {
	if cmd.Selector == "" {
		return nil, missingParam(cmd.Type, "selector")
	}
	if _, err := d.element(ctx, sess, cmd); err != nil {
		return nil, err
	}
	return map[string]any{"found": cmd.Selector}, nil
}

func (d *Dispatcher) handleWaitForText(ctx context.Context, sess *browser.Session, cmd Command) (map[string]any, error) {
	if cmd.Value == "" {
		return nil, missingParam(cmd.Type, "value")
	}
	page := sess.Page.Context(ctx)
	_, err := page.Timeout(d.timeoutFor(cmd)).ElementR("body, body *", anchoredSubstring(cmd.Value))
	if err != nil {
		return nil, &ElementNotFoundError{Selector: cmd.Value, Strategy: "text", Err: err}
	}
	return map[string]any{"text": cmd.Value}, nil
}

func (d *Dispatcher) handleWait(ctx context.Context, _ *browser.Session, cmd Command) (map[string]any, error) {
	if cmd.DurationMs <= 0 {
		return nil, missingParam(cmd.Type, "duration_ms")
	}
	if err := sleepWithContext(ctx, time.Duration(cmd.DurationMs)*time.Millisecond); err != nil {
		return nil, err
	}
	return map[string]any{"waited_ms": cmd.DurationMs}, nil
}

func (d *Dispatcher) handleScreenshot(ctx context.Context, sess *browser.Session, cmd Command) (map[string]any, error) {
	path := cmd.Path
	if path == "" {
		if d.artifacts == nil {
			return nil, fmt.Errorf("screenshot needs a path: no artifact sink configured")
		}
		p, err := d.artifacts.ArtifactPath(fmt.Sprintf("screenshot-%d.png", time.Now().UnixMilli()))
		if err != nil {
			return nil, err
		}
		path = p
	}

	data, err := sess.Page.Context(ctx).Screenshot(cmd.FullPage, nil)
	if err != nil {
		return nil, err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, err
	}
	return map[string]any{"screenshot": path, "bytes": len(data)}, nil
}

func (d *Dispatcher) handleEvaluate(ctx context.Context, sess *browser.Session, cmd Command) (map[string]any, error) {
	if cmd.Script == "" {
		return nil, missingParam(cmd.Type, "script")
	}
	res, err := sess.Page.Context(ctx).Timeout(d.timeoutFor(cmd)).Evaluate(&rod.EvalOptions{
		JS:           cmd.Script,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"result": res.Value.Val()}, nil
}

func (d *Dispatcher) handleGetText(ctx context.Context, sess *browser.Session, cmd Command) (map[string]any, error) {
	if cmd.Selector == "" {
		return nil, missingParam(cmd.Type, "selector")
	}
	el, err := d.element(ctx, sess, cmd)
	if err != nil {
		return nil, err
	}
	text, err := el.Text()
	if err != nil {
		return nil, err
	}
	return map[string]any{"text": text}, nil
}

func (d *Dispatcher) handleGetAttribute(ctx context.Context, sess *browser.Session, cmd Command) (map[string]any, error) {
	if cmd.Selector == "" {
		return nil, missingParam(cmd.Type, "selector")
	}
	if cmd.Attribute == "" {
		return nil, missingParam(cmd.Type, "attribute")
	}
	el, err := d.element(ctx, sess, cmd)
	if err != nil {
		return nil, err
	}
	val, err := el.Attribute(cmd.Attribute)
	if err != nil {
		return nil, err
	}
	payload := map[string]any{"attribute": cmd.Attribute}
	if val != nil {
		payload["value"] = *val
	} else {
		payload["value"] = nil
	}
	return payload, nil
}

func (d *Dispatcher) handleGetURL(ctx context.Context, sess *browser.Session, _ Command) (map[string]any, error) {
	info, err := sess.Page.Context(ctx).Info()
	if err != nil {
		return nil, err
	}
	return map[string]any{"url": info.URL}, nil
}

func (d *Dispatcher) handleGetTitle(ctx context.Context, sess *browser.Session, _ Command) (map[string]any, error) {
	info, err := sess.Page.Context(ctx).Info()
	if err != nil {
		return nil, err
	}
	return map[string]any{"title": info.Title}, nil
}

func (d *Dispatcher) handleClose(ctx context.Context, _ *browser.Session, _ Command) (map[string]any, error) {
	if err := d.sessions.Release(ctx); err != nil {
		return nil, err
	}
	return map[string]any{"closed": true}, nil
}

// clearElement empties an input the way a user would: select all, overwrite.
func clearElement(el *rod.Element) error {
	if err := el.SelectAllText(); err != nil {
		return err
	}
	return el.Input("")
}

func elementCenter(el *rod.Element) (*proto.Point, error) {
	shape, err := el.Shape()
	if err != nil {
		return nil, err
	}
	pt := shape.OnePointInside()
	if pt == nil {
		return nil, fmt.Errorf("element has no visible area")
	}
	return pt, nil
}

// anchoredSubstring matches text anywhere inside an element's content.
func anchoredSubstring(text string) string {
	return regexp.QuoteMeta(text)
}

var namedKeys = map[string]input.Key{
	"Enter":      input.Enter,
	"Tab":        input.Tab,
	"Escape":     input.Escape,
	"Backspace":  input.Backspace,
	"Space":      input.Space,
	"Delete":     input.Delete,
	"ArrowUp":    input.ArrowUp,
	"ArrowDown":  input.ArrowDown,
	"ArrowLeft":  input.ArrowLeft,
	"ArrowRight": input.ArrowRight,
	"Home":       input.Home,
	"End":        input.End,
	"PageUp":     input.PageUp,
	"PageDown":   input.PageDown,
}

func lookupKey(name string) (input.Key, bool) {
	if k, ok := namedKeys[name]; ok {
		return k, true
	}
	runes := []rune(name)
	if len(runes) == 1 {
		return input.Key(runes[0]), true
	}
	return 0, false
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
