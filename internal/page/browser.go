package page

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/jonathan/apply-agent/internal/types"
)

// DefaultCallTimeout bounds every page round trip.
const DefaultCallTimeout = 30 * time.Second

// EngineGlobal is the window property the injected engine registers itself under.
const EngineGlobal = "__applyAgent"

// BrowserOptions configures the chromedp-backed automator.
type BrowserOptions struct {
	// URL is the application page to open.
	URL string
	// Script is the page engine source, injected whenever a call finds it missing.
	Script      string
	Headless    bool
	ChromePath  string
	UserDataDir string
	CallTimeout time.Duration
	Logger      *zap.Logger
}

// evalFunc evaluates a JavaScript expression, awaiting promises, and returns the raw JSON result.
type evalFunc func(ctx context.Context, expression string) ([]byte, error)

// Browser drives a Chrome tab through chromedp.
type Browser struct {
	eval        evalFunc
	script      string
	callTimeout time.Duration
	logger      *zap.Logger

	mu         sync.Mutex
	injections int

	cancel func()
}

// NewBrowser launches Chrome, opens opts.URL and returns an automator bound to that tab.
func NewBrowser(ctx context.Context, opts BrowserOptions) (*Browser, error) {
	if opts.URL == "" {
		return nil, &Error{Method: "open", Message: "page URL is required"}
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	chromePath := opts.ChromePath
	if chromePath == "" {
		chromePath = os.Getenv("CHROME_PATH")
	}
	if chromePath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(chromePath))
	}
	if opts.UserDataDir != "" {
		allocOpts = append(allocOpts, chromedp.UserDataDir(opts.UserDataDir))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	cancel := func() {
		cancelTab()
		cancelAlloc()
	}

	timeout := opts.CallTimeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}

	navCtx, cancelNav := context.WithTimeout(tabCtx, 2*timeout)
	defer cancelNav()
	if err := chromedp.Run(navCtx,
		chromedp.Navigate(opts.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		cancel()
		return nil, &Error{Method: "open", Message: "failed to load " + opts.URL, Cause: err}
	}

	b := newBrowser(chromedpEval(tabCtx), opts.Script, timeout, opts.Logger)
	b.cancel = cancel
	return b, nil
}

func newBrowser(eval evalFunc, script string, timeout time.Duration, logger *zap.Logger) *Browser {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &Browser{eval: eval, script: script, callTimeout: timeout, logger: logger}
}

// chromedpEval runs expressions in the tab owned by tabCtx. Call contexts only
// contribute their deadline; the tab outlives them.
func chromedpEval(tabCtx context.Context) evalFunc {
	return func(ctx context.Context, expression string) ([]byte, error) {
		var runCtx context.Context
		var cancel context.CancelFunc
		if deadline, ok := ctx.Deadline(); ok {
			runCtx, cancel = context.WithDeadline(tabCtx, deadline)
		} else {
			runCtx, cancel = context.WithCancel(tabCtx)
		}
		defer cancel()

		stop := context.AfterFunc(ctx, cancel)
		defer stop()

		var raw []byte
		err := chromedp.Run(runCtx, chromedp.Evaluate(expression, &raw,
			func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
				return p.WithAwaitPromise(true)
			}))
		return raw, err
	}
}

// Close shuts down the browser.
func (b *Browser) Close() {
	if b.cancel != nil {
		b.cancel()
	}
}

func (b *Browser) DetectJD(ctx context.Context) (*types.DetectResult, error) {
	var out types.DetectResult
	if err := b.call(ctx, "detectJD", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (b *Browser) WorkflowAction(ctx context.Context, step types.WorkflowStep) (*types.ActionResult, error) {
	if !step.Valid() {
		return nil, &Error{Method: "workflowAction", Message: fmt.Sprintf("unknown step %q", step)}
	}
	var out types.ActionResult
	if err := b.call(ctx, "workflowAction", map[string]string{"step": string(step)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (b *Browser) WorkflowStatus(ctx context.Context) (*types.WorkflowStatus, error) {
	var out types.WorkflowStatus
	if err := b.call(ctx, "getWorkflowStatus", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (b *Browser) FillForm(ctx context.Context) (*types.FillResult, error) {
	var out types.FillResult
	if err := b.call(ctx, "fillForm", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// call invokes method on the page engine. If the engine is missing (first call, or
// the flow navigated to a new document) it is injected and the call retried once.
func (b *Browser) call(ctx context.Context, method string, args any, out any) error {
	expr, err := buildExpression(method, args)
	if err != nil {
		return &Error{Method: method, Message: "failed to encode arguments", Cause: err}
	}

	raw, err := b.evaluate(ctx, method, expr)
	if err != nil {
		return err
	}

	if notLoaded(raw) {
		if err := b.inject(ctx, method); err != nil {
			return err
		}
		raw, err = b.evaluate(ctx, method, expr)
		if err != nil {
			return err
		}
		if notLoaded(raw) {
			return &Error{Method: method, Message: "page engine did not register after injection"}
		}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{Method: method, Message: "failed to decode reply", Cause: err}
	}
	return nil
}

func (b *Browser) evaluate(ctx context.Context, method, expr string) ([]byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, b.callTimeout)
	defer cancel()

	start := time.Now()
	raw, err := b.eval(callCtx, expr)
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			return nil, &Error{Method: method, Message: fmt.Sprintf("timed out after %s", b.callTimeout), Cause: err}
		}
		return nil, &Error{Method: method, Message: "evaluation failed", Cause: err}
	}
	b.logger.Debug("page call", zap.String("method", method), zap.Duration("elapsed", time.Since(start)))
	return raw, nil
}

func (b *Browser) inject(ctx context.Context, method string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.script == "" {
		return &Error{Method: method, Message: "page engine is not loaded and no script is configured"}
	}

	b.logger.Info("injecting page engine", zap.String("method", method))
	if _, err := b.evaluate(ctx, "inject", b.script+"\n;true"); err != nil {
		return err
	}
	b.injections++
	return nil
}

// buildExpression wraps a page engine call in an async IIFE that reports
// {"__notLoaded":true} when the engine has not registered yet.
func buildExpression(method string, args any) (string, error) {
	argJSON := ""
	if args != nil {
		b, err := json.Marshal(args)
		if err != nil {
			return "", err
		}
		argJSON = string(b)
	}
	return fmt.Sprintf(
		`(async () => { const e = window.%s; if (!e || typeof e.%s !== "function") { return {__notLoaded: true}; } return await e.%s(%s); })()`,
		EngineGlobal, method, method, argJSON,
	), nil
}

func notLoaded(raw []byte) bool {
	if !bytes.Contains(raw, []byte("__notLoaded")) {
		return false
	}
	var env struct {
		NotLoaded bool `json:"__notLoaded"`
	}
	return json.Unmarshal(raw, &env) == nil && env.NotLoaded
}
