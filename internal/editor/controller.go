// Package editor holds the editor state and the controller that turns
// buffer edits into preview documents.
//
// The Controller owns every piece of mutable state and only touches it
// from the goroutine running Run. Edits, tab switches and compiler
// changes are sent to that goroutine as operations. Each buffer or
// compiler change starts a compile cycle: the markup is sanitized, its
// class names are handed to the style compiler in a separate goroutine,
// and the result is posted back tagged with the cycle number. Results from
// any cycle but the newest are discarded.
//
// Whenever the compiled output changes a single-shot republish timer is
// re-armed. When it fires without being superseded, the preview
// generation is incremented so the browser recreates the preview frame.
package editor

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/conneroisu/livepen/internal/errors"
	"github.com/conneroisu/livepen/internal/logging"
	"github.com/conneroisu/livepen/internal/renderer"
	"github.com/conneroisu/livepen/internal/sanitizer"
	"github.com/conneroisu/livepen/internal/stylecompiler"
)

// DefaultRepublishDelay is how long the output must stay unchanged before
// the preview frame is recreated.
const DefaultRepublishDelay = 3000 * time.Millisecond

// ErrClosed is returned by operations sent after Run has returned.
var ErrClosed = stderrors.New("editor controller closed")

// Status is the controller's compile state.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusCompiling Status = "compiling"
)

// State is a point-in-time copy of the controller state.
type State struct {
	Markup        string `json:"markup"`
	StyleConfig   string `json:"styleConfig"`
	Tab           Tab    `json:"tab"`
	Language      string `json:"language"`
	Output        string `json:"output"`
	Status        Status `json:"status"`
	Generation    uint64 `json:"generation"`
	Cycle         uint64 `json:"cycle"`
	CompilerReady bool   `json:"compilerReady"`
}

// EventType names what changed.
type EventType string

const (
	EventOutput    EventType = "output"
	EventCompiling EventType = "compiling"
	EventRemount   EventType = "remount"
	EventBuffers   EventType = "buffers"
)

// Event is delivered to subscribers after every state change.
type Event struct {
	Type  EventType
	State State
}

type compileResult struct {
	cycle uint64
	body  string
	css   string
	err   error
}

// Controller drives the edit, sanitize, compile and render pipeline.
type Controller struct {
	sanitizer *sanitizer.Sanitizer
	buildOpts stylecompiler.BuildOptions
	delay     time.Duration
	logger    logging.Logger

	ops       chan func(ctx context.Context)
	results   chan compileResult
	republish chan uint64
	done      chan struct{}
	runOnce   sync.Once

	// Owned by the Run goroutine.
	pane       *Pane
	compiler   stylecompiler.Compiler
	output     string
	status     Status
	cycle      uint64
	generation uint64
	armSeq     uint64
	timer      *time.Timer

	stateMu sync.RWMutex
	state   State

	subsMu sync.Mutex
	subs   map[chan Event]struct{}
	closed bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithRepublishDelay overrides DefaultRepublishDelay.
func WithRepublishDelay(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.delay = d
		}
	}
}

// WithSanitizer replaces the trusted-policy sanitizer.
func WithSanitizer(s *sanitizer.Sanitizer) Option {
	return func(c *Controller) {
		if s != nil {
			c.sanitizer = s
		}
	}
}

// WithCompiler sets the compiler handle the controller starts with.
func WithCompiler(compiler stylecompiler.Compiler) Option {
	return func(c *Controller) { c.compiler = compiler }
}

// WithBuildOptions sets the options passed to every compile.
func WithBuildOptions(opts stylecompiler.BuildOptions) Option {
	return func(c *Controller) { c.buildOpts = opts }
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithBuffers sets the initial buffer contents.
func WithBuffers(markup, styleConfig string) Option {
	return func(c *Controller) { c.pane = NewPane(markup, styleConfig) }
}

// NewController returns a controller holding the sample buffers. Nothing
// is computed until Run is called.
func NewController(opts ...Option) *Controller {
	c := &Controller{
		sanitizer: sanitizer.New(nil),
		delay:     DefaultRepublishDelay,
		logger:    logging.NewNopLogger(),
		ops:       make(chan func(ctx context.Context), 64),
		results:   make(chan compileResult, 16),
		republish: make(chan uint64, 1),
		done:      make(chan struct{}),
		pane:      NewPane(DefaultMarkup, DefaultStyleConfig),
		status:    StatusIdle,
		subs:      make(map[chan Event]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithComponent("editor")
	c.publish()
	return c
}

// Run processes operations until ctx is cancelled. The initial buffers
// are compiled on entry. Run may be called only once.
func (c *Controller) Run(ctx context.Context) error {
	started := false
	c.runOnce.Do(func() { started = true })
	if !started {
		return stderrors.New("editor controller already running")
	}

	defer c.shutdown()

	c.recompute(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case op := <-c.ops:
			op(ctx)
		case res := <-c.results:
			c.handleResult(ctx, res)
		case seq := <-c.republish:
			c.handleRepublish(ctx, seq)
		}
	}
}

func (c *Controller) shutdown() {
	if c.timer != nil {
		c.timer.Stop()
	}
	close(c.done)

	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	c.closed = true
	for ch := range c.subs {
		close(ch)
	}
	c.subs = nil
}

// do runs op on the Run goroutine and waits for it to finish.
func (c *Controller) do(ctx context.Context, op func(ctx context.Context)) error {
	finished := make(chan struct{})
	wrapped := func(runCtx context.Context) {
		op(runCtx)
		close(finished)
	}

	select {
	case c.ops <- wrapped:
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-finished:
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetMarkup replaces the markup buffer. An unchanged value is a no-op.
func (c *Controller) SetMarkup(ctx context.Context, value string) error {
	return c.do(ctx, func(runCtx context.Context) {
		if c.pane.SetMarkup(value) {
			c.emit(EventBuffers)
			c.recompute(runCtx)
		}
	})
}

// SetStyleConfig replaces the style config buffer. An unchanged value is
// a no-op.
func (c *Controller) SetStyleConfig(ctx context.Context, value string) error {
	return c.do(ctx, func(runCtx context.Context) {
		if c.pane.SetStyleConfig(value) {
			c.emit(EventBuffers)
			c.recompute(runCtx)
		}
	})
}

// Edit writes value to the buffer of the active tab.
func (c *Controller) Edit(ctx context.Context, value string) error {
	return c.do(ctx, func(runCtx context.Context) {
		if _, changed := c.pane.Edit(value); changed {
			c.emit(EventBuffers)
			c.recompute(runCtx)
		}
	})
}

// SetTab switches the active tab. The output is not recomputed.
func (c *Controller) SetTab(ctx context.Context, tab Tab) error {
	var tabErr error
	err := c.do(ctx, func(context.Context) {
		if tabErr = c.pane.SetTab(tab); tabErr == nil {
			c.emit(EventBuffers)
		}
	})
	if err != nil {
		return err
	}
	return tabErr
}

// SetCompiler installs a new compiler handle, or removes it when nil,
// and recomputes the output.
func (c *Controller) SetCompiler(ctx context.Context, compiler stylecompiler.Compiler) error {
	return c.do(ctx, func(runCtx context.Context) {
		c.compiler = compiler
		c.recompute(runCtx)
	})
}

// Snapshot returns the latest published state. It never blocks on the
// Run goroutine.
func (c *Controller) Snapshot() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// Subscribe returns a channel receiving every subsequent event and a
// function that cancels the subscription. A slow subscriber loses its
// oldest queued events rather than stall the controller. Each event
// carries the full state, so the last one received is always current.
// The channel is closed when Run returns.
func (c *Controller) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 64)

	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	if c.closed {
		close(ch)
		return ch, func() {}
	}
	c.subs[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subsMu.Lock()
			defer c.subsMu.Unlock()
			if _, ok := c.subs[ch]; ok {
				delete(c.subs, ch)
				close(ch)
			}
		})
	}
}

// recompute starts a new cycle for the current buffers and compiler.
func (c *Controller) recompute(ctx context.Context) {
	c.cycle++
	cycle := c.cycle
	c.status = StatusCompiling

	markup := c.pane.Markup()
	body := c.sanitizer.Sanitize(markup)

	compiler := c.compiler
	if compiler == nil {
		c.finish(ctx, renderer.Wrap(body, ""))
		return
	}
	c.emit(EventCompiling)

	classes := stylecompiler.ExtractClasses(markup)
	configText := c.pane.StyleConfig()
	opts := c.buildOpts

	c.logger.Debug(ctx, "Compile started", "cycle", cycle, "classes", len(classes))

	go func() {
		res := compileResult{cycle: cycle, body: body}
		out, err := compiler.BuildCSS(ctx, configText, classes, opts)
		switch {
		case err != nil:
			res.err = err
		case out != nil:
			res.css = out.CSS
		}

		select {
		case c.results <- res:
		case <-c.done:
		}
	}()
}

func (c *Controller) handleResult(ctx context.Context, res compileResult) {
	if res.cycle != c.cycle {
		c.logger.Debug(ctx, "Discarding stale compile result",
			"cycle", res.cycle, "current", c.cycle)
		return
	}

	css := res.css
	if res.err != nil {
		if errors.IsRecoverable(res.err) {
			c.logger.Warn(ctx, res.err, "Style compile failed, rendering unstyled", "cycle", res.cycle)
		} else {
			c.logger.Error(ctx, res.err, "Style compiler error, rendering unstyled", "cycle", res.cycle)
		}
		css = ""
	}
	c.finish(ctx, renderer.Wrap(res.body, css))
}

// finish completes the current cycle with output.
func (c *Controller) finish(ctx context.Context, output string) {
	c.status = StatusIdle
	if output == c.output {
		c.emit(EventCompiling)
		return
	}

	c.output = output
	c.armRepublish()
	c.logger.Debug(ctx, "Output updated", "cycle", c.cycle, "bytes", len(output))
	c.emit(EventOutput)
}

// armRepublish stops any pending timer and schedules a new one. Fires of
// superseded timers are ignored by sequence number.
func (c *Controller) armRepublish() {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.armSeq++
	seq := c.armSeq
	c.timer = time.AfterFunc(c.delay, func() {
		select {
		case c.republish <- seq:
		case <-c.done:
		}
	})
}

func (c *Controller) handleRepublish(ctx context.Context, seq uint64) {
	if seq != c.armSeq {
		return
	}
	c.generation++
	c.logger.Debug(ctx, "Preview remount", "generation", c.generation)
	c.emit(EventRemount)
}

// publish copies the loop-owned state into the snapshot.
func (c *Controller) publish() State {
	s := State{
		Markup:        c.pane.Markup(),
		StyleConfig:   c.pane.StyleConfig(),
		Tab:           c.pane.Active(),
		Language:      c.pane.Language(),
		Output:        c.output,
		Status:        c.status,
		Generation:    c.generation,
		Cycle:         c.cycle,
		CompilerReady: c.compiler != nil,
	}

	c.stateMu.Lock()
	c.state = s
	c.stateMu.Unlock()
	return s
}

func (c *Controller) emit(t EventType) {
	ev := Event{Type: t, State: c.publish()}

	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for ch := range c.subs {
		select {
		case ch <- ev:
			continue
		default:
		}
		// Full: drop the oldest event so the newest state still arrives.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- ev:
		default:
		}
	}
}
