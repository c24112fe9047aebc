package editor

import "context"

// RenderOnce runs a controller over the given buffers until the first
// compile cycle settles and returns its output. Compile failures render
// unstyled, exactly as in the live editor.
func RenderOnce(ctx context.Context, markup, styleConfig string, opts ...Option) (string, error) {
	opts = append(opts, WithBuffers(markup, styleConfig))
	c := NewController(opts...)

	events, unsubscribe := c.Subscribe()
	defer unsubscribe()

	runCtx, stop := context.WithCancel(ctx)
	errc := make(chan error, 1)
	go func() { errc <- c.Run(runCtx) }()
	defer func() {
		stop()
		<-errc
	}()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return "", ErrClosed
			}
			if ev.State.Cycle >= 1 && ev.State.Status == StatusIdle {
				return ev.State.Output, nil
			}
		}
	}
}
