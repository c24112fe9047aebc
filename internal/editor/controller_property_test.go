//go:build property

package editor

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestRepublishProperties checks that a burst of output changes spaced
// closer than the delay produces exactly one remount.
func TestRepublishProperties(t *testing.T) {
	const delay = 80 * time.Millisecond

	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(1234)
	parameters.MinSuccessfulTests = 15

	properties := gopter.NewProperties(parameters)

	properties.Property("burst yields one generation", prop.ForAll(
		func(edits int, gapMillis int) bool {
			c := NewController(WithBuffers("", ""), WithRepublishDelay(delay))
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go func() { _ = c.Run(ctx) }()

			for i := 0; i < edits; i++ {
				if err := c.SetMarkup(ctx, fmt.Sprintf("<p>%d</p>", i)); err != nil {
					return false
				}
				time.Sleep(time.Duration(gapMillis) * time.Millisecond)
			}

			deadline := time.Now().Add(2 * time.Second)
			for c.Snapshot().Generation == 0 && time.Now().Before(deadline) {
				time.Sleep(5 * time.Millisecond)
			}
			time.Sleep(2 * delay)
			return c.Snapshot().Generation == 1
		},
		gen.IntRange(1, 6),
		gen.IntRange(0, 15),
	))

	properties.Property("stale results never become final", prop.ForAll(
		func(order []bool) bool {
			g := newGatedCompiler("a", "b")
			c := NewController(WithBuffers(`<i class="a"></i>`, ""), WithCompiler(g))
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go func() { _ = c.Run(ctx) }()

			if err := c.SetMarkup(ctx, `<i class="b"></i>`); err != nil {
				return false
			}
			if len(order) > 0 && order[0] {
				g.release("a")
				g.release("b")
			} else {
				g.release("b")
				g.release("a")
			}

			deadline := time.Now().Add(2 * time.Second)
			for time.Now().Before(deadline) {
				s := c.Snapshot()
				if s.Status == StatusIdle && s.Cycle == 2 {
					break
				}
				time.Sleep(5 * time.Millisecond)
			}
			time.Sleep(20 * time.Millisecond)
			s := c.Snapshot()
			return s.Status == StatusIdle &&
				containsStyle(s.Output, ".b{}") &&
				!containsStyle(s.Output, ".a{}")
		},
		gen.SliceOfN(1, gen.Bool()),
	))

	properties.TestingRun(t)
}

func containsStyle(doc, rule string) bool {
	return strings.Contains(doc, "<style>"+rule+"</style>")
}
