package core

import (
	"context"
	"sync"

	"github.com/mongodb/grip"
	"github.com/pkg/errors"
)

// ThreaderGroup creates Threaders and joins them together.
type ThreaderGroup struct {
	mu        sync.Mutex
	threaders []*Threader
	logger    Logger
}

// NewThreaderGroup creates an empty group. A nil logger uses grip.
func NewThreaderGroup(logger Logger) *ThreaderGroup {
	if logger == nil {
		logger = NewDefaultLogger()
	}
	return &ThreaderGroup{logger: logger}
}

// CreateThreader starts task on a new Threader owned by the group and returns
// it together with the group size after insertion.
func (g *ThreaderGroup) CreateThreader(task Task, name string) (*Threader, int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	th := newThreader(name, g.logger)
	if err := th.Execute(task); err != nil {
		return nil, len(g.threaders), errors.Wrapf(err, "create threader %q", name)
	}
	g.threaders = append(g.threaders, th)
	return th, len(g.threaders), nil
}

// JoinAll waits for every Threader in the group when it is called. Join
// failures are logged and collected; the remaining Threaders are still joined.
// Threaders created while JoinAll runs are not waited for.
func (g *ThreaderGroup) JoinAll() []error {
	return g.JoinAllContext(context.Background())
}

// JoinAllContext is JoinAll bounded by ctx.
func (g *ThreaderGroup) JoinAllContext(ctx context.Context) []error {
	catcher := grip.NewBasicCatcher()
	for _, th := range g.Threaders() {
		if err := th.JoinContext(ctx); err != nil {
			g.logger.Warn("failed to join threader", F("threader", th.Name()), F("error", err))
			catcher.Add(errors.Wrapf(err, "join threader %q", th.Name()))
		}
	}
	return catcher.Errors()
}

// InterruptAll interrupts every Threader in the group.
func (g *ThreaderGroup) InterruptAll() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, th := range g.threaders {
		th.Interrupt()
	}
}

// Prune drops Threaders whose task has returned and reports how many were
// removed.
func (g *ThreaderGroup) Prune() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	live := g.threaders[:0]
	for _, th := range g.threaders {
		if th.IsRunning() {
			live = append(live, th)
		}
	}
	removed := len(g.threaders) - len(live)
	clear(g.threaders[len(live):])
	g.threaders = live
	return removed
}

// Size returns the number of Threaders created so far.
func (g *ThreaderGroup) Size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.threaders)
}

// Threaders returns a snapshot of the group's members.
func (g *ThreaderGroup) Threaders() []*Threader {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*Threader, len(g.threaders))
	copy(out, g.threaders)
	return out
}
