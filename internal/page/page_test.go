package page

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/cadence/internal/actions"
	"github.com/xkilldash9x/cadence/internal/browser/humanoid"
	"github.com/xkilldash9x/cadence/internal/clock"
	"github.com/xkilldash9x/cadence/internal/journal"
	"github.com/xkilldash9x/cadence/internal/poll"
	"github.com/xkilldash9x/cadence/internal/store"
)

// probeFunc adapts a function to Probe.
type probeFunc func(ctx context.Context) (bool, error)

func (f probeFunc) BodyPresent(ctx context.Context) (bool, error) { return f(ctx) }

// afterN reports ready from the nth check on.
func afterN(n int32) (Probe, *atomic.Int32) {
	var calls atomic.Int32
	return probeFunc(func(ctx context.Context) (bool, error) {
		return calls.Add(1) >= n, nil
	}), &calls
}

type fakeElement struct {
	selector  string
	existsAt  int32
	checks    atomic.Int32
	existsErr error
}

func (f *fakeElement) BoundingBox(ctx context.Context) (humanoid.Box, error) {
	return humanoid.Box{Width: 20, Height: 20}, nil
}
func (f *fakeElement) ScrollIntoView(ctx context.Context, opts humanoid.ScrollOptions) error {
	return nil
}
func (f *fakeElement) DispatchMouseEvent(ctx context.Context, ev humanoid.MouseEvent) error {
	return nil
}
func (f *fakeElement) Exists(ctx context.Context) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	return f.checks.Add(1) >= f.existsAt, nil
}

type fakeClicker struct {
	mu      sync.Mutex
	clicked []humanoid.Element
	result  bool
}

func (c *fakeClicker) Click(ctx context.Context, el humanoid.Element) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clicked = append(c.clicked, el)
	return c.result
}

type fakeLogger struct {
	actions []string
	err     error
}

func (l *fakeLogger) Log(ctx context.Context, action string, ts ...int64) (int64, error) {
	if l.err != nil {
		return 0, l.err
	}
	l.actions = append(l.actions, action)
	return int64(len(l.actions)), nil
}

func newFakeClock() *clock.Fake { return clock.NewFake(time.Unix(0, 0)) }

func TestGate_CallbacksRunExactlyOnce(t *testing.T) {
	probe, calls := afterN(3)
	g := NewGate(probe, newFakeClock(), nil)

	var fired atomic.Int32
	g.OnFirstReady(func(ctx context.Context) { fired.Add(1) })
	g.OnFirstReady(func(ctx context.Context) { fired.Add(10) })
	assert.False(t, g.IsReady())

	require.NoError(t, g.Ready(context.Background(), time.Second))
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, int32(11), fired.Load())
	assert.True(t, g.IsReady())

	// Later calls still probe the page but never re-run callbacks.
	require.NoError(t, g.Ready(context.Background(), time.Second))
	assert.Equal(t, int32(4), calls.Load())
	assert.Equal(t, int32(11), fired.Load())
}

func TestGate_LateCallbackRunsOnNextReady(t *testing.T) {
	probe, _ := afterN(1)
	g := NewGate(probe, newFakeClock(), nil)
	require.NoError(t, g.Ready(context.Background(), 0))

	var fired atomic.Int32
	g.OnFirstReady(func(ctx context.Context) { fired.Add(1) })
	require.NoError(t, g.Ready(context.Background(), 0))
	require.NoError(t, g.Ready(context.Background(), 0))
	assert.Equal(t, int32(1), fired.Load())
}

func TestGate_Timeout(t *testing.T) {
	probe, _ := afterN(1 << 30)
	g := NewGate(probe, newFakeClock(), nil)
	fired := false
	g.OnFirstReady(func(ctx context.Context) { fired = true })

	err := g.Ready(context.Background(), 200*time.Millisecond)
	assert.ErrorIs(t, err, poll.ErrTimeout)
	assert.False(t, fired)
	assert.False(t, g.IsReady())
}

func TestGate_ProbeError(t *testing.T) {
	boom := errors.New("target crashed")
	g := NewGate(probeFunc(func(ctx context.Context) (bool, error) { return false, boom }), newFakeClock(), nil)
	assert.ErrorIs(t, g.Ready(context.Background(), time.Second), boom)
}

func TestRegistry(t *testing.T) {
	src := map[string]string{"like": "button.like", "follow": "button.follow"}
	r := NewRegistry(src)
	src["like"] = "mutated"

	sel, err := r.Lookup("like")
	require.NoError(t, err)
	assert.Equal(t, "button.like", sel)

	_, err = r.Lookup("share")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "share", nf.Name)
	assert.Contains(t, err.Error(), "no selector registered")

	r.Set("share", "a.share")
	assert.Equal(t, []string{"follow", "like", "share"}, r.Names())
	assert.Equal(t, 3, r.Len())
}

func newTestPage(clicker Clicker, recorder ActionLogger, elements map[string]*fakeElement) *Page {
	selectors := make(map[string]string)
	for name, el := range elements {
		selectors[name] = el.selector
	}
	bySelector := make(map[string]*fakeElement)
	for _, el := range elements {
		bySelector[el.selector] = el
	}
	probe, _ := afterN(1)
	return New("feed", NewRegistry(selectors), Deps{
		Probe:    probe,
		Locate:   func(sel string) Element { return bySelector[sel] },
		Clicker:  clicker,
		Recorder: recorder,
		Clock:    newFakeClock(),
	})
}

func TestPage_ButtonLogsBeforeClicking(t *testing.T) {
	clicker := &fakeClicker{result: true}
	logger := &fakeLogger{}
	el := &fakeElement{selector: "button.like"}
	p := newTestPage(clicker, logger, map[string]*fakeElement{"like": el})

	b, err := p.Button("like", "like")
	require.NoError(t, err)
	assert.Equal(t, "like", b.Name())
	assert.Equal(t, "like", b.Action())

	assert.True(t, p.Click(context.Background(), b))
	assert.Equal(t, []string{"like"}, logger.actions)
	require.Len(t, clicker.clicked, 1)
	assert.Same(t, el, clicker.clicked[0])
}

func TestPage_ButtonRecordFailureSkipsClick(t *testing.T) {
	clicker := &fakeClicker{result: true}
	logger := &fakeLogger{err: &store.Error{Op: "set", Key: store.KeyActions, Err: errors.New("disk full")}}
	p := newTestPage(clicker, logger, map[string]*fakeElement{"like": {selector: "button.like"}})

	b, err := p.Button("like", "like")
	require.NoError(t, err)
	assert.False(t, p.Click(context.Background(), b))
	assert.Empty(t, clicker.clicked)
}

func TestPage_ButtonWithoutAction(t *testing.T) {
	clicker := &fakeClicker{result: false}
	logger := &fakeLogger{}
	p := newTestPage(clicker, logger, map[string]*fakeElement{"menu": {selector: "#menu"}})

	b, err := p.Button("menu", "")
	require.NoError(t, err)
	assert.False(t, p.Click(context.Background(), b))
	assert.Empty(t, logger.actions)
	assert.Len(t, clicker.clicked, 1)
}

func TestPage_Link(t *testing.T) {
	clicker := &fakeClicker{result: true}
	p := newTestPage(clicker, nil, map[string]*fakeElement{"profile": {selector: "a.profile"}})

	l, err := p.Link("profile")
	require.NoError(t, err)
	assert.True(t, p.Click(context.Background(), l))
	assert.Equal(t, "a.profile", l.Target().(*fakeElement).selector)

	_, err = p.Link("missing")
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestPage_WaitFor(t *testing.T) {
	el := &fakeElement{selector: "article", existsAt: 4}
	p := newTestPage(&fakeClicker{}, nil, map[string]*fakeElement{"post": el})

	got, err := p.WaitFor(context.Background(), "post", time.Second)
	require.NoError(t, err)
	assert.Same(t, el, got)
	assert.Equal(t, int32(4), el.checks.Load())
}

func TestPage_WaitForTimeout(t *testing.T) {
	el := &fakeElement{selector: "article", existsAt: 1 << 30}
	p := newTestPage(&fakeClicker{}, nil, map[string]*fakeElement{"post": el})

	_, err := p.WaitFor(context.Background(), "post", 100*time.Millisecond)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "article", nf.Selector)
	assert.ErrorIs(t, err, poll.ErrTimeout)

	_, err = p.WaitFor(context.Background(), "comment", time.Second)
	require.ErrorAs(t, err, &nf)
	assert.Empty(t, nf.Selector)
}

func TestPage_WaitForProbeError(t *testing.T) {
	boom := errors.New("session closed")
	p := newTestPage(&fakeClicker{}, nil, map[string]*fakeElement{"post": {selector: "article", existsErr: boom}})
	_, err := p.WaitFor(context.Background(), "post", time.Second)
	assert.ErrorIs(t, err, boom)
}

func TestPage_ButtonRecordsIntoJournal(t *testing.T) {
	ctx := context.Background()
	fc := newFakeClock()
	rec, err := actions.New(ctx, store.NewMemory(), actions.WithClock(fc))
	require.NoError(t, err)

	seq := humanoid.New(clock.NewSleeper(clock.WithClock(fc)))
	p := newTestPage(seq, rec, map[string]*fakeElement{"like": {selector: "button.like"}})
	require.NoError(t, p.Ready(ctx, 0))

	b, err := p.Button("like", "like")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		assert.True(t, p.Click(ctx, b))
	}

	// Each click's pauses advance the clock, so every entry gets its own timestamp.
	entries := rec.Get(journal.Label("like")).Sorted()
	require.Len(t, entries, 3)
	assert.Less(t, entries[0].Timestamp, entries[1].Timestamp)
	assert.Less(t, entries[1].Timestamp, entries[2].Timestamp)
}
