package cmd

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/cadence/internal/actions"
	"github.com/xkilldash9x/cadence/internal/automator"
	"github.com/xkilldash9x/cadence/internal/browser/humanoid"
	"github.com/xkilldash9x/cadence/internal/clock"
	"github.com/xkilldash9x/cadence/internal/counter"
	"github.com/xkilldash9x/cadence/internal/page"
	"github.com/xkilldash9x/cadence/internal/store"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

const feedPlan = `
url: https://example.test/feed
page: feed
selectors:
  like: button.like
  next: a.next
steps:
  - action: like
    target: like
  - target: next
    kind: Link
repeat: 2
`

func TestLoadPlanFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/plans/feed.yaml", []byte(feedPlan), 0o644))

	pf, err := loadPlanFile(fs, "/plans/feed.yaml")
	require.NoError(t, err)
	assert.Equal(t, "https://example.test/feed", pf.URL)
	assert.Equal(t, "feed", pf.Page)
	assert.Equal(t, 2, pf.Repeat)
	assert.Equal(t, []PlanStep{
		{Action: "like", Target: "like", Kind: kindButton},
		{Action: "next", Target: "next", Kind: kindLink},
	}, pf.Steps)
}

func TestLoadPlanFile_Invalid(t *testing.T) {
	cases := map[string]string{
		"no steps":         "selectors: {a: b}\n",
		"unknown target":   "steps:\n  - target: share\n",
		"unknown kind":     "selectors: {a: '#a'}\nsteps:\n  - target: a\n    kind: swipe\n",
		"missing target":   "selectors: {a: '#a'}\nsteps:\n  - action: like\n",
		"negative repeat":  "selectors: {a: '#a'}\nsteps:\n  - target: a\nrepeat: -2\n",
		"unknown frame":    "selectors: {a: '#a'}\nsteps:\n  - target: a\n    frame: editor\n",
		"bad confirm":      "selectors: {a: '#a'}\nsteps:\n  - target: a\n    confirm: maybe\n",
		"confirm on link":  "selectors: {a: '#a'}\nsteps:\n  - target: a\n    kind: link\n    confirm: ok\n",
		"not yaml mapping": "- just\n- a list\n",
	}
	fs := afero.NewMemMapFs()
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, afero.WriteFile(fs, "/plan.yaml", []byte(content), 0o644))
			_, err := loadPlanFile(fs, "/plan.yaml")
			assert.Error(t, err)
		})
	}

	_, err := loadPlanFile(fs, "/nope.yaml")
	assert.ErrorContains(t, err, "failed to read plan")
}

type presentElement struct{ selector string }

func (e *presentElement) BoundingBox(ctx context.Context) (humanoid.Box, error) {
	return humanoid.Box{Width: 10, Height: 10}, nil
}
func (e *presentElement) ScrollIntoView(ctx context.Context, opts humanoid.ScrollOptions) error {
	return nil
}
func (e *presentElement) DispatchMouseEvent(ctx context.Context, ev humanoid.MouseEvent) error {
	return nil
}
func (e *presentElement) Exists(ctx context.Context) (bool, error) {
	return e.selector != "", nil
}

type readyProbe struct{}

func (readyProbe) BodyPresent(ctx context.Context) (bool, error) { return true, nil }

func TestBuildPlan(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/feed.yaml", []byte(feedPlan), 0o644))
	pf, err := loadPlanFile(fs, "/feed.yaml")
	require.NoError(t, err)

	pg := page.New(pf.Page, page.NewRegistry(pf.Selectors), page.Deps{
		Probe:  readyProbe{},
		Locate: func(sel string) page.Element { return &presentElement{selector: sel} },
		Clock:  clock.NewFake(time.Unix(0, 0)),
	})

	plan, err := buildPlan(context.Background(), pg, pf, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 2, plan.Repeat)
	require.Len(t, plan.Steps, 2)

	btn, ok := plan.Steps[0].Target.(*page.Button)
	require.True(t, ok)
	assert.Equal(t, "like", btn.Action())
	assert.Equal(t, "button.like", btn.Target().(*presentElement).selector)

	_, ok = plan.Steps[1].Target.(*page.Link)
	assert.True(t, ok)
	assert.Equal(t, "next", plan.Steps[1].Action)
}

const profilePlan = `
url: https://example.test/profile
page: profile
selectors:
  unfollow: button.unfollow
  composer: iframe#composer
  send: button.send
steps:
  - target: unfollow
    confirm: OK
  - action: message
    target: send
    frame: composer
`

type loadedFrames struct{}

func (loadedFrames) FrameState(ctx context.Context, frame string) (bool, bool, error) {
	return true, true, nil
}

type framedElement struct {
	presentElement
	frame string
}

type confirmLog struct{ answers []bool }

func (c *confirmLog) ArmConfirm(accept bool) { c.answers = append(c.answers, accept) }

type okClicker struct{}

func (okClicker) Click(ctx context.Context, el humanoid.Element) bool { return true }

func TestBuildPlan_FrameAndConfirm(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/profile.yaml", []byte(profilePlan), 0o644))
	pf, err := loadPlanFile(fs, "/profile.yaml")
	require.NoError(t, err)
	assert.Equal(t, confirmOK, pf.Steps[0].Confirm)

	dialogs := &confirmLog{}
	locateFramed := func(frame, sel string) page.Element {
		return &framedElement{presentElement: presentElement{selector: sel}, frame: frame}
	}
	pg := page.New(pf.Page, page.NewRegistry(pf.Selectors), page.Deps{
		Probe:   readyProbe{},
		Locate:  func(sel string) page.Element { return &presentElement{selector: sel} },
		Clicker: okClicker{},
		Clock:   clock.NewFake(time.Unix(0, 0)),

		Frames:        loadedFrames{},
		LocateInFrame: locateFramed,
		Dialogs:       dialogs,
	})

	plan, err := buildPlan(context.Background(), pg, pf, time.Second)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 2)

	assert.True(t, pg.Click(context.Background(), plan.Steps[0].Target))
	assert.Equal(t, []bool{true}, dialogs.answers)

	inFrame, ok := plan.Steps[1].Target.Target().(*framedElement)
	require.True(t, ok)
	assert.Equal(t, "iframe#composer", inFrame.frame)
	assert.Equal(t, "button.send", inFrame.selector)
	assert.Equal(t, "message", plan.Steps[1].Action)
}

func TestBuildPlan_ConfirmNeedsDialogs(t *testing.T) {
	pf := &PlanFile{
		Selectors: map[string]string{"unfollow": "button.unfollow"},
		Steps:     []PlanStep{{Target: "unfollow", Confirm: "cancel"}},
	}
	require.NoError(t, pf.Validate())

	pg := page.New("profile", page.NewRegistry(pf.Selectors), page.Deps{
		Probe:  readyProbe{},
		Locate: func(sel string) page.Element { return &presentElement{selector: sel} },
		Clock:  clock.NewFake(time.Unix(0, 0)),
	})
	_, err := buildPlan(context.Background(), pg, pf, time.Second)
	assert.ErrorIs(t, err, page.ErrNoDialogs)
}

func TestBuildPlan_MissingElement(t *testing.T) {
	pf := &PlanFile{
		Selectors: map[string]string{"like": "button.like"},
		Steps:     []PlanStep{{Target: "like"}},
	}
	require.NoError(t, pf.Validate())

	pg := page.New("feed", page.NewRegistry(pf.Selectors), page.Deps{
		Probe:  readyProbe{},
		Locate: func(sel string) page.Element { return &presentElement{} },
		Clock:  clock.NewFake(time.Unix(0, 0)),
	})

	_, err := buildPlan(context.Background(), pg, pf, 50*time.Millisecond)
	var nf *page.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "button.like", nf.Selector)
}

func TestRunJanitor(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	fc := clock.NewFake(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	rec, err := actions.New(ctx, store.NewMemory(), actions.WithClock(fc))
	require.NoError(t, err)

	now := fc.Now()
	_, err = rec.Log(ctx, "like", now.Add(-10*24*time.Hour).UnixMilli())
	require.NoError(t, err)
	_, err = rec.Log(ctx, "follow", now.Add(-2*time.Hour).UnixMilli())
	require.NoError(t, err)
	_, err = rec.Log(ctx, "like", now.Add(-time.Minute).UnixMilli())
	require.NoError(t, err)

	jctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		runJanitor(jctx, rec, fc, 24*time.Hour, 5*time.Millisecond, zap.NewNop())
	}()

	assert.Eventually(t, func() bool { return rec.Count() == 2 }, time.Second, 5*time.Millisecond)

	// Advancing past the next cutoff ages out the follow on a later tick.
	fc.Advance(23 * time.Hour)
	assert.Eventually(t, func() bool { return rec.Count() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

type stubRunner struct {
	sum     *automator.Summary
	err     error
	block   bool
	started atomic.Bool
}

func (s *stubRunner) Run(ctx context.Context, plan automator.Plan) (*automator.Summary, error) {
	s.started.Store(true)
	if s.block {
		<-ctx.Done()
		return s.sum, ctx.Err()
	}
	return s.sum, s.err
}

func newSummary() *automator.Summary {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	sum := &automator.Summary{
		RunID:     "run-1",
		Started:   start,
		Finished:  start.Add(42 * time.Second),
		Performed: counter.New(),
		Failed:    counter.New(),
		Skipped:   counter.New(),
	}
	sum.Performed.Add("like", 3)
	sum.Failed.Add("follow", 1)
	sum.Skipped.Add("follow", 2)
	return sum
}

func TestRunWithJanitor(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	rec, err := actions.New(ctx, store.NewMemory())
	require.NoError(t, err)

	runner := &stubRunner{sum: newSummary()}
	sum, err := runWithJanitor(ctx, runner, automator.Plan{}, rec, time.Hour, time.Millisecond, zap.NewNop())
	require.NoError(t, err)
	assert.Same(t, runner.sum, sum)

	boom := errors.New("clicker gone")
	_, err = runWithJanitor(ctx, &stubRunner{sum: newSummary(), err: boom}, automator.Plan{}, rec, 0, 0, zap.NewNop())
	assert.ErrorIs(t, err, boom)
}

func TestRunWithJanitor_Cancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	rec, err := actions.New(ctx, store.NewMemory())
	require.NoError(t, err)

	runner := &stubRunner{sum: newSummary(), block: true}
	go func() {
		for !runner.started.Load() {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	_, err = runWithJanitor(ctx, runner, automator.Plan{}, rec, time.Hour, time.Millisecond, zap.NewNop())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	writeSummary(&buf, newSummary())
	out := buf.String()

	assert.Contains(t, out, "Run run-1")
	assert.Contains(t, out, "like")
	assert.Contains(t, out, "follow")
	assert.Contains(t, out, "duration 42s, stopped early: false")
}
