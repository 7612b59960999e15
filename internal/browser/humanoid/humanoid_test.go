// internal/browser/humanoid/humanoid_test.go
package humanoid

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/cadence/internal/clock"
	"github.com/xkilldash9x/cadence/internal/notify"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// halfSource makes every Float64 draw exactly 0.5.
type halfSource struct{}

func (halfSource) Int63() int64 { return 1 << 62 }
func (halfSource) Seed(int64)   {}

func newTestSequencer(t *testing.T, opts ...Option) (*Sequencer, *clock.Fake) {
	t.Helper()
	fc := clock.NewFake(time.Unix(0, 0))
	sleeper := clock.NewSleeper(clock.WithClock(fc), clock.WithRand(rand.New(halfSource{})))
	return New(sleeper, opts...), fc
}

var testBox = Box{Left: 10, Top: 20, Width: 104, Height: 24, ScrollY: 300}

func TestPerform_EventOrderAndSharedPoint(t *testing.T) {
	marker := &mockMarker{}
	seq, fc := newTestSequencer(t, WithMarker(marker))
	el := newMockElement(testBox)

	require.NoError(t, seq.Perform(context.Background(), el))

	assert.Equal(t, []MouseEventType{MouseOver, MouseDown, MouseUp, Click, MouseOut}, el.types())
	want := Point{X: 62, Y: 332}
	for _, ev := range el.events() {
		assert.Equal(t, want.X, ev.X, "event %s", ev.Type)
		assert.Equal(t, want.Y, ev.Y, "event %s", ev.Type)
		assert.Equal(t, ButtonLeft, ev.Button)
	}
	assert.Equal(t, []ScrollOptions{CenterSmooth}, el.scrolls)
	assert.Equal(t, []Point{want}, marker.points)

	assert.Equal(t, []time.Duration{
		150 * time.Millisecond,
		250 * time.Millisecond,
		150 * time.Millisecond,
		75 * time.Millisecond,
		450 * time.Millisecond,
	}, fc.Sleeps())
}

func TestClickPoint_StaysInsideElement(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	seq := New(clock.NewSleeper(clock.WithClock(fc), clock.WithRand(rand.New(rand.NewSource(3)))))

	box := Box{Left: 100, Top: 50, Width: 40, Height: 10, ScrollX: 7, ScrollY: 9}
	for i := 0; i < 200; i++ {
		p := seq.ClickPoint(box)
		assert.GreaterOrEqual(t, p.X, box.Left+2+box.ScrollX)
		assert.Less(t, p.X, box.Left+box.Width-2+box.ScrollX)
		assert.GreaterOrEqual(t, p.Y, box.Top+2+box.ScrollY)
		assert.Less(t, p.Y, box.Top+box.Height-2+box.ScrollY)
	}
}

func TestClickPoint_TinyElement(t *testing.T) {
	seq, _ := newTestSequencer(t)
	p := seq.ClickPoint(Box{Left: 0, Top: 0, Width: 2, Height: 2})
	// The random span never drops below one pixel.
	assert.Equal(t, Point{X: 2.5, Y: 2.5}, p)
}

func TestPerform_DelaysWithinBounds(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	seq := New(clock.NewSleeper(clock.WithClock(fc), clock.WithRand(rand.New(rand.NewSource(11)))))

	require.NoError(t, seq.Perform(context.Background(), newMockElement(testBox)))

	bounds := [][2]time.Duration{{100, 200}, {100, 400}, {100, 200}, {50, 100}, {200, 700}}
	sleeps := fc.Sleeps()
	require.Len(t, sleeps, len(bounds))
	for i, b := range bounds {
		assert.GreaterOrEqual(t, sleeps[i], b[0]*time.Millisecond, "sleep %d", i)
		assert.Less(t, sleeps[i], b[1]*time.Millisecond, "sleep %d", i)
	}
}

func TestPerform_AbortsOnDispatchFailure(t *testing.T) {
	seq, fc := newTestSequencer(t)
	el := newMockElement(testBox)
	el.returnErr = errors.New("node detached")
	el.failOnCall = 2

	err := seq.Perform(context.Background(), el)
	require.Error(t, err)
	assert.ErrorIs(t, err, el.returnErr)
	assert.Contains(t, err.Error(), "mousedown")

	assert.Equal(t, []MouseEventType{MouseOver, MouseDown}, el.types())
	assert.Len(t, fc.Sleeps(), 2)
}

func TestPerform_MeasureAndScrollFailures(t *testing.T) {
	measureErr := errors.New("no layout")
	el := newMockElement(testBox)
	el.MockBoundingBox = func(ctx context.Context) (Box, error) { return Box{}, measureErr }

	seq, _ := newTestSequencer(t)
	err := seq.Perform(context.Background(), el)
	assert.ErrorIs(t, err, measureErr)
	assert.Empty(t, el.events())

	scrollErr := errors.New("scroll blocked")
	el = newMockElement(testBox)
	el.MockScrollIntoView = func(ctx context.Context, opts ScrollOptions) error { return scrollErr }
	err = seq.Perform(context.Background(), el)
	assert.ErrorIs(t, err, scrollErr)
	assert.Empty(t, el.events())
}

func TestPerform_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	seq, fc := newTestSequencer(t)
	fc.OnSleep = func(time.Duration) { cancel() }

	el := newMockElement(testBox)
	err := seq.Perform(ctx, el)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, el.events())
}

func TestPerform_MarkerFailureIsCosmetic(t *testing.T) {
	marker := &mockMarker{returnErr: errors.New("overlay blocked by CSP")}
	seq, _ := newTestSequencer(t, WithMarker(marker))
	el := newMockElement(testBox)

	require.NoError(t, seq.Perform(context.Background(), el))
	assert.Len(t, el.events(), 5)
	assert.Len(t, marker.points, 1)
}

func TestClick_ReportsSoftFailure(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	seq, _ := newTestSequencer(t, WithNotifier(notify.NewZap(zap.New(core))))

	ok := seq.Click(context.Background(), newMockElement(testBox))
	assert.True(t, ok)
	assert.Zero(t, logs.FilterLevelExact(zapcore.ErrorLevel).Len())

	el := newMockElement(testBox)
	el.returnErr = errors.New("boom")
	ok = seq.Click(context.Background(), el)
	assert.False(t, ok)

	errs := logs.FilterLevelExact(zapcore.ErrorLevel).All()
	require.Len(t, errs, 1)
	assert.Equal(t, "Unable to simulate a click", errs[0].Message)
}

func TestPerform_SerializesSequences(t *testing.T) {
	seq, _ := newTestSequencer(t)
	log := &eventLog{}

	var wg sync.WaitGroup
	elements := make([]*mockElement, 4)
	for i := range elements {
		elements[i] = newMockElement(testBox)
		elements[i].log = log
		wg.Add(1)
		go func(el *mockElement) {
			defer wg.Done()
			assert.NoError(t, seq.Perform(context.Background(), el))
		}(elements[i])
	}
	wg.Wait()

	require.Len(t, log.events, 20)
	for i := 0; i < len(log.events); i += 5 {
		owner := log.events[i].owner
		for j := i; j < i+5; j++ {
			assert.Same(t, owner, log.events[j].owner, "sequence starting at %d was interleaved", i)
		}
		assert.Equal(t, MouseOver, log.events[i].event.Type)
		assert.Equal(t, MouseOut, log.events[i+4].event.Type)
	}
}
