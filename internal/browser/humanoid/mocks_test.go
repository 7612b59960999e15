// internal/browser/humanoid/mocks_test.go
package humanoid

import (
	"context"
	"sync"
)

// mockElement records every interaction. Overrides replace the default
// behavior when set.
type mockElement struct {
	mu sync.Mutex

	box        Box
	scrolls    []ScrollOptions
	dispatched []MouseEvent
	// log, if set, receives each dispatched event. Shared between elements
	// to observe ordering across sequences.
	log *eventLog

	returnErr  error
	failOnCall int // 1-based dispatch call that fails; 0 fails every call when returnErr is set
	callCount  int

	MockBoundingBox    func(ctx context.Context) (Box, error)
	MockScrollIntoView func(ctx context.Context, opts ScrollOptions) error
}

func newMockElement(box Box) *mockElement {
	return &mockElement{box: box}
}

func (m *mockElement) BoundingBox(ctx context.Context) (Box, error) {
	if m.MockBoundingBox != nil {
		return m.MockBoundingBox(ctx)
	}
	if err := ctx.Err(); err != nil {
		return Box{}, err
	}
	return m.box, nil
}

func (m *mockElement) ScrollIntoView(ctx context.Context, opts ScrollOptions) error {
	if m.MockScrollIntoView != nil {
		return m.MockScrollIntoView(ctx, opts)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scrolls = append(m.scrolls, opts)
	return ctx.Err()
}

func (m *mockElement) DispatchMouseEvent(ctx context.Context, ev MouseEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.dispatched = append(m.dispatched, ev)
	m.callCount++
	if m.log != nil {
		m.log.add(m, ev)
	}
	if m.returnErr != nil && (m.failOnCall == 0 || m.callCount == m.failOnCall) {
		return m.returnErr
	}
	return ctx.Err()
}

func (m *mockElement) events() []MouseEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MouseEvent, len(m.dispatched))
	copy(out, m.dispatched)
	return out
}

func (m *mockElement) types() []MouseEventType {
	var out []MouseEventType
	for _, ev := range m.events() {
		out = append(out, ev.Type)
	}
	return out
}

type loggedEvent struct {
	owner *mockElement
	event MouseEvent
}

type eventLog struct {
	mu     sync.Mutex
	events []loggedEvent
}

func (l *eventLog) add(owner *mockElement, ev MouseEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, loggedEvent{owner: owner, event: ev})
}

// mockMarker records marker positions.
type mockMarker struct {
	mu        sync.Mutex
	points    []Point
	returnErr error
}

func (m *mockMarker) Show(ctx context.Context, p Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points = append(m.points, p)
	return m.returnErr
}
