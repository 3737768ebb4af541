package eventloop

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cryguy/worker-go/internal/core"
)

// OpResult holds the pre-serialized outcome of an asynchronous host
// operation. The goroutine doing the work encodes its payload as JSON so the
// loop only passes strings to JS.
type OpResult struct {
	PayloadJSON string
	Err         error
}

// PendingOp is an in-flight operation whose result is delivered to JS via
// globalThis.__opSettle when it arrives.
type PendingOp struct {
	ResultCh <-chan OpResult
	ID       int
}

// timerEntry represents a pending setTimeout or setInterval callback.
// The callback lives in globalThis.__timerCallbacks[id]; Go only tracks
// scheduling metadata.
type timerEntry struct {
	deadline time.Time
	interval time.Duration // 0 for setTimeout
	id       int
	cleared  bool
}

// EventLoop tracks Go-backed timers and pending host operations that must
// be settled on the JS thread.
type EventLoop struct {
	mu      sync.Mutex
	timers  map[int]*timerEntry
	nextID  int
	nextOp  int
	pending []*PendingOp
	wake    chan struct{}
}

// New creates a new EventLoop.
func New() *EventLoop {
	return &EventLoop{
		timers: make(map[int]*timerEntry),
		wake:   make(chan struct{}, 1),
	}
}

// RegisterTimer creates a timer entry and returns its ID.
func (el *EventLoop) RegisterTimer(delay time.Duration, isInterval bool) int {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.nextID++
	id := el.nextID
	entry := &timerEntry{deadline: time.Now().Add(delay), id: id}
	if isInterval {
		if delay < 10*time.Millisecond {
			delay = 10 * time.Millisecond
		}
		entry.interval = delay
	}
	el.timers[id] = entry
	return id
}

// ClearTimer cancels a timer by ID.
func (el *EventLoop) ClearTimer(id int) {
	el.mu.Lock()
	defer el.mu.Unlock()
	if t, ok := el.timers[id]; ok {
		t.cleared = true
		delete(el.timers, id)
	}
}

// Go runs fn on a new goroutine and registers its result as a pending
// operation. The returned ID is what JS waits on.
func (el *EventLoop) Go(fn func() (string, error)) int {
	ch := make(chan OpResult, 1)
	el.mu.Lock()
	el.nextOp++
	op := &PendingOp{ResultCh: ch, ID: el.nextOp}
	el.pending = append(el.pending, op)
	el.mu.Unlock()

	go func() {
		payload, err := fn()
		ch <- OpResult{PayloadJSON: payload, Err: err}
		select {
		case el.wake <- struct{}{}:
		default:
		}
	}()
	return op.ID
}

// Wake returns a channel that receives after an operation completes.
func (el *EventLoop) Wake() <-chan struct{} {
	return el.wake
}

// DrainPending does non-blocking reads on all pending operations and
// settles the completed ones in JS. Returns true if anything settled.
func (el *EventLoop) DrainPending(rt core.JSRuntime) bool {
	el.mu.Lock()
	if len(el.pending) == 0 {
		el.mu.Unlock()
		return false
	}
	pending := el.pending
	el.pending = nil
	el.mu.Unlock()

	var remaining []*PendingOp
	didWork := false
	for _, op := range pending {
		select {
		case result := <-op.ResultCh:
			var js string
			if result.Err != nil {
				js = fmt.Sprintf(`globalThis.__opSettle(%d, false, %s)`,
					op.ID, strconv.Quote(result.Err.Error()))
			} else {
				js = fmt.Sprintf(`globalThis.__opSettle(%d, true, %s)`,
					op.ID, strconv.Quote(result.PayloadJSON))
			}
			if err := rt.Eval(js); err != nil {
				core.Logger().Sugar().Warnf("settling op %d: %v", op.ID, err)
			}
			rt.RunMicrotasks()
			didWork = true
		default:
			remaining = append(remaining, op)
		}
	}

	el.mu.Lock()
	// Callbacks may have started new operations during settlement.
	el.pending = append(remaining, el.pending...)
	el.mu.Unlock()
	return didWork
}

// fireTimer invokes the JS-side callback for a timer.
func (el *EventLoop) fireTimer(rt core.JSRuntime, id int) {
	js := fmt.Sprintf(`(function() {
		var entry = globalThis.__timerCallbacks[%d];
		if (!entry) return;
		if (!entry.interval) delete globalThis.__timerCallbacks[%d];
		entry.fn.apply(null, entry.args || []);
	})()`, id, id)
	if err := rt.Eval(js); err != nil {
		core.Logger().Sugar().Debugf("timer %d callback: %v", id, err)
	}
}

// Step settles completed operations and fires due timers without blocking.
// Must be called on the runtime's goroutine. Returns true if any work ran.
func (el *EventLoop) Step(rt core.JSRuntime) bool {
	didWork := el.DrainPending(rt)

	now := time.Now()
	el.mu.Lock()
	var due []int
	for _, t := range el.timers {
		if !t.cleared && !t.deadline.After(now) {
			due = append(due, t.id)
			if t.interval > 0 {
				t.deadline = now.Add(t.interval)
			} else {
				delete(el.timers, t.id)
			}
		}
	}
	el.mu.Unlock()

	for _, id := range due {
		el.fireTimer(rt, id)
		rt.RunMicrotasks()
		didWork = true
	}
	return didWork
}

// NextDeadline returns the earliest timer deadline, if any.
func (el *EventLoop) NextDeadline() (time.Time, bool) {
	el.mu.Lock()
	defer el.mu.Unlock()
	var next time.Time
	found := false
	for _, t := range el.timers {
		if t.cleared {
			continue
		}
		if !found || t.deadline.Before(next) {
			next = t.deadline
			found = true
		}
	}
	return next, found
}

// HasPending returns true if there are any active timers or pending operations.
func (el *EventLoop) HasPending() bool {
	el.mu.Lock()
	defer el.mu.Unlock()
	return len(el.timers) > 0 || len(el.pending) > 0
}

// Reset clears all timers and forgets pending operations. In-flight
// goroutines still finish; their results are dropped.
func (el *EventLoop) Reset() {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.timers = make(map[int]*timerEntry)
	el.nextID = 0
	el.pending = nil
}
