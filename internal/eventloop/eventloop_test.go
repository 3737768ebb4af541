package eventloop

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// recordingRuntime implements core.JSRuntime by recording evaluated code.
type recordingRuntime struct {
	mu         sync.Mutex
	evals      []string
	microtasks int
}

func (r *recordingRuntime) Eval(js string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evals = append(r.evals, js)
	return nil
}
func (r *recordingRuntime) EvalString(string) (string, error) { return "", nil }
func (r *recordingRuntime) EvalBool(string) (bool, error)     { return false, nil }
func (r *recordingRuntime) EvalInt(string) (int, error)       { return 0, nil }
func (r *recordingRuntime) RegisterFunc(string, any) error    { return nil }
func (r *recordingRuntime) SetGlobal(string, any) error       { return nil }
func (r *recordingRuntime) RunMicrotasks()                    { r.microtasks++ }
func (r *recordingRuntime) Close()                            {}

func (r *recordingRuntime) joined() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.Join(r.evals, "\n")
}

func waitWake(t *testing.T, el *EventLoop) {
	t.Helper()
	select {
	case <-el.Wake():
	case <-time.After(2 * time.Second):
		t.Fatal("operation never completed")
	}
}

func TestEventLoop_GoSettlesOnStep(t *testing.T) {
	el := New()
	rt := &recordingRuntime{}
	ok := el.Go(func() (string, error) { return `{"n":1}`, nil })
	waitWake(t, el)
	if !el.Step(rt) {
		t.Fatal("Step did no work")
	}
	fail := el.Go(func() (string, error) { return "", errors.New("boom") })
	waitWake(t, el)
	el.Step(rt)

	out := rt.joined()
	if !strings.Contains(out, "__opSettle(1, true,") || ok != 1 {
		t.Errorf("success not settled:\n%s", out)
	}
	if !strings.Contains(out, `__opSettle(2, false, "boom")`) || fail != 2 {
		t.Errorf("failure not settled:\n%s", out)
	}
	if el.HasPending() {
		t.Error("loop still has pending work")
	}
}

func TestEventLoop_Timers(t *testing.T) {
	el := New()
	rt := &recordingRuntime{}
	id := el.RegisterTimer(0, false)
	later := el.RegisterTimer(time.Hour, false)
	if !el.Step(rt) {
		t.Fatal("due timer did not fire")
	}
	if !strings.Contains(rt.joined(), "__timerCallbacks[1]") || id != 1 {
		t.Errorf("evals:\n%s", rt.joined())
	}
	if d, ok := el.NextDeadline(); !ok || time.Until(d) < 50*time.Minute {
		t.Errorf("NextDeadline = %v, %v", d, ok)
	}
	el.ClearTimer(later)
	if el.HasPending() {
		t.Error("cleared timer still pending")
	}
	if el.Step(rt) {
		t.Error("Step reported work with nothing due")
	}
}

func TestEventLoop_IntervalRearms(t *testing.T) {
	el := New()
	rt := &recordingRuntime{}
	id := el.RegisterTimer(0, true)
	el.Step(rt)
	if !el.HasPending() {
		t.Fatal("interval removed after firing")
	}
	d, _ := el.NextDeadline()
	if time.Until(d) <= 0 {
		t.Error("interval not re-armed into the future")
	}
	el.ClearTimer(id)
}

func TestEventLoop_Reset(t *testing.T) {
	el := New()
	el.RegisterTimer(time.Hour, false)
	block := make(chan struct{})
	el.Go(func() (string, error) { <-block; return "", nil })
	el.Reset()
	close(block)
	if el.HasPending() {
		t.Error("Reset left pending work")
	}
	if id := el.RegisterTimer(time.Hour, false); id != 1 {
		t.Errorf("timer IDs not reset: %d", id)
	}
}
