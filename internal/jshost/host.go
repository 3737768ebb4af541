// Package jshost implements the sys object model on a JavaScript runtime.
// Go refers to JS values through integer handles kept in a Map inside the
// VM; every operation is a small script wrapped in an exception envelope.
package jshost

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/cryguy/worker-go/internal/core"
	"github.com/cryguy/worker-go/internal/eventloop"
	"github.com/cryguy/worker-go/internal/webapi"
	"github.com/cryguy/worker-go/sys"
	"go.uber.org/zap"
)

// ErrClosed is returned by every operation on a closed host.
var ErrClosed = errors.New("host is closed")

// Host owns one JS runtime. All access is serialized by mu; awaiting
// releases the lock between event loop turns.
type Host struct {
	mu     sync.Mutex
	rt     core.JSRuntime
	loop   *eventloop.EventLoop
	bridge *webapi.Bridge
	cfg    core.HostConfig
	next   int64
	env    *value
	closed bool
}

var _ sys.Host = (*Host)(nil)

// Mark records the handle and body counters so a request's objects can be
// released together.
type Mark struct {
	handle int64
	body   int
}

// envelope is the JSON shape every host script answers with.
type envelope struct {
	V json.RawMessage `json:"v"`
	E *sys.Exception  `json:"e"`
}

// New installs the object model and the env object on rt. The host takes
// ownership of rt.
func New(rt core.JSRuntime, cfg core.HostConfig, bindings core.Bindings) (*Host, error) {
	loop := eventloop.New()
	bridge, err := webapi.Setup(rt, loop, cfg, bindings)
	if err != nil {
		rt.Close()
		return nil, err
	}
	h := &Host{rt: rt, loop: loop, bridge: bridge, cfg: cfg}

	h.mu.Lock()
	id := h.alloc()
	_, err = h.run(fmt.Sprintf("__h.set(%d, globalThis.__env);", id))
	h.mu.Unlock()
	if err != nil {
		_ = h.Close()
		return nil, fmt.Errorf("capturing env: %w", err)
	}
	h.env = &value{h: h, id: id}
	core.Logger().Debug("host ready", zap.Int("bindings", len(bindings.Names())))
	return h, nil
}

func (h *Host) alloc() int64 {
	h.next++
	return h.next
}

// run evaluates body inside the envelope. Callers hold mu.
func (h *Host) run(body string) (json.RawMessage, error) {
	if h.closed {
		return nil, ErrClosed
	}
	out, err := h.rt.EvalString("__hrun(function() {" + body + "})")
	if err != nil {
		return nil, fmt.Errorf("host eval: %w", err)
	}
	var env envelope
	if err := json.Unmarshal([]byte(out), &env); err != nil {
		return nil, fmt.Errorf("decoding host result: %w", err)
	}
	if env.E != nil {
		return nil, env.E
	}
	return env.V, nil
}

// Env returns the env object holding every binding.
func (h *Host) Env() sys.Value {
	return h.env
}

// Construct calls new globalThis[class](args...).
func (h *Host) Construct(class string, args ...any) (sys.Value, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	argList, cleanup, err := h.argList(args)
	defer cleanup()
	if err != nil {
		return nil, err
	}
	id := h.alloc()
	c := strconv.Quote(class)
	_, err = h.run(fmt.Sprintf(`var C = globalThis[%s];
		if (typeof C !== 'function') throw new TypeError(%s + ' is not a constructor');
		__h.set(%d, Reflect.construct(C, [%s]));`, c, c, id, argList))
	if err != nil {
		return nil, err
	}
	return &value{h: h, id: id}, nil
}

// Incoming wraps a server-side request as a host Request. The body is
// streamed from r on demand.
func (h *Host) Incoming(r *http.Request) (sys.Value, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}
	expr, err := h.bridge.NewInboundRequest(r)
	if err != nil {
		return nil, err
	}
	id := h.alloc()
	if _, err := h.run(fmt.Sprintf("__h.set(%d, %s);", id, expr)); err != nil {
		return nil, err
	}
	return &value{h: h, id: id}, nil
}

// Eval runs a script in the host's global scope.
func (h *Host) Eval(js string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	if err := h.rt.Eval(js); err != nil {
		return err
	}
	h.rt.RunMicrotasks()
	return nil
}

// Mark returns the current allocation counters.
func (h *Host) Mark() Mark {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Mark{handle: h.next + 1, body: h.bridge.Bodies.Mark()}
}

// Release drops every handle and body created since m. Values created
// after m must not be used afterwards.
func (h *Host) Release(m Mark) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	if err := h.rt.Eval(fmt.Sprintf("__hrelease(%d);", m.handle)); err != nil {
		core.Logger().Warn("releasing handles", zap.Error(err))
	}
	h.bridge.Bodies.ReleaseFrom(m.body)
	h.loop.Reset()
}

// LiveBodies reports how many bodies the host still holds.
func (h *Host) LiveBodies() int {
	return h.bridge.Bodies.Len()
}

// Close releases the runtime and everything it holds.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	err := h.bridge.Close()
	h.rt.Close()
	return err
}
