package worker

import (
	"fmt"
	"net/http"
	"slices"

	"github.com/cryguy/worker-go/internal/core"
	"github.com/cryguy/worker-go/internal/jshost"
	"github.com/cryguy/worker-go/sys"
	"go.uber.org/zap"
)

// Host is one JavaScript VM with the web object model and the configured
// bindings installed. A Host serves one request at a time; use a Pool to
// serve concurrently.
type Host struct {
	js  *jshost.Host
	env *Env
	cfg HostConfig
}

var _ sys.Host = (*Host)(nil)

// NewHost starts a VM and installs bindings on its env object.
func NewHost(cfg HostConfig, bindings Bindings) (*Host, error) {
	if err := checkBindings(cfg, &bindings); err != nil {
		return nil, err
	}
	return newHost(cfg, sharedBindings(bindings))
}

func newHost(cfg HostConfig, bindings Bindings) (*Host, error) {
	rt, err := newRuntime(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating runtime: %w", err)
	}
	js, err := jshost.New(rt, cfg, bindings)
	if err != nil {
		return nil, fmt.Errorf("installing host: %w", err)
	}
	return &Host{js: js, env: NewEnv(js.Env()), cfg: cfg}, nil
}

// checkBindings validates cfg and rejects a name bound twice.
func checkBindings(cfg HostConfig, b *Bindings) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	names := b.Names()
	slices.Sort(names)
	for i := 1; i < len(names); i++ {
		if names[i] == names[i-1] {
			return fmt.Errorf("binding %q is defined more than once", names[i])
		}
	}
	return nil
}

// sharedBindings makes durable object instances shared by every host
// built from the returned bindings.
func sharedBindings(b Bindings) Bindings {
	if len(b.DurableObjects) == 0 {
		return b
	}
	classes := make(map[string]core.DurableObjectClass, len(b.DurableObjects))
	for name, c := range b.DurableObjects {
		classes[name] = c.Shared()
	}
	b.DurableObjects = classes
	return b
}

// Env returns the resolution environment.
func (h *Host) Env() *Env { return h.env }

// Construct builds a host object from a global class.
func (h *Host) Construct(class string, args ...any) (sys.Value, error) {
	return h.js.Construct(class, args...)
}

// Incoming wraps a server-side request. The result is immutable and its
// body streams from r.
func (h *Host) Incoming(r *http.Request) (*Request, error) {
	v, err := h.js.Incoming(r)
	if err != nil {
		return nil, hostError("Host.Incoming", err, "failed to wrap inbound request")
	}
	return RequestFromHandle(v)
}

// Eval runs a script in the host's global scope, e.g. to define extra
// classes for Env.Binding.
func (h *Host) Eval(js string) error {
	return h.js.Eval(js)
}

// Close stops the VM. Values from this host must not be used afterwards.
func (h *Host) Close() error {
	core.Logger().Debug("closing host")
	if err := h.js.Close(); err != nil {
		core.Logger().Warn("closing host", zap.Error(err))
		return err
	}
	return nil
}
