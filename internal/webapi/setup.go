package webapi

import (
	"errors"
	"fmt"

	"github.com/cryguy/worker-go/internal/core"
	"github.com/cryguy/worker-go/internal/eventloop"
)

// Bridge is the per-runtime state behind the JS object model: the body
// store, opened databases and the bindings the env object was built from.
type Bridge struct {
	rt       core.JSRuntime
	loop     *eventloop.EventLoop
	cfg      core.HostConfig
	bindings core.Bindings
	d1       map[string]core.D1Store

	Bodies *BodyStore
}

// setupFunc installs one part of the object model.
type setupFunc func() error

// Setup installs the object model and env object on rt.
func Setup(rt core.JSRuntime, loop *eventloop.EventLoop, cfg core.HostConfig, bindings core.Bindings) (*Bridge, error) {
	b := &Bridge{
		rt:       rt,
		loop:     loop,
		cfg:      cfg,
		bindings: bindings,
		d1:       make(map[string]core.D1Store),
		Bodies:   NewBodyStore(cfg.MaxBodyBytes),
	}
	steps := []setupFunc{
		func() error { return SetupPrelude(rt, loop) },
		func() error { return SetupConsole(rt, loop) },
		b.setupBodies,
		func() error { return SetupEncoding(rt, loop) },
		func() error { return SetupWebAPIs(rt, loop) },
		b.setupFormData,
		func() error { return rt.Eval(inboundJS) },
		b.setupKV,
		b.setupD1,
		b.setupQueues,
		b.setupFetchers,
		b.setupDurableObjects,
		b.buildEnv,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}
	return b, nil
}

// Close closes opened databases and drops every stored body.
func (b *Bridge) Close() error {
	var errs []error
	for name, db := range b.d1 {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing D1 %q: %w", name, err))
		}
	}
	b.d1 = map[string]core.D1Store{}
	b.Bodies.ReleaseFrom(0)
	return errors.Join(errs...)
}
