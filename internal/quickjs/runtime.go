//go:build !v8

// Package quickjs runs the host object model on the pure-Go QuickJS port.
package quickjs

import (
	"fmt"

	"github.com/cryguy/worker-go/internal/core"
	"modernc.org/libc"
	"modernc.org/quickjs"
)

// Runtime implements core.JSRuntime on a QuickJS VM.
type Runtime struct {
	vm  *quickjs.VM
	tls *libc.TLS // extracted from VM internals for direct C API calls
	ctx uintptr   // JSContext pointer for direct C API calls

	// set when the C API pointers could not be extracted
	useFallback   bool
	pendingBinary []byte
	pendingResult []byte
}

var _ core.JSRuntime = (*Runtime)(nil)
var _ core.BinaryTransferer = (*Runtime)(nil)

// New creates a VM limited to memoryLimitMB (0 = unlimited) and prepares
// binary transfer.
func New(memoryLimitMB int) (*Runtime, error) {
	vm, err := quickjs.NewVM()
	if err != nil {
		return nil, fmt.Errorf("creating QuickJS VM: %w", err)
	}
	if memoryLimitMB > 0 {
		vm.SetMemoryLimit(uintptr(memoryLimitMB) * 1024 * 1024)
	}
	r := &Runtime{vm: vm}
	if err := r.initBinaryTransfer(); err != nil {
		vm.Close()
		return nil, fmt.Errorf("binary transfer: %w", err)
	}
	return r, nil
}

// Eval evaluates JavaScript and discards the result.
func (r *Runtime) Eval(js string) error {
	v, err := r.vm.EvalValue(js, quickjs.EvalGlobal)
	if err != nil {
		return err
	}
	v.Free()
	return nil
}

// EvalString evaluates JavaScript and formats the result as a string.
// undefined and null become "".
func (r *Runtime) EvalString(js string) (string, error) {
	result, err := r.vm.Eval(js, quickjs.EvalGlobal)
	if err != nil {
		return "", err
	}
	if result == nil {
		return "", nil
	}
	if s, ok := result.(string); ok {
		return s, nil
	}
	return fmt.Sprint(result), nil
}

// EvalBool evaluates JavaScript that must produce a boolean.
func (r *Runtime) EvalBool(js string) (bool, error) {
	result, err := r.vm.Eval(js, quickjs.EvalGlobal)
	if err != nil {
		return false, err
	}
	b, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("expected bool, got %T", result)
	}
	return b, nil
}

// EvalInt evaluates JavaScript that must produce a number.
func (r *Runtime) EvalInt(js string) (int, error) {
	result, err := r.vm.Eval(js, quickjs.EvalGlobal)
	if err != nil {
		return 0, err
	}
	switch v := result.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("expected int, got %T", result)
	}
}

// RegisterFunc registers fn under name. The QuickJS wrapper returns
// multi-value results as arrays, so a JS shim unwraps (T, error) pairs and
// throws a TypeError for a non-nil error.
func (r *Runtime) RegisterFunc(name string, fn any) error {
	rawName := "__raw_" + name
	if err := r.vm.RegisterFunc(rawName, fn, false); err != nil {
		return err
	}
	return r.Eval(fmt.Sprintf(`(function() {
		var raw = globalThis[%q];
		delete globalThis[%q];
		globalThis[%q] = function() {
			var r = raw.apply(this, arguments);
			if (Array.isArray(r)) {
				if (r[1] !== null && r[1] !== undefined) throw new TypeError(%q + ": " + r[1]);
				return r[0];
			}
			return r;
		};
	})()`, rawName, rawName, name, name))
}

// SetGlobal sets a property on the VM's global object.
func (r *Runtime) SetGlobal(name string, value any) error {
	atom, err := r.vm.NewAtom(name)
	if err != nil {
		return fmt.Errorf("creating atom %q: %w", name, err)
	}
	glob := r.vm.GlobalObject()
	defer glob.Free()
	return glob.SetProperty(atom, value)
}

// RunMicrotasks drains the QuickJS job queue.
func (r *Runtime) RunMicrotasks() {
	executePendingJobs(r.vm)
}

// Interrupt aborts the currently running script.
func (r *Runtime) Interrupt() {
	r.vm.Interrupt()
}

// Close frees the VM.
func (r *Runtime) Close() {
	r.vm.Close()
}
