package webapi

import (
	"fmt"
	"strconv"
	"strings"
)

// buildEnv assembles globalThis.__env from the configured bindings.
// The env has no prototype, so only configured names resolve. Vars and
// secrets are plain strings; every other binding is an instance
// of the class whose name callers resolve it by.
func (b *Bridge) buildEnv() error {
	var js strings.Builder
	js.WriteString("globalThis.__env = Object.create(null);\n")
	q := strconv.Quote
	for _, name := range sortedKeys(b.bindings.Vars) {
		fmt.Fprintf(&js, "__env[%s] = %s;\n", q(name), q(b.bindings.Vars[name]))
	}
	for _, name := range sortedKeys(b.bindings.Secrets) {
		fmt.Fprintf(&js, "__env[%s] = %s;\n", q(name), q(b.bindings.Secrets[name]))
	}
	for _, name := range sortedKeys(b.bindings.KV) {
		fmt.Fprintf(&js, "__env[%s] = new KvNamespace(%s);\n", q(name), q(name))
	}
	for _, name := range sortedKeys(b.bindings.D1) {
		fmt.Fprintf(&js, "__env[%s] = new D1Database(%s);\n", q(name), q(name))
	}
	for _, name := range sortedKeys(b.bindings.Queues) {
		fmt.Fprintf(&js, "__env[%s] = new WorkerQueue(%s);\n", q(name), q(name))
	}
	for _, name := range sortedKeys(b.bindings.Services) {
		fmt.Fprintf(&js, "__env[%s] = new Fetcher('service', %s, '');\n", q(name), q(name))
	}
	for _, name := range sortedKeys(b.bindings.Dispatchers) {
		fmt.Fprintf(&js, "__env[%s] = new DynamicDispatcher(%s);\n", q(name), q(name))
	}
	for _, name := range sortedKeys(b.bindings.DurableObjects) {
		fmt.Fprintf(&js, "__env[%s] = new DurableObjectNamespace(%s);\n", q(name), q(name))
	}
	if err := b.rt.Eval(js.String()); err != nil {
		return fmt.Errorf("building env: %w", err)
	}
	return b.loadScriptBindings()
}
