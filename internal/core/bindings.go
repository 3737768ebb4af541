package core

import (
	"net/http"
	"sync"
)

// DurableObjectClass builds the handler for one durable object instance.
// It is called once per object ID; the returned handler serves every stub
// fetch addressed to that ID.
type DurableObjectClass func(id string) http.Handler

// Bindings describes every named resource exposed on a host's env object.
type Bindings struct {
	Vars    map[string]string
	Secrets map[string]string

	// Opt-in bindings, nil means disabled
	KV             map[string]KVStore
	D1             map[string]string // binding name -> database ID
	Queues         map[string]QueueSender
	Services       map[string]http.Handler
	Dispatchers    map[string]map[string]http.Handler // namespace -> script name -> handler
	DurableObjects map[string]DurableObjectClass

	// Scripts maps a binding name to JS or TS module source. The default
	// export becomes the binding value, so its constructor name is the tag
	// callers resolve it with.
	Scripts map[string]string

	// D1 configuration, empty means in-memory databases
	D1DataDir string
}

// Names returns every binding name, used for duplicate detection.
func (b *Bindings) Names() []string {
	var names []string
	add := func(n string) { names = append(names, n) }
	for n := range b.Vars {
		add(n)
	}
	for n := range b.Secrets {
		add(n)
	}
	for n := range b.KV {
		add(n)
	}
	for n := range b.D1 {
		add(n)
	}
	for n := range b.Queues {
		add(n)
	}
	for n := range b.Services {
		add(n)
	}
	for n := range b.Dispatchers {
		add(n)
	}
	for n := range b.DurableObjects {
		add(n)
	}
	for n := range b.Scripts {
		add(n)
	}
	return names
}

// Shared wraps c so every ID maps to one handler for the lifetime of the
// returned class, no matter how many hosts use it.
func (c DurableObjectClass) Shared() DurableObjectClass {
	var mu sync.Mutex
	instances := make(map[string]http.Handler)
	return func(id string) http.Handler {
		mu.Lock()
		defer mu.Unlock()
		if h, ok := instances[id]; ok {
			return h
		}
		h := c(id)
		if h != nil {
			instances[id] = h
		}
		return h
	}
}
