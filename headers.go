package worker

import (
	"maps"
	"net/http"
	"slices"

	"github.com/cryguy/worker-go/sys"
)

// Headers wraps a host header collection. Views obtained from an
// immutable message reject every mutation.
type Headers struct {
	inner    sys.Value
	readOnly bool
}

// Inner returns the host Headers object.
func (h *Headers) Inner() sys.Value { return h.inner }

// Get returns the combined value of name.
func (h *Headers) Get(name string) (string, bool, error) {
	v, err := h.inner.Call("get", name)
	if err != nil {
		return "", false, hostError("Headers.Get", err, "failed to read header")
	}
	if v.IsNull() {
		return "", false, nil
	}
	s, _ := v.AsString()
	return s, true, nil
}

// Has reports whether name is present.
func (h *Headers) Has(name string) (bool, error) {
	v, err := h.inner.Call("has", name)
	if err != nil {
		return false, hostError("Headers.Has", err, "failed to read header")
	}
	var ok bool
	if err := v.Export(&ok); err != nil {
		return false, hostError("Headers.Has", err, "failed to read header")
	}
	return ok, nil
}

// Set replaces every value of name.
func (h *Headers) Set(name, value string) error {
	return h.mutate("Headers.Set", "set", name, value)
}

// Append adds a value to name.
func (h *Headers) Append(name, value string) error {
	return h.mutate("Headers.Append", "append", name, value)
}

// Delete removes name.
func (h *Headers) Delete(name string) error {
	return h.mutate("Headers.Delete", "delete", name)
}

func (h *Headers) mutate(op, method string, args ...any) error {
	if h.readOnly {
		return immutableError(op, "headers")
	}
	if _, err := h.inner.Call(method, args...); err != nil {
		return hostError(op, err, "failed to set header")
	}
	return nil
}

// Entries returns every header in sorted order. Names are lower case and
// values of repeated names are combined, except set-cookie.
func (h *Headers) Entries() ([][2]string, error) {
	it, err := h.inner.Call("entries")
	if err != nil {
		return nil, hostError("Headers.Entries", err, "failed to iterate headers")
	}
	var out [][2]string
	for {
		r, err := it.Call("next")
		if err != nil {
			return nil, hostError("Headers.Entries", err, "failed to iterate headers")
		}
		var step struct {
			Done  bool      `json:"done"`
			Value [2]string `json:"value"`
		}
		if err := r.Export(&step); err != nil {
			return nil, hostError("Headers.Entries", err, "failed to iterate headers")
		}
		if step.Done {
			return out, nil
		}
		out = append(out, step.Value)
	}
}

// HTTPHeader copies the headers into an http.Header.
func (h *Headers) HTTPHeader() (http.Header, error) {
	entries, err := h.Entries()
	if err != nil {
		return nil, err
	}
	hdr := make(http.Header, len(entries))
	for _, e := range entries {
		hdr.Add(e[0], e[1])
	}
	return hdr, nil
}

// headerPairs flattens an http.Header for a host constructor.
func headerPairs(h http.Header) []any {
	pairs := make([]any, 0, len(h))
	for _, name := range slices.Sorted(maps.Keys(h)) {
		for _, v := range h[name] {
			pairs = append(pairs, []any{name, v})
		}
	}
	return pairs
}
