package worker

import (
	"context"

	"github.com/cryguy/worker-go/sys"
)

// Fetcher is a service binding, or a worker picked from a dispatch
// namespace.
type Fetcher struct {
	inner sys.Value
}

func (*Fetcher) TypeName() string      { return "Fetcher" }
func (f *Fetcher) attach(v sys.Value) { f.inner = v }

// Fetch sends req to the bound worker. The request body is consumed.
func (f *Fetcher) Fetch(ctx context.Context, req *Request) (*Response, error) {
	return fetchVia(ctx, f.inner, "Fetcher.Fetch", req)
}

// FetchURL sends a GET for url to the bound worker.
func (f *Fetcher) FetchURL(ctx context.Context, url string) (*Response, error) {
	return fetchURLVia(ctx, f.inner, "Fetcher.FetchURL", url)
}

func fetchVia(ctx context.Context, target sys.Value, op string, req *Request) (*Response, error) {
	if err := req.consume(op); err != nil {
		return nil, err
	}
	v, err := callAwait(ctx, target, "fetch", req.inner)
	if err != nil {
		return nil, hostError(op, err, "fetch failed")
	}
	return responseFromHandle(v, op)
}

func fetchURLVia(ctx context.Context, target sys.Value, op, url string) (*Response, error) {
	v, err := callAwait(ctx, target, "fetch", url)
	if err != nil {
		return nil, hostError(op, err, "fetch failed")
	}
	return responseFromHandle(v, op)
}

// DynamicDispatcher is a dispatch namespace binding.
type DynamicDispatcher struct {
	inner sys.Value
}

func (*DynamicDispatcher) TypeName() string      { return "DynamicDispatcher" }
func (d *DynamicDispatcher) attach(v sys.Value) { d.inner = v }

// Get returns the worker registered under name.
func (d *DynamicDispatcher) Get(name string) (*Fetcher, error) {
	v, err := d.inner.Call("get", name)
	if err != nil {
		return nil, hostError("DynamicDispatcher.Get", err, "failed to get worker from dispatcher")
	}
	return &Fetcher{inner: v}, nil
}
