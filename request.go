package worker

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/cryguy/worker-go/internal/core"
	"github.com/cryguy/worker-go/internal/webapi"
	"github.com/cryguy/worker-go/sys"
)

// Request is an HTTP request held by the host. Its body may be decoded
// once, in exactly one way.
//
// Requests wrapping an inbound handle, and clones, are immutable: their
// headers and path cannot be changed. Requests built with NewRequest or
// NewRequestWithInit are mutable.
type Request struct {
	body
	method    Method
	path      string
	headers   *Headers
	cf        *Cf
	immutable bool
}

// RequestInit configures NewRequestWithInit.
type RequestInit struct {
	Method   Method `validate:"omitempty,printascii,excludesall= "`
	Headers  http.Header
	Body     []byte
	Redirect string `validate:"omitempty,oneof=follow error manual"`
	// Cf is attached to the request as edge metadata.
	Cf *Cf
}

// NewRequest builds a mutable request for uri.
func NewRequest(host sys.Host, uri string, method Method) (*Request, error) {
	v, err := host.Construct("Request", uri, map[string]any{"method": string(method)})
	if err != nil {
		return nil, constructionError("NewRequest", err, "invalid URL or method for Request")
	}
	return newRequest(v, false, "NewRequest")
}

// NewRequestWithInit builds a mutable request for uri from init.
func NewRequestWithInit(host sys.Host, uri string, init *RequestInit) (*Request, error) {
	if init == nil {
		init = &RequestInit{}
	}
	if err := core.ValidateStruct(init); err != nil {
		return nil, &Error{Code: CodeConstruction, Op: "NewRequestWithInit", Msg: "invalid request options", Err: err}
	}
	opts := map[string]any{}
	if init.Method != "" {
		opts["method"] = string(init.Method)
	}
	if init.Headers != nil {
		opts["headers"] = headerPairs(init.Headers)
	}
	if init.Body != nil {
		opts["body"] = init.Body
	}
	if init.Redirect != "" {
		opts["redirect"] = init.Redirect
	}
	if init.Cf != nil {
		opts["cf"] = init.Cf
	}
	v, err := host.Construct("Request", uri, opts)
	if err != nil {
		return nil, constructionError("NewRequestWithInit", err, "invalid URL or options for Request")
	}
	return newRequest(v, false, "NewRequestWithInit")
}

// RequestFromHandle wraps a host request the caller did not build. The
// result is immutable.
func RequestFromHandle(v sys.Value) (*Request, error) {
	return newRequest(v, true, "RequestFromHandle")
}

func newRequest(v sys.Value, immutable bool, op string) (*Request, error) {
	rawURL, err := getString(v, "url")
	if err != nil {
		return nil, hostError(op, err, "failed to read request URL")
	}
	method, err := getString(v, "method")
	if err != nil {
		return nil, hostError(op, err, "failed to read request method")
	}
	hv, err := v.Get("headers")
	if err != nil {
		return nil, hostError(op, err, "failed to read request headers")
	}
	cf, err := exportCf(v)
	if err != nil {
		return nil, hostError(op, err, "failed to read request cf")
	}
	return &Request{
		body:      body{inner: v, kind: "Request"},
		method:    ParseMethod(method),
		path:      derivePath(rawURL),
		headers:   &Headers{inner: hv, readOnly: immutable},
		cf:        cf,
		immutable: immutable,
	}, nil
}

func exportCf(v sys.Value) (*Cf, error) {
	cv, err := v.Get("cf")
	if err != nil {
		return nil, err
	}
	if cv.IsUndefined() || cv.IsNull() {
		return nil, nil
	}
	cf := &Cf{}
	if err := cv.Export(cf); err != nil {
		return nil, err
	}
	return cf, nil
}

// derivePath returns the WHATWG path of rawURL. Unparseable URLs are used
// as the path, with a leading slash added when missing.
func derivePath(rawURL string) string {
	if p, err := webapi.URLPath(rawURL); err == nil {
		return p
	}
	if strings.HasPrefix(rawURL, "/") {
		return rawURL
	}
	return "/" + rawURL
}

// Method returns the request method.
func (r *Request) Method() Method { return r.method }

// Path returns the URL path captured when the request was wrapped.
func (r *Request) Path() string { return r.path }

// SetPath replaces the stored path. The host URL is not changed.
func (r *Request) SetPath(p string) error {
	if r.immutable {
		return immutableError("Request.SetPath", "path")
	}
	r.path = p
	return nil
}

// Immutable reports whether headers and path are read-only.
func (r *Request) Immutable() bool { return r.immutable }

// Headers returns a read-only view of the request headers.
func (r *Request) Headers() *Headers {
	return &Headers{inner: r.headers.inner, readOnly: true}
}

// HeadersMut returns the headers for modification.
func (r *Request) HeadersMut() (*Headers, error) {
	if r.immutable {
		return nil, immutableError("Request.HeadersMut", "headers")
	}
	return r.headers, nil
}

// Cf returns the edge metadata, or nil for requests without it.
func (r *Request) Cf() *Cf { return r.cf }

// URL parses the host's request URL.
func (r *Request) URL() (*url.URL, error) {
	raw, err := getString(r.inner, "url")
	if err != nil {
		return nil, hostError("Request.URL", err, "failed to read request URL")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, &Error{Code: CodeInternal, Op: "Request.URL", Msg: "invalid request URL", Err: err}
	}
	return u, nil
}

// Clone copies the request through the host. The clone has an unread
// body and is immutable.
func (r *Request) Clone() (*Request, error) {
	if r.used {
		return nil, bodyUsedError("Request.Clone")
	}
	v, err := r.inner.Call("clone")
	if err != nil {
		return nil, hostError("Request.Clone", err, "failed to clone request")
	}
	return newRequest(v, true, "Request.Clone")
}
