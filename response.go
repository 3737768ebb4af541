package worker

import (
	"encoding/json"
	"net/http"

	"github.com/cryguy/worker-go/internal/core"
	"github.com/cryguy/worker-go/sys"
)

// Response is an HTTP response held by the host. Like Request, its body
// may be decoded once. Responses produced by the host, such as the result
// of a service fetch, are immutable.
type Response struct {
	body
	status     int
	statusText string
	headers    *Headers
	immutable  bool
}

// ResponseInit configures a new response. A zero Status means 200.
type ResponseInit struct {
	Status     int `validate:"omitempty,min=200,max=599"`
	StatusText string
	Headers    http.Header
}

// NewResponse builds a mutable response. body may be nil, a string or a
// []byte.
func NewResponse(host sys.Host, body any, init *ResponseInit) (*Response, error) {
	switch body.(type) {
	case nil, string, []byte:
	default:
		return nil, &Error{Code: CodeConstruction, Op: "NewResponse", Msg: "response body must be nil, string or []byte"}
	}
	if init == nil {
		init = &ResponseInit{}
	}
	if err := core.ValidateStruct(init); err != nil {
		return nil, &Error{Code: CodeConstruction, Op: "NewResponse", Msg: "invalid response options", Err: err}
	}
	opts := map[string]any{}
	if init.Status != 0 {
		opts["status"] = init.Status
	}
	if init.StatusText != "" {
		opts["statusText"] = init.StatusText
	}
	if init.Headers != nil {
		opts["headers"] = headerPairs(init.Headers)
	}
	v, err := host.Construct("Response", body, opts)
	if err != nil {
		return nil, constructionError("NewResponse", err, "invalid body or options for Response")
	}
	return newResponse(v, false, "NewResponse")
}

// NewResponseText builds a text/plain response.
func NewResponseText(host sys.Host, text string, status int) (*Response, error) {
	return NewResponse(host, text, &ResponseInit{
		Status:  status,
		Headers: http.Header{"Content-Type": {"text/plain;charset=UTF-8"}},
	})
}

// NewResponseJSON builds an application/json response from v.
func NewResponseJSON(host sys.Host, v any, status int) (*Response, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, &Error{Code: CodeConstruction, Op: "NewResponseJSON", Msg: "encoding JSON body", Err: err}
	}
	return NewResponse(host, string(data), &ResponseInit{
		Status:  status,
		Headers: http.Header{"Content-Type": {"application/json"}},
	})
}

// ResponseFromHandle wraps a host response. The result is immutable.
func ResponseFromHandle(v sys.Value) (*Response, error) {
	return responseFromHandle(v, "ResponseFromHandle")
}

func responseFromHandle(v sys.Value, op string) (*Response, error) {
	return newResponse(v, true, op)
}

func newResponse(v sys.Value, immutable bool, op string) (*Response, error) {
	sv, err := v.Get("status")
	if err != nil {
		return nil, hostError(op, err, "failed to read response status")
	}
	var status int
	if err := sv.Export(&status); err != nil {
		return nil, hostError(op, err, "failed to read response status")
	}
	text, err := getString(v, "statusText")
	if err != nil {
		return nil, hostError(op, err, "failed to read response status")
	}
	hv, err := v.Get("headers")
	if err != nil {
		return nil, hostError(op, err, "failed to read response headers")
	}
	return &Response{
		body:       body{inner: v, kind: "Response"},
		status:     status,
		statusText: text,
		headers:    &Headers{inner: hv, readOnly: immutable},
		immutable:  immutable,
	}, nil
}

// Status returns the status code.
func (r *Response) Status() int { return r.status }

// StatusText returns the reason phrase, often empty.
func (r *Response) StatusText() string { return r.statusText }

// Immutable reports whether the headers are read-only.
func (r *Response) Immutable() bool { return r.immutable }

// Headers returns a read-only view of the response headers.
func (r *Response) Headers() *Headers {
	return &Headers{inner: r.headers.inner, readOnly: true}
}

// HeadersMut returns the headers for modification.
func (r *Response) HeadersMut() (*Headers, error) {
	if r.immutable {
		return nil, immutableError("Response.HeadersMut", "headers")
	}
	return r.headers, nil
}

// Clone copies the response through the host. The clone has an unread
// body and is immutable.
func (r *Response) Clone() (*Response, error) {
	if r.used {
		return nil, bodyUsedError("Response.Clone")
	}
	v, err := r.inner.Call("clone")
	if err != nil {
		return nil, hostError("Response.Clone", err, "failed to clone response")
	}
	return newResponse(v, true, "Response.Clone")
}
