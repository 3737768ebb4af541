package webapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/cryguy/worker-go/internal/core"
	"go.uber.org/zap"
)

const fetcherJS = `
(function(g) {
	class Fetcher {
		constructor(kind, ns, name) {
			this._kind = kind;
			this._ns = ns;
			this._name = name;
		}
		fetch(input, init) {
			var req;
			try {
				req = (input instanceof Request && init === undefined) ? input : new Request(input, init);
			} catch (e) {
				return Promise.reject(e);
			}
			if (req.bodyUsed) return Promise.reject(new TypeError('Body has already been used. It can only be used once.'));
			var bodyID = req._bodyID;
			req._used = true;
			var meta = JSON.stringify({
				kind: this._kind, ns: this._ns, name: this._name,
				url: req.url, method: req.method, headers: req.headers._l
			});
			var op;
			try {
				op = __svc_fetch(meta, bodyID);
			} catch (e) {
				return Promise.reject(e);
			}
			return __opPromise(op).then(function(d) { return Response._fromGo(d); });
		}
	}

	class DynamicDispatcher {
		constructor(ns) { this._ns = ns; }
		get(name) {
			name = String(name);
			if (!__dispatch_has(this._ns, name)) throw new Error('Worker not found.');
			return new Fetcher('dispatch', this._ns, name);
		}
	}

	g.Fetcher = Fetcher;
	g.DynamicDispatcher = DynamicDispatcher;
})(globalThis);
`

// fetchMeta describes an outbound request handed from JS to Go.
type fetchMeta struct {
	Kind    string      `json:"kind"`
	NS      string      `json:"ns"`
	Name    string      `json:"name"`
	URL     string      `json:"url"`
	Method  string      `json:"method"`
	Headers [][2]string `json:"headers"`
}

// fetchResult is what JS turns into a Response.
type fetchResult struct {
	Status     int         `json:"status"`
	StatusText string      `json:"statusText"`
	Headers    [][2]string `json:"headers"`
	BodyID     int         `json:"bodyID"`
	URL        string      `json:"url"`
}

// bufferedResponse collects what a handler writes.
type bufferedResponse struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func (w *bufferedResponse) Header() http.Header { return w.header }

func (w *bufferedResponse) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
}

func (w *bufferedResponse) Write(p []byte) (int, error) {
	w.WriteHeader(http.StatusOK)
	return w.body.Write(p)
}

// resolveTarget finds the handler a Fetcher addresses.
func (b *Bridge) resolveTarget(m fetchMeta) (http.Handler, error) {
	switch m.Kind {
	case "service":
		if h, ok := b.bindings.Services[m.NS]; ok {
			return h, nil
		}
		return nil, fmt.Errorf("service binding %q not found", m.NS)
	case "dispatch":
		if h, ok := b.bindings.Dispatchers[m.NS][m.Name]; ok {
			return h, nil
		}
		return nil, fmt.Errorf("worker %q not found in dispatch namespace %q", m.Name, m.NS)
	case "do":
		return b.durableObject(m.NS, m.Name)
	default:
		return nil, fmt.Errorf("unknown fetcher kind %q", m.Kind)
	}
}

// serve runs a handler in-process and stores the response body.
func (b *Bridge) serve(h http.Handler, m fetchMeta, body io.ReadCloser) (res fetchResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panicked: %v", p)
		}
	}()
	if body == nil {
		body = http.NoBody
	}
	req, err := http.NewRequestWithContext(context.Background(), m.Method, m.URL, body)
	if err != nil {
		_ = body.Close()
		return fetchResult{}, fmt.Errorf("building request: %w", err)
	}
	for _, kv := range m.Headers {
		req.Header.Add(kv[0], kv[1])
	}
	w := &bufferedResponse{header: make(http.Header)}
	h.ServeHTTP(w, req)
	_ = body.Close()

	if w.status == 0 {
		w.status = http.StatusOK
	}
	res = fetchResult{Status: w.status, StatusText: http.StatusText(w.status), URL: m.URL, Headers: [][2]string{}}
	for _, k := range sortedKeys(w.header) {
		for _, v := range w.header[k] {
			res.Headers = append(res.Headers, [2]string{k, v})
		}
	}
	if w.body.Len() > 0 {
		res.BodyID = b.Bodies.AddBytes(w.body.Bytes())
	}
	return res, nil
}

func (b *Bridge) setupFetchers() error {
	if err := b.rt.RegisterFunc("__svc_fetch", func(metaJSON string, bodyID int) (int, error) {
		var m fetchMeta
		if err := json.Unmarshal([]byte(metaJSON), &m); err != nil {
			return 0, fmt.Errorf("decoding request: %w", err)
		}
		h, err := b.resolveTarget(m)
		if err != nil {
			return 0, err
		}
		var body io.ReadCloser
		if bodyID != 0 {
			if body, err = b.Bodies.Detach(bodyID); err != nil {
				return 0, err
			}
		}
		return b.loop.Go(func() (string, error) {
			res, err := b.serve(h, m, body)
			if err != nil {
				core.Logger().Warn("binding fetch failed",
					zap.String("kind", m.Kind), zap.String("binding", m.NS), zap.Error(err))
				return "", err
			}
			data, err := json.Marshal(res)
			return string(data), err
		}), nil
	}); err != nil {
		return fmt.Errorf("registering __svc_fetch: %w", err)
	}
	if err := b.rt.RegisterFunc("__dispatch_has", func(ns, name string) bool {
		_, ok := b.bindings.Dispatchers[ns][name]
		return ok
	}); err != nil {
		return fmt.Errorf("registering __dispatch_has: %w", err)
	}
	return b.rt.Eval(fetcherJS)
}
