package worker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/cryguy/worker-go/internal/core"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// HandlerFunc serves one inbound request. req is immutable. The serving
// host, needed to build responses, is available from HostFromContext.
type HandlerFunc func(ctx context.Context, req *Request, env *Env) (*Response, error)

// Handler adapts a HandlerFunc to net/http, running each request on a
// pooled host.
type Handler struct {
	pool *Pool
	fn   HandlerFunc
}

var _ http.Handler = (*Handler)(nil)

// NewHandler serves fn on hosts from pool.
func NewHandler(pool *Pool, fn HandlerFunc) *Handler {
	return &Handler{pool: pool, fn: fn}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	host, err := h.pool.Get(ctx)
	if err != nil {
		http.Error(w, "no host available", http.StatusServiceUnavailable)
		return
	}
	healthy := false
	mark := host.js.Mark()
	defer func() {
		if p := recover(); p != nil {
			core.Logger().Error("handler panic", zap.Any("panic", p), zap.String("path", r.URL.Path))
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		if healthy {
			host.js.Release(mark)
			h.pool.Put(host)
		} else {
			h.pool.Discard(host)
		}
	}()

	req, err := host.Incoming(r)
	if err != nil {
		core.Logger().Warn("wrapping request", zap.Error(err))
		http.Error(w, "bad request", http.StatusBadRequest)
		healthy = true
		return
	}
	resp, err := h.fn(context.WithValue(ctx, hostKey{}, host), req, host.Env())
	if err != nil {
		core.Logger().Error("handler failed", zap.Error(err), zap.String("path", req.Path()))
		http.Error(w, "internal error", http.StatusInternalServerError)
		healthy = true
		return
	}
	if resp == nil {
		http.Error(w, "handler returned no response", http.StatusInternalServerError)
		healthy = true
		return
	}
	if err := writeResponse(ctx, w, r, resp, h.pool.cfg.CompressResponses); err != nil {
		core.Logger().Warn("writing response", zap.Error(err), zap.String("path", req.Path()))
	}
	healthy = true
}

type hostKey struct{}

// HostFromContext returns the host serving the current request, or nil.
func HostFromContext(ctx context.Context) *Host {
	h, _ := ctx.Value(hostKey{}).(*Host)
	return h
}

// writeResponse copies resp to w, streaming the body chunk by chunk.
func writeResponse(ctx context.Context, w http.ResponseWriter, r *http.Request, resp *Response, compress bool) error {
	hdr, err := resp.Headers().HTTPHeader()
	if err != nil {
		return err
	}
	for k, vs := range hdr {
		w.Header()[k] = vs
	}
	status := resp.Status()
	if status == 0 {
		status = http.StatusBadGateway
	}
	if r.Method == http.MethodHead {
		w.WriteHeader(status)
		return nil
	}

	stream, err := resp.Stream()
	if CodeOf(err) == CodeNoBody {
		w.WriteHeader(status)
		return nil
	}
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return err
	}

	enc := ""
	if compress && hdr.Get("Content-Encoding") == "" && compressible(hdr.Get("Content-Type")) {
		enc = negotiateEncoding(r.Header.Get("Accept-Encoding"))
	}
	if enc != "" {
		w.Header().Set("Content-Encoding", enc)
		w.Header().Del("Content-Length")
		w.Header().Add("Vary", "Accept-Encoding")
	}
	w.WriteHeader(status)

	out := encodeWriter(w, enc)
	flusher, _ := w.(http.Flusher)
	for chunk, err := range stream.Chunks(ctx) {
		if err != nil {
			_ = out.Close()
			return err
		}
		if _, err := out.Write(chunk); err != nil {
			_ = stream.Cancel(ctx)
			return fmt.Errorf("writing body: %w", err)
		}
		if flusher != nil && enc == "" {
			flusher.Flush()
		}
	}
	return out.Close()
}

// ListenAndServe serves handler on addr with HTTP/1.1 and cleartext
// HTTP/2 until ctx is done.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	core.Logger().Info("listening", zap.String("addr", addr))
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
