package main

import (
	"context"
	"errors"
	"net/http"
	"strings"

	worker "github.com/cryguy/worker-go"
)

// demoHandler routes:
//
//	GET  /              greeting from the GREETING var
//	GET  /kv/{ns}/{key} read a KV value
//	PUT  /kv/{ns}/{key} write the request body to KV
//	POST /echo          echo a JSON or form body back as JSON
//	POST /queue/{name}  enqueue the request body as text
func demoHandler(ctx context.Context, req *worker.Request, env *worker.Env) (*worker.Response, error) {
	host := worker.HostFromContext(ctx)
	path := req.Path()
	switch {
	case path == "/":
		greeting := "hello"
		if v, err := env.Var("GREETING"); err == nil {
			greeting = v.String()
		}
		u, err := req.URL()
		if err != nil {
			return nil, err
		}
		if name, ok := worker.Param(u, "name"); ok {
			greeting += ", " + name
		}
		return worker.NewResponseText(host, greeting, http.StatusOK)

	case strings.HasPrefix(path, "/kv/"):
		ns, key, ok := strings.Cut(strings.TrimPrefix(path, "/kv/"), "/")
		if !ok || key == "" {
			return worker.NewResponseText(host, "expected /kv/{namespace}/{key}", http.StatusBadRequest)
		}
		kv, err := env.KV(ns)
		if err != nil {
			return bindingError(host, err)
		}
		if req.Method() == worker.Put {
			body, err := req.Text(ctx)
			if err != nil {
				return nil, err
			}
			if err := kv.Put(ctx, key, body, nil); err != nil {
				return nil, err
			}
			return worker.NewResponse(host, nil, &worker.ResponseInit{Status: http.StatusNoContent})
		}
		val, found, err := kv.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if !found {
			return worker.NewResponseText(host, "not found", http.StatusNotFound)
		}
		return worker.NewResponseText(host, val, http.StatusOK)

	case path == "/echo" && req.Method() == worker.Post:
		ct, _, err := req.Headers().Get("content-type")
		if err != nil {
			return nil, err
		}
		if strings.HasPrefix(ct, "application/json") {
			var v any
			if err := req.JSON(ctx, &v); err != nil {
				return nil, err
			}
			return worker.NewResponseJSON(host, v, http.StatusOK)
		}
		form, err := req.FormData(ctx)
		if err != nil {
			return worker.NewResponseText(host, err.Error(), http.StatusBadRequest)
		}
		out := map[string]any{}
		for _, name := range []string{"name", "file"} {
			e, ok, err := form.Get(name)
			if err != nil || !ok {
				continue
			}
			if e.IsFile() {
				out[name] = map[string]any{"filename": e.File.Name(), "size": e.File.Size(), "type": e.File.Type()}
			} else {
				out[name] = e.Field
			}
		}
		return worker.NewResponseJSON(host, out, http.StatusOK)

	case strings.HasPrefix(path, "/queue/") && req.Method() == worker.Post:
		q, err := env.Queue(strings.TrimPrefix(path, "/queue/"))
		if err != nil {
			return bindingError(host, err)
		}
		body, err := req.Text(ctx)
		if err != nil {
			return nil, err
		}
		if err := q.SendText(ctx, body); err != nil {
			return nil, err
		}
		return worker.NewResponse(host, nil, &worker.ResponseInit{Status: http.StatusAccepted})
	}
	return worker.NewResponseText(host, "not found", http.StatusNotFound)
}

func bindingError(host *worker.Host, err error) (*worker.Response, error) {
	if errors.Is(err, worker.ErrBindingNotFound) || errors.Is(err, worker.ErrBindingTypeMismatch) {
		return worker.NewResponseText(host, err.Error(), http.StatusNotFound)
	}
	return nil, err
}
