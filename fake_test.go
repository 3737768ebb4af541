package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cryguy/worker-go/sys"
)

// fakeValue is an in-memory sys.Value for tests that do not need a VM.
type fakeValue struct {
	undefined bool
	null      bool
	ctor      string
	str       *string
	props     map[string]sys.Value
	methods   map[string]func(args ...any) (sys.Value, error)
	json      any
	data      []byte

	// Await behaviour: resolved wins, then err, else the value itself.
	resolved sys.Value
	err      error
	hasErr   error
	calls    map[string]int
}

var _ sys.Value = (*fakeValue)(nil)

func undefinedValue() *fakeValue { return &fakeValue{undefined: true} }
func nullValue() *fakeValue      { return &fakeValue{null: true} }

func stringValue(s string) *fakeValue {
	return &fakeValue{ctor: "String", str: &s, json: s}
}

func objectValue(ctor string) *fakeValue {
	return &fakeValue{
		ctor:    ctor,
		props:   map[string]sys.Value{},
		methods: map[string]func(args ...any) (sys.Value, error){},
		calls:   map[string]int{},
	}
}

func resolvedWith(v sys.Value) *fakeValue { return &fakeValue{resolved: v} }

func rejectedWith(msg string) *fakeValue {
	return &fakeValue{err: &sys.Exception{Name: "TypeError", Message: msg}}
}

func (v *fakeValue) IsUndefined() bool       { return v.undefined }
func (v *fakeValue) IsNull() bool            { return v.null }
func (v *fakeValue) ConstructorName() string { return v.ctor }

func (v *fakeValue) AsString() (string, bool) {
	if v.str == nil {
		return "", false
	}
	return *v.str, true
}

func (v *fakeValue) Has(key string) (bool, error) {
	if v.hasErr != nil {
		return false, v.hasErr
	}
	if v.undefined || v.null {
		return false, &sys.Exception{Name: "TypeError", Message: "cannot read properties"}
	}
	_, ok := v.props[key]
	return ok, nil
}

func (v *fakeValue) Get(key string) (sys.Value, error) {
	if v.undefined || v.null {
		return nil, &sys.Exception{Name: "TypeError", Message: "cannot read properties"}
	}
	if p, ok := v.props[key]; ok {
		return p, nil
	}
	return undefinedValue(), nil
}

func (v *fakeValue) Call(method string, args ...any) (sys.Value, error) {
	if v.calls != nil {
		v.calls[method]++
	}
	fn, ok := v.methods[method]
	if !ok {
		return nil, &sys.Exception{Name: "TypeError", Message: method + " is not a function"}
	}
	return fn(args...)
}

func (v *fakeValue) Await(context.Context) (sys.Value, error) {
	if v.resolved != nil {
		return v.resolved, nil
	}
	if v.err != nil {
		return nil, v.err
	}
	return v, nil
}

func (v *fakeValue) Export(dst any) error {
	data, err := json.Marshal(v.json)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

func (v *fakeValue) Bytes() ([]byte, error) {
	if v.data == nil {
		return nil, errors.New("not an ArrayBuffer")
	}
	return append([]byte(nil), v.data...), nil
}

// fakeHeaders is a minimal host Headers object.
func fakeHeaders(init map[string]string) *fakeValue {
	h := objectValue("Headers")
	m := map[string]string{}
	for k, val := range init {
		m[strings.ToLower(k)] = val
	}
	h.methods["get"] = func(args ...any) (sys.Value, error) {
		if val, ok := m[strings.ToLower(args[0].(string))]; ok {
			return stringValue(val), nil
		}
		return nullValue(), nil
	}
	h.methods["has"] = func(args ...any) (sys.Value, error) {
		_, ok := m[strings.ToLower(args[0].(string))]
		return &fakeValue{json: ok}, nil
	}
	h.methods["set"] = func(args ...any) (sys.Value, error) {
		m[strings.ToLower(args[0].(string))] = args[1].(string)
		return undefinedValue(), nil
	}
	return h
}

// fakeBody describes what the decode methods of a fake message answer.
type fakeBody struct {
	text   string
	fail   string // host failure message for every decode, "" for none
	chunks [][]byte
	noBody bool
}

// fakeRequest builds a host Request object.
func fakeRequest(url, method string, b fakeBody) *fakeValue {
	r := objectValue("Request")
	r.props["url"] = stringValue(url)
	r.props["method"] = stringValue(method)
	r.props["headers"] = fakeHeaders(map[string]string{"content-type": "text/plain"})
	r.props["cf"] = undefinedValue()
	addBodyMethods(r, b)
	r.methods["clone"] = func(...any) (sys.Value, error) {
		return fakeRequest(url, method, b), nil
	}
	return r
}

func addBodyMethods(r *fakeValue, b fakeBody) {
	answer := func(ok sys.Value) func(...any) (sys.Value, error) {
		return func(...any) (sys.Value, error) {
			if b.fail != "" {
				return rejectedWith(b.fail), nil
			}
			return resolvedWith(ok), nil
		}
	}
	var parsed any
	_ = json.Unmarshal([]byte(b.text), &parsed)
	r.methods["text"] = answer(stringValue(b.text))
	r.methods["json"] = answer(&fakeValue{json: parsed})
	r.methods["arrayBuffer"] = answer(&fakeValue{data: []byte(b.text)})
	form := objectValue("FormData")
	form.methods["get"] = func(args ...any) (sys.Value, error) {
		if args[0] == "field" {
			return stringValue(b.text), nil
		}
		return nullValue(), nil
	}
	r.methods["formData"] = answer(form)
	if b.noBody {
		r.props["body"] = nullValue()
		return
	}
	stream := objectValue("ReadableStream")
	stream.methods["getReader"] = func(...any) (sys.Value, error) {
		return fakeReader(b.chunks, b.fail), nil
	}
	r.props["body"] = stream
}

func fakeReader(chunks [][]byte, fail string) *fakeValue {
	reader := objectValue("ReadableStreamDefaultReader")
	i := 0
	reader.methods["read"] = func(...any) (sys.Value, error) {
		if fail != "" {
			return rejectedWith(fail), nil
		}
		res := objectValue("Object")
		if i >= len(chunks) {
			res.json = map[string]any{"done": true}
			return resolvedWith(res), nil
		}
		res.json = map[string]any{"done": false}
		res.props["value"] = &fakeValue{data: chunks[i]}
		i++
		return resolvedWith(res), nil
	}
	reader.methods["cancel"] = func(...any) (sys.Value, error) {
		i = len(chunks)
		return resolvedWith(undefinedValue()), nil
	}
	return reader
}

// fakeHost constructs Requests and Responses. URLs without a scheme are
// rejected the way a WHATWG host would.
type fakeHost struct {
	lastArgs []any
}

var _ sys.Host = (*fakeHost)(nil)

func (h *fakeHost) Construct(class string, args ...any) (sys.Value, error) {
	h.lastArgs = args
	switch class {
	case "Request":
		uri := args[0].(string)
		if !strings.Contains(uri, "://") {
			return nil, &sys.Exception{Name: "TypeError", Message: "Invalid URL: " + uri}
		}
		method := "GET"
		if len(args) > 1 {
			if m, ok := args[1].(map[string]any)["method"].(string); ok {
				method = m
			}
		}
		if method == "CONNECT" {
			return nil, &sys.Exception{Name: "TypeError"}
		}
		return fakeRequest(uri, method, fakeBody{noBody: true}), nil
	case "Response":
		r := objectValue("Response")
		status := 200
		if len(args) > 1 {
			if s, ok := args[1].(map[string]any)["status"].(int); ok {
				status = s
			}
		}
		r.props["status"] = &fakeValue{json: status}
		r.props["statusText"] = stringValue("")
		r.props["headers"] = fakeHeaders(nil)
		text := ""
		if s, ok := args[0].(string); ok {
			text = s
		}
		addBodyMethods(r, fakeBody{text: text, chunks: [][]byte{[]byte(text)}})
		return r, nil
	}
	return nil, fmt.Errorf("%s is not a constructor", class)
}

// fakeEnv builds an env object holding the given bindings.
func fakeEnv(bindings map[string]sys.Value) *Env {
	env := objectValue("Object")
	for k, v := range bindings {
		env.props[k] = v
	}
	return NewEnv(env)
}
