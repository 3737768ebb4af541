package jshost

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/cryguy/worker-go/internal/core"
	"github.com/cryguy/worker-go/sys"
)

// binaryThreshold is the size from which []byte arguments and results go
// through the runtime's binary transfer instead of base64.
const binaryThreshold = 16 << 10

// ErrNeverSettles is returned when a promise is pending with no timers or
// host operations left that could settle it.
var ErrNeverSettles = errors.New("promise will never settle")

type value struct {
	h  *Host
	id int64
}

var _ sys.Value = (*value)(nil)

func (v *value) ref() string {
	return fmt.Sprintf("__h.get(%d)", v.id)
}

// eval runs body under the host lock and decodes the result into dst.
func (v *value) eval(body string, dst any) error {
	v.h.mu.Lock()
	defer v.h.mu.Unlock()
	raw, err := v.h.run(body)
	if err != nil {
		return err
	}
	if dst == nil {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func (v *value) IsUndefined() bool {
	var b bool
	return v.eval("return "+v.ref()+" === undefined;", &b) == nil && b
}

func (v *value) IsNull() bool {
	var b bool
	return v.eval("return "+v.ref()+" === null;", &b) == nil && b
}

func (v *value) ConstructorName() string {
	var name string
	err := v.eval(`var o = `+v.ref()+`;
		if (o === undefined || o === null) return '';
		var c = Object(o).constructor;
		return (c && typeof c.name === 'string') ? c.name : '';`, &name)
	if err != nil {
		return ""
	}
	return name
}

func (v *value) AsString() (string, bool) {
	var s []string
	if err := v.eval(`var o = `+v.ref()+`; return typeof o === 'string' ? [o] : null;`, &s); err != nil || len(s) != 1 {
		return "", false
	}
	return s[0], true
}

func nilGuard(ref, key string) string {
	return fmt.Sprintf(`var o = %s;
		if (o === null || o === undefined) throw new TypeError('Cannot read properties of ' + o + ' (reading ' + %s + ')');`,
		ref, key)
}

func (v *value) Has(key string) (bool, error) {
	k := strconv.Quote(key)
	var b bool
	err := v.eval(nilGuard(v.ref(), k)+`
		return Object.prototype.hasOwnProperty.call(Object(o), `+k+`);`, &b)
	return b, err
}

func (v *value) Get(key string) (sys.Value, error) {
	h := v.h
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.alloc()
	k := strconv.Quote(key)
	if _, err := h.run(nilGuard(v.ref(), k) + fmt.Sprintf(`
		__h.set(%d, o[%s]);`, id, k)); err != nil {
		return nil, err
	}
	return &value{h: h, id: id}, nil
}

func (v *value) Call(method string, args ...any) (sys.Value, error) {
	h := v.h
	h.mu.Lock()
	defer h.mu.Unlock()
	argList, cleanup, err := h.argList(args)
	defer cleanup()
	if err != nil {
		return nil, err
	}
	id := h.alloc()
	m := strconv.Quote(method)
	if _, err := h.run(nilGuard(v.ref(), m) + fmt.Sprintf(`
		var f = o[%s];
		if (typeof f !== 'function') throw new TypeError(%s + ' is not a function');
		__h.set(%d, f.apply(o, [%s]));`, m, m, id, argList)); err != nil {
		return nil, err
	}
	return &value{h: h, id: id}, nil
}

func (v *value) Export(dst any) error {
	return v.eval("return "+v.ref()+";", dst)
}

func (v *value) Bytes() ([]byte, error) {
	h := v.h
	h.mu.Lock()
	defer h.mu.Unlock()
	check := `var u = __bytesOf(` + v.ref() + `);
		if (!u) throw new TypeError('value is not an ArrayBuffer or ArrayBufferView');`
	if bt, ok := h.rt.(core.BinaryTransferer); ok {
		name := fmt.Sprintf("__tmp_bytes_%d", h.alloc())
		var n int
		raw, err := h.run(check + fmt.Sprintf(`
			if (u.length < %d) return __b64enc(u);
			globalThis[%q] = u.slice().buffer;
			return u.length;`, binaryThreshold, name))
		if err != nil {
			return nil, err
		}
		if json.Unmarshal(raw, &n) == nil {
			return bt.ReadBinaryFromJS(name)
		}
		return decodeB64(raw)
	}
	raw, err := h.run(check + `
		return __b64enc(u);`)
	if err != nil {
		return nil, err
	}
	return decodeB64(raw)
}

func decodeB64(raw json.RawMessage) ([]byte, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decoding bytes: %w", err)
	}
	return base64.StdEncoding.DecodeString(s)
}

// Await settles the value as a promise, driving microtasks, timers and
// pending host operations until it does.
func (v *value) Await(ctx context.Context) (sys.Value, error) {
	h := v.h
	h.mu.Lock()
	rid := h.alloc()
	_, err := h.run(fmt.Sprintf("__hawait(%d, %d);", v.id, rid))
	h.mu.Unlock()
	if err != nil {
		return nil, err
	}

	var timeout <-chan time.Time
	if h.cfg.AwaitTimeout > 0 {
		t := time.NewTimer(h.cfg.AwaitTimeout)
		defer t.Stop()
		timeout = t.C
	}

	for {
		h.mu.Lock()
		state, err := h.pump(rid)
		var idle bool
		if err == nil && state == "pending" {
			idle = !h.loop.HasPending()
		}
		h.mu.Unlock()
		if err != nil {
			return nil, err
		}
		switch state {
		case "fulfilled":
			return &value{h: h, id: rid}, nil
		case "rejected":
			return nil, h.rejection(rid)
		}
		if idle {
			h.abandon(rid)
			return nil, ErrNeverSettles
		}

		wait := 10 * time.Millisecond
		if next, ok := h.loop.NextDeadline(); ok {
			wait = min(wait, max(time.Until(next), 0))
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			h.abandon(rid)
			return nil, ctx.Err()
		case <-timeout:
			t.Stop()
			h.abandon(rid)
			return nil, fmt.Errorf("await exceeded %s", h.cfg.AwaitTimeout)
		case <-h.loop.Wake():
			t.Stop()
		case <-t.C:
		}
	}
}

// pump runs one event loop turn and reports the await state of rid.
// Callers hold mu.
func (h *Host) pump(rid int64) (string, error) {
	if h.closed {
		return "", ErrClosed
	}
	h.rt.RunMicrotasks()
	if h.loop.Step(h.rt) {
		h.rt.RunMicrotasks()
	}
	state, err := h.rt.EvalString(fmt.Sprintf(`(function() {
		var s = __hs[%d] || 'pending';
		if (s !== 'pending') delete __hs[%d];
		return s;
	})()`, rid, rid))
	if err != nil {
		return "", fmt.Errorf("reading await state: %w", err)
	}
	return state, nil
}

// rejection turns the stored rejection reason into an exception.
func (h *Host) rejection(rid int64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	raw, err := h.run(fmt.Sprintf("var e = __h.get(%d); __h.delete(%d); return __errObj(e);", rid, rid))
	if err != nil {
		return err
	}
	exc := &sys.Exception{}
	if err := json.Unmarshal(raw, exc); err != nil {
		return fmt.Errorf("decoding rejection: %w", err)
	}
	return exc
}

// abandon stops tracking an await; a late settlement is discarded.
func (h *Host) abandon(rid int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.closed {
		_ = h.rt.Eval(fmt.Sprintf("delete __hs[%d];", rid))
	}
}

// argList renders Go arguments as a JS argument list. Callers hold mu and
// must call cleanup once the list was evaluated.
func (h *Host) argList(args []any) (string, func(), error) {
	var tmps []string
	cleanup := func() {
		for _, name := range tmps {
			_ = h.rt.Eval(fmt.Sprintf("delete globalThis[%q];", name))
		}
	}
	parts := make([]string, 0, len(args))
	for _, a := range args {
		expr, err := h.argExpr(a, &tmps)
		if err != nil {
			return "", cleanup, err
		}
		parts = append(parts, expr)
	}
	return strings.Join(parts, ", "), cleanup, nil
}

func (h *Host) argExpr(a any, tmps *[]string) (string, error) {
	switch x := a.(type) {
	case nil:
		return "null", nil
	case *value:
		if x.h != h {
			return "", errors.New("value belongs to another host")
		}
		return x.ref(), nil
	case sys.Value:
		return "", fmt.Errorf("foreign value %T cannot cross into this host", a)
	case []byte:
		if bt, ok := h.rt.(core.BinaryTransferer); ok && len(x) >= binaryThreshold {
			name := fmt.Sprintf("__tmp_arg_%d", h.alloc())
			if err := bt.WriteBinaryToJS(name, x); err != nil {
				return "", err
			}
			*tmps = append(*tmps, name)
			return fmt.Sprintf("new Uint8Array(__take(%q))", name), nil
		}
		return fmt.Sprintf("__b64dec(%q)", base64.StdEncoding.EncodeToString(x)), nil
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		fields := make([]string, 0, len(keys))
		for _, k := range keys {
			e, err := h.argExpr(x[k], tmps)
			if err != nil {
				return "", err
			}
			fields = append(fields, strconv.Quote(k)+": "+e)
		}
		return "{" + strings.Join(fields, ", ") + "}", nil
	case []any:
		items := make([]string, 0, len(x))
		for _, item := range x {
			e, err := h.argExpr(item, tmps)
			if err != nil {
				return "", err
			}
			items = append(items, e)
		}
		return "[" + strings.Join(items, ", ") + "]", nil
	default:
		data, err := json.Marshal(a)
		if err != nil {
			return "", fmt.Errorf("encoding argument: %w", err)
		}
		return string(data), nil
	}
}
