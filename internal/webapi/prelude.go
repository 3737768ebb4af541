package webapi

import (
	"fmt"
	"time"

	"github.com/cryguy/worker-go/internal/core"
	"github.com/cryguy/worker-go/internal/eventloop"
)

// preludeJS installs the handle table used by the Go side to refer to JS
// values, the exception envelope helpers, base64 helpers and pending
// operation plumbing. Everything else builds on it.
const preludeJS = `
(function(g) {
	g.__h = new Map();
	g.__hs = Object.create(null);

	g.__errObj = function(e) {
		if (e !== null && typeof e === 'object') {
			var msg = e.message !== undefined ? String(e.message) : String(e);
			return { name: String(e.name || ''), message: msg };
		}
		return { name: '', message: e === undefined ? '' : String(e) };
	};
	g.__hrun = function(fn) {
		try {
			var v = fn();
			return JSON.stringify({ v: v === undefined ? null : v });
		} catch (e) {
			return JSON.stringify({ e: __errObj(e) });
		}
	};
	g.__hawait = function(id, rid) {
		__hs[rid] = 'pending';
		Promise.resolve(__h.get(id)).then(function(r) {
			if (!(rid in __hs)) return;
			__h.set(rid, r);
			__hs[rid] = 'fulfilled';
		}, function(e) {
			if (!(rid in __hs)) return;
			__h.set(rid, e);
			__hs[rid] = 'rejected';
		});
	};
	g.__hrelease = function(mark) {
		var ids = [];
		__h.forEach(function(_, k) { if (k >= mark) ids.push(k); });
		for (var i = 0; i < ids.length; i++) {
			__h.delete(ids[i]);
			delete __hs[ids[i]];
		}
	};
	g.__take = function(name) {
		var v = g[name];
		delete g[name];
		return v;
	};

	var A = 'ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/';
	var R = new Uint8Array(256);
	for (var i = 0; i < A.length; i++) R[A.charCodeAt(i)] = i;
	g.__b64enc = function(u) {
		var out = [], i = 0, n = u.length;
		for (; i + 2 < n; i += 3) {
			var t = (u[i] << 16) | (u[i + 1] << 8) | u[i + 2];
			out.push(A[t >> 18], A[(t >> 12) & 63], A[(t >> 6) & 63], A[t & 63]);
		}
		if (i < n) {
			var t2 = u[i] << 16 | (i + 1 < n ? u[i + 1] << 8 : 0);
			out.push(A[t2 >> 18], A[(t2 >> 12) & 63], i + 1 < n ? A[(t2 >> 6) & 63] : '=', '=');
		}
		return out.join('');
	};
	g.__b64dec = function(s) {
		s = String(s).replace(/[^A-Za-z0-9+/]/g, '');
		var n = s.length, out = new Uint8Array((n * 3) >> 2), o = 0;
		for (var i = 0; i < n; i += 4) {
			var t = (R[s.charCodeAt(i)] << 18) | (R[s.charCodeAt(i + 1)] << 12) |
				((i + 2 < n ? R[s.charCodeAt(i + 2)] : 0) << 6) | (i + 3 < n ? R[s.charCodeAt(i + 3)] : 0);
			out[o++] = t >> 16;
			if (i + 2 < n) out[o++] = (t >> 8) & 255;
			if (i + 3 < n) out[o++] = t & 255;
		}
		return out.subarray(0, o).slice();
	};
	if (typeof g.btoa !== 'function') {
		g.btoa = function(s) {
			s = String(s);
			var u = new Uint8Array(s.length);
			for (var i = 0; i < s.length; i++) {
				var c = s.charCodeAt(i);
				if (c > 255) throw new TypeError('btoa: invalid character');
				u[i] = c;
			}
			return __b64enc(u);
		};
		g.atob = function(s) {
			var u = __b64dec(s), out = '';
			for (var i = 0; i < u.length; i++) out += String.fromCharCode(u[i]);
			return out;
		};
	}
	g.__bytesOf = function(v) {
		if (v instanceof ArrayBuffer) return new Uint8Array(v);
		if (ArrayBuffer.isView(v)) return new Uint8Array(v.buffer, v.byteOffset, v.byteLength);
		return null;
	};

	g.__ops = Object.create(null);
	g.__opPromise = function(id) {
		return new Promise(function(resolve, reject) {
			__ops[id] = { resolve: resolve, reject: reject };
		});
	};
	g.__opSettle = function(id, ok, payload) {
		var p = __ops[id];
		if (!p) return;
		delete __ops[id];
		if (ok) p.resolve(payload === '' ? undefined : JSON.parse(payload));
		else p.reject(new Error(payload));
	};
	g.__asPromise = function(fn) {
		return new Promise(function(resolve, reject) {
			try { resolve(fn()); } catch (e) { reject(e); }
		});
	};

	g.__timerCallbacks = {};
	g.setTimeout = function(fn, delay) {
		if (typeof fn !== 'function') return 0;
		var args = Array.prototype.slice.call(arguments, 2);
		var id = __timer_set(Number(delay) || 0, false);
		__timerCallbacks[id] = { fn: fn, args: args };
		return id;
	};
	g.setInterval = function(fn, delay) {
		if (typeof fn !== 'function') return 0;
		var args = Array.prototype.slice.call(arguments, 2);
		var id = __timer_set(Number(delay) || 0, true);
		__timerCallbacks[id] = { fn: fn, args: args, interval: true };
		return id;
	};
	g.clearTimeout = g.clearInterval = function(id) {
		if (typeof id !== 'number') return;
		__timer_clear(id);
		delete __timerCallbacks[id];
	};
	if (typeof g.queueMicrotask !== 'function') {
		g.queueMicrotask = function(fn) { Promise.resolve().then(fn); };
	}
})(globalThis);
`

// SetupPrelude registers the timer hooks and evaluates the prelude.
func SetupPrelude(rt core.JSRuntime, el *eventloop.EventLoop) error {
	if err := rt.RegisterFunc("__timer_set", func(delayMs int, interval bool) int {
		return el.RegisterTimer(time.Duration(delayMs)*time.Millisecond, interval)
	}); err != nil {
		return fmt.Errorf("registering __timer_set: %w", err)
	}
	if err := rt.RegisterFunc("__timer_clear", func(id int) bool {
		el.ClearTimer(id)
		return true
	}); err != nil {
		return fmt.Errorf("registering __timer_clear: %w", err)
	}
	if err := rt.Eval(preludeJS); err != nil {
		return fmt.Errorf("evaluating prelude: %w", err)
	}
	return nil
}
