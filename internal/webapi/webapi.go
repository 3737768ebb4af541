package webapi

import (
	"fmt"
	"strings"

	"github.com/cryguy/worker-go/internal/core"
	"github.com/cryguy/worker-go/internal/eventloop"
	whatwg "github.com/nlnwa/whatwg-url/url"
)

// webAPIJS defines Headers, ReadableStream, Request and Response. Bodies are
// integer IDs into the Go body store; 0 means "no body".
const webAPIJS = `
(function(g) {
	var TOKEN = /^[!#$%&'*+\-.^_` + "`" + `|~0-9A-Za-z]+$/;
	var CHUNK = 65536;

	class Headers {
		constructor(init) {
			this._l = [];
			this._immutable = false;
			if (init === undefined || init === null) return;
			if (init instanceof Headers) {
				for (var i = 0; i < init._l.length; i++) this._l.push(init._l[i].slice());
			} else if (Array.isArray(init)) {
				for (var j = 0; j < init.length; j++) {
					var p = init[j];
					if (!p || p.length !== 2) throw new TypeError('Header pairs must contain exactly two items');
					this.append(p[0], p[1]);
				}
			} else if (typeof init === 'object') {
				var keys = Object.keys(init);
				for (var k = 0; k < keys.length; k++) {
					var v = init[keys[k]];
					if (Array.isArray(v)) for (var m = 0; m < v.length; m++) this.append(keys[k], v[m]);
					else this.append(keys[k], v);
				}
			} else {
				throw new TypeError('Invalid headers init');
			}
		}
		_check(name) {
			if (this._immutable) throw new TypeError("Can't modify immutable headers.");
			name = String(name);
			if (!TOKEN.test(name)) throw new TypeError('Invalid header name: ' + name);
			return name.toLowerCase();
		}
		append(name, value) {
			var n = this._check(name);
			this._l.push([n, String(value).trim()]);
		}
		set(name, value) {
			var n = this._check(name);
			this._l = this._l.filter(function(p) { return p[0] !== n; });
			this._l.push([n, String(value).trim()]);
		}
		delete(name) {
			var n = this._check(name);
			this._l = this._l.filter(function(p) { return p[0] !== n; });
		}
		get(name) {
			var n = String(name).toLowerCase(), vals = [];
			for (var i = 0; i < this._l.length; i++) if (this._l[i][0] === n) vals.push(this._l[i][1]);
			return vals.length ? vals.join(', ') : null;
		}
		getSetCookie() {
			return this._l.filter(function(p) { return p[0] === 'set-cookie'; }).map(function(p) { return p[1]; });
		}
		has(name) {
			var n = String(name).toLowerCase();
			return this._l.some(function(p) { return p[0] === n; });
		}
		_sorted() {
			var names = [], seen = Object.create(null);
			for (var i = 0; i < this._l.length; i++) {
				if (!seen[this._l[i][0]]) { seen[this._l[i][0]] = true; names.push(this._l[i][0]); }
			}
			names.sort();
			var self = this, out = [];
			names.forEach(function(n) {
				if (n === 'set-cookie') self.getSetCookie().forEach(function(c) { out.push([n, c]); });
				else out.push([n, self.get(n)]);
			});
			return out;
		}
		forEach(cb, thisArg) {
			var s = this._sorted();
			for (var i = 0; i < s.length; i++) cb.call(thisArg, s[i][1], s[i][0], this);
		}
		entries() { return this._sorted()[Symbol.iterator](); }
		keys() { return this._sorted().map(function(p) { return p[0]; })[Symbol.iterator](); }
		values() { return this._sorted().map(function(p) { return p[1]; })[Symbol.iterator](); }
		[Symbol.iterator]() { return this.entries(); }
	}

	class ReadableStreamDefaultReader {
		constructor(stream) {
			if (stream._reader) throw new TypeError('ReadableStream is locked');
			stream._reader = this;
			this._s = stream;
		}
		get closed() { return Promise.resolve(this._s ? this._s._done : true); }
		read() {
			var s = this._s;
			if (!s) return Promise.reject(new TypeError('Reader has been released'));
			s._disturbed = true;
			if (s._done) return Promise.resolve({ done: true, value: undefined });
			return __asPromise(function() {
				var b64 = s._id ? __body_read(s._id, CHUNK) : '';
				if (b64 === '') {
					s._done = true;
					return { done: true, value: undefined };
				}
				return { done: false, value: __b64dec(b64) };
			});
		}
		cancel() {
			if (this._s) return this._s._cancel();
			return Promise.resolve();
		}
		releaseLock() {
			if (this._s) { this._s._reader = null; this._s = null; }
		}
	}

	class ReadableStream {
		constructor(id) {
			this._id = typeof id === 'number' ? id : 0;
			this._reader = null;
			this._disturbed = false;
			this._done = this._id === 0;
		}
		get locked() { return this._reader !== null; }
		getReader() { return new ReadableStreamDefaultReader(this); }
		cancel() {
			if (this.locked) return Promise.reject(new TypeError('ReadableStream is locked'));
			return this._cancel();
		}
		_cancel() {
			this._disturbed = true;
			if (!this._done && this._id) __body_release(this._id);
			this._done = true;
			return Promise.resolve();
		}
	}

	function bodyFrom(body, headers) {
		if (body === undefined || body === null) return 0;
		if (body instanceof ReadableStream) {
			if (body.locked || body._disturbed) throw new TypeError('ReadableStream is locked or disturbed');
			body._disturbed = true;
			return body._id;
		}
		if (typeof FormData === 'function' && body instanceof FormData) {
			var enc = body._encode();
			if (!headers.has('content-type')) headers.set('content-type', enc.type);
			return __body_new_b64(enc.b64);
		}
		if (typeof Blob === 'function' && body instanceof Blob) {
			if (body.type && !headers.has('content-type')) headers.set('content-type', body.type);
			return __body_new_b64(__b64enc(body._bytes));
		}
		var u = __bytesOf(body);
		if (u) return __body_new_b64(__b64enc(u));
		if (!headers.has('content-type')) headers.set('content-type', 'text/plain;charset=UTF-8');
		return __body_new_text(String(body));
	}

	var BodyMixin = {
		get body() {
			if (!this._bodyID && !this._stream) return null;
			if (!this._stream) this._stream = new ReadableStream(this._bodyID);
			return this._stream;
		},
		get bodyUsed() {
			return this._used || (this._stream !== null && this._stream._disturbed);
		},
		_consume() {
			if (this.bodyUsed) return Promise.reject(new TypeError('Body has already been used. It can only be used once.'));
			if (this._stream && this._stream.locked) return Promise.reject(new TypeError('ReadableStream is locked'));
			this._used = true;
			return Promise.resolve(this._bodyID);
		},
		text() {
			return this._consume().then(function(id) { return id ? __body_text(id) : ''; });
		},
		arrayBuffer() {
			return this._consume().then(function(id) { return id ? __b64dec(__body_b64(id)).buffer : new ArrayBuffer(0); });
		},
		bytes() {
			return this.arrayBuffer().then(function(b) { return new Uint8Array(b); });
		},
		json() {
			return this.text().then(function(t) { return JSON.parse(t); });
		},
		blob() {
			var type = this.headers.get('content-type') || '';
			return this.arrayBuffer().then(function(b) { return new Blob([b], { type: type }); });
		},
		formData() {
			var ct = this.headers.get('content-type') || '';
			return this._consume().then(function(id) { return FormData._parse(id, ct); });
		},
		_teeBody() {
			if (this.bodyUsed) throw new TypeError('Body has already been used. It can only be used once.');
			if (!this._bodyID) return 0;
			return __body_tee(this._bodyID);
		}
	};
	function mixBody(C) {
		Object.getOwnPropertyNames(BodyMixin).forEach(function(k) {
			Object.defineProperty(C.prototype, k, Object.getOwnPropertyDescriptor(BodyMixin, k));
		});
	}

	var FORBIDDEN = ['CONNECT', 'TRACE', 'TRACK'];
	var NORMALIZE = ['DELETE', 'GET', 'HEAD', 'OPTIONS', 'PATCH', 'POST', 'PUT'];
	function normalizeMethod(m) {
		m = String(m);
		if (!TOKEN.test(m)) throw new TypeError('Invalid HTTP method: ' + m);
		var up = m.toUpperCase();
		if (FORBIDDEN.indexOf(up) !== -1) throw new TypeError('Forbidden HTTP method: ' + m);
		return NORMALIZE.indexOf(up) !== -1 ? up : m;
	}

	class Request {
		constructor(input, init) {
			if (arguments.length === 0) throw new TypeError('Request constructor requires a URL');
			init = init || {};
			var src = input instanceof Request ? input : null;
			var url = src ? src.url : String(input);
			try { url = __parse_url(url); } catch (e) { throw new TypeError('Invalid URL: ' + url); }
			var method = init.method !== undefined ? normalizeMethod(init.method) : (src ? src.method : 'GET');
			var headers = new Headers(init.headers !== undefined ? init.headers : (src ? src.headers : undefined));
			var bodyID = 0;
			if (init.body !== undefined && init.body !== null) {
				if (method === 'GET' || method === 'HEAD') throw new TypeError('Request with GET/HEAD method cannot have body.');
				bodyID = bodyFrom(init.body, headers);
			} else if (src && src._bodyID && init.body === undefined) {
				if (src.bodyUsed) throw new TypeError('Body has already been used. It can only be used once.');
				if (method === 'GET' || method === 'HEAD') throw new TypeError('Request with GET/HEAD method cannot have body.');
				bodyID = src._bodyID;
				src._used = true;
			}
			var redirect = init.redirect !== undefined ? String(init.redirect) : (src ? src.redirect : 'follow');
			if (['follow', 'error', 'manual'].indexOf(redirect) === -1) throw new TypeError('Invalid redirect mode: ' + redirect);
			this._url = url;
			this._method = method;
			this._headers = headers;
			this._redirect = redirect;
			this._cf = init.cf !== undefined ? init.cf : (src ? src._cf : undefined);
			this._bodyID = bodyID;
			this._used = false;
			this._stream = null;
		}
		get url() { return this._url; }
		get method() { return this._method; }
		get headers() { return this._headers; }
		get redirect() { return this._redirect; }
		get cf() { return this._cf; }
		clone() {
			var id = this._teeBody();
			var r = Object.create(Request.prototype);
			r._url = this._url;
			r._method = this._method;
			r._headers = new Headers(this._headers);
			r._redirect = this._redirect;
			r._cf = this._cf === undefined ? undefined : JSON.parse(JSON.stringify(this._cf));
			r._bodyID = id;
			r._used = false;
			r._stream = null;
			return r;
		}
	}
	mixBody(Request);

	var NULL_BODY = [101, 204, 205, 304];
	var REDIRECTS = [301, 302, 303, 307, 308];

	class Response {
		constructor(body, init) {
			init = init || {};
			var status = init.status === undefined ? 200 : Number(init.status);
			if (!(status >= 200 && status <= 599) || Math.floor(status) !== status) {
				throw new RangeError('Response status must be in the range 200 to 599, got ' + init.status);
			}
			var headers = new Headers(init.headers);
			var bodyID = bodyFrom(body, headers);
			if (bodyID && NULL_BODY.indexOf(status) !== -1) {
				__body_release(bodyID);
				throw new TypeError('Response with null body status cannot have body');
			}
			this._init(status, init.statusText !== undefined ? String(init.statusText) : '', headers, bodyID, '');
		}
		_init(status, statusText, headers, bodyID, url) {
			this._status = status;
			this._statusText = statusText;
			this._headers = headers;
			this._bodyID = bodyID;
			this._url = url;
			this._used = false;
			this._stream = null;
		}
		get status() { return this._status; }
		get statusText() { return this._statusText; }
		get ok() { return this._status >= 200 && this._status <= 299; }
		get headers() { return this._headers; }
		get url() { return this._url; }
		get redirected() { return false; }
		clone() {
			var id = this._teeBody();
			var r = Object.create(Response.prototype);
			r._init(this._status, this._statusText, new Headers(this._headers), id, this._url);
			return r;
		}
		static json(data, init) {
			init = init || {};
			var headers = new Headers(init.headers);
			if (!headers.has('content-type')) headers.set('content-type', 'application/json');
			return new Response(JSON.stringify(data), { status: init.status, statusText: init.statusText, headers: headers });
		}
		static redirect(url, status) {
			status = status === undefined ? 302 : Number(status);
			if (REDIRECTS.indexOf(status) === -1) throw new RangeError('Invalid redirect status: ' + status);
			return new Response(null, { status: status, headers: { location: __parse_url(String(url)) } });
		}
		static error() {
			var r = Object.create(Response.prototype);
			r._init(0, '', new Headers(), 0, '');
			r._headers._immutable = true;
			return r;
		}
		static _fromGo(d) {
			var r = Object.create(Response.prototype);
			var h = new Headers(d.headers || []);
			r._init(d.status, d.statusText || '', h, d.bodyID || 0, d.url || '');
			return r;
		}
	}
	mixBody(Response);

	g.__bodyFrom = bodyFrom;
	g.Headers = Headers;
	g.ReadableStream = ReadableStream;
	g.ReadableStreamDefaultReader = ReadableStreamDefaultReader;
	g.Request = Request;
	g.Response = Response;
})(globalThis);
`

// ParseURL parses rawURL with the WHATWG URL standard and returns its
// serialized href.
func ParseURL(rawURL string) (string, error) {
	u, err := whatwg.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	return u.Href(false), nil
}

// URLPath returns the path component of a WHATWG-parsed URL.
func URLPath(rawURL string) (string, error) {
	u, err := whatwg.Parse(rawURL)
	if err != nil {
		return "", err
	}
	return u.Pathname(), nil
}

// SetupWebAPIs installs the HTTP message classes.
func SetupWebAPIs(rt core.JSRuntime, _ *eventloop.EventLoop) error {
	if err := rt.RegisterFunc("__parse_url", ParseURL); err != nil {
		return fmt.Errorf("registering __parse_url: %w", err)
	}
	if err := rt.Eval(webAPIJS); err != nil {
		return fmt.Errorf("evaluating web API classes: %w", err)
	}
	return nil
}
