package webapi

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/url"
	"sort"
	"strings"
)

// formdataJS implements Blob, File and FormData. Blob bytes live in JS as
// a Uint8Array; parsing and multipart encoding are done in Go.
const formdataJS = `
(function(g) {
	function toBytes(part) {
		if (part instanceof Blob) return part._bytes;
		var u = __bytesOf(part);
		if (u) return u;
		return __b64dec(__utf8_b64(String(part)));
	}

	class Blob {
		constructor(parts, options) {
			options = options || {};
			var t = String(options.type || '').toLowerCase();
			this._type = /^[\x20-\x7e]*$/.test(t) ? t : '';
			var chunks = [], size = 0;
			(parts || []).forEach(function(p) {
				var b = toBytes(p);
				chunks.push(b);
				size += b.length;
			});
			var out = new Uint8Array(size), off = 0;
			chunks.forEach(function(c) { out.set(c, off); off += c.length; });
			this._bytes = out;
		}
		get size() { return this._bytes.length; }
		get type() { return this._type; }
		slice(start, end, type) {
			var b = new Blob([], { type: type === undefined ? this._type : type });
			b._bytes = this._bytes.slice(start, end);
			return b;
		}
		arrayBuffer() { return Promise.resolve(this._bytes.slice().buffer); }
		bytes() { return Promise.resolve(this._bytes.slice()); }
		text() { return Promise.resolve(__b64_utf8(__b64enc(this._bytes))); }
		stream() { return new ReadableStream(__body_new_b64(__b64enc(this._bytes))); }
	}

	class File extends Blob {
		constructor(parts, name, options) {
			super(parts, options);
			this._name = String(name);
			this._lastModified = options && options.lastModified !== undefined ? Number(options.lastModified) : Date.now();
		}
		get name() { return this._name; }
		get lastModified() { return this._lastModified; }
	}

	function entryValue(value, filename) {
		if (value instanceof Blob) {
			if (value instanceof File && filename === undefined) return value;
			var f = new File([], filename !== undefined ? filename : 'blob', { type: value.type });
			f._bytes = value._bytes;
			return f;
		}
		return String(value);
	}

	class FormData {
		constructor() { this._e = []; }
		append(name, value, filename) { this._e.push([String(name), entryValue(value, filename)]); }
		set(name, value, filename) {
			var n = String(name);
			this._e = this._e.filter(function(p) { return p[0] !== n; });
			this._e.push([n, entryValue(value, filename)]);
		}
		delete(name) {
			var n = String(name);
			this._e = this._e.filter(function(p) { return p[0] !== n; });
		}
		get(name) {
			var n = String(name);
			for (var i = 0; i < this._e.length; i++) if (this._e[i][0] === n) return this._e[i][1];
			return null;
		}
		getAll(name) {
			var n = String(name);
			return this._e.filter(function(p) { return p[0] === n; }).map(function(p) { return p[1]; });
		}
		has(name) { return this.get(name) !== null; }
		forEach(cb, thisArg) {
			for (var i = 0; i < this._e.length; i++) cb.call(thisArg, this._e[i][1], this._e[i][0], this);
		}
		entries() { return this._e.map(function(p) { return [p[0], p[1]]; })[Symbol.iterator](); }
		keys() { return this._e.map(function(p) { return p[0]; })[Symbol.iterator](); }
		values() { return this._e.map(function(p) { return p[1]; })[Symbol.iterator](); }
		[Symbol.iterator]() { return this.entries(); }
		_encode() {
			var parts = this._e.map(function(p) {
				if (p[1] instanceof File) {
					return { name: p[0], filename: p[1].name, type: p[1].type, b64: __b64enc(p[1]._bytes) };
				}
				return { name: p[0], value: p[1] };
			});
			return JSON.parse(__form_encode(JSON.stringify(parts)));
		}
		static _parse(id, contentType) {
			var fd = new FormData();
			JSON.parse(__body_form(id, contentType)).forEach(function(p) {
				if (p.filename !== undefined) {
					var f = new File([], p.filename, { type: p.type });
					f._bytes = __b64dec(p.b64);
					fd._e.push([p.name, f]);
				} else {
					fd._e.push([p.name, p.value]);
				}
			});
			return fd;
		}
	}

	g.Blob = Blob;
	g.File = File;
	g.FormData = FormData;
})(globalThis);
`

// FormPart is one FormData entry crossing the Go/JS boundary.
type FormPart struct {
	Name     string  `json:"name"`
	Value    *string `json:"value,omitempty"`
	Filename *string `json:"filename,omitempty"`
	Type     string  `json:"type,omitempty"`
	B64      string  `json:"b64,omitempty"`
}

// ParseForm decodes an urlencoded or multipart body into form parts.
func ParseForm(body io.Reader, contentType string) ([]FormPart, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, errors.New("unrecognized Content-Type header value. FormData can only parse the following MIME types: multipart/form-data, application/x-www-form-urlencoded")
	}
	switch mediaType {
	case "application/x-www-form-urlencoded":
		data, err := io.ReadAll(body)
		if err != nil {
			return nil, err
		}
		return parseURLEncoded(string(data))
	case "multipart/form-data":
		boundary := params["boundary"]
		if boundary == "" {
			return nil, errors.New("multipart/form-data is missing a boundary")
		}
		return parseMultipart(multipart.NewReader(body, boundary))
	default:
		return nil, fmt.Errorf("unrecognized Content-Type header value %q. FormData can only parse the following MIME types: multipart/form-data, application/x-www-form-urlencoded", mediaType)
	}
}

// parseURLEncoded keeps pair order, which url.ParseQuery would lose.
func parseURLEncoded(s string) ([]FormPart, error) {
	out := []FormPart{}
	for pair := range strings.SplitSeq(s, "&") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			return nil, fmt.Errorf("decoding form key: %w", err)
		}
		val, err := url.QueryUnescape(v)
		if err != nil {
			return nil, fmt.Errorf("decoding form value: %w", err)
		}
		out = append(out, FormPart{Name: key, Value: &val})
	}
	return out, nil
}

func parseMultipart(mr *multipart.Reader) ([]FormPart, error) {
	out := []FormPart{}
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading multipart: %w", err)
		}
		data, err := io.ReadAll(p)
		if err != nil {
			return nil, fmt.Errorf("reading part %q: %w", p.FormName(), err)
		}
		part := FormPart{Name: p.FormName()}
		if fn := p.FileName(); fn != "" {
			part.Filename = &fn
			part.Type = p.Header.Get("Content-Type")
			if part.Type == "" {
				part.Type = "application/octet-stream"
			}
			part.B64 = base64.StdEncoding.EncodeToString(data)
		} else {
			v := decodeText(data)
			part.Value = &v
		}
		out = append(out, part)
	}
}

// EncodeMultipart writes parts as a multipart/form-data body.
func EncodeMultipart(parts []FormPart) (body []byte, contentType string, err error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, p := range parts {
		if p.Filename == nil {
			v := ""
			if p.Value != nil {
				v = *p.Value
			}
			if err := w.WriteField(p.Name, v); err != nil {
				return nil, "", err
			}
			continue
		}
		data, err := base64.StdEncoding.DecodeString(p.B64)
		if err != nil {
			return nil, "", err
		}
		h := make(map[string][]string)
		h["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name=%q; filename=%q`, p.Name, *p.Filename)}
		ct := p.Type
		if ct == "" {
			ct = "application/octet-stream"
		}
		h["Content-Type"] = []string{ct}
		fw, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := fw.Write(data); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// sortedKeys is used where Go maps feed JS and order must be stable.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (b *Bridge) setupFormData() error {
	if err := b.rt.RegisterFunc("__body_form", func(id int, contentType string) (string, error) {
		var body io.Reader = bytes.NewReader(nil)
		if id != 0 {
			data, err := b.Bodies.ReadAll(id)
			if err != nil {
				return "", err
			}
			body = bytes.NewReader(data)
		}
		parts, err := ParseForm(body, contentType)
		if err != nil {
			return "", err
		}
		data, err := json.Marshal(parts)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}); err != nil {
		return fmt.Errorf("registering __body_form: %w", err)
	}
	if err := b.rt.RegisterFunc("__form_encode", func(partsJSON string) (string, error) {
		var parts []FormPart
		if err := json.Unmarshal([]byte(partsJSON), &parts); err != nil {
			return "", fmt.Errorf("decoding form parts: %w", err)
		}
		body, ct, err := EncodeMultipart(parts)
		if err != nil {
			return "", err
		}
		out, err := json.Marshal(map[string]string{"type": ct, "b64": base64.StdEncoding.EncodeToString(body)})
		if err != nil {
			return "", err
		}
		return string(out), nil
	}); err != nil {
		return fmt.Errorf("registering __form_encode: %w", err)
	}
	return b.rt.Eval(formdataJS)
}
