package webapi

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/cryguy/worker-go/internal/core"
)

type kvStore = core.KVStore

const (
	maxKVKeySize      = 512
	maxKVMetadataSize = 1024
	maxKVValueSize    = core.MaxKVValueSize
	maxKVListLimit    = core.MaxKVListLimit
)

const kvJS = `
(function(g) {
	function decode(value, type) {
		if (value === null) return null;
		switch (type) {
		case 'json': return JSON.parse(value);
		case 'arrayBuffer': return __b64dec(__utf8_b64(value)).buffer;
		case 'stream': return new ReadableStream(__body_new_text(value));
		case undefined: case 'text': return value;
		default: throw new TypeError('Unknown response type. Possible types are "text", "arrayBuffer", "json", and "stream".');
		}
	}
	function typeOf(opts) {
		return typeof opts === 'string' ? opts : (opts && opts.type) || 'text';
	}

	class KvNamespace {
		constructor(name) { this._name = name; }
		get(key, opts) {
			var name = this._name;
			return __asPromise(function() {
				var r = JSON.parse(__kv_get(name, String(key)));
				return decode(r === null ? null : r.value, typeOf(opts));
			});
		}
		getWithMetadata(key, opts) {
			var name = this._name;
			return __asPromise(function() {
				var r = JSON.parse(__kv_get_with_metadata(name, String(key)));
				if (r === null) return { value: null, metadata: null };
				var md = null;
				if (r.metadata !== null && r.metadata !== undefined) md = JSON.parse(r.metadata);
				return { value: decode(r.value, typeOf(opts)), metadata: md };
			});
		}
		put(key, value, opts) {
			var name = this._name;
			return __asPromise(function() {
				var u = __bytesOf(value);
				var v = u ? __b64_utf8(__b64enc(u)) : String(value);
				opts = opts || {};
				var ttl = -1;
				if (opts.expirationTtl !== undefined) ttl = Number(opts.expirationTtl);
				else if (opts.expiration !== undefined) ttl = Number(opts.expiration) - Math.floor(Date.now() / 1000);
				if (ttl !== -1 && ttl < 60) throw new Error('KV PUT failed: 400 Invalid expiration_ttl of ' + ttl + '. Expiration TTL must be at least 60.');
				var md = opts.metadata === undefined ? '' : JSON.stringify(opts.metadata);
				__kv_put(name, String(key), v, md, ttl);
			});
		}
		delete(key) {
			var name = this._name;
			return __asPromise(function() { __kv_delete(name, String(key)); });
		}
		list(opts) {
			var name = this._name;
			opts = opts || {};
			return __asPromise(function() {
				var r = JSON.parse(__kv_list(name, String(opts.prefix || ''), Number(opts.limit || 1000), String(opts.cursor || '')));
				r.keys = r.keys.map(function(k) {
					if (k.metadata !== undefined && k.metadata !== null) k.metadata = JSON.parse(k.metadata);
					return k;
				});
				return r;
			});
		}
	}

	g.KvNamespace = KvNamespace;
})(globalThis);
`

func (b *Bridge) setupKV() error {
	ctx := context.Background()
	store := func(name string) (kvStore, error) {
		s, ok := b.bindings.KV[name]
		if !ok {
			return nil, fmt.Errorf("KV binding %q not found", name)
		}
		return s, nil
	}
	marshal := func(v any) (string, error) {
		data, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	if err := b.rt.RegisterFunc("__kv_get", func(name, key string) (string, error) {
		s, err := store(name)
		if err != nil {
			return "", err
		}
		val, err := s.Get(ctx, key)
		if err != nil {
			return "", err
		}
		if val == nil {
			return "null", nil
		}
		return marshal(map[string]string{"value": *val})
	}); err != nil {
		return fmt.Errorf("registering __kv_get: %w", err)
	}
	if err := b.rt.RegisterFunc("__kv_get_with_metadata", func(name, key string) (string, error) {
		s, err := store(name)
		if err != nil {
			return "", err
		}
		res, err := s.GetWithMetadata(ctx, key)
		if err != nil {
			return "", err
		}
		if res == nil {
			return "null", nil
		}
		return marshal(res)
	}); err != nil {
		return fmt.Errorf("registering __kv_get_with_metadata: %w", err)
	}
	if err := b.rt.RegisterFunc("__kv_put", func(name, key, value, metadata string, ttl int) (string, error) {
		s, err := store(name)
		if err != nil {
			return "", err
		}
		if err := validateKVPut(key, value, metadata); err != nil {
			return "", err
		}
		var md *string
		if metadata != "" {
			md = &metadata
		}
		var ttlp *int
		if ttl >= 0 {
			ttlp = &ttl
		}
		return "", s.Put(ctx, key, value, md, ttlp)
	}); err != nil {
		return fmt.Errorf("registering __kv_put: %w", err)
	}
	if err := b.rt.RegisterFunc("__kv_delete", func(name, key string) (string, error) {
		s, err := store(name)
		if err != nil {
			return "", err
		}
		return "", s.Delete(ctx, key)
	}); err != nil {
		return fmt.Errorf("registering __kv_delete: %w", err)
	}
	if err := b.rt.RegisterFunc("__kv_list", func(name, prefix string, limit int, cursor string) (string, error) {
		s, err := store(name)
		if err != nil {
			return "", err
		}
		if limit <= 0 || limit > maxKVListLimit {
			limit = maxKVListLimit
		}
		res, err := s.List(ctx, prefix, limit, cursor)
		if err != nil {
			return "", err
		}
		return marshal(res)
	}); err != nil {
		return fmt.Errorf("registering __kv_list: %w", err)
	}
	return b.rt.Eval(kvJS)
}

// validateKVPut enforces the KV key and value limits.
func validateKVPut(key, value, metadata string) error {
	switch {
	case key == "":
		return fmt.Errorf("KV PUT failed: key must not be empty")
	case key == "." || key == "..":
		return fmt.Errorf("KV PUT failed: illegal key name %s", strconv.Quote(key))
	case len(key) > maxKVKeySize:
		return fmt.Errorf("KV PUT failed: key length %d exceeds limit of %d", len(key), maxKVKeySize)
	case len(value) > maxKVValueSize:
		return fmt.Errorf("KV PUT failed: value length %d exceeds limit of %d", len(value), maxKVValueSize)
	case len(metadata) > maxKVMetadataSize:
		return fmt.Errorf("KV PUT failed: metadata length %d exceeds limit of %d", len(metadata), maxKVMetadataSize)
	}
	return nil
}
