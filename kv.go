package worker

import (
	"context"
	"encoding/json"

	"github.com/cryguy/worker-go/sys"
)

// KvStore is a KV namespace binding.
type KvStore struct {
	inner sys.Value
}

func (*KvStore) TypeName() string      { return "KvNamespace" }
func (k *KvStore) attach(v sys.Value) { k.inner = v }

// KVPutOptions controls expiry and metadata of a put.
type KVPutOptions struct {
	// ExpirationTTL in seconds, at least 60. Zero means no expiry.
	ExpirationTTL int
	// Metadata is stored as JSON next to the value.
	Metadata any
}

// KVKey is one entry of a list result.
type KVKey struct {
	Name       string          `json:"name"`
	Expiration *int64          `json:"expiration,omitempty"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
}

// KVListOptions filters a list call.
type KVListOptions struct {
	Prefix string
	Limit  int
	Cursor string
}

// KVListResult is one page of keys.
type KVListResult struct {
	Keys         []KVKey `json:"keys"`
	ListComplete bool    `json:"list_complete"`
	Cursor       string  `json:"cursor,omitempty"`
}

// Get returns the value stored under key as text. ok is false when the
// key does not exist.
func (k *KvStore) Get(ctx context.Context, key string) (value string, ok bool, err error) {
	v, err := callAwait(ctx, k.inner, "get", key, "text")
	if err != nil {
		return "", false, hostError("KvStore.Get", err, "KV get failed")
	}
	if v.IsNull() {
		return "", false, nil
	}
	s, _ := v.AsString()
	return s, true, nil
}

// GetJSON decodes the value stored under key into dst.
func (k *KvStore) GetJSON(ctx context.Context, key string, dst any) (ok bool, err error) {
	v, err := callAwait(ctx, k.inner, "get", key, "json")
	if err != nil {
		return false, hostError("KvStore.GetJSON", err, "KV get failed")
	}
	if v.IsNull() {
		return false, nil
	}
	if err := v.Export(dst); err != nil {
		return true, &Error{Code: CodeDeserializationFailed, Op: "KvStore.GetJSON", Msg: "decoding KV value", Err: err}
	}
	return true, nil
}

// GetBytes returns the raw value stored under key.
func (k *KvStore) GetBytes(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := callAwait(ctx, k.inner, "get", key, "arrayBuffer")
	if err != nil {
		return nil, false, hostError("KvStore.GetBytes", err, "KV get failed")
	}
	if v.IsNull() {
		return nil, false, nil
	}
	b, err := v.Bytes()
	if err != nil {
		return nil, true, hostError("KvStore.GetBytes", err, "KV get failed")
	}
	return b, true, nil
}

// GetWithMetadata returns the value and decodes its metadata into md when
// both exist.
func (k *KvStore) GetWithMetadata(ctx context.Context, key string, md any) (value string, ok bool, err error) {
	v, err := callAwait(ctx, k.inner, "getWithMetadata", key, "text")
	if err != nil {
		return "", false, hostError("KvStore.GetWithMetadata", err, "KV get failed")
	}
	var out struct {
		Value    *string         `json:"value"`
		Metadata json.RawMessage `json:"metadata"`
	}
	if err := v.Export(&out); err != nil {
		return "", false, &Error{Code: CodeDeserializationFailed, Op: "KvStore.GetWithMetadata", Msg: "decoding KV result", Err: err}
	}
	if out.Value == nil {
		return "", false, nil
	}
	if md != nil && len(out.Metadata) > 0 && string(out.Metadata) != "null" {
		if err := json.Unmarshal(out.Metadata, md); err != nil {
			return *out.Value, true, &Error{Code: CodeDeserializationFailed, Op: "KvStore.GetWithMetadata", Msg: "decoding KV metadata", Err: err}
		}
	}
	return *out.Value, true, nil
}

// Put stores a text or binary value. value must be a string or []byte.
func (k *KvStore) Put(ctx context.Context, key string, value any, opts *KVPutOptions) error {
	switch value.(type) {
	case string, []byte:
	default:
		return &Error{Code: CodeInternal, Op: "KvStore.Put", Msg: "KV values must be string or []byte"}
	}
	args := []any{key, value}
	if opts != nil {
		o := map[string]any{}
		if opts.ExpirationTTL != 0 {
			o["expirationTtl"] = opts.ExpirationTTL
		}
		if opts.Metadata != nil {
			o["metadata"] = opts.Metadata
		}
		args = append(args, o)
	}
	if _, err := callAwait(ctx, k.inner, "put", args...); err != nil {
		return hostError("KvStore.Put", err, "KV put failed")
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (k *KvStore) Delete(ctx context.Context, key string) error {
	if _, err := callAwait(ctx, k.inner, "delete", key); err != nil {
		return hostError("KvStore.Delete", err, "KV delete failed")
	}
	return nil
}

// List returns one page of keys in lexicographic order.
func (k *KvStore) List(ctx context.Context, opts KVListOptions) (*KVListResult, error) {
	o := map[string]any{"prefix": opts.Prefix, "cursor": opts.Cursor}
	if opts.Limit > 0 {
		o["limit"] = opts.Limit
	}
	v, err := callAwait(ctx, k.inner, "list", o)
	if err != nil {
		return nil, hostError("KvStore.List", err, "KV list failed")
	}
	res := &KVListResult{}
	if err := v.Export(res); err != nil {
		return nil, &Error{Code: CodeDeserializationFailed, Op: "KvStore.List", Msg: "decoding KV list", Err: err}
	}
	return res, nil
}
