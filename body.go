package worker

import (
	"context"
	"strings"

	"github.com/cryguy/worker-go/sys"
)

// body is the single-consumption state shared by Request and Response.
// used flips to true on entry to any decode call and never flips back,
// whether or not the host read succeeds.
type body struct {
	inner sys.Value
	used  bool
	kind  string // "Request" or "Response", for error ops
}

// BodyUsed reports whether a decode call has been made.
func (b *body) BodyUsed() bool { return b.used }

// Inner returns the host message object.
func (b *body) Inner() sys.Value { return b.inner }

func (b *body) consume(op string) error {
	if b.used {
		return bodyUsedError(op)
	}
	b.used = true
	return nil
}

// JSON reads the body as JSON and decodes it into dst.
func (b *body) JSON(ctx context.Context, dst any) error {
	op := b.kind + ".JSON"
	if err := b.consume(op); err != nil {
		return err
	}
	v, err := callAwait(ctx, b.inner, "json")
	if err != nil {
		return hostError(op, err, "failed to get JSON for body value")
	}
	if err := v.Export(dst); err != nil {
		return &Error{Code: CodeDeserializationFailed, Op: op, Msg: "decoding body", Err: err}
	}
	return nil
}

// Text reads the body as UTF-8 text.
func (b *body) Text(ctx context.Context) (string, error) {
	op := b.kind + ".Text"
	if err := b.consume(op); err != nil {
		return "", err
	}
	v, err := callAwait(ctx, b.inner, "text")
	if err != nil {
		return "", hostError(op, err, "failed to get text for body value")
	}
	s, ok := v.AsString()
	if !ok {
		return "", hostError(op, nil, "failed to get text for body value")
	}
	return s, nil
}

// Bytes reads the whole body.
func (b *body) Bytes(ctx context.Context) ([]byte, error) {
	op := b.kind + ".Bytes"
	if err := b.consume(op); err != nil {
		return nil, err
	}
	v, err := callAwait(ctx, b.inner, "arrayBuffer")
	if err != nil {
		return nil, hostError(op, err, "failed to read array buffer from request")
	}
	data, err := v.Bytes()
	if err != nil {
		return nil, hostError(op, err, "failed to read array buffer from request")
	}
	return data, nil
}

// FormData parses an urlencoded or multipart body.
func (b *body) FormData(ctx context.Context) (*FormData, error) {
	op := b.kind + ".FormData"
	if err := b.consume(op); err != nil {
		return nil, err
	}
	v, err := callAwait(ctx, b.inner, "formData")
	if err != nil {
		return nil, hostError(op, err, "failed to get form data from request")
	}
	return &FormData{inner: v}, nil
}

// Stream takes the body as a chunk stream. It does not wait on the host;
// each chunk read does.
func (b *body) Stream() (*ByteStream, error) {
	op := b.kind + ".Stream"
	if err := b.consume(op); err != nil {
		return nil, err
	}
	s, err := b.inner.Get("body")
	if err != nil {
		return nil, hostError(op, err, "failed to get body stream")
	}
	if s.IsNull() || s.IsUndefined() {
		return nil, &Error{Code: CodeNoBody, Op: op, Msg: "no body for " + strings.ToLower(b.kind)}
	}
	r, err := s.Call("getReader")
	if err != nil {
		return nil, hostError(op, err, "failed to get body stream")
	}
	return &ByteStream{reader: r}, nil
}
