package worker

import (
	"context"
	"io"
	"iter"

	"github.com/cryguy/worker-go/sys"
)

// ByteStream is a single-pass sequence of body chunks read from the host.
// After the first error or end of stream every Next returns the same
// result.
type ByteStream struct {
	reader sys.Value
	err    error
}

// Next returns the next chunk, or io.EOF after the last one.
func (s *ByteStream) Next(ctx context.Context) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	chunk, err := s.next(ctx)
	if err != nil {
		s.err = err
		return nil, err
	}
	return chunk, nil
}

func (s *ByteStream) next(ctx context.Context) ([]byte, error) {
	r, err := callAwait(ctx, s.reader, "read")
	if err != nil {
		return nil, hostError("ByteStream.Next", err, "failed to read body stream")
	}
	var state struct {
		Done bool `json:"done"`
	}
	if err := r.Export(&state); err != nil {
		return nil, hostError("ByteStream.Next", err, "failed to read body stream")
	}
	if state.Done {
		return nil, io.EOF
	}
	v, err := r.Get("value")
	if err != nil {
		return nil, hostError("ByteStream.Next", err, "failed to read body stream")
	}
	chunk, err := v.Bytes()
	if err != nil {
		return nil, hostError("ByteStream.Next", err, "failed to read body stream")
	}
	return chunk, nil
}

// Chunks ranges over the remaining chunks. A failed read is yielded once
// and ends the sequence.
func (s *ByteStream) Chunks(ctx context.Context) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for {
			chunk, err := s.Next(ctx)
			if err == io.EOF {
				return
			}
			if !yield(chunk, err) || err != nil {
				return
			}
		}
	}
}

// Reader adapts the stream to io.Reader.
func (s *ByteStream) Reader(ctx context.Context) io.Reader {
	return &streamReader{ctx: ctx, s: s}
}

// Cancel releases the rest of the body. Later reads return io.EOF.
func (s *ByteStream) Cancel(ctx context.Context) error {
	if s.err != nil {
		return nil
	}
	s.err = io.EOF
	if _, err := callAwait(ctx, s.reader, "cancel"); err != nil {
		return hostError("ByteStream.Cancel", err, "failed to cancel body stream")
	}
	return nil
}

type streamReader struct {
	ctx context.Context
	s   *ByteStream
	buf []byte
}

func (r *streamReader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		chunk, err := r.s.Next(r.ctx)
		if err != nil {
			return 0, err
		}
		r.buf = chunk
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}
