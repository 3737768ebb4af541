package webapi

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// ErrBodyReleased is returned for reads on a body that was released or
// never existed.
var ErrBodyReleased = errors.New("body is no longer available")

// bodyEntry is one body source. Bodies are pulled lazily from r; a tee
// replaces r with an in-memory copy of whatever was left.
type bodyEntry struct {
	r      io.Reader
	closer io.Closer
}

// BodyStore keeps request and response bodies on the Go side. JS objects
// only hold the integer ID and pull bytes on demand.
type BodyStore struct {
	mu      sync.Mutex
	next    int
	entries map[int]*bodyEntry
	limit   int64
}

// NewBodyStore creates a store. limit caps what a single body may yield
// (0 = unlimited).
func NewBodyStore(limit int64) *BodyStore {
	return &BodyStore{entries: make(map[int]*bodyEntry), limit: limit}
}

// Add registers a streaming body and returns its ID. IDs start at 1; 0
// means "no body" in JS.
func (s *BodyStore) Add(r io.Reader, closer io.Closer) int {
	if s.limit > 0 {
		r = &limitedReader{r: r, n: s.limit}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.entries[s.next] = &bodyEntry{r: r, closer: closer}
	return s.next
}

// AddBytes registers an in-memory body.
func (s *BodyStore) AddBytes(b []byte) int {
	return s.Add(bytes.NewReader(b), nil)
}

func (s *BodyStore) take(id int) (*bodyEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, ErrBodyReleased
	}
	return e, nil
}

// ReadAll drains a body and releases it.
func (s *BodyStore) ReadAll(id int) ([]byte, error) {
	e, err := s.take(id)
	if err != nil {
		return nil, err
	}
	defer s.Release(id)
	data, err := io.ReadAll(e.r)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	return data, nil
}

// Read returns up to max bytes of the body. An empty result with a nil
// error means the body is exhausted; the entry is released at that point.
func (s *BodyStore) Read(id, max int) ([]byte, error) {
	e, err := s.take(id)
	if err != nil {
		return nil, err
	}
	if max <= 0 {
		max = 64 << 10
	}
	buf := make([]byte, max)
	for {
		n, err := e.r.Read(buf)
		if n > 0 {
			return buf[:n], nil
		}
		if err == io.EOF {
			s.Release(id)
			return nil, nil
		}
		if err != nil {
			s.Release(id)
			return nil, fmt.Errorf("reading body: %w", err)
		}
	}
}

// Tee buffers what remains of a body and returns the ID of an identical
// copy. The original ID stays readable.
func (s *BodyStore) Tee(id int) (int, error) {
	e, err := s.take(id)
	if err != nil {
		return 0, err
	}
	data, err := io.ReadAll(e.r)
	if err != nil {
		return 0, fmt.Errorf("buffering body: %w", err)
	}
	if e.closer != nil {
		_ = e.closer.Close()
	}
	s.mu.Lock()
	e.r, e.closer = bytes.NewReader(data), nil
	s.mu.Unlock()
	return s.AddBytes(bytes.Clone(data)), nil
}

// Detach removes a body from the store without closing it and hands its
// reader to the caller.
func (s *BodyStore) Detach(id int) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, ErrBodyReleased
	}
	delete(s.entries, id)
	return readCloser{Reader: e.r, closer: e.closer}, nil
}

type readCloser struct {
	io.Reader
	closer io.Closer
}

func (rc readCloser) Close() error {
	if rc.closer == nil {
		return nil
	}
	return rc.closer.Close()
}

// Release drops a body, closing its source.
func (s *BodyStore) Release(id int) {
	s.mu.Lock()
	e, ok := s.entries[id]
	delete(s.entries, id)
	s.mu.Unlock()
	if ok && e.closer != nil {
		_ = e.closer.Close()
	}
}

// Mark returns the ID the next body will get.
func (s *BodyStore) Mark() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next + 1
}

// ReleaseFrom drops every body whose ID is at least mark.
func (s *BodyStore) ReleaseFrom(mark int) {
	s.mu.Lock()
	var ids []int
	for id := range s.entries {
		if id >= mark {
			ids = append(ids, id)
		}
	}
	s.mu.Unlock()
	for _, id := range ids {
		s.Release(id)
	}
}

// Len reports how many bodies are live.
func (s *BodyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// limitedReader fails instead of truncating once n bytes were read.
type limitedReader struct {
	r io.Reader
	n int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.n <= 0 {
		var extra [1]byte
		if n, _ := l.r.Read(extra[:]); n > 0 {
			return 0, errors.New("body exceeds size limit")
		}
		return 0, io.EOF
	}
	if int64(len(p)) > l.n {
		p = p[:l.n]
	}
	n, err := l.r.Read(p)
	l.n -= int64(n)
	return n, err
}

// decodeText turns body bytes into a JS-safe string, replacing invalid
// UTF-8 the way TextDecoder does.
func decodeText(b []byte) string {
	return strings.ToValidUTF8(string(b), "\uFFFD")
}

func (b *Bridge) setupBodies() error {
	s := b.Bodies
	if err := b.rt.RegisterFunc("__body_text", func(id int) (string, error) {
		data, err := s.ReadAll(id)
		if err != nil {
			return "", err
		}
		return decodeText(data), nil
	}); err != nil {
		return fmt.Errorf("registering __body_text: %w", err)
	}
	if err := b.rt.RegisterFunc("__body_b64", func(id int) (string, error) {
		data, err := s.ReadAll(id)
		if err != nil {
			return "", err
		}
		return base64.StdEncoding.EncodeToString(data), nil
	}); err != nil {
		return fmt.Errorf("registering __body_b64: %w", err)
	}
	if err := b.rt.RegisterFunc("__body_read", func(id, max int) (string, error) {
		chunk, err := s.Read(id, max)
		if err != nil {
			return "", err
		}
		return base64.StdEncoding.EncodeToString(chunk), nil
	}); err != nil {
		return fmt.Errorf("registering __body_read: %w", err)
	}
	if err := b.rt.RegisterFunc("__body_tee", func(id int) (int, error) {
		return s.Tee(id)
	}); err != nil {
		return fmt.Errorf("registering __body_tee: %w", err)
	}
	if err := b.rt.RegisterFunc("__body_new_text", func(text string) int {
		return s.AddBytes([]byte(text))
	}); err != nil {
		return fmt.Errorf("registering __body_new_text: %w", err)
	}
	if err := b.rt.RegisterFunc("__body_new_b64", func(b64 string) (int, error) {
		data, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return 0, fmt.Errorf("decoding body: %w", err)
		}
		return s.AddBytes(data), nil
	}); err != nil {
		return fmt.Errorf("registering __body_new_b64: %w", err)
	}
	if err := b.rt.RegisterFunc("__body_release", func(id int) bool {
		s.Release(id)
		return true
	}); err != nil {
		return fmt.Errorf("registering __body_release: %w", err)
	}
	if err := b.rt.RegisterFunc("__utf8_b64", func(text string) string {
		return base64.StdEncoding.EncodeToString([]byte(text))
	}); err != nil {
		return fmt.Errorf("registering __utf8_b64: %w", err)
	}
	if err := b.rt.RegisterFunc("__b64_utf8", func(b64 string) (string, error) {
		data, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return "", err
		}
		return decodeText(data), nil
	}); err != nil {
		return fmt.Errorf("registering __b64_utf8: %w", err)
	}
	return nil
}
