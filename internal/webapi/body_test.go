package webapi

import (
	"errors"
	"io"
	"strings"
	"testing"
)

type closeCounter struct{ n int }

func (c *closeCounter) Close() error { c.n++; return nil }

func TestBodyStore_ReadAllReleases(t *testing.T) {
	s := NewBodyStore(0)
	id := s.AddBytes([]byte("hello"))
	if id != 1 {
		t.Errorf("first id = %d, want 1", id)
	}
	data, err := s.ReadAll(id)
	if err != nil || string(data) != "hello" {
		t.Fatalf("ReadAll = %q, %v", data, err)
	}
	if _, err := s.ReadAll(id); !errors.Is(err, ErrBodyReleased) {
		t.Errorf("second ReadAll: %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d", s.Len())
	}
}

func TestBodyStore_ReadChunks(t *testing.T) {
	s := NewBodyStore(0)
	c := &closeCounter{}
	id := s.Add(strings.NewReader("abcdef"), c)
	var got []string
	for {
		chunk, err := s.Read(id, 4)
		if err != nil {
			t.Fatal(err)
		}
		if len(chunk) == 0 {
			break
		}
		got = append(got, string(chunk))
	}
	if strings.Join(got, "|") != "abcd|ef" {
		t.Errorf("chunks = %v", got)
	}
	if c.n != 1 {
		t.Errorf("closer called %d times", c.n)
	}
}

func TestBodyStore_Limit(t *testing.T) {
	s := NewBodyStore(4)
	id := s.AddBytes([]byte("too long"))
	if _, err := s.ReadAll(id); err == nil {
		t.Fatal("expected size limit error")
	}
	id = s.AddBytes([]byte("fits"))
	if data, err := s.ReadAll(id); err != nil || string(data) != "fits" {
		t.Errorf("exact size: %q, %v", data, err)
	}
}

func TestBodyStore_Tee(t *testing.T) {
	s := NewBodyStore(0)
	id := s.AddBytes([]byte("copy me"))
	dup, err := s.Tee(id)
	if err != nil {
		t.Fatal(err)
	}
	a, _ := s.ReadAll(id)
	b, _ := s.ReadAll(dup)
	if string(a) != "copy me" || string(b) != "copy me" {
		t.Errorf("tee = %q / %q", a, b)
	}
}

func TestBodyStore_ReleaseFrom(t *testing.T) {
	s := NewBodyStore(0)
	keep := s.AddBytes([]byte("a"))
	mark := s.Mark()
	s.AddBytes([]byte("b"))
	s.AddBytes([]byte("c"))
	s.ReleaseFrom(mark)
	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1", s.Len())
	}
	if _, err := s.ReadAll(keep); err != nil {
		t.Errorf("body before mark was released: %v", err)
	}
}

func TestBodyStore_Detach(t *testing.T) {
	s := NewBodyStore(0)
	c := &closeCounter{}
	id := s.Add(strings.NewReader("x"), c)
	rc, err := s.Detach(id)
	if err != nil {
		t.Fatal(err)
	}
	if s.Len() != 0 || c.n != 0 {
		t.Errorf("Len %d, closes %d", s.Len(), c.n)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != "x" || c.n != 1 {
		t.Errorf("data %q, closes %d", data, c.n)
	}
}

func TestDecodeText_ReplacesInvalidUTF8(t *testing.T) {
	if got := decodeText([]byte{'a', 0xff, 'b'}); got != "a�b" {
		t.Errorf("decodeText = %q", got)
	}
}
