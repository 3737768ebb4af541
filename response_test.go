package worker

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

func TestResponse_NewIsMutable(t *testing.T) {
	host := &fakeHost{}
	resp, err := NewResponse(host, "hi", &ResponseInit{Status: http.StatusCreated})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status() != http.StatusCreated || resp.Immutable() {
		t.Errorf("status %d immutable %v", resp.Status(), resp.Immutable())
	}
	h, err := resp.HeadersMut()
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Set("x-id", "7"); err != nil {
		t.Fatal(err)
	}
	if v, ok, _ := resp.Headers().Get("x-id"); !ok || v != "7" {
		t.Errorf("header = %q, %v", v, ok)
	}
	if s, err := resp.Text(context.Background()); err != nil || s != "hi" {
		t.Errorf("Text = %q, %v", s, err)
	}
	if _, err := resp.Bytes(context.Background()); !errors.Is(err, ErrBodyUsed) {
		t.Errorf("second decode: %v", err)
	}
}

func TestResponse_FromHandleIsImmutable(t *testing.T) {
	v, err := (&fakeHost{}).Construct("Response", "x", map[string]any{"status": 404})
	if err != nil {
		t.Fatal(err)
	}
	resp, err := ResponseFromHandle(v)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status() != http.StatusNotFound || !resp.Immutable() {
		t.Errorf("status %d immutable %v", resp.Status(), resp.Immutable())
	}
	if _, err := resp.HeadersMut(); !errors.Is(err, ErrImmutable) {
		t.Errorf("HeadersMut: %v", err)
	}
}

func TestResponse_InvalidInit(t *testing.T) {
	host := &fakeHost{}
	if _, err := NewResponse(host, "x", &ResponseInit{Status: 99}); !errors.Is(err, ErrConstruction) {
		t.Errorf("status 99: %v", err)
	}
	if _, err := NewResponse(host, 42, nil); !errors.Is(err, ErrConstruction) {
		t.Errorf("int body: %v", err)
	}
}

func TestResponse_JSONAndText(t *testing.T) {
	host := &fakeHost{}
	resp, err := NewResponseJSON(host, map[string]int{"n": 1}, http.StatusOK)
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]int
	if err := resp.JSON(context.Background(), &got); err != nil || got["n"] != 1 {
		t.Errorf("JSON = %v, %v", got, err)
	}
	opts := host.lastArgs[1].(map[string]any)
	headers := opts["headers"].([]any)
	if pair := headers[0].([]any); pair[1] != "application/json" {
		t.Errorf("content type = %v", pair)
	}

	if _, err := NewResponseJSON(host, func() {}, http.StatusOK); !errors.Is(err, ErrConstruction) {
		t.Errorf("unencodable value: %v", err)
	}
}

func TestResponse_StreamSingleUse(t *testing.T) {
	resp, err := NewResponseText(&fakeHost{}, "chunk", http.StatusOK)
	if err != nil {
		t.Fatal(err)
	}
	s, err := resp.Stream()
	if err != nil {
		t.Fatal(err)
	}
	chunk, err := s.Next(context.Background())
	if err != nil || string(chunk) != "chunk" {
		t.Errorf("Next = %q, %v", chunk, err)
	}
	if _, err := resp.Stream(); !errors.Is(err, ErrBodyUsed) {
		t.Errorf("second Stream: %v", err)
	}
	if _, err := resp.Clone(); !errors.Is(err, ErrBodyUsed) {
		t.Errorf("Clone after Stream: %v", err)
	}
}
