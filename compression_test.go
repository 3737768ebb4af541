package worker

import (
	"bytes"
	"compress/gzip"
	"io"
	"testing"

	"github.com/andybalholm/brotli"
)

func TestCompression_Negotiate(t *testing.T) {
	tests := []struct {
		accept, want string
	}{
		{"", ""},
		{"identity", ""},
		{"gzip", "gzip"},
		{"gzip, br", "br"},
		{"br;q=0.5, gzip", "gzip"},
		{"br;q=0, gzip;q=0", ""},
		{"GZIP;q=0.8, deflate", "gzip"},
		{"br;q=bogus, gzip;q=0.1", "gzip"},
	}
	for _, tt := range tests {
		if got := negotiateEncoding(tt.accept); got != tt.want {
			t.Errorf("negotiateEncoding(%q) = %q, want %q", tt.accept, got, tt.want)
		}
	}
}

func TestCompression_Compressible(t *testing.T) {
	yes := []string{"text/plain;charset=UTF-8", "application/json", "Application/JSON; charset=utf-8", "image/svg+xml", "application/ld+json"}
	no := []string{"", "image/png", "application/octet-stream", "video/mp4"}
	for _, ct := range yes {
		if !compressible(ct) {
			t.Errorf("compressible(%q) = false", ct)
		}
	}
	for _, ct := range no {
		if compressible(ct) {
			t.Errorf("compressible(%q) = true", ct)
		}
	}
}

func TestCompression_EncodeWriterRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("hello compression "), 64)
	decoders := map[string]func(io.Reader) (io.Reader, error){
		"gzip": func(r io.Reader) (io.Reader, error) { return gzip.NewReader(r) },
		"br":   func(r io.Reader) (io.Reader, error) { return brotli.NewReader(r), nil },
		"":     func(r io.Reader) (io.Reader, error) { return r, nil },
	}
	for enc, decode := range decoders {
		var buf bytes.Buffer
		w := encodeWriter(&buf, enc)
		if _, err := w.Write(payload); err != nil {
			t.Fatalf("%q write: %v", enc, err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("%q close: %v", enc, err)
		}
		if enc != "" && buf.Len() >= len(payload) {
			t.Errorf("%q did not shrink the payload: %d bytes", enc, buf.Len())
		}
		r, err := decode(&buf)
		if err != nil {
			t.Fatalf("%q reader: %v", enc, err)
		}
		got, err := io.ReadAll(r)
		if err != nil {
			t.Fatalf("%q read: %v", enc, err)
		}
		if !bytes.Equal(got, payload) {
			t.Errorf("%q round trip mismatch", enc)
		}
	}
}
