package webapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cryguy/worker-go/internal/core"
)

func TestInbound_RequestURL(t *testing.T) {
	r := httptest.NewRequest("GET", "/path?q=1", nil)
	r.Host = "example.test"
	if got := RequestURL(r); got != "http://example.test/path?q=1" {
		t.Errorf("RequestURL = %q", got)
	}
	r.Header.Set("X-Forwarded-Proto", "https")
	if got := RequestURL(r); got != "https://example.test/path?q=1" {
		t.Errorf("forwarded = %q", got)
	}
}

func TestInbound_IncomingCfFor(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("CF-IPCountry", "NZ")
	r.Header.Set("CF-ASN", "13335")
	cf := IncomingCfFor(r, "AKL")
	if cf.Colo != "AKL" || cf.Country != "NZ" || cf.ASN != 13335 || cf.HTTPProtocol != "HTTP/1.1" {
		t.Errorf("cf = %+v", cf)
	}
}

func TestNewInboundRequest_BodyOnlyForBodyMethods(t *testing.T) {
	b := &Bridge{cfg: core.HostConfig{Colo: "DEV"}, Bodies: NewBodyStore(0)}

	get := httptest.NewRequest(http.MethodGet, "http://example.test/", nil)
	expr, err := b.NewInboundRequest(get)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(expr, ", 0)") || b.Bodies.Len() != 0 {
		t.Errorf("GET registered a body: %s", expr)
	}

	post := httptest.NewRequest(http.MethodPost, "http://example.test/submit", strings.NewReader("data"))
	post.Header.Set("X-Custom", "v")
	expr, err = b.NewInboundRequest(post)
	if err != nil {
		t.Fatal(err)
	}
	if b.Bodies.Len() != 1 {
		t.Errorf("POST body not registered: %s", expr)
	}
	if !strings.Contains(expr, `x-custom`) {
		t.Errorf("headers not lower-cased: %s", expr)
	}
}
