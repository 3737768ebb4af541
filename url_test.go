package worker

import (
	"net/url"
	"slices"
	"testing"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func TestParam_FirstValue(t *testing.T) {
	u := mustURL(t, "https://example.com/foo.html?a=foo&b=bar&a=baz")
	if v, ok := Param(u, "a"); !ok || v != "foo" {
		t.Errorf("Param(a) = %q, %v", v, ok)
	}
	if v, ok := Param(u, "b"); !ok || v != "bar" {
		t.Errorf("Param(b) = %q, %v", v, ok)
	}
	if v, ok := Param(u, "c"); ok || v != "" {
		t.Errorf("Param(c) = %q, %v", v, ok)
	}
}

func TestParamIter_AllValues(t *testing.T) {
	u := mustURL(t, "https://example.com/foo.html?a=foo&b=bar&a=baz")
	seq := ParamIter(u, "a")
	if got := slices.Collect(seq); !slices.Equal(got, []string{"foo", "baz"}) {
		t.Errorf("first range = %v", got)
	}
	if got := slices.Collect(seq); !slices.Equal(got, []string{"foo", "baz"}) {
		t.Errorf("second range = %v", got)
	}
	if got := slices.Collect(ParamIter(u, "missing")); len(got) != 0 {
		t.Errorf("missing key yielded %v", got)
	}
	if u.RawQuery != "a=foo&b=bar&a=baz" {
		t.Errorf("query modified: %q", u.RawQuery)
	}
}

func TestParamIter_Decoding(t *testing.T) {
	u := mustURL(t, "https://example.com/?q=hello+world&q=%41%42&flag&q=&bad=%zz&%71=encoded-name")
	got := slices.Collect(ParamIter(u, "q"))
	want := []string{"hello world", "AB", "", "encoded-name"}
	if !slices.Equal(got, want) {
		t.Errorf("values = %q, want %q", got, want)
	}
	if v, ok := Param(u, "flag"); !ok || v != "" {
		t.Errorf("Param(flag) = %q, %v", v, ok)
	}
	if v, ok := Param(u, "bad"); !ok || v != "%zz" {
		t.Errorf("Param(bad) = %q, %v", v, ok)
	}
}

func TestParamIter_MalformedEscapesKeptLiteral(t *testing.T) {
	tests := []struct {
		query, key, want string
	}{
		{"a=100%", "a", "100%"},
		{"a=%zz", "a", "%zz"},
		{"a=%4", "a", "%4"},
		{"a=50%25+off", "a", "50% off"},
		{"a%=x", "a%", "x"},
		{"a=%E2%82%AC", "a", "\u20ac"},
		{"a=%FF", "a", "\uFFFD"},
	}
	for _, tt := range tests {
		u := mustURL(t, "https://example.com/?"+tt.query)
		if v, ok := Param(u, tt.key); !ok || v != tt.want {
			t.Errorf("%s: Param(%q) = %q, %v, want %q", tt.query, tt.key, v, ok, tt.want)
		}
	}
}

func TestParamIter_EarlyStop(t *testing.T) {
	u := mustURL(t, "https://example.com/?a=1&a=2&a=3")
	var got []string
	for v := range ParamIter(u, "a") {
		got = append(got, v)
		if len(got) == 2 {
			break
		}
	}
	if !slices.Equal(got, []string{"1", "2"}) {
		t.Errorf("got %v", got)
	}
}
