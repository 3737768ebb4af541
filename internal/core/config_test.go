package core

import (
	"net/http"
	"slices"
	"testing"
)

func TestHostConfig_Validate(t *testing.T) {
	if err := DefaultHostConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	bad := []func(*HostConfig){
		func(c *HostConfig) { c.PoolSize = 0 },
		func(c *HostConfig) { c.PoolSize = 1000 },
		func(c *HostConfig) { c.MemoryLimitMB = -1 },
		func(c *HostConfig) { c.Colo = "TOOLONG" },
	}
	for i, mutate := range bad {
		c := DefaultHostConfig()
		mutate(&c)
		if c.Validate() == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}

func TestKVCursor_RoundTrip(t *testing.T) {
	for _, off := range []int{0, 1, 250} {
		if got := DecodeCursor(EncodeCursor(off)); got != off {
			t.Errorf("cursor %d decoded as %d", off, got)
		}
	}
	for _, bad := range []string{"", "!!!", EncodeCursor(-5)} {
		if got := DecodeCursor(bad); got != 0 {
			t.Errorf("DecodeCursor(%q) = %d", bad, got)
		}
	}
}

func TestBindings_Names(t *testing.T) {
	b := Bindings{
		Vars:    map[string]string{"A": "1"},
		Secrets: map[string]string{"B": "2"},
		D1:      map[string]string{"DB": "main"},
		Scripts: map[string]string{"GEO": "export default {}"},
	}
	names := b.Names()
	slices.Sort(names)
	if !slices.Equal(names, []string{"A", "B", "DB", "GEO"}) {
		t.Errorf("Names = %v", names)
	}
}

func TestDurableObjectClass_Shared(t *testing.T) {
	built := map[string]int{}
	class := DurableObjectClass(func(id string) http.Handler {
		built[id]++
		return http.NotFoundHandler()
	}).Shared()
	class("a")
	class("a")
	class("b")
	if built["a"] != 1 || built["b"] != 1 {
		t.Errorf("built = %v", built)
	}
}

func TestSetLogger_NilRestoresNop(t *testing.T) {
	SetLogger(nil)
	if Logger() == nil {
		t.Fatal("Logger() returned nil")
	}
}
