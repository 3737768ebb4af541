package webapi

import (
	"strings"
	"testing"
)

func TestKV_ValidatePut(t *testing.T) {
	cases := []struct {
		name, key, value, md string
		ok                   bool
	}{
		{"valid", "k", "v", "", true},
		{"empty key", "", "v", "", false},
		{"dot key", ".", "v", "", false},
		{"dotdot key", "..", "v", "", false},
		{"long key", strings.Repeat("k", maxKVKeySize+1), "v", "", false},
		{"max key", strings.Repeat("k", maxKVKeySize), "v", "", true},
		{"large value", "k", strings.Repeat("v", maxKVValueSize+1), "", false},
		{"large metadata", "k", "v", strings.Repeat("m", maxKVMetadataSize+1), false},
	}
	for _, c := range cases {
		err := validateKVPut(c.key, c.value, c.md)
		if (err == nil) != c.ok {
			t.Errorf("%s: err = %v", c.name, err)
		}
	}
}
