package webapi

import "testing"

func TestEncoding_BtoaAtob(t *testing.T) {
	enc, err := btoa("héllo")
	if err != nil {
		t.Fatal(err)
	}
	if enc != "aOlsbG8=" {
		t.Errorf("btoa = %q", enc)
	}
	dec, err := atob(" aOls\nbG8= ")
	if err != nil || dec != "héllo" {
		t.Errorf("atob = %q, %v", dec, err)
	}
	if dec, err := atob("aOlsbG8"); err != nil || dec != "héllo" {
		t.Errorf("unpadded atob = %q, %v", dec, err)
	}
}

func TestBtoa_RejectsWideCharacters(t *testing.T) {
	if _, err := btoa("€"); err != errNotLatin1 {
		t.Errorf("err = %v", err)
	}
}

func TestAtob_Invalid(t *testing.T) {
	for _, in := range []string{"a", "ab!c", "a=bc"} {
		if _, err := atob(in); err == nil {
			t.Errorf("atob(%q) should fail", in)
		}
	}
}
