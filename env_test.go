package worker

import (
	"errors"
	"testing"

	"github.com/cryguy/worker-go/sys"
)

func TestEnv_MissingBinding(t *testing.T) {
	env := fakeEnv(nil)
	_, err := env.KV("CACHE")
	if !errors.Is(err, ErrBindingNotFound) {
		t.Fatalf("err = %v, want BindingNotFound", err)
	}
	if got, want := err.Error(), "Env.get: Env does not contain binding `CACHE`"; got != want {
		t.Errorf("message = %q, want %q", got, want)
	}
	var e *Error
	if !errors.As(err, &e) || e.Binding != "CACHE" {
		t.Errorf("binding name not recorded: %#v", e)
	}
}

func TestEnv_LookupFailureIsNotFound(t *testing.T) {
	inner := objectValue("Object")
	inner.hasErr = &sys.Exception{Name: "Error", Message: "reflection failed"}
	_, err := NewEnv(inner).Secret("TOKEN")
	if CodeOf(err) != CodeBindingNotFound {
		t.Fatalf("code = %q, want %q", CodeOf(err), CodeBindingNotFound)
	}
	var exc *sys.Exception
	if !errors.As(err, &exc) {
		t.Errorf("host error should stay in the chain: %v", err)
	}
}

func TestEnv_UndefinedBinding(t *testing.T) {
	env := fakeEnv(map[string]sys.Value{"TOKEN": undefinedValue()})
	_, err := env.Secret("TOKEN")
	if !errors.Is(err, ErrBindingUndefined) {
		t.Fatalf("err = %v, want BindingUndefined", err)
	}
	if got, want := err.Error(), "Env.get: Binding `TOKEN` is undefined."; got != want {
		t.Errorf("message = %q, want %q", got, want)
	}
}

func TestEnv_TypeMismatch(t *testing.T) {
	env := fakeEnv(map[string]sys.Value{"CACHE": objectValue("WorkerQueue")})
	_, err := env.KV("CACHE")
	if !errors.Is(err, ErrBindingTypeMismatch) {
		t.Fatalf("err = %v, want BindingTypeMismatch", err)
	}
	var e *Error
	errors.As(err, &e)
	if e.Expected != "KvNamespace" || e.Actual != "WorkerQueue" {
		t.Errorf("expected/actual = %q/%q", e.Expected, e.Actual)
	}
}

func TestEnv_ResolvesEveryKind(t *testing.T) {
	env := fakeEnv(map[string]sys.Value{
		"SECRET":   stringValue("s3cr3t"),
		"VAR":      stringValue("plain"),
		"KV":       objectValue("KvNamespace"),
		"DO":       objectValue("DurableObjectNamespace"),
		"DISPATCH": objectValue("DynamicDispatcher"),
		"SVC":      objectValue("Fetcher"),
		"QUEUE":    objectValue("WorkerQueue"),
		"DB":       objectValue("D1Database"),
		"GEO":      objectValue("GeoLookup"),
	})

	secret, err := env.Secret("SECRET")
	if err != nil || secret.String() != "s3cr3t" {
		t.Fatalf("Secret = %v, %v", secret, err)
	}
	v, err := env.Var("VAR")
	if err != nil || v.String() != "plain" {
		t.Fatalf("Var = %v, %v", v, err)
	}
	checks := []struct {
		name string
		get  func() error
	}{
		{"KV", func() error { _, err := env.KV("KV"); return err }},
		{"DO", func() error { _, err := env.DurableObject("DO"); return err }},
		{"DISPATCH", func() error { _, err := env.DynamicDispatcher("DISPATCH"); return err }},
		{"SVC", func() error { _, err := env.Service("SVC"); return err }},
		{"QUEUE", func() error { _, err := env.Queue("QUEUE"); return err }},
		{"DB", func() error { _, err := env.D1("DB"); return err }},
		{"GEO", func() error { _, err := env.Binding("GEO", "GeoLookup"); return err }},
	}
	for _, c := range checks {
		if err := c.get(); err != nil {
			t.Errorf("%s: %v", c.name, err)
		}
	}
}

func TestEnv_WrongResolverForKind(t *testing.T) {
	env := fakeEnv(map[string]sys.Value{"SVC": objectValue("Fetcher")})
	if _, err := env.Queue("SVC"); !errors.Is(err, ErrBindingTypeMismatch) {
		t.Errorf("Queue on Fetcher: %v", err)
	}
	if _, err := env.Secret("SVC"); !errors.Is(err, ErrBindingTypeMismatch) {
		t.Errorf("Secret on Fetcher: %v", err)
	}
}

func TestEnv_ResolutionIsRepeatable(t *testing.T) {
	env := fakeEnv(map[string]sys.Value{"KV": objectValue("KvNamespace")})
	a, err := env.KV("KV")
	if err != nil {
		t.Fatal(err)
	}
	b, err := env.KV("KV")
	if err != nil {
		t.Fatal(err)
	}
	if a.inner != b.inner {
		t.Error("both resolutions should wrap the same handle")
	}
}

func TestEnv_StringBindingNonString(t *testing.T) {
	s := &StringBinding{inner: objectValue("String")}
	if got := s.String(); got != "" {
		t.Errorf("String() = %q, want empty", got)
	}
}
