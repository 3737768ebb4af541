package worker

import (
	"errors"
	"fmt"
	"testing"

	"github.com/cryguy/worker-go/sys"
)

func TestError_IsMatchesCode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", bodyUsedError("Request.Text"))
	if !errors.Is(err, ErrBodyUsed) {
		t.Error("wrapped BodyUsed should match ErrBodyUsed")
	}
	if errors.Is(err, ErrNoBody) {
		t.Error("BodyUsed should not match ErrNoBody")
	}
	if CodeOf(err) != CodeBodyUsed {
		t.Errorf("CodeOf = %q", CodeOf(err))
	}
	if CodeOf(errors.New("plain")) != "" {
		t.Error("CodeOf on a foreign error should be empty")
	}
}

func TestError_Messages(t *testing.T) {
	tests := []struct {
		err  *Error
		want string
	}{
		{bodyUsedError("Response.JSON"), "Response.JSON: Body has already been used. It can only be used once."},
		{&Error{Code: CodeBindingTypeMismatch, Expected: "Fetcher"}, "Binding cannot be cast to the type Fetcher"},
		{&Error{Code: CodeBindingTypeMismatch, Expected: "Fetcher", Actual: "Object"}, "Binding cannot be cast to the type Fetcher from Object"},
		{immutableError("Request.SetPath", "path"), "Request.SetPath: cannot mutate path of an immutable message"},
		{&Error{Code: CodeDeserializationFailed, Msg: "decoding body", Err: errors.New("bad")}, "decoding body: bad"},
		{&Error{Code: CodeInternal}, "INTERNAL"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestError_HostTextPrefersException(t *testing.T) {
	exc := &sys.Exception{Name: "TypeError", Message: "Body is not valid JSON"}
	if got := hostError("Request.JSON", exc, "fallback").Msg; got != "Body is not valid JSON" {
		t.Errorf("Msg = %q", got)
	}
	if got := hostError("Request.JSON", &sys.Exception{Name: "Error"}, "fallback").Msg; got != "fallback" {
		t.Errorf("empty exception Msg = %q", got)
	}
	if got := constructionError("NewResponse", errors.New("boom"), "fallback"); got.Msg != "fallback" || !errors.Is(got, ErrConstruction) {
		t.Errorf("construction = %+v", got)
	}
}
