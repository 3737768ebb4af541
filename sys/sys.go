// Package sys is the untyped boundary to the host object model. Values are
// opaque references into the host; every interaction goes through the
// reflection-style operations below.
package sys

import (
	"context"
	"fmt"
)

// Value is an opaque reference to a host object. Implementations own the
// lifetime of the underlying object; holders never free it.
type Value interface {
	// IsUndefined reports whether the value is the host's undefined.
	IsUndefined() bool
	// IsNull reports whether the value is the host's null.
	IsNull() bool
	// ConstructorName returns the runtime-reported constructor name of the
	// value, or "" when the host cannot tell.
	ConstructorName() string
	// AsString returns the value when it is a host string.
	AsString() (string, bool)
	// Has reports whether the value has its own property key. Inherited
	// properties do not count.
	Has(key string) (bool, error)
	// Get reads a property.
	Get(key string) (Value, error)
	// Call invokes a method. The result may be a promise; use Await.
	Call(method string, args ...any) (Value, error)
	// Await settles a promise (non-promises settle immediately). A rejected
	// promise yields an *Exception.
	Await(ctx context.Context) (Value, error)
	// Export copies the value into dst through its JSON form.
	Export(dst any) error
	// Bytes copies an ArrayBuffer or typed array out of the host.
	Bytes() ([]byte, error)
}

// Host constructs new host objects from a named global class.
type Host interface {
	Construct(class string, args ...any) (Value, error)
}

// Exception is an error thrown or rejected by the host.
type Exception struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

func (e *Exception) Error() string {
	if e.Name == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}
