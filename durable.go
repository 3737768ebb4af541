package worker

import (
	"context"

	"github.com/cryguy/worker-go/sys"
)

// ObjectNamespace is a durable object namespace binding.
type ObjectNamespace struct {
	inner sys.Value
}

func (*ObjectNamespace) TypeName() string      { return "DurableObjectNamespace" }
func (n *ObjectNamespace) attach(v sys.Value) { n.inner = v }

// ObjectID identifies one durable object.
type ObjectID struct {
	inner sys.Value
	hex   string
	name  string
}

// String returns the 64 hex digit form of the ID.
func (id *ObjectID) String() string { return id.hex }

// Name returns the name the ID was derived from, if any.
func (id *ObjectID) Name() string { return id.name }

// Stub sends requests to one durable object.
type Stub struct {
	inner sys.Value
	id    *ObjectID
}

// ID returns the object ID the stub addresses.
func (s *Stub) ID() *ObjectID { return s.id }

func (n *ObjectNamespace) id(op, method string, args ...any) (*ObjectID, error) {
	v, err := n.inner.Call(method, args...)
	if err != nil {
		return nil, hostError(op, err, "failed to create object ID")
	}
	return objectIDFromHandle(v, op)
}

func objectIDFromHandle(v sys.Value, op string) (*ObjectID, error) {
	s, err := v.Call("toString")
	if err != nil {
		return nil, hostError(op, err, "failed to read object ID")
	}
	hex, _ := s.AsString()
	name, err := getString(v, "name")
	if err != nil {
		return nil, hostError(op, err, "failed to read object ID")
	}
	return &ObjectID{inner: v, hex: hex, name: name}, nil
}

// IDFromName derives the stable ID for name.
func (n *ObjectNamespace) IDFromName(name string) (*ObjectID, error) {
	return n.id("ObjectNamespace.IDFromName", "idFromName", name)
}

// NewUniqueID returns a fresh random ID.
func (n *ObjectNamespace) NewUniqueID() (*ObjectID, error) {
	return n.id("ObjectNamespace.NewUniqueID", "newUniqueId")
}

// IDFromString parses an ID previously produced by this namespace.
func (n *ObjectNamespace) IDFromString(hex string) (*ObjectID, error) {
	return n.id("ObjectNamespace.IDFromString", "idFromString", hex)
}

// Get returns a stub for id.
func (n *ObjectNamespace) Get(id *ObjectID) (*Stub, error) {
	v, err := n.inner.Call("get", id.inner)
	if err != nil {
		return nil, hostError("ObjectNamespace.Get", err, "failed to get durable object stub")
	}
	return &Stub{inner: v, id: id}, nil
}

// GetByName is IDFromName followed by Get.
func (n *ObjectNamespace) GetByName(name string) (*Stub, error) {
	id, err := n.IDFromName(name)
	if err != nil {
		return nil, err
	}
	return n.Get(id)
}

// Fetch sends req to the object. The request body is consumed.
func (s *Stub) Fetch(ctx context.Context, req *Request) (*Response, error) {
	return fetchVia(ctx, s.inner, "Stub.Fetch", req)
}

// FetchURL sends a GET for url to the object.
func (s *Stub) FetchURL(ctx context.Context, url string) (*Response, error) {
	return fetchURLVia(ctx, s.inner, "Stub.FetchURL", url)
}
