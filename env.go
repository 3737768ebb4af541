package worker

import (
	"context"

	"github.com/cryguy/worker-go/sys"
)

// EnvBinding is implemented by every typed binding. TypeName is the
// constructor name the host reports for values of that binding; it must
// not depend on the receiver's state.
type EnvBinding interface {
	TypeName() string
}

// bindingPtr lets getBinding allocate a T and attach the resolved handle.
type bindingPtr[T any] interface {
	*T
	EnvBinding
	attach(v sys.Value)
}

// Env is the resolution environment: the host object holding every
// binding by name.
type Env struct {
	inner sys.Value
}

// NewEnv wraps a host env object.
func NewEnv(inner sys.Value) *Env {
	return &Env{inner: inner}
}

// Inner returns the host env object.
func (e *Env) Inner() sys.Value { return e.inner }

// lookup reads name from the env, telling an absent key apart from a key
// bound to undefined.
func (e *Env) lookup(name string) (sys.Value, error) {
	ok, err := e.inner.Has(name)
	if err != nil || !ok {
		return nil, &Error{Code: CodeBindingNotFound, Op: "Env.get", Binding: name, Err: err}
	}
	v, err := e.inner.Get(name)
	if err != nil {
		return nil, &Error{Code: CodeBindingNotFound, Op: "Env.get", Binding: name, Err: err}
	}
	if v.IsUndefined() {
		return nil, &Error{Code: CodeBindingUndefined, Op: "Env.get", Binding: name}
	}
	return v, nil
}

// castBinding checks the host-reported constructor name of v against tag.
// The check trusts the host: any object whose constructor is named tag
// passes.
func castBinding(v sys.Value, name, tag string) error {
	if actual := v.ConstructorName(); actual != tag {
		return &Error{Code: CodeBindingTypeMismatch, Op: "Env.get", Binding: name, Expected: tag, Actual: actual}
	}
	return nil
}

func getBinding[T any, P bindingPtr[T]](e *Env, name string) (*T, error) {
	v, err := e.lookup(name)
	if err != nil {
		return nil, err
	}
	b := new(T)
	if err := castBinding(v, name, P(b).TypeName()); err != nil {
		return nil, err
	}
	P(b).attach(v)
	return b, nil
}

// Secret resolves a secret binding.
func (e *Env) Secret(name string) (*StringBinding, error) {
	return getBinding[StringBinding](e, name)
}

// Var resolves a plain-text environment variable. Secrets and vars share
// the String tag, so either resolver reads either kind.
func (e *Env) Var(name string) (*StringBinding, error) {
	return getBinding[StringBinding](e, name)
}

// KV resolves a KV namespace.
func (e *Env) KV(name string) (*KvStore, error) {
	return getBinding[KvStore](e, name)
}

// DurableObject resolves a durable object namespace.
func (e *Env) DurableObject(name string) (*ObjectNamespace, error) {
	return getBinding[ObjectNamespace](e, name)
}

// DynamicDispatcher resolves a dispatch namespace.
func (e *Env) DynamicDispatcher(name string) (*DynamicDispatcher, error) {
	return getBinding[DynamicDispatcher](e, name)
}

// Service resolves a service binding.
func (e *Env) Service(name string) (*Fetcher, error) {
	return getBinding[Fetcher](e, name)
}

// Queue resolves a queue producer.
func (e *Env) Queue(name string) (*Queue, error) {
	return getBinding[Queue](e, name)
}

// D1 resolves a D1 database.
func (e *Env) D1(name string) (*D1Database, error) {
	return getBinding[D1Database](e, name)
}

// Binding resolves a binding whose constructor is named tag. It serves
// bindings this package has no typed wrapper for, such as script bindings.
func (e *Env) Binding(name, tag string) (*Object, error) {
	v, err := e.lookup(name)
	if err != nil {
		return nil, err
	}
	if err := castBinding(v, name, tag); err != nil {
		return nil, err
	}
	return &Object{tag: tag, inner: v}, nil
}

// StringBinding is a secret or var.
type StringBinding struct {
	inner sys.Value
}

func (*StringBinding) TypeName() string      { return "String" }
func (s *StringBinding) attach(v sys.Value) { s.inner = v }

// String returns the value, or "" if the host value is not a string.
func (s *StringBinding) String() string {
	v, _ := s.inner.AsString()
	return v
}

// Object is a binding resolved by an arbitrary tag.
type Object struct {
	tag   string
	inner sys.Value
}

func (o *Object) TypeName() string { return o.tag }

// Inner returns the host value.
func (o *Object) Inner() sys.Value { return o.inner }

// Call invokes a method on the binding and awaits its result.
func (o *Object) Call(ctx context.Context, method string, args ...any) (sys.Value, error) {
	v, err := callAwait(ctx, o.inner, method, args...)
	if err != nil {
		return nil, hostError(o.tag+"."+method, err, "binding call failed")
	}
	return v, nil
}

// callAwait calls method on v and settles the result.
func callAwait(ctx context.Context, v sys.Value, method string, args ...any) (sys.Value, error) {
	r, err := v.Call(method, args...)
	if err != nil {
		return nil, err
	}
	return r.Await(ctx)
}

// getString reads a string property, "" when missing or not a string.
func getString(v sys.Value, key string) (string, error) {
	p, err := v.Get(key)
	if err != nil {
		return "", err
	}
	s, _ := p.AsString()
	return s, nil
}
