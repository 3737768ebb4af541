package core

// JSRuntime abstracts the JavaScript engine (V8 or QuickJS) behind the
// small surface the host layer needs. Implementations are not safe for
// concurrent use; callers serialize access.
type JSRuntime interface {
	// Eval evaluates JavaScript source and discards the result.
	Eval(js string) error

	// EvalString evaluates JavaScript and returns the result as a Go string.
	EvalString(js string) (string, error)

	// EvalBool evaluates JavaScript and returns the result as a Go bool.
	EvalBool(js string) (bool, error)

	// EvalInt evaluates JavaScript and returns the result as a Go int.
	EvalInt(js string) (int, error)

	// RegisterFunc registers a Go function as a global JavaScript function.
	// On error return, the JS wrapper throws a TypeError.
	RegisterFunc(name string, fn any) error

	// SetGlobal sets a global variable. Basic Go types are converted.
	SetGlobal(name string, value any) error

	// RunMicrotasks pumps the microtask queue (Promise callbacks, etc.).
	RunMicrotasks()

	// Close releases the engine. The runtime is unusable afterwards.
	Close()
}

// BinaryTransferer is an optional interface for moving bytes between Go
// and JS without a base64 round trip.
type BinaryTransferer interface {
	// ReadBinaryFromJS reads the ArrayBuffer stored at the given global
	// and deletes the global.
	ReadBinaryFromJS(globalName string) ([]byte, error)

	// WriteBinaryToJS stores a copy of data as an ArrayBuffer global.
	WriteBinaryToJS(globalName string, data []byte) error

	// BinaryMode returns "sab" for SharedArrayBuffer (V8) or "ab" (QuickJS).
	BinaryMode() string
}
