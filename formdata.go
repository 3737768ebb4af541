package worker

import (
	"context"
	"strconv"

	"github.com/cryguy/worker-go/sys"
)

// FormData is a parsed form body.
type FormData struct {
	inner sys.Value
}

// FormEntry is either a plain field or a file.
type FormEntry struct {
	Field string
	File  *File
}

// IsFile reports whether the entry is a file upload.
func (e FormEntry) IsFile() bool { return e.File != nil }

// File is an uploaded file.
type File struct {
	inner sys.Value
	name  string
	typ   string
	size  int64
}

func (f *File) Name() string { return f.name }
func (f *File) Type() string { return f.typ }
func (f *File) Size() int64  { return f.size }

// Bytes returns the file content.
func (f *File) Bytes(ctx context.Context) ([]byte, error) {
	v, err := callAwait(ctx, f.inner, "arrayBuffer")
	if err != nil {
		return nil, hostError("File.Bytes", err, "failed to read file")
	}
	b, err := v.Bytes()
	if err != nil {
		return nil, hostError("File.Bytes", err, "failed to read file")
	}
	return b, nil
}

// Text returns the file content as UTF-8.
func (f *File) Text(ctx context.Context) (string, error) {
	v, err := callAwait(ctx, f.inner, "text")
	if err != nil {
		return "", hostError("File.Text", err, "failed to read file")
	}
	s, _ := v.AsString()
	return s, nil
}

// Inner returns the host form object.
func (f *FormData) Inner() sys.Value { return f.inner }

// Get returns the first entry named name.
func (f *FormData) Get(name string) (FormEntry, bool, error) {
	v, err := f.inner.Call("get", name)
	if err != nil {
		return FormEntry{}, false, hostError("FormData.Get", err, "failed to read form data")
	}
	if v.IsNull() {
		return FormEntry{}, false, nil
	}
	e, err := formEntry(v)
	if err != nil {
		return FormEntry{}, false, hostError("FormData.Get", err, "failed to read form data")
	}
	return e, true, nil
}

// GetAll returns every entry named name in insertion order.
func (f *FormData) GetAll(name string) ([]FormEntry, error) {
	arr, err := f.inner.Call("getAll", name)
	if err != nil {
		return nil, hostError("FormData.GetAll", err, "failed to read form data")
	}
	lv, err := arr.Get("length")
	if err != nil {
		return nil, hostError("FormData.GetAll", err, "failed to read form data")
	}
	var n int
	if err := lv.Export(&n); err != nil {
		return nil, hostError("FormData.GetAll", err, "failed to read form data")
	}
	out := make([]FormEntry, 0, n)
	for i := range n {
		v, err := arr.Get(strconv.Itoa(i))
		if err != nil {
			return nil, hostError("FormData.GetAll", err, "failed to read form data")
		}
		e, err := formEntry(v)
		if err != nil {
			return nil, hostError("FormData.GetAll", err, "failed to read form data")
		}
		out = append(out, e)
	}
	return out, nil
}

// Has reports whether any entry is named name.
func (f *FormData) Has(name string) (bool, error) {
	v, err := f.inner.Call("has", name)
	if err != nil {
		return false, hostError("FormData.Has", err, "failed to read form data")
	}
	var ok bool
	if err := v.Export(&ok); err != nil {
		return false, hostError("FormData.Has", err, "failed to read form data")
	}
	return ok, nil
}

func formEntry(v sys.Value) (FormEntry, error) {
	if s, ok := v.AsString(); ok {
		return FormEntry{Field: s}, nil
	}
	var meta struct {
		Name string `json:"name"`
		Type string `json:"type"`
		Size int64  `json:"size"`
	}
	// Getters live on the prototype, so read them one by one.
	for key, dst := range map[string]any{"name": &meta.Name, "type": &meta.Type, "size": &meta.Size} {
		p, err := v.Get(key)
		if err != nil {
			return FormEntry{}, err
		}
		if err := p.Export(dst); err != nil {
			return FormEntry{}, err
		}
	}
	return FormEntry{File: &File{inner: v, name: meta.Name, typ: meta.Type, size: meta.Size}}, nil
}
