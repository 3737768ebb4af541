package worker

import "strings"

// Method is an HTTP request method.
type Method string

const (
	Head    Method = "HEAD"
	Get     Method = "GET"
	Post    Method = "POST"
	Put     Method = "PUT"
	Patch   Method = "PATCH"
	Delete  Method = "DELETE"
	Options Method = "OPTIONS"
	Connect Method = "CONNECT"
	Trace   Method = "TRACE"
)

// ParseMethod upper-cases the standard methods and keeps others as given.
func ParseMethod(s string) Method {
	switch up := Method(strings.ToUpper(s)); up {
	case Head, Get, Post, Put, Patch, Delete, Options, Connect, Trace:
		return up
	}
	return Method(s)
}

func (m Method) String() string { return string(m) }

// HasBody reports whether requests with this method may carry a body.
func (m Method) HasBody() bool {
	return m != Get && m != Head
}
