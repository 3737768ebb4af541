package webapi

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/cryguy/worker-go/internal/core"
	"github.com/cryguy/worker-go/internal/eventloop"
)

// encodingJS installs TextEncoder, TextDecoder, atob and btoa for script
// bindings. UTF-8 work goes through the body helpers.
const encodingJS = `
(function() {
	class TextEncoder {
		get encoding() { return 'utf-8'; }
		encode(input) {
			return __b64dec(__utf8_b64(input === undefined ? '' : String(input)));
		}
	}
	class TextDecoder {
		constructor(label) {
			var l = label === undefined ? 'utf-8' : String(label).toLowerCase();
			if (l !== 'utf-8' && l !== 'utf8') throw new RangeError('unsupported encoding: ' + label);
		}
		get encoding() { return 'utf-8'; }
		decode(input) {
			if (input === undefined) return '';
			return __b64_utf8(__b64enc(__bytesOf(input)));
		}
	}
	globalThis.TextEncoder = TextEncoder;
	globalThis.TextDecoder = TextDecoder;
	globalThis.btoa = function(data) {
		if (arguments.length < 1) throw new TypeError('btoa requires 1 argument');
		return __btoa(String(data));
	};
	globalThis.atob = function(data) {
		if (arguments.length < 1) throw new TypeError('atob requires 1 argument');
		return __atob(String(data));
	};
})();
`

var errNotLatin1 = errors.New("btoa: string contains characters outside of the Latin1 range")

// btoa base64-encodes a string whose code points are all below 256.
func btoa(s string) (string, error) {
	b := make([]byte, 0, len(s))
	for _, r := range s {
		if r > 0xff {
			return "", errNotLatin1
		}
		b = append(b, byte(r))
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// atob decodes forgiving base64 into a Latin1 string.
func atob(s string) (string, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\t', '\n', '\f', '\r', ' ':
			return -1
		}
		return r
	}, s)
	if len(s)%4 == 0 {
		s = strings.TrimSuffix(strings.TrimSuffix(s, "="), "=")
	}
	data, err := base64.RawStdEncoding.DecodeString(s)
	if err != nil {
		return "", errors.New("atob: invalid base64 string")
	}
	var sb strings.Builder
	sb.Grow(len(data))
	for _, c := range data {
		sb.WriteRune(rune(c))
	}
	return sb.String(), nil
}

// SetupEncoding installs the text encoding globals. It needs the prelude
// and the body helpers.
func SetupEncoding(rt core.JSRuntime, _ *eventloop.EventLoop) error {
	if err := rt.RegisterFunc("__btoa", btoa); err != nil {
		return fmt.Errorf("registering __btoa: %w", err)
	}
	if err := rt.RegisterFunc("__atob", atob); err != nil {
		return fmt.Errorf("registering __atob: %w", err)
	}
	if err := rt.Eval(encodingJS); err != nil {
		return fmt.Errorf("evaluating encoding.js: %w", err)
	}
	return nil
}
