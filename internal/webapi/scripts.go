package webapi

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// CompileScript turns a JS or TS module into a script that assigns the
// module's default export (or its namespace when there is none) to
// globalThis[global].
func CompileScript(source, global string, maxSizeKB int) (string, error) {
	if maxSizeKB > 0 && len(source) > maxSizeKB*1024 {
		return "", fmt.Errorf("script is %d bytes, limit is %d KB", len(source), maxSizeKB)
	}
	tmp := "globalThis.__tmp_script"
	result := api.Transform(source, api.TransformOptions{
		Loader:     api.LoaderTS,
		Format:     api.FormatIIFE,
		GlobalName: tmp,
		Target:     api.ESNext,
	})
	if len(result.Errors) > 0 {
		msgs := make([]string, 0, len(result.Errors))
		for _, m := range result.Errors {
			loc := ""
			if m.Location != nil {
				loc = fmt.Sprintf("%d:%d: ", m.Location.Line, m.Location.Column)
			}
			msgs = append(msgs, loc+m.Text)
		}
		return "", fmt.Errorf("compiling script: %s", strings.Join(msgs, "; "))
	}
	var sb strings.Builder
	sb.Write(result.Code)
	fmt.Fprintf(&sb, "\n(function(){var m=%s;delete %s;globalThis[%s]=(m&&'default' in m)?m.default:m;})();\n",
		tmp, tmp, strconv.Quote(global))
	return sb.String(), nil
}

// loadScriptBindings compiles each script binding onto the env object.
func (b *Bridge) loadScriptBindings() error {
	for _, name := range sortedKeys(b.bindings.Scripts) {
		global := "__tmp_binding"
		code, err := CompileScript(b.bindings.Scripts[name], global, b.cfg.MaxScriptSizeKB)
		if err != nil {
			return fmt.Errorf("script binding %q: %w", name, err)
		}
		if err := b.rt.Eval(code); err != nil {
			return fmt.Errorf("script binding %q: %w", name, err)
		}
		if err := b.rt.Eval(fmt.Sprintf("__env[%s] = __take(%q);", strconv.Quote(name), global)); err != nil {
			return fmt.Errorf("script binding %q: %w", name, err)
		}
	}
	return nil
}
