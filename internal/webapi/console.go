package webapi

import (
	"fmt"

	"github.com/cryguy/worker-go/internal/core"
	"github.com/cryguy/worker-go/internal/eventloop"
	"go.uber.org/zap"
)

const consoleJS = `
(function() {
	function fmt(a) {
		if (typeof a === 'string') return a;
		if (a instanceof Error) return (a.name || 'Error') + ': ' + a.message;
		if (a !== null && typeof a === 'object') {
			try { return JSON.stringify(a); } catch (e) { return String(a); }
		}
		return String(a);
	}
	var con = {};
	['log', 'info', 'warn', 'error', 'debug', 'trace'].forEach(function(lvl) {
		con[lvl] = function() {
			var parts = [];
			for (var i = 0; i < arguments.length; i++) parts.push(fmt(arguments[i]));
			__console(lvl, parts.join(' '));
		};
	});
	globalThis.console = con;
})();
`

// SetupConsole routes console.* output from scripts to the zap logger.
func SetupConsole(rt core.JSRuntime, _ *eventloop.EventLoop) error {
	if err := rt.RegisterFunc("__console", func(level, message string) bool {
		log := core.Logger().With(zap.String("source", "console"))
		switch level {
		case "error":
			log.Error(message)
		case "warn":
			log.Warn(message)
		case "debug", "trace":
			log.Debug(message)
		default:
			log.Info(message)
		}
		return true
	}); err != nil {
		return fmt.Errorf("registering __console: %w", err)
	}
	return rt.Eval(consoleJS)
}
