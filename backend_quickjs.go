//go:build !v8

package worker

import (
	"github.com/cryguy/worker-go/internal/core"
	"github.com/cryguy/worker-go/internal/quickjs"
)

func newRuntime(cfg core.HostConfig) (core.JSRuntime, error) {
	return quickjs.New(cfg.MemoryLimitMB)
}
