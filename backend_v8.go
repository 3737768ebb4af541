//go:build v8

package worker

import (
	"github.com/cryguy/worker-go/internal/core"
	"github.com/cryguy/worker-go/internal/v8engine"
)

func newRuntime(cfg core.HostConfig) (core.JSRuntime, error) {
	return v8engine.New(cfg.MemoryLimitMB)
}
