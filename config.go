package worker

import (
	"github.com/cryguy/worker-go/internal/core"
	"go.uber.org/zap"
)

// HostConfig configures hosts and pools.
type HostConfig = core.HostConfig

// Bindings lists the resources exposed on every host's env object.
type Bindings = core.Bindings

// DurableObjectClass builds the handler for one durable object.
type DurableObjectClass = core.DurableObjectClass

// KVStore, QueueSender and D1Store are the Go-side backends bindings
// delegate to.
type (
	KVStore     = core.KVStore
	QueueSender = core.QueueSender
	D1Store     = core.D1Store
)

// DefaultHostConfig returns the configuration used when none is given.
func DefaultHostConfig() HostConfig {
	return core.DefaultHostConfig()
}

// SetLogger replaces the package logger. nil restores the no-op logger.
func SetLogger(l *zap.Logger) {
	core.SetLogger(l)
}
