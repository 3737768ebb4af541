package core

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// HostConfig holds runtime configuration for a binding host.
type HostConfig struct {
	PoolSize          int           `validate:"gte=1,lte=256"`   // number of hosts in a pool
	MemoryLimitMB     int           `validate:"gte=0"`           // per-VM memory limit, 0 = unlimited
	AwaitTimeout      time.Duration `validate:"gte=0"`           // upper bound on a single await, 0 = ctx only
	MaxBodyBytes      int64         `validate:"gte=0"`           // inbound body limit, 0 = unlimited
	MaxScriptSizeKB   int           `validate:"gte=0"`           // max script binding source size
	Colo              string        `validate:"omitempty,len=3"` // reported in request cf
	CompressResponses bool
}

// DefaultHostConfig returns the configuration used when none is given.
func DefaultHostConfig() HostConfig {
	return HostConfig{
		PoolSize:          4,
		MemoryLimitMB:     128,
		AwaitTimeout:      30 * time.Second,
		MaxBodyBytes:      100 << 20,
		MaxScriptSizeKB:   1024,
		Colo:              "DEV",
		CompressResponses: true,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints.
func (c HostConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid host config: %w", err)
	}
	return nil
}

// ValidateStruct validates any struct carrying `validate` tags.
func ValidateStruct(v any) error {
	return validate.Struct(v)
}
