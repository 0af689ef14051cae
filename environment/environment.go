// Package environment honours optional process-environment overrides for
// resource-sizing knobs. Values are parsed once at start-up, validated,
// and fall back to the built-in default (with a logged warning) rather
// than failing the whole process.
package environment

import (
	"github.com/caarlos0/env/v11"
	"github.com/sirupsen/logrus"
)

// Overrides mirrors the set of honoured environment overrides. All
// fields are optional; a zero value means "not set, use the built-in
// default".
type Overrides struct {
	WorkerThreads      int `env:"PONDPILOT_WORKER_THREADS"`
	BlockingThreads    int `env:"PONDPILOT_BLOCKING_THREADS"`
	MaxPoolConnections int `env:"PONDPILOT_MAX_POOL_CONNECTIONS"`
	MaxQueryMemoryMB   int `env:"PONDPILOT_MAX_QUERY_MEMORY_MB"`
}

// Load reads Overrides from the process environment. If any field fails to
// parse, a warning is logged and every field is left at its zero value; a
// negative value is logged and only that field is reset to zero.
func Load(logger *logrus.Entry) Overrides {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	var o Overrides
	if err := env.Parse(&o); err != nil {
		logger.WithError(err).Warn("failed to parse environment overrides, using built-in defaults")
		return Overrides{}
	}

	if o.MaxPoolConnections < 0 {
		logger.WithField("value", o.MaxPoolConnections).Warn("PONDPILOT_MAX_POOL_CONNECTIONS must be non-negative, ignoring")
		o.MaxPoolConnections = 0
	}
	if o.MaxQueryMemoryMB < 0 {
		logger.WithField("value", o.MaxQueryMemoryMB).Warn("PONDPILOT_MAX_QUERY_MEMORY_MB must be non-negative, ignoring")
		o.MaxQueryMemoryMB = 0
	}
	if o.WorkerThreads < 0 {
		logger.WithField("value", o.WorkerThreads).Warn("PONDPILOT_WORKER_THREADS must be non-negative, ignoring")
		o.WorkerThreads = 0
	}
	if o.BlockingThreads < 0 {
		logger.WithField("value", o.BlockingThreads).Warn("PONDPILOT_BLOCKING_THREADS must be non-negative, ignoring")
		o.BlockingThreads = 0
	}

	return o
}

// ApplyMaxConnections and ApplyMaxQueryMemoryMB return the override when it
// is set (non-zero), otherwise the given built-in default.
func (o Overrides) ApplyMaxConnections(builtinDefault int) int {
	if o.MaxPoolConnections > 0 {
		return o.MaxPoolConnections
	}
	return builtinDefault
}

func (o Overrides) ApplyMaxQueryMemoryMB(builtinDefault int) int {
	if o.MaxQueryMemoryMB > 0 {
		return o.MaxQueryMemoryMB
	}
	return builtinDefault
}
