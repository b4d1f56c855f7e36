package strategy

import (
	"fmt"

	"chapter-relay/internal/config"
)

// Env is what a resolver sees when picking the default provider at startup.
type Env struct {
	// LocalAvailable is the result of the local model server probe.
	LocalAvailable bool
	// HasCredential reports whether a process-wide default credential is set.
	HasCredential bool
	// Configured lists the enabled provider identifiers.
	Configured []string
}

// Resolver picks the provider used when a request names none.
type Resolver interface {
	// Name returns the unique identifier for the strategy
	Name() string
	// Resolve returns the provider identifier for env.
	Resolve(env Env) string
}

// NewResolver initializes a resolver based on the configuration
func NewResolver(cfg config.ResolutionStrategyConfig) (Resolver, error) {
	switch cfg.Type {
	case "", TypeLocalFirst:
		return NewLocalFirstResolver(cfg), nil
	case TypeExpression:
		return NewExpressionResolver(cfg)
	default:
		return nil, fmt.Errorf("unknown default provider strategy %q", cfg.Type)
	}
}
