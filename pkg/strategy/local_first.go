package strategy

import "chapter-relay/internal/config"

const TypeLocalFirst = "local_first"

// LocalFirstResolver prefers the local provider whenever the probe found it
// and otherwise uses the fallback.
type LocalFirstResolver struct {
	localProvider string
	fallback      string
}

func NewLocalFirstResolver(cfg config.ResolutionStrategyConfig) *LocalFirstResolver {
	local, fallback := cfg.LocalProvider, cfg.Fallback
	if local == "" {
		local = "ollama"
	}
	if fallback == "" {
		fallback = "openai"
	}
	return &LocalFirstResolver{localProvider: local, fallback: fallback}
}

func (s *LocalFirstResolver) Name() string {
	return TypeLocalFirst
}

func (s *LocalFirstResolver) Resolve(env Env) string {
	if env.LocalAvailable {
		return s.localProvider
	}
	return s.fallback
}
