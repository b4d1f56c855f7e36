package strategy

import (
	"fmt"
	"reflect"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"chapter-relay/internal/config"
	"chapter-relay/pkg/logger"
)

const TypeExpression = "expression"

// ExpressionResolver evaluates a configured expression against Env, e.g.
//
//	LocalAvailable ? "ollama" : (HasCredential ? "openai" : "openrouter")
type ExpressionResolver struct {
	program  *vm.Program
	source   string
	fallback string
}

func NewExpressionResolver(cfg config.ResolutionStrategyConfig) (*ExpressionResolver, error) {
	// Compile expression once at startup
	program, err := expr.Compile(cfg.Expression, expr.Env(Env{}), expr.AsKind(reflect.String))
	if err != nil {
		return nil, fmt.Errorf("compile default provider expression %q: %w", cfg.Expression, err)
	}
	fallback := cfg.Fallback
	if fallback == "" {
		fallback = "openai"
	}
	return &ExpressionResolver{program: program, source: cfg.Expression, fallback: fallback}, nil
}

func (e *ExpressionResolver) Name() string {
	return TypeExpression
}

func (e *ExpressionResolver) Resolve(env Env) string {
	out, err := expr.Run(e.program, env)
	if err != nil {
		logger.Warn("[Strategy] expression evaluation failed", "expression", e.source, "error", err)
		return e.fallback
	}
	if s, ok := out.(string); ok && s != "" {
		return s
	}
	return e.fallback
}
