package strategy

import (
	"fmt"
	"slices"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ModelEnv is the environment a model filter expression is evaluated in.
type ModelEnv struct {
	ID string
}

// ModelFilter narrows a provider's model list with a boolean expression such
// as `ID contains "gpt"`. An empty expression keeps everything.
type ModelFilter struct {
	program *vm.Program
}

func NewModelFilter(expression string) (*ModelFilter, error) {
	if expression == "" {
		return &ModelFilter{}, nil
	}
	program, err := expr.Compile(expression, expr.Env(ModelEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile model filter %q: %w", expression, err)
	}
	return &ModelFilter{program: program}, nil
}

// Match reports whether id passes the filter. Evaluation errors reject.
func (f *ModelFilter) Match(id string) bool {
	if f == nil || f.program == nil {
		return true
	}
	out, err := expr.Run(f.program, ModelEnv{ID: id})
	if err != nil {
		return false
	}
	ok, _ := out.(bool)
	return ok
}

// Apply returns the matching ids sorted ascending.
func (f *ModelFilter) Apply(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if f.Match(id) {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}
