package rules

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/suderio/ultramafia/internal/engine"
)

// Registry holds the compiled win conditions of a rules manifest.
type Registry struct {
	env   *cel.Env
	mafia cel.Program
	town  cel.Program
}

// NewRegistry compiles the manifest's expressions. A nil manifest uses the defaults.
func NewRegistry(m *Manifest) (*Registry, error) {
	if m == nil {
		m = DefaultManifest()
	}
	env, err := cel.NewEnv(
		cel.Variable("alive", cel.IntType),
		cel.Variable("mafia", cel.IntType),
		cel.Variable("others", cel.IntType),
		cel.Variable("round", cel.IntType),
	)
	if err != nil {
		return nil, err
	}

	r := &Registry{env: env}
	if r.mafia, err = r.compile(m.Win.Mafia); err != nil {
		return nil, fmt.Errorf("win.mafia: %w", err)
	}
	if r.town, err = r.compile(m.Win.Town); err != nil {
		return nil, fmt.Errorf("win.town: %w", err)
	}
	return r, nil
}

func (r *Registry) compile(expression string) (cel.Program, error) {
	ast, iss := r.env.Compile(expression)
	if iss.Err() != nil {
		return nil, iss.Err()
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("expression %q must evaluate to bool, got %s", expression, ast.OutputType())
	}
	return r.env.Program(ast)
}

// Eval executes an arbitrary CEL expression against the provided context.
func (r *Registry) Eval(expression string, context map[string]any) (any, error) {
	ast, iss := r.env.Compile(expression)
	if iss.Err() != nil {
		return nil, iss.Err()
	}
	prog, err := r.env.Program(ast)
	if err != nil {
		return nil, err
	}
	out, _, err := prog.Eval(context)
	if err != nil {
		return nil, err
	}
	return out.Value(), nil
}

// Matches evaluates a boolean expression against a stored session. The round
// is the last one found in the session's action log.
func (r *Registry) Matches(expression string, s *engine.Session) (bool, error) {
	round := 0
	for _, entry := range s.Log {
		if entry.Round > round {
			round = entry.Round
		}
	}
	out, err := r.Eval(expression, ContextFromSession(s, round))
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("expression %q must evaluate to bool, got %T", expression, out)
	}
	return b, nil
}

// Winner decides whether the session is over and which faction won.
// FactionNone means the game continues.
func (r *Registry) Winner(s *engine.Session, round int) (engine.Faction, error) {
	ctx := ContextFromSession(s, round)

	mafia, err := evalBool(r.mafia, ctx)
	if err != nil {
		return engine.FactionNone, fmt.Errorf("win.mafia: %w", err)
	}
	if mafia {
		return engine.FactionMafia, nil
	}

	town, err := evalBool(r.town, ctx)
	if err != nil {
		return engine.FactionNone, fmt.Errorf("win.town: %w", err)
	}
	if town {
		return engine.FactionTown, nil
	}
	return engine.FactionNone, nil
}

func evalBool(prg cel.Program, ctx map[string]any) (bool, error) {
	out, _, err := prg.Eval(ctx)
	if err != nil {
		return false, err
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expected bool, got %T", out.Value())
	}
	return b, nil
}
