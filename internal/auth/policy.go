package auth

import (
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/Cantido/hematite/internal/apperror"
)

// Policy wraps a compiled CEL program evaluated against every
// authenticated request: the subject, the target stream ID, and the HTTP
// method. When no policy is configured, Authorize always succeeds.
type Policy struct {
	prog    cel.Program
	enabled bool
}

// LoadPolicy compiles a CEL boolean expression over the variables sub,
// stream, and method. An empty expression disables authorization checks
// entirely (authentication alone gates access).
func LoadPolicy(expr string) (*Policy, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return &Policy{enabled: false}, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("sub", cel.StringType),
		cel.Variable("stream", cel.StringType),
		cel.Variable("method", cel.StringType),
	)
	if err != nil {
		return nil, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return nil, iss.Err()
	}
	checked, iss := env.Check(ast)
	if iss != nil && iss.Err() != nil {
		return nil, iss.Err()
	}
	prog, err := env.Program(checked)
	if err != nil {
		return nil, err
	}
	return &Policy{prog: prog, enabled: true}, nil
}

// Authorize evaluates the policy for one request. A disabled policy
// always authorizes. An expression that errors, or evaluates to anything
// but boolean true, denies.
func (p *Policy) Authorize(sub, stream, method string) error {
	if !p.enabled {
		return nil
	}
	out, _, err := p.prog.Eval(map[string]any{
		"sub":    sub,
		"stream": stream,
		"method": method,
	})
	if err != nil {
		return apperror.Wrap(apperror.Forbidden, err, "authorization policy error: %v", err)
	}
	allowed, ok := out.Value().(bool)
	if !ok || !allowed {
		return apperror.New(apperror.Forbidden, "subject %q is not authorized for %s %s", sub, method, stream)
	}
	return nil
}
