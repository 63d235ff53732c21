package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/open-policy-agent/opa/v1/rego"
)

// Deny reasons returned by the route policy.
const (
	ReasonUnauthenticated = "unauthenticated"
	ReasonForbidden       = "forbidden"
)

// RouteInput is what the route policy sees about a request.
type RouteInput struct {
	Method        string
	Path          string
	Authenticated bool
	Authorities   []string
}

// Decision is the outcome of a route policy evaluation.
type Decision struct {
	Allow  bool
	Reason string
}

// RouteEvaluator evaluates a Rego route policy prepared once at construction.
type RouteEvaluator struct {
	query rego.PreparedEvalQuery
}

// NewRouteEvaluator compiles the built-in route policy.
func NewRouteEvaluator(ctx context.Context) (*RouteEvaluator, error) {
	return NewRouteEvaluatorWithPolicy(ctx, defaultPackage, defaultRoutePolicy)
}

// NewRouteEvaluatorWithPolicy compiles module and queries data.<pkg>.decision,
// which must be an object with "allow" and "reason".
func NewRouteEvaluatorWithPolicy(ctx context.Context, pkg, module string) (*RouteEvaluator, error) {
	q, err := rego.New(
		rego.Query("data."+pkg+".decision"),
		rego.Module("route_policy.rego", module),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare route policy: %w", err)
	}
	return &RouteEvaluator{query: q}, nil
}

// Evaluate returns the policy decision for in. An evaluation error denies.
func (e *RouteEvaluator) Evaluate(ctx context.Context, in RouteInput) (Decision, error) {
	authorities := in.Authorities
	if authorities == nil {
		authorities = []string{}
	}
	input := map[string]interface{}{
		"method":        in.Method,
		"path":          in.Path,
		"authenticated": in.Authenticated,
		"authorities":   authorities,
	}
	rs, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return Decision{Reason: ReasonForbidden}, fmt.Errorf("eval route policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return Decision{Reason: ReasonForbidden}, errors.New("route policy returned no result")
	}
	obj, ok := rs[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return Decision{Reason: ReasonForbidden}, fmt.Errorf("route policy returned %T", rs[0].Expressions[0].Value)
	}
	allow, _ := obj["allow"].(bool)
	reason, _ := obj["reason"].(string)
	if !allow && reason == "" {
		reason = ReasonForbidden
	}
	return Decision{Allow: allow, Reason: reason}, nil
}

// HealthCheck evaluates a fixed request to prove the policy still answers.
func (e *RouteEvaluator) HealthCheck(ctx context.Context) error {
	d, err := e.Evaluate(ctx, RouteInput{Method: "GET", Path: "/healthz"})
	if err != nil {
		return err
	}
	if !d.Allow {
		return errors.New("route policy denies health endpoint")
	}
	return nil
}
