// Package authz decides whether an authenticated role may perform an action
// on an object, using casbin RBAC.
//
// Policies come from configuration. When a postgres pool is supplied they
// are also persisted in a rule table, so rules added there by an operator
// survive restarts and are loaded next to the configured ones.
package authz

import (
	"context"
	"fmt"

	"github.com/casbin/casbin/v3"
	"github.com/casbin/casbin/v3/model"
)

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && (p.obj == "*" || r.obj == p.obj) && (p.act == "*" || r.act == p.act)
`

// Enforcer answers authorization questions.
type Enforcer interface {
	Enforce(rvals ...any) (bool, error)
}

// Config holds the rules seeded into the enforcer.
type Config struct {
	// Policies are "role, object, action" triples.
	Policies [][]string
	// Groupings are "role, parent role" pairs.
	Groupings [][]string
}

// New builds a casbin enforcer. db may be nil, in which case policies live
// in memory only.
func New(ctx context.Context, cfg Config, db Commander) (*casbin.Enforcer, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("authz: model: %w", err)
	}

	var e *casbin.Enforcer
	if db != nil {
		e, err = casbin.NewEnforcer(m, NewPgxAdapter(ctx, db))
	} else {
		e, err = casbin.NewEnforcer(m)
	}
	if err != nil {
		return nil, fmt.Errorf("authz: enforcer: %w", err)
	}

	if len(cfg.Policies) > 0 {
		if _, err := e.AddPoliciesEx(cfg.Policies); err != nil {
			return nil, fmt.Errorf("authz: seed policies: %w", err)
		}
	}
	if len(cfg.Groupings) > 0 {
		if _, err := e.AddGroupingPoliciesEx(cfg.Groupings); err != nil {
			return nil, fmt.Errorf("authz: seed groupings: %w", err)
		}
	}

	return e, nil
}
