package auth

import (
	"fmt"
	"net/http"

	casbin "github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	stringadapter "github.com/casbin/casbin/v2/persist/string-adapter"
	"github.com/labstack/echo/v4"
)

const policyModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj && (p.act == "*" || r.act == p.act)
`

// DefaultPolicy is the route-level grant table. Ownership of a particular
// appointment or schedule is checked again by the scheduling service.
const DefaultPolicy = `
p, patient, appointment, create
p, patient, appointment, read
p, patient, appointment, reschedule
p, patient, appointment, cancel

p, doctor, appointment, read
p, doctor, appointment, reschedule
p, doctor, appointment, transition
p, doctor, appointment, cancel
p, doctor, availability, write
p, doctor, dashboard, read
p, doctor, timeslot, read

p, staff, appointment, *
p, staff, availability, write
p, staff, dashboard, read
p, staff, timeslot, *

g, admin, staff
`

// Policy answers whether any of a caller's roles may perform an action on a
// resource kind.
type Policy struct {
	enforcer *casbin.Enforcer
}

func NewPolicy(policyCSV string) (*Policy, error) {
	m, err := model.NewModelFromString(policyModel)
	if err != nil {
		return nil, fmt.Errorf("load policy model: %w", err)
	}
	e, err := casbin.NewEnforcer(m, stringadapter.NewAdapter(policyCSV))
	if err != nil {
		return nil, fmt.Errorf("create enforcer: %w", err)
	}
	return &Policy{enforcer: e}, nil
}

func (p *Policy) Allowed(roles []string, resource, action string) (bool, error) {
	for _, role := range roles {
		ok, err := p.enforcer.Enforce(role, resource, action)
		if err != nil {
			return false, fmt.Errorf("enforce %s %s/%s: %w", role, resource, action, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Authorize guards a route with the policy.
func (p *Policy) Authorize(resource, action string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ok, err := p.Allowed(RolesFromContext(c.Request().Context()), resource, action)
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "authorization failed").SetInternal(err)
			}
			if !ok {
				return echo.NewHTTPError(http.StatusForbidden,
					fmt.Sprintf("not permitted to %s %s", action, resource))
			}
			return next(c)
		}
	}
}
