package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/KAsare1/pesb-server/cmd/models"
	"github.com/KAsare1/pesb-server/cmd/utils"
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
m = g(r.sub, p.sub) && keyMatch2(r.obj, p.obj) && r.act == p.act
`

// adminPolicies are the routes only admins may call.
var adminPolicies = [][]string{
	{models.RoleAdmin, "/api/admin/users/:id/role", http.MethodPut},
}

// RoleLookup returns the stored role of a user. The role is read on every
// request rather than trusted from the token, so demotions apply at once.
type RoleLookup func(ctx context.Context, userID uint) (string, error)

type Authorizer struct {
	enforcer *casbin.Enforcer
	roleOf   RoleLookup
}

func NewAuthorizer(roleOf RoleLookup) (*Authorizer, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rbac model: %w", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create enforcer: %w", err)
	}
	if _, err := e.AddPolicies(adminPolicies); err != nil {
		return nil, fmt.Errorf("failed to load policies: %w", err)
	}
	return &Authorizer{enforcer: e, roleOf: roleOf}, nil
}

// Allowed reports whether role may perform method on path.
func (a *Authorizer) Allowed(role, path, method string) (bool, error) {
	return a.enforcer.Enforce(role, path, method)
}

// RequireRole must run after Middleware.RequireAuth.
func (a *Authorizer) RequireRole(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := utils.GetUserIDFromContext(r.Context())
		if err != nil {
			utils.WriteError(w, r, utils.Unauthorized("missing token"))
			return
		}
		role, err := a.roleOf(r.Context(), userID)
		if err != nil {
			utils.WriteError(w, r, err)
			return
		}
		ok, err := a.Allowed(role, r.URL.Path, r.Method)
		if err != nil {
			utils.WriteError(w, r, utils.Storage("authorization failed", err))
			return
		}
		if !ok {
			utils.WriteJSON(w, http.StatusForbidden, map[string]string{"message": "forbidden"})
			return
		}
		next.ServeHTTP(w, r)
	}
}
