// Package authz holds the role policy that gates every endpoint.
package authz

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/internal/models"
)

const modelText = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && r.obj == p.obj && (r.act == p.act || p.act == "*")
`

// Permission is an object/action pair checked against the caller's role.
type Permission struct {
	Object string
	Action string
}

func (p Permission) String() string {
	return p.Object + ":" + p.Action
}

var (
	OrderCreate        = Permission{"order", "create"}
	OrderListOwn       = Permission{"order", "list-own"}
	OrderListAll       = Permission{"order", "list-all"}
	OrderListAvailable = Permission{"order", "list-available"}
	OrderRead          = Permission{"order", "read"}
	OrderUpdateStatus  = Permission{"order", "update-status"}
	OrderAssign        = Permission{"order", "assign"}
	OrderTake          = Permission{"order", "take"}
	OrderRate          = Permission{"order", "rate"}
	OrderLocation      = Permission{"order", "location"}
	MessageRead        = Permission{"message", "read"}
	MessageSend        = Permission{"message", "send"}
	ProductManage      = Permission{"product", "*"}
	UserManage         = Permission{"user", "*"}
)

var policy = map[models.Role][]Permission{
	models.RoleCustomer: {
		OrderCreate, OrderListOwn, OrderRead, OrderRate,
		MessageRead, MessageSend,
	},
	models.RoleCourier: {
		OrderListOwn, OrderListAvailable, OrderRead, OrderUpdateStatus, OrderTake, OrderLocation,
		MessageRead, MessageSend,
	},
	models.RoleAdmin: {
		OrderListAll, OrderRead, OrderUpdateStatus, OrderAssign,
		MessageRead,
		ProductManage, UserManage,
	},
}

// Enforcer answers whether a role holds a permission.
type Enforcer struct {
	enforcer *casbin.Enforcer
}

func NewEnforcer() (*Enforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("load authz model: %w", err)
	}
	enforcer, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create authz enforcer: %w", err)
	}
	for role, permissions := range policy {
		for _, permission := range permissions {
			if _, err := enforcer.AddPolicy(string(role), permission.Object, permission.Action); err != nil {
				return nil, fmt.Errorf("add policy %s %s: %w", role, permission, err)
			}
		}
	}
	return &Enforcer{enforcer: enforcer}, nil
}

// Allowed reports whether role may use permission. Wildcard policies match
// any concrete action on the same object.
func (e *Enforcer) Allowed(role models.Role, permission Permission) (bool, error) {
	if !role.Valid() {
		return false, nil
	}
	ok, err := e.enforcer.Enforce(string(role), permission.Object, permission.Action)
	if err != nil {
		return false, fmt.Errorf("enforce %s for %s: %w", permission, role, err)
	}
	return ok, nil
}
