package identity

import (
	"context"
	"errors"
)

type Role string

const (
	RoleGuest Role = "guest"
	RoleHost  Role = "host"
	RoleAdmin Role = "admin"
)

// Principal is the authenticated caller as asserted by the token issuer.
type Principal struct {
	ID    string
	Roles []Role
}

func (p Principal) HasRole(role Role) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok && p.ID != ""
}

var (
	ErrUnauthenticated = errors.New("identity: caller is not authenticated")
	ErrForbidden       = errors.New("identity: caller is not allowed to perform this action")
)
