package principal

import (
	"context"
	"strings"
)

// Role names recognized by the compliance allow-lists.
const (
	RoleGM         = "gm"
	RoleFC         = "fc"
	RoleCEO        = "ceo"
	RoleAccountant = "accountant"
	RoleSystem     = "system"
)

// Principal identifies the authenticated caller of an operation. Every
// mutating service method receives it explicitly rather than reading
// ambient request state.
type Principal struct {
	ID   string
	Role string
}

func (p Principal) Valid() bool {
	return strings.TrimSpace(p.ID) != "" && strings.TrimSpace(p.Role) != ""
}

// System is the principal attributed to automated side effects such as
// auto-watchlisting.
var System = Principal{ID: "system", Role: RoleSystem}

type contextKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(Principal)
	return p, ok && p.Valid()
}
