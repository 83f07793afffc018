package auth

import (
	"github.com/labstack/echo/v4"

	"github.com/finjan-labs/ms-go-fortunes/app/entity"
)

const principalContextKey = "auth.principal"

// Principal is the caller identity attached to a request. Requests without a
// session token run as the anonymous principal; whether that is acceptable is
// decided per operation, not here.
type Principal struct {
	UserID    string
	Anonymous bool
}

func AnonymousPrincipal() Principal {
	return Principal{UserID: entity.AnonymousOwnerID, Anonymous: true}
}

func SetPrincipal(ctx echo.Context, principal Principal) {
	ctx.Set(principalContextKey, principal)
}

func PrincipalFromContext(ctx echo.Context) Principal {
	if principal, ok := ctx.Get(principalContextKey).(Principal); ok {
		return principal
	}
	return AnonymousPrincipal()
}
