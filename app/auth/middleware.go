package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type SessionVerifier struct {
	secret []byte
}

func NewSessionVerifier(secret string) *SessionVerifier {
	return &SessionVerifier{secret: []byte(secret)}
}

// Verify parses an HS256 session token and returns its subject.
func (v *SessionVerifier) Verify(token string) (string, error) {
	if len(v.secret) == 0 {
		return "", errors.New("session secret is not configured")
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	})
	if err != nil {
		return "", err
	}
	if !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return "", errors.New("invalid session token")
	}

	return claims.Subject, nil
}

// Middleware resolves the caller principal from the Authorization header.
// Requests without a token proceed as anonymous; requests with a bad token are
// rejected so an expired session never silently degrades to guest access.
func (v *SessionVerifier) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			header := strings.TrimSpace(ctx.Request().Header.Get(echo.HeaderAuthorization))
			if header == "" {
				SetPrincipal(ctx, AnonymousPrincipal())
				return next(ctx)
			}

			token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
			userID, err := v.Verify(token)
			if err != nil {
				return ctx.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid session token"})
			}

			SetPrincipal(ctx, Principal{UserID: userID})
			return next(ctx)
		}
	}
}
