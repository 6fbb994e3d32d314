package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	contractx "github.com/kmaneesh/Corporate-Travel-Approval-Agent/agent/contract"
)

const identityContextKey = "identity"

// Claims is the bearer token payload. The role claim is validated
// against the known role set before any handler runs.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// AuthMiddleware validates an HS256 bearer token and stores the
// caller's identity on the request context.
func AuthMiddleware(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, err := identityFromRequest(c, secret)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, errorBody(contractx.CodeAuthorization, err.Error()))
			}
			c.Set(identityContextKey, id)
			return next(c)
		}
	}
}

func identityFromRequest(c echo.Context, secret []byte) (contractx.Identity, error) {
	header := strings.TrimSpace(c.Request().Header.Get(echo.HeaderAuthorization))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return contractx.Identity{}, errors.New("missing bearer token")
	}
	raw := strings.TrimSpace(strings.TrimPrefix(header, prefix))

	var claims Claims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return contractx.Identity{}, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return contractx.Identity{}, errors.New("invalid token")
	}
	if strings.TrimSpace(claims.UserID) == "" {
		return contractx.Identity{}, errors.New("token has no user_id claim")
	}
	role, err := contractx.ParseRole(claims.Role)
	if err != nil {
		return contractx.Identity{}, fmt.Errorf("token role %q is not recognized", claims.Role)
	}

	return contractx.Identity{
		UserID: claims.UserID,
		Role:   role,
		Name:   claims.Name,
		Email:  claims.Email,
	}, nil
}

func identity(c echo.Context) (contractx.Identity, bool) {
	id, ok := c.Get(identityContextKey).(contractx.Identity)
	return id, ok
}
