package middleware

import (
	"errors"
	"strings"
	"time"

	"dp-canteen-service/internal/apperror"
	"dp-canteen-service/internal/model"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
)

const actorKey = "actor"

// Claims is the identity handed over by the identity provider. The subject is the user id.
type Claims struct {
	Role             model.Role `json:"role"`
	ManagedCanteenID *uint      `json:"managed_canteen_id,omitempty"`
	jwt.RegisteredClaims
}

// Validate is called by the jwt parser after the registered claims are checked.
func (c *Claims) Validate() error {
	if c.Subject == "" {
		return errors.New("token has no subject")
	}
	switch c.Role {
	case model.RoleCustomer, model.RoleManager, model.RoleAdmin:
		return nil
	}
	return errors.New("token has an unknown role")
}

func (c *Claims) Actor() model.Actor {
	return model.Actor{
		UserID:           c.Subject,
		Role:             c.Role,
		ManagedCanteenID: c.ManagedCanteenID,
	}
}

// JWTAuth verifies the HS256 bearer token and stores the caller's model.Actor on the context.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		SigningKey: []byte(secret),
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(Claims)
		},
		SuccessHandler: func(c echo.Context) {
			token := c.Get("user").(*jwt.Token)
			c.Set(actorKey, token.Claims.(*Claims).Actor())
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return apperror.Wrap(apperror.KindUnauthorized, "missing or invalid bearer token", err)
		},
	})
}

// ActorFrom returns the authenticated caller set by JWTAuth.
func ActorFrom(c echo.Context) (model.Actor, error) {
	actor, ok := c.Get(actorKey).(model.Actor)
	if !ok {
		return model.Actor{}, apperror.New(apperror.KindUnauthorized, "not authenticated")
	}
	return actor, nil
}

// RequireRole rejects callers whose role is not listed.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor, err := ActorFrom(c)
			if err != nil {
				return err
			}
			for _, r := range roles {
				if actor.Role == r {
					return next(c)
				}
			}
			names := make([]string, len(roles))
			for i, r := range roles {
				names[i] = string(r)
			}
			return apperror.New(apperror.KindForbidden, "this action needs role "+strings.Join(names, " or "))
		}
	}
}

// SignToken mints a token for actor. The identity provider owns token issuance in production;
// this exists for local tooling and tests.
func SignToken(secret string, actor model.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Role:             actor.Role,
		ManagedCanteenID: actor.ManagedCanteenID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
