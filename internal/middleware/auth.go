package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/carelink-api/internal/model"
	"github.com/jwalitptl/carelink-api/pkg/auth"
	"github.com/jwalitptl/carelink-api/pkg/httputil"
)

const contextIdentity = "identity"

// Identity is the authenticated caller.
type Identity struct {
	ID         uuid.UUID
	Role       model.Role
	EntityType model.EntityType
	Email      string
	Name       string
}

type AuthMiddleware struct {
	jwt auth.JWTService
}

func NewAuthMiddleware(jwt auth.JWTService) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt}
}

// Authenticate verifies the bearer token and stores the caller's identity.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			httputil.RespondWithStatus(c, http.StatusUnauthorized, "Authorization token missing")
			return
		}

		identity, err := m.identify(token)
		if err != nil {
			httputil.RespondWithStatus(c, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		c.Set(contextIdentity, identity)
		c.Next()
	}
}

// OptionalAuth stores the identity when a valid token is present and
// otherwise lets the request through anonymously.
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c); ok {
			if identity, err := m.identify(token); err == nil {
				c.Set(contextIdentity, identity)
			}
		}
		c.Next()
	}
}

// RequireRole must run after Authenticate.
func (m *AuthMiddleware) RequireRole(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := GetIdentity(c)
		if !ok {
			httputil.RespondWithStatus(c, http.StatusUnauthorized, "Authorization token missing")
			return
		}
		for _, r := range roles {
			if identity.Role == r {
				c.Next()
				return
			}
		}
		httputil.RespondWithStatus(c, http.StatusForbidden, "Access denied")
	}
}

func (m *AuthMiddleware) identify(token string) (*Identity, error) {
	claims, err := m.jwt.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	id, err := uuid.Parse(claims.ID)
	if err != nil {
		return nil, auth.ErrInvalidToken
	}
	role := model.Role(claims.Role)
	if !role.Valid() {
		return nil, auth.ErrInvalidToken
	}
	return &Identity{
		ID:         id,
		Role:       role,
		EntityType: model.EntityType(claims.EntityType),
		Email:      claims.Email,
		Name:       claims.Name,
	}, nil
}

func bearerToken(c *gin.Context) (string, bool) {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// GetIdentity returns the caller stored by Authenticate or OptionalAuth.
func GetIdentity(c *gin.Context) (*Identity, bool) {
	v, ok := c.Get(contextIdentity)
	if !ok {
		return nil, false
	}
	identity, ok := v.(*Identity)
	return identity, ok
}
