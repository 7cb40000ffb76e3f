// Package auth carries the JWT middleware gating the API. Tokens are issued
// by an external identity service sharing the signing secret; this side only
// verifies them and exposes (user id, role) to handlers.
package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/quickquiz/quickquiz/config"
	"github.com/quickquiz/quickquiz/internal/model"
)

const identityKey = "auth.identity"

type Claims struct {
	UserID uint   `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Identity is what handlers read back out of the gin context.
type Identity struct {
	UserID uint
	Role   string
}

type Middleware struct {
	secret []byte
}

func NewMiddleware(cfg *config.Config) *Middleware {
	return &Middleware{secret: []byte(cfg.JWTSecret)}
}

// Authenticate parses the Bearer token and stores the identity on the
// context. Requests without a valid token are rejected with 401.
func (m *Middleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		tokenString := strings.TrimPrefix(header, "Bearer ")

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return m.secret, nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(identityKey, Identity{UserID: claims.UserID, Role: claims.Role})
		c.Next()
	}
}

// RequireRole rejects authenticated requests whose token carries a different
// role.
func (m *Middleware) RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := CurrentUser(c)
		if !ok || identity.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
			return
		}
		c.Next()
	}
}

// CurrentUser reads the identity the Authenticate middleware stored.
func CurrentUser(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return Identity{}, false
	}
	identity, ok := v.(Identity)
	return identity, ok
}

// IssueToken signs a token for the given user. Used by tooling and tests;
// production tokens come from the identity service.
func IssueToken(secret string, userID uint, role string, ttl time.Duration) (string, error) {
	if role != model.RoleTeacher && role != model.RoleStudent {
		return "", fmt.Errorf("unknown role %q", role)
	}
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
