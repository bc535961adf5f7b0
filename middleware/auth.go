package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const userIDKey = "user_id"

// Auth issues and checks HS256 tokens carrying the caller's user id.
type Auth struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

func NewAuth(secret string, ttl time.Duration) *Auth {
	return &Auth{key: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for userID.
func (a *Auth) Issue(userID uint) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		userIDKey: userID,
		"exp":     a.now().Add(a.ttl).Unix(),
	})
	return token.SignedString(a.key)
}

// Parse validates tokenString and returns the user id it was issued for.
func (a *Auth) Parse(tokenString string) (uint, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return a.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return 0, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, jwt.ErrTokenInvalidClaims
	}
	id, ok := claims[userIDKey].(float64)
	if !ok || id <= 0 {
		return 0, jwt.ErrTokenInvalidClaims
	}
	return uint(id), nil
}

func bearer(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return header
}

// Required rejects requests without a valid token.
func (a *Auth) Required() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearer(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		userID, err := a.Parse(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// Optional records the caller when a valid token is present and otherwise
// lets the request through anonymously.
func (a *Auth) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenString := bearer(c); tokenString != "" {
			if userID, err := a.Parse(tokenString); err == nil {
				c.Set(userIDKey, userID)
			}
		}
		c.Next()
	}
}

// AdminOnly must run after Required. isAdmin is asked on every request so
// revoking the flag takes effect immediately.
func AdminOnly(isAdmin func(ctx context.Context, userID uint) (bool, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := UserID(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		admin, err := isAdmin(c.Request.Context(), userID)
		if err != nil || !admin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin only"})
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated caller, if any.
func UserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(userIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}
