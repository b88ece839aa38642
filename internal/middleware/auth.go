package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"

	"rumbo/internal/domain"
)

const (
	contextActorID   = "actorID"
	contextActorRole = "actorRole"
)

// ActorClaims are the JWT claims issued by the identity provider. This
// core only consumes them; token issuance lives elsewhere.
type ActorClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// ParseToken validates an HS256 token and returns its claims.
func ParseToken(secret, tokenString string) (*ActorClaims, error) {
	claims := &ActorClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("token missing user_id")
	}
	return claims, nil
}

// AuthMiddleware extracts the authenticated actor from the bearer token
// and stores it in the request context.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}

		claims, err := ParseToken(secret, parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(contextActorID, claims.UserID)
		c.Set(contextActorRole, claims.Role)
		c.Next()
	}
}

// ActorFrom returns the authenticated actor for the request. Zero-valued
// when the auth middleware did not run.
func ActorFrom(c *gin.Context) domain.Actor {
	return domain.Actor{
		ID:   c.GetString(contextActorID),
		Role: domain.Role(c.GetString(contextActorRole)),
	}
}
