package middleware

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/carelink/pkg/auth"
)

const (
	claimsKey    = "claims"
	requestIDKey = "request_id"
)

// Authenticate validates the bearer access token and stores its claims on the
// context. Browsers cannot set headers on a websocket handshake, so upgrade
// requests may pass the token as ?token= instead.
func Authenticate(jwt *auth.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" && websocket.IsWebSocketUpgrade(c.Request) {
			token = c.Query("token")
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication credentials were not provided"})
			return
		}

		claims, err := jwt.ValidateAccessToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// DeniedRecorder is told about every request refused with 403.
type DeniedRecorder interface {
	Unauthorized(ctx context.Context, actor domain.Actor, path, requestID string)
}

// RequireRoles admits only the listed roles. It must run after Authenticate.
// rec may be nil.
func RequireRoles(rec DeniedRecorder, roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := Claims(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication credentials were not provided"})
			return
		}
		if !slices.Contains(roles, claims.Role) {
			if rec != nil {
				rec.Unauthorized(c.Request.Context(), claims.Actor(c.ClientIP()), c.Request.URL.Path, GetRequestID(c))
			}
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "access denied"})
			return
		}
		c.Next()
	}
}

func Claims(c *gin.Context) (*domain.Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*domain.Claims)
	return claims, ok && claims != nil
}

// Actor is the authenticated caller with the client address attached.
func Actor(c *gin.Context) (domain.Actor, bool) {
	claims, ok := Claims(c)
	if !ok {
		return domain.Actor{}, false
	}
	return claims.Actor(c.ClientIP()), true
}
