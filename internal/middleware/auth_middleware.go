package middleware

import (
	"context"
	"net/http"
	"strings"

	"xianyu-autosell/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

type operatorKey struct{}

// OperatorFromContext returns the authenticated operator, if any.
func OperatorFromContext(ctx context.Context) (string, bool) {
	op, ok := ctx.Value(operatorKey{}).(string)
	return op, ok && op != ""
}

// OperatorAuth requires an HS256 bearer token signed with secret. The token's
// subject names the operator. With an empty secret every request passes.
func OperatorAuth(secret string) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		if len(key) == 0 {
			c.Next()
			return
		}

		token := extractBearer(c)
		if token == "" {
			token = c.Query("token")
		}
		subject, err := parseOperatorToken(token, key)
		if err != nil {
			c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
			c.Abort()
			return
		}

		ctx := context.WithValue(c.Request.Context(), operatorKey{}, subject)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func parseOperatorToken(token string, key []byte) (string, error) {
	if token == "" {
		return "", jwt.ErrTokenMalformed
	}
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return key, nil
	})
	if err != nil {
		return "", err
	}
	if !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return "", jwt.ErrTokenInvalidClaims
	}
	return claims.Subject, nil
}

func extractBearer(c *gin.Context) string {
	value := c.GetHeader("Authorization")
	parts := strings.SplitN(value, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
