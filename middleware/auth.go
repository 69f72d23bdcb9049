package middleware

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"

	"github.com/MouadFiali/gke-cloud-project/apperrors"
)

const UserContextKey = "userID"

// AuthMiddleware resolves the caller's user id. A Bearer token is verified
// against secret and its "sub" (or "user_id") claim is used; without a token
// the X-User-ID header set by the gateway is trusted. Requests without a
// user id are rejected with 401.
func AuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")

		if header := c.GetHeader("Authorization"); header != "" {
			tokenString, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				abortUnauthorized(c, errors.New("invalid token format"))
				return
			}
			id, err := userFromToken(tokenString, secret)
			if err != nil {
				abortUnauthorized(c, err)
				return
			}
			userID = id
		}

		if strings.TrimSpace(userID) == "" {
			abortUnauthorized(c, errors.New("missing user id"))
			return
		}
		c.Set(UserContextKey, userID)
		c.Next()
	}
}

func userFromToken(tokenString string, secret []byte) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("JWT secret not configured")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || token == nil || !token.Valid {
		return "", errors.New("invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid token claims")
	}
	for _, key := range []string{"sub", "user_id"} {
		if id, ok := claims[key].(string); ok && id != "" {
			return id, nil
		}
	}
	return "", errors.New("token carries no user id")
}

func abortUnauthorized(c *gin.Context, err error) {
	appErr := apperrors.Wrap(apperrors.ErrUnauthorized, err)
	c.AbortWithStatusJSON(appErr.Code, appErr)
}

// GetUserID returns the user id stored by AuthMiddleware.
func GetUserID(c *gin.Context) (string, error) {
	if val, ok := c.Get(UserContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id, nil
		}
	}
	return "", errors.New("user ID not found in context")
}
