package middlewares

import (
	"net/http"
	"strings"

	"github.com/fsdevblog/groph-payout/internal/transport/api/tokens"
	"github.com/gin-gonic/gin"
)

// UserIDKey ключ gin контекста, под которым лежит ID авторизованного юзера.
const UserIDKey = "userID"

const bearerPrefix = "Bearer "

// AuthRequired пропускает только запросы с валидным bearer токеном.
func AuthRequired(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenString, ok := strings.CutPrefix(header, bearerPrefix)
		if !ok || tokenString == "" {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		userID, err := tokens.ParseUserID(tokenString, secret)
		if err != nil {
			_ = c.AbortWithError(http.StatusUnauthorized, err).SetType(gin.ErrorTypePrivate)
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}
