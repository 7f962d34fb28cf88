package api

import (
	"github.com/fsdevblog/groph-payout/internal/transport/api/middlewares"
	"github.com/gin-gonic/gin"
)

// getUserIDFromContext ID юзера, положенный AuthRequired. Вызывается только на авторизованных роутах.
func getUserIDFromContext(c *gin.Context) int64 {
	return c.MustGet(middlewares.UserIDKey).(int64) //nolint:forcetypeassert
}
