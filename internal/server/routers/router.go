package routers

import (
	"github.com/gin-gonic/gin"

	"vividsync/internal/metrics"
	"vividsync/internal/server/handlers/audit"
	"vividsync/internal/server/handlers/events"
	"vividsync/internal/server/handlers/order"
	"vividsync/internal/server/handlers/sync"
	"vividsync/internal/server/middlewares"
	"vividsync/pkg/logger"
)

// SetupRoutes 配置所有路由，使用 Route Group 分类
func SetupRoutes(
	orderHandler *order.OrderHandler,
	syncHandler *sync.SyncHandler,
	auditHandler *audit.AuditHandler,
	eventsHandler *events.EventsHandler,
	reg *metrics.Registry,
	log logger.Logger,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(middlewares.AccessLog(log))
	r.Use(middlewares.ErrorHandler(log))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "vividsync",
			"message": "Service is running",
		})
	})
	r.GET("/metrics", gin.WrapH(reg.Handler()))

	v1 := r.Group("/api/v1")
	{
		orders := v1.Group("/orders")
		{
			orders.GET("", orderHandler.List)
			orders.GET("/:id", orderHandler.Get)
			orders.POST("/:id/transfer", orderHandler.Transfer)
		}

		syncGroup := v1.Group("/sync")
		{
			syncGroup.POST("", syncHandler.Start)
			syncGroup.GET("/status", syncHandler.Status)
		}

		v1.GET("/transfers", auditHandler.Recent)
		v1.GET("/events", eventsHandler.Stream)
	}

	return r
}
