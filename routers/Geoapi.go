package routers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/GrainArc/GeoEdit/views"
	"github.com/gin-gonic/gin"
)

func FeatureRouters(r *gin.Engine, ctrl *views.FeatureController) {
	collRouter := r.Group("/collections")
	{
		collRouter.GET("", ctrl.ListCollections)
		collRouter.GET("/:collectionId", ctrl.GetCollection)
		collRouter.GET("/:collectionId/schemas/replace", ctrl.GetSchema)
		collRouter.GET("/:collectionId/records", ctrl.ListRecords)
		collRouter.GET("/:collectionId/changes", ctrl.Changes)

		collRouter.GET("/:collectionId/items", ctrl.ListItems)
		collRouter.POST("/:collectionId/items", ctrl.CreateItem)
		collRouter.GET("/:collectionId/items/:featureId", ctrl.GetItem)
		collRouter.PUT("/:collectionId/items/:featureId", ctrl.ReplaceItem)
		collRouter.DELETE("/:collectionId/items/:featureId", ctrl.DeleteItem)
	}
}

// NewEngine 组装中间件与路由
func NewEngine(ctrl *views.FeatureController, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(logger), CORS())
	FeatureRouters(r, ctrl)
	return r
}

// RequestLogger 用 slog 记录每个请求
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(c.Request.Context(), level, "request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"request_id", c.GetHeader(views.HeaderRequestID),
		)
	}
}

// CORS 浏览器端需要读取 ETag 与 Location
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Accept, If-Match, "+views.HeaderRequestID)
		h.Set("Access-Control-Expose-Headers", "ETag, Location")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
