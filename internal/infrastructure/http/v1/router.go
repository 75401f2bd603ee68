package v1

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mmalewski/kartotherian/internal/infrastructure/http/v1/handler"
	"github.com/mmalewski/kartotherian/pkg/logger"
	"github.com/mmalewski/kartotherian/pkg/telemetry"
)

func NewRouter(handler *handler.Handler, l logger.Logger, telemetryEnabled bool) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())

	if telemetryEnabled {
		r.Use(telemetry.GinMiddleware("kartotherian-tilestore"))
	}

	r.Use(requestID())
	r.Use(ginZapLogger(l))

	api := r.Group("/api")
	v1 := api.Group("/v1")

	v1.GET("/healthz", handler.Healthz)

	v1.GET("/tile/:z/:x/:y", handler.Tile)
	v1.HEAD("/tile/:z/:x/:y", handler.TileSize)
	v1.PUT("/tile/:z/:x/:y", handler.PutTile)
	v1.DELETE("/tile/:z/:x/:y", handler.DeleteTile)

	v1.GET("/info", handler.Info)
	v1.PUT("/info", handler.PutInfo)

	v1.GET("/tiles", handler.Tiles)
	v1.POST("/tiles", handler.BulkTiles)

	// Prometheus metrics endpoint
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header("X-Request-Id", id)
		c.Next()
	}
}

func ginZapLogger(l logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("logger", l)

		start := time.Now()

		c.Next()

		latency := time.Since(start)

		l.Info("request",
			"status", c.Writer.Status(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"ip", c.ClientIP(),
			"request_id", c.GetString("request_id"),
			"latency", latency,
			"size", c.Writer.Size(),
		)
	}
}
