// api/router.go
package api

import (
	"github.com/devadigapratham/printquote/api/handlers"
	"github.com/devadigapratham/printquote/config"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// SetupRouter sets up the API routes
func SetupRouter(cfg *config.Config, quoter handlers.Quoter, logger zerolog.Logger) *gin.Engine {
	router := gin.New()

	// Create the handler
	handler := handlers.NewHandler(quoter, handlers.Options{
		ServiceName:    cfg.ServiceName,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	// Apply middleware
	router.Use(gin.Recovery())
	router.Use(handlers.LoggerMiddleware(logger))
	router.Use(handlers.CORSMiddleware(cfg.AllowedOrigins))

	// Quote endpoint
	router.POST("/analyse-stl", handler.AnalyseSTL)
	router.OPTIONS("/analyse-stl", func(c *gin.Context) {})

	// Operational endpoints
	router.GET("/status", handler.GetStatus)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}
