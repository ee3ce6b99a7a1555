// Package router wires the ops API endpoints onto a gin engine.
package router

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/fileflow/ingestd/internal/gateway"
	"github.com/fileflow/ingestd/internal/handler"
	"github.com/fileflow/ingestd/internal/middleware"
	"github.com/fileflow/ingestd/internal/scheduler"
)

// Router holds the configured gin engine.
type Router struct {
	engine *gin.Engine
}

// NewRouter builds the ops API. All endpoints are read-only; the dashboard
// consuming them lives outside this service.
func NewRouter(gw gateway.Gateway, sched *scheduler.Scheduler) *Router {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestLogger())
	engine.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "OPTIONS"},
		AllowHeaders:  []string{"*"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        86400,
	}))

	opsHandler := handler.NewOpsHandler(gw, sched)

	engine.GET("/health", opsHandler.Health)

	api := engine.Group("/api/v1")
	{
		api.GET("/stats", opsHandler.Stats)
		api.GET("/files", opsHandler.ListFiles)
		api.GET("/files/:id", opsHandler.GetFile)
		api.GET("/process-logs", opsHandler.ListProcessLogs)
	}

	return &Router{engine: engine}
}

// Engine returns the underlying gin engine.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}
