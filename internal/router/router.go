package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/nickbanetti/vbs/internal/auth"
	"github.com/nickbanetti/vbs/internal/middleware"
	"github.com/nickbanetti/vbs/internal/scan"
)

// New wires every route group onto a fresh engine.
func New(authHandler *auth.Handler, scanHandler *scan.Handler) *gin.Engine {
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Api-Key"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check route
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// ───────────────────────── AUTH ─────────────────────────
	authGroup := r.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
	}

	// ───────────────────────── SCANS ─────────────────────────
	scans := r.Group("/scans")
	scans.Use(middleware.AuthMiddleware())
	{
		scans.POST("", scanHandler.Upload)
		scans.GET("", scanHandler.ListMine)
		scans.GET("/:id/status", scanHandler.GetStatus)
		scans.POST("/:id/retry", scanHandler.Retry)
		scans.GET("/:id/results", scanHandler.Results)
		scans.GET("/:id/export/grid.csv", scanHandler.ExportGridCSV)
		scans.GET("/:id/export/notes.csv", scanHandler.ExportNotesCSV)
	}

	// Synchronous analysis: nothing persisted, credential per request
	analyze := r.Group("/analyze")
	analyze.Use(middleware.AuthMiddleware())
	{
		analyze.POST("", scanHandler.Analyze)
	}

	// ───────────────────────── ADMIN ─────────────────────────
	admin := r.Group("/admin")
	admin.Use(
		middleware.AuthMiddleware(),
		middleware.RequireRole(auth.RoleAdmin),
	)
	{
		admin.GET("/scans/failed", scanHandler.AdminListFailed)
	}

	return r
}
