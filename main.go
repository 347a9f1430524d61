package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"infrasee/config"
	"infrasee/middleware"
	"infrasee/service"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Set log level
	if lvl, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}
	if cfg.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create service
	svc, err := service.NewService(cfg)
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}

	// Start service
	if err := svc.Start(); err != nil {
		log.Fatalf("Failed to start service: %v", err)
	}

	// Setup HTTP server
	router := setupRouter(svc, cfg)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Infof("Starting HTTP server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop the service
	if err := svc.Stop(); err != nil {
		log.Errorf("Error stopping service: %v", err)
	}

	// Shutdown the HTTP server
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}

func setupRouter(svc *service.Service, cfg *config.Config) *gin.Engine {
	router := gin.Default()

	// Add gzip compression middleware
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	// Add CORS middleware
	router.Use(middleware.CORSMiddleware())

	h := svc.GetHandlers()

	// Root health check, no auth
	router.GET("/health", h.HealthCheck)

	// WebSocket endpoint for workflow event listening. Dashboards attach the
	// token as a query parameter; the gateway strips it before proxying.
	router.GET("/api/v3/listen", h.Listen)

	// API routes
	api := router.Group("/api/v3")
	api.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	{
		api.POST("/reports", h.CreateReport)
		api.GET("/reports", h.ListReports)
		api.GET("/reports/:seq", h.GetReport)
		api.DELETE("/reports/:seq", h.DeleteReport)

		api.POST("/reports/:seq/claim", h.ClaimReport)
		api.POST("/reports/:seq/status", h.SetStatus)
		api.POST("/reports/:seq/approve", h.ApproveResolution)
		api.POST("/reports/:seq/reject", h.RejectResolution)
		api.POST("/reports/:seq/seen", h.MarkSeen)
		api.POST("/reports/:seq/submoderator-seen", h.MarkSubModeratorSeen)
		api.POST("/reports/:seq/hide", h.SetHidden)

		api.GET("/queue", h.ModeratorQueue)
		api.GET("/review-queue", h.ReviewQueue)

		api.GET("/notifications", h.ListNotifications)
		api.POST("/notifications/:seq/read", h.MarkNotificationRead)
		api.POST("/notifications/read-all", h.MarkAllNotificationsRead)
	}

	return router
}
