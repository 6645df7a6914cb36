package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/patricklo/ipo-allocation-api/internal/allocation"
	"github.com/patricklo/ipo-allocation-api/internal/auth"
	"github.com/patricklo/ipo-allocation-api/internal/database"
	"github.com/patricklo/ipo-allocation-api/internal/execution"
	"github.com/patricklo/ipo-allocation-api/internal/orders"
	"github.com/patricklo/ipo-allocation-api/internal/status"
	"github.com/patricklo/ipo-allocation-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	// Configure pretty logging for development
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main initializes and runs the allocation API server with graceful shutdown
// support. It sets up all required services, database connections and routes.
func main() {
	// Initialize database
	db, err := database.NewDatabase(os.Getenv("DB_PATH"))
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// Initialize router
	router := gin.Default()

	// Initialize services and handlers
	authService := auth.NewService("ipo-allocation-secret-key")
	authHandlers := auth.NewGinHandlers(authService)
	// Register test credentials
	authService.RegisterAPICredentials(auth.TestAPIKey, auth.TestAPISecret)

	statusService := status.NewService(db)

	orderService := orders.NewService(db, statusService)
	orderHandlers := orders.NewGinHandlers(orderService)

	regionalService := allocation.NewRegionalService(db, statusService)
	clientService := allocation.NewClientService(db, statusService)
	allocationHandlers := allocation.NewGinHandlers(regionalService, clientService)

	executionService := execution.NewService(db)
	executionHandlers := execution.NewGinHandlers(executionService)

	// Setup middleware
	router.Use(middleware.RateLimit())

	// Setup API routes
	setupRoutes(router, authHandlers, orderHandlers, allocationHandlers, executionHandlers)

	// Get port from env otherwise it's 8080
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Create server
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers
// It groups routes by functionality and applies appropriate middleware:
// - Auth routes: Public endpoints for authentication
// - Order routes: Protected by JWT authentication
// - Internal routes: Protected by internal network authentication
func setupRoutes(
	router *gin.Engine,
	authHandlers *auth.GinHandlers,
	orderHandlers *orders.GinHandlers,
	allocationHandlers *allocation.GinHandlers,
	executionHandlers *execution.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		auth := v1.Group("/auth")
		{
			auth.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Order workflow routes
		orders := v1.Group("/orders")
		orders.Use(middleware.JWTAuth())
		{
			orders.GET("/collection", orderHandlers.GetCollectionBlotterHandler())
			orders.POST("/group", orderHandlers.GroupOrdersHandler())
			orders.GET("/regional-allocation", allocationHandlers.GetRegionalAllocationOrdersHandler())
			orders.GET("/client-allocation", allocationHandlers.GetPendingClientAllocationsHandler())
			orders.GET("/client-allocation/approvals", allocationHandlers.GetPendingClientApprovalsHandler())

			orders.GET("/:client_order_id", orderHandlers.GetOrderHandler())
			orders.GET("/:client_order_id/audit", orderHandlers.GetAuditTrailHandler())
			orders.POST("/:client_order_id/proceed-regional-allocation", orderHandlers.ProceedToRegionalAllocationHandler())
			orders.POST("/:client_order_id/ungroup", orderHandlers.UngroupOrderHandler())
			orders.POST("/:client_order_id/cancel", orderHandlers.CancelOrderHandler())

			orders.GET("/:client_order_id/regional-allocation", allocationHandlers.GetRegionalAllocationHandler())
			orders.PUT("/:client_order_id/regional-allocation", allocationHandlers.UpsertRegionalAllocationHandler())
			orders.GET("/:client_order_id/regional-allocations", allocationHandlers.GetRegionalBreakdownsHandler())
			orders.POST("/:client_order_id/regional-allocations/submit", allocationHandlers.SubmitRegionalAllocationHandler())
			orders.POST("/:client_order_id/regional-allocations/approve", allocationHandlers.ApproveRegionalAllocationHandler())
			orders.POST("/:client_order_id/regional-allocations/reject", allocationHandlers.RejectRegionalAllocationHandler())

			orders.GET("/:client_order_id/client-allocations", allocationHandlers.GetClientBreakdownsHandler())
			orders.PUT("/:client_order_id/client-allocations", allocationHandlers.SaveClientDraftHandler())
			orders.POST("/:client_order_id/client-allocations/submit", allocationHandlers.SubmitClientAllocationHandler())
			orders.POST("/:client_order_id/client-allocations/approve", allocationHandlers.ApproveClientAllocationHandler())
			orders.POST("/:client_order_id/client-allocations/reject", allocationHandlers.RejectClientAllocationHandler())
		}

		// Internal routes (should be protected by internal network)
		internal := v1.Group("/internal")
		internal.Use(middleware.InternalAuth())
		{
			internal.POST("/execution/:client_order_id", executionHandlers.ExecuteIPOOrderHandler())
			internal.GET("/execution/:client_order_id", executionHandlers.GetExecutionDetailsHandler())
		}
	}
}
