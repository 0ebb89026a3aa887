package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/Aidana2201/Connection_Hub/internal/config"
	"github.com/Aidana2201/Connection_Hub/internal/database"
	"github.com/Aidana2201/Connection_Hub/internal/handlers"
	"github.com/Aidana2201/Connection_Hub/internal/realtime"
	"github.com/Aidana2201/Connection_Hub/internal/repository"
	"github.com/Aidana2201/Connection_Hub/internal/services"
	"github.com/Aidana2201/Connection_Hub/pkg/email"
	"github.com/Aidana2201/Connection_Hub/pkg/logger"
	"github.com/Aidana2201/Connection_Hub/pkg/middleware"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

func main() {
	// Load configuration from .env file
	cfg := config.LoadConfig()

	logger.InitLogger(cfg.LogLevel)
	logger.Log.Info("Logger initialized")

	db, err := database.ConnectDB(cfg)
	if err != nil {
		log.Fatalf("Database connection error: %v", err)
	}

	// --- Repositories ---
	userRepo := repository.NewUserRepository(db)
	connectionRepo := repository.NewConnectionRepository(db)
	quotaRepo := repository.NewQuotaRepository(db, cfg.DefaultDailyLimit, cfg.DefaultTotalCredits)
	notificationRepo := repository.NewNotificationRepository(db)

	// --- Realtime ---
	dispatcher := realtime.NewDispatcher()

	// --- Services ---
	mailer := email.NewMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPSender, cfg.SMTPPassword)
	userService := services.NewUserService(userRepo)
	connectionService := services.NewConnectionService(connectionRepo, quotaRepo, notificationRepo, dispatcher, userRepo, mailer)
	notificationService := services.NewNotificationService(notificationRepo)

	// --- Handlers ---
	userHandler := handlers.NewUserHandler(userService, cfg)
	connectionHandler := handlers.NewConnectionHandler(connectionService)
	quotaHandler := handlers.NewQuotaHandler(connectionService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	streamHandler := handlers.NewStreamHandler(dispatcher, cfg.JWTSecret)

	// Initialize Gorilla Mux router
	router := mux.NewRouter()

	// Public user routes
	router.HandleFunc("/users/register", userHandler.RegisterUserHandler).Methods("POST")
	router.HandleFunc("/users/login", userHandler.LoginUserHandler).Methods("POST")

	// Protected user routes
	protectedUserRoutes := router.PathPrefix("/users").Subrouter()
	protectedUserRoutes.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	protectedUserRoutes.HandleFunc("/{id}", userHandler.GetUserHandler).Methods("GET")

	// Connection routes
	connectionRoutes := router.PathPrefix("/connections").Subrouter()
	connectionRoutes.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	connectionRoutes.HandleFunc("", connectionHandler.SendRequestHandler).Methods("POST")
	connectionRoutes.HandleFunc("", connectionHandler.GetConnectionsHandler).Methods("GET")
	connectionRoutes.HandleFunc("/quota", quotaHandler.GetQuotaHandler).Methods("GET")
	connectionRoutes.HandleFunc("/status/{otherUserId}", connectionHandler.GetConnectionStatusHandler).Methods("GET")
	connectionRoutes.HandleFunc("/{id}", connectionHandler.RespondToRequestHandler).Methods("PATCH")
	connectionRoutes.HandleFunc("/{id}", connectionHandler.CancelRequestHandler).Methods("DELETE")

	// Notification routes; the stream authenticates itself via query token
	// because websocket handshakes cannot carry an Authorization header.
	router.HandleFunc("/notifications/stream", streamHandler.NotificationStreamHandler).Methods("GET")

	notificationRoutes := router.PathPrefix("/notifications").Subrouter()
	notificationRoutes.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	notificationRoutes.HandleFunc("", notificationHandler.GetUserNotificationsHandler).Methods("GET")
	notificationRoutes.HandleFunc("/unread-count", notificationHandler.GetUnreadCountHandler).Methods("GET")
	notificationRoutes.HandleFunc("/read-all", notificationHandler.MarkAllAsReadHandler).Methods("PATCH")
	notificationRoutes.HandleFunc("/{id}/read", notificationHandler.MarkAsReadHandler).Methods("PATCH")

	// Admin routes
	adminRoutes := router.PathPrefix("/admin").Subrouter()
	adminRoutes.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	adminRoutes.Use(middleware.RequireRole("admin"))
	adminRoutes.HandleFunc("/quota/{userId}/credits", quotaHandler.GrantCreditsHandler).Methods("POST")
	adminRoutes.HandleFunc("/quota/{userId}/daily-limit", quotaHandler.SetDailyLimitHandler).Methods("PATCH")

	// Apply middleware for logging
	router.Use(middleware.LoggingMiddleware)

	// Start the HTTP server
	port := cfg.Port
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.AllowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	handler := c.Handler(router)

	fmt.Printf("Server running on port %s\n", port)
	log.Fatal(http.ListenAndServe(":"+port, handler))
}
