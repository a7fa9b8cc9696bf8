package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/trustbank/backend/docs"
	"github.com/trustbank/backend/internal/config"
	"github.com/trustbank/backend/internal/database"
	"github.com/trustbank/backend/internal/handlers"
	"github.com/trustbank/backend/internal/messaging"
	mW "github.com/trustbank/backend/internal/middleware"
	"github.com/trustbank/backend/internal/services"
)

// @title TrustBank Backend API
// @version 1.0
// @description API for account management and OTP-confirmed funds transfers
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env

	viper.SetEnvPrefix("")

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")
	viper.BindEnv("database.migrations_path", "DATABASE_MIGRATIONS_PATH")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")
	viper.BindEnv("redis.pool_size", "REDIS_POOL_SIZE")

	viper.BindEnv("amqp.url", "AMQP_URL")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")
	viper.BindEnv("argon2.time", "ARGON2_TIME")
	viper.BindEnv("argon2.memory", "ARGON2_MEMORY")
	viper.BindEnv("argon2.threads", "ARGON2_THREADS")
	viper.BindEnv("argon2.key_length", "ARGON2_KEY_LENGTH")
	viper.BindEnv("argon2.salt_length", "ARGON2_SALT_LENGTH")

	viper.BindEnv("bank.default_currency", "BANK_DEFAULT_CURRENCY")
	viper.BindEnv("bank.daily_limit", "BANK_DAILY_LIMIT")
	viper.BindEnv("bank.max_daily_transactions", "BANK_MAX_DAILY_TRANSACTIONS")

	viper.SetDefault("jwt.expiry_hours", 24)
	viper.SetDefault("argon2.time", 1)
	viper.SetDefault("argon2.memory", 64*1024)
	viper.SetDefault("argon2.threads", 4)
	viper.SetDefault("argon2.key_length", 32)
	viper.SetDefault("argon2.salt_length", 16)
	viper.SetDefault("bank.default_currency", "USD")
	viper.SetDefault("bank.daily_limit", "5000")
	viper.SetDefault("bank.max_daily_transactions", 10)

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	// Initialize Swagger docs
	docs.SwaggerInfo.Title = "TrustBank Backend API"
	docs.SwaggerInfo.Description = "API for account management and OTP-confirmed funds transfers"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	// Initialize infrastructure
	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	var publisher messaging.Publisher
	if amqpURL := viper.GetString("amqp.url"); amqpURL != "" {
		producer, err := messaging.NewEventProducer(amqpURL)
		if err != nil {
			log.Printf("Warning: RabbitMQ unavailable, notifications degrade to database only: %v", err)
		} else {
			publisher = producer
			defer producer.Close()
		}
	}

	transferConfig := config.LoadTransferConfig()

	// Wire services
	ledgerService := services.NewLedgerService(db)
	notificationService := services.NewNotificationService(db, publisher)
	currencyService := services.NewCurrencyService(redisClient, transferConfig)
	otpService := services.NewOTPService(db, redisClient, ledgerService, notificationService, transferConfig)
	transferService := services.NewTransferService(db, ledgerService, otpService, currencyService, notificationService, transferConfig)
	accountService := services.NewAccountService(db, ledgerService)
	transactionService := services.NewTransactionService(db, ledgerService)
	authService := services.NewAuthService(db, redisClient)
	contactService := services.NewContactService(db, notificationService)
	qrService := services.NewQRService(ledgerService, redisClient)

	transferHandler := handlers.NewTransferHandler(transferService, otpService, ledgerService)
	qrHandler := handlers.NewQRHandler(qrService, ledgerService)

	authMiddleware := mW.NewAuthMiddleware(redisClient)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints (no auth required)
		r.Post("/auth/register", authService.Register)
		r.Post("/auth/login", authService.Login)
		r.Post("/auth/logout", authService.Logout)

		// Protected endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)

			r.Get("/auth/account", authService.GetUserAccount)

			// Account endpoints
			r.Get("/accounts/summary", accountService.GetAccountSummary)
			r.Get("/accounts/name-enquiry", accountService.NameEnquiry)
			r.Get("/accounts/balance-enquiry", accountService.BalanceEnquiry)
			r.Post("/accounts/deposit", accountService.HandleDeposit)
			r.Post("/accounts/withdraw", accountService.HandleWithdraw)
			r.Get("/accounts/statement", transactionService.GetStatement)

			// Transfer endpoints
			r.Post("/transfers/otp", transferHandler.RequestOTP)
			r.Post("/transfers", transferHandler.ExecuteTransfer)

			// Transaction endpoints
			r.Get("/transactions", transactionService.GetTransactionHistory)
			r.Get("/transactions/{txId}", transactionService.GetTransaction)

			// Notifications
			r.Get("/notifications", notificationService.ListNotifications)

			// Support
			r.Post("/contact-admin", contactService.ContactAdmin)

			// QR endpoints
			r.Post("/qr/generate", qrHandler.GenerateQR)
			r.Post("/qr/process", qrHandler.ProcessQR)

			// Admin maintenance
			r.Post("/admin/reset-daily-counters", accountService.ResetDailyCounters)
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Sweep expired and stale consumed OTP codes in the background.
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go func() {
		ticker := time.NewTicker(15 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-cleanupCtx.Done():
				return
			case <-ticker.C:
				if err := otpService.CleanupExpired(cleanupCtx); err != nil {
					log.Printf("[OTP] cleanup failed: %v", err)
				}
			}
		}
	}()

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
