package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/closo/backend/internal/config"
	"github.com/closo/backend/internal/database"
	"github.com/closo/backend/internal/handlers"
	"github.com/closo/backend/internal/middleware"
	"github.com/closo/backend/internal/models"
	"github.com/closo/backend/internal/payments"
	"github.com/closo/backend/internal/services"
	"github.com/closo/backend/internal/storage"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Connect to database
	if err := database.Connect(cfg); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	// Run migrations
	if err := models.AutoMigrate(database.DB); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Persist the JWT secret so sessions survive restarts
	cfg.JWTSecret = database.EnsureJWTSecret(cfg.JWTSecret)

	// Seed admin user if not exists
	seedAdminUser()

	// Storage cluster gateway
	selector := storage.NewStaticSelector(cfg.StorageNodesFile)
	gateway := storage.NewGateway(selector, cfg.StorageSecretKey, time.Duration(cfg.StorageTimeoutSecs)*time.Second)

	// Payment provider client and quota ledger
	provider := payments.NewClient(cfg.PaymentAPIKey)
	paymentService := services.NewPaymentService(database.DB, cfg, provider)

	// Start orphan sweep service (reconciles node files against DB references hourly)
	orphanSweepService := services.NewOrphanSweepService(gateway, 1*time.Hour)
	orphanSweepService.Start()

	// Start backup scheduler (nightly pg_dump with optional FTP upload)
	backupSchedulerService := services.NewBackupSchedulerService(cfg)
	backupSchedulerService.Start()

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Closo API v1.0",
		ServerHeader: "Closo",
		BodyLimit:    100 * 1024 * 1024, // 100MB, per-file limits enforced in handlers
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"success": false,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(compress.New())
	app.Use(middleware.Logger())
	app.Use(middleware.CORS())

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": "closo-api",
		})
	})

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(cfg)
	twoFAHandler := handlers.NewTwoFAHandler()
	userHandler := handlers.NewUserHandler(gateway)
	groupHandler := handlers.NewGroupHandler(cfg, gateway)
	memberHandler := handlers.NewMemberHandler()
	postHandler := handlers.NewPostHandler(gateway)
	socialHandler := handlers.NewSocialHandler()
	mediaHandler := handlers.NewMediaHandler(gateway)
	paymentHandler := handlers.NewPaymentHandler(cfg, paymentService)
	storageHandler := handlers.NewStorageHandler(gateway)
	dashboardHandler := handlers.NewDashboardHandler(gateway)
	settingsHandler := handlers.NewSettingsHandler()

	// Public media proxy: the unguessable file id is the capability
	app.Get("/media/proxy/:fileId", mediaHandler.Proxy)

	// API routes
	api := app.Group("/api")

	// Apply rate limiting to API routes (100 requests per minute by default)
	api.Use(middleware.RateLimiter(100, 1*time.Minute))

	// Public routes
	api.Post("/auth/register", authHandler.Register)
	api.Post("/auth/login", authHandler.Login)

	// Payment provider webhook: authenticated by signature, not JWT
	api.Post("/payments/webhook", paymentHandler.Webhook)

	// Protected routes
	protected := api.Group("", middleware.AuthRequired(cfg))

	// Auth routes
	protected.Post("/auth/logout", authHandler.Logout)
	protected.Get("/auth/me", authHandler.Me)
	protected.Post("/auth/refresh", authHandler.RefreshToken)
	protected.Put("/auth/password", authHandler.ChangePassword)

	// 2FA routes
	protected.Get("/auth/2fa/status", twoFAHandler.Status)
	protected.Post("/auth/2fa/setup", twoFAHandler.Setup)
	protected.Post("/auth/2fa/verify", twoFAHandler.Verify)
	protected.Post("/auth/2fa/disable", twoFAHandler.Disable)

	// Profile routes
	protected.Put("/users/me", userHandler.UpdateProfile)
	protected.Post("/users/me/avatar", userHandler.UploadAvatar)

	// Group routes
	groups := protected.Group("/groups")
	groups.Get("/", groupHandler.List)
	groups.Post("/", groupHandler.Create)
	groups.Post("/join", groupHandler.Join)
	groups.Get("/:id", groupHandler.Get)
	groups.Put("/:id", groupHandler.Update)
	groups.Delete("/:id", groupHandler.Delete)
	groups.Post("/:id/image", groupHandler.UploadImage)
	groups.Post("/:id/invite-code", groupHandler.RotateInviteCode)

	// Member routes
	groups.Get("/:id/members", memberHandler.List)
	groups.Put("/:id/members/:memberId", memberHandler.UpdateRole)
	groups.Delete("/:id/members/:memberId", memberHandler.Remove)
	groups.Post("/:id/leave", memberHandler.Leave)

	// Post routes
	groups.Get("/:id/posts", postHandler.List)
	groups.Post("/:id/posts", postHandler.Create)
	groups.Get("/:id/posts/:postId", postHandler.Get)
	groups.Delete("/:id/posts/:postId", postHandler.Delete)

	// Comment and like routes
	groups.Get("/:id/posts/:postId/comments", socialHandler.ListComments)
	groups.Post("/:id/posts/:postId/comments", socialHandler.CreateComment)
	groups.Delete("/:id/posts/:postId/comments/:commentId", socialHandler.DeleteComment)
	groups.Get("/:id/posts/:postId/likes", socialHandler.Likes)
	groups.Post("/:id/posts/:postId/likes", socialHandler.Like)
	groups.Delete("/:id/posts/:postId/likes", socialHandler.Unlike)

	// Group media wall
	groups.Get("/:id/media", mediaHandler.ListGroupMedia)

	// Content moderation routes: platform moderators and admins can take
	// down any post or comment without joining the group
	moderation := protected.Group("/moderation", middleware.ModeratorOrAdmin())
	moderation.Delete("/posts/:postId", postHandler.ModerateDelete)
	moderation.Delete("/comments/:commentId", socialHandler.ModerateDeleteComment)

	// Payment routes
	payRoutes := protected.Group("/payments")
	payRoutes.Post("/intent", paymentHandler.CreateIntent)
	payRoutes.Get("/", paymentHandler.List)
	payRoutes.Get("/:id", paymentHandler.Status)

	// Admin routes
	admin := protected.Group("/admin", middleware.AdminOnly())
	admin.Get("/dashboard", dashboardHandler.Stats)
	admin.Get("/users", dashboardHandler.ListUsers)
	admin.Put("/users/:id/active", dashboardHandler.SetUserActive)
	admin.Get("/storage/health", storageHandler.NodeHealth)
	admin.Get("/storage/files", storageHandler.ListFiles)
	admin.Get("/storage/files/:fileId", storageHandler.FileInfo)
	admin.Delete("/storage/files/:fileId", storageHandler.DeleteFile)
	admin.Get("/settings", settingsHandler.List)
	admin.Put("/settings", settingsHandler.Update)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		orphanSweepService.Stop()
		backupSchedulerService.Stop()
		app.Shutdown()
	}()

	// Start server
	addr := fmt.Sprintf(":%d", cfg.APIPort)
	log.Printf("Starting Closo API server on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func seedAdminUser() {
	var count int64
	database.DB.Model(&models.User{}).Where("role = ?", models.UserRoleAdmin).Count(&count)

	if count == 0 {
		log.Println("Creating default admin user...")

		hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)

		admin := models.User{
			Username: "admin",
			Password: string(hashedPassword),
			Email:    "admin@closo.local",
			Role:     models.UserRoleAdmin,
			IsActive: true,
		}

		if err := database.DB.Create(&admin).Error; err != nil {
			log.Printf("Failed to create admin user: %v", err)
		} else {
			log.Println("Admin user created successfully (username: admin, password: admin123)")
		}
	}
}
