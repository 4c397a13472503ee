package main

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/joho/godotenv"

	"github.com/taskerin/taskerin-backend/internal/cache"
	"github.com/taskerin/taskerin-backend/internal/config"
	"github.com/taskerin/taskerin-backend/internal/db"
	"github.com/taskerin/taskerin-backend/internal/handlers"
	"github.com/taskerin/taskerin-backend/internal/middleware"
	"github.com/taskerin/taskerin-backend/internal/models"
	"github.com/taskerin/taskerin-backend/internal/notify"
	"github.com/taskerin/taskerin-backend/internal/realtime"
	"github.com/taskerin/taskerin-backend/internal/services/bid"
	"github.com/taskerin/taskerin-backend/internal/services/task"
	"github.com/taskerin/taskerin-backend/internal/services/trust"
	"github.com/taskerin/taskerin-backend/internal/services/verification"
	"github.com/taskerin/taskerin-backend/internal/services/wallet"
	"github.com/taskerin/taskerin-backend/internal/workers"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	gdb, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatal(err)
	}

	if err := gdb.AutoMigrate(
		&models.User{},
		&models.Task{},
		&models.Bid{},
		&models.Review{},
		&models.EmailVerificationToken{},
		&models.PhoneVerificationCode{},
		&models.DocumentVerification{},
		&models.WalletTransaction{},
	); err != nil {
		log.Fatal(err)
	}

	rdb := realtime.NewRedis(cfg.RedisAddr, cfg.RedisPassword)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Println("Redis unreachable, cache invalidation events disabled:", err)
		rdb = nil
	}
	events := cache.NewPublisher(rdb)

	hub := realtime.NewHub()
	go hub.Run()

	emailSender, smsSender, err := notify.Build(context.Background(), cfg)
	if err != nil {
		log.Fatal(err)
	}

	walletSvc := wallet.NewWalletService(gdb)
	trustSvc := trust.NewTrustService(gdb)
	taskSvc := task.NewTaskService(gdb, walletSvc, events, hub, emailSender)
	bidSvc := bid.NewBidService(gdb, walletSvc, events, hub)
	verifSvc := verification.NewVerificationService(gdb, trustSvc, emailSender, smsSender, cfg.FrontendBaseURL)

	cleanup := workers.NewCleanupWorker(verifSvc, cfg.CleanupSchedule)
	if err := cleanup.Start(); err != nil {
		log.Fatal(err)
	}
	defer cleanup.Stop()

	authH := &handlers.AuthHandler{
		DB:        gdb,
		JWTSecret: cfg.JWTSecret,
		Expires:   cfg.JWTExpiresMin,
	}
	googleH := &handlers.GoogleOAuthHandler{
		DB:              gdb,
		Trust:           trustSvc,
		JWTSecret:       cfg.JWTSecret,
		Expires:         cfg.JWTExpiresMin,
		GoogleClientID:  cfg.GoogleClientID,
		GoogleSecret:    cfg.GoogleSecret,
		GoogleRedirect:  cfg.GoogleRedirect,
		FrontendBaseURL: cfg.FrontendBaseURL,
	}
	taskH := &handlers.TaskHandler{Tasks: taskSvc}
	bidH := &handlers.BidHandler{Bids: bidSvc}
	verifH := &handlers.VerificationHandler{Verification: verifSvc}
	profileH := &handlers.ProfileHandler{DB: gdb, Verification: verifSvc}
	reviewH := &handlers.ReviewHandler{DB: gdb}
	realtimeH := &handlers.RealtimeHandler{Hub: hub, JWTSecret: cfg.JWTSecret}

	app := fiber.New()

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendBaseURL,
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		ExposeHeaders:    "Content-Length",
		AllowCredentials: true,
	}))

	api := app.Group("/api")

	// public
	api.Post("/auth/register", middleware.RateLimiter(10, time.Minute), authH.Register)
	api.Post("/auth/login", middleware.RateLimiter(10, time.Minute), authH.Login)
	api.Post("/auth/logout", authH.Logout)
	api.Get("/auth/google/start", googleH.GoogleStart)
	api.Get("/auth/google/callback", googleH.GoogleCallback)
	api.Get("/verification/email/confirm", verifH.ConfirmEmail)
	api.Get("/tasks", taskH.List)
	api.Get("/tasks/:id", taskH.Get)
	api.Get("/users/:id/reviews", reviewH.ListForTasker)

	// protected (JWT via cookie)
	protected := api.Group("/",
		middleware.JWTFromCookie(cfg.JWTSecret),
		middleware.AttachJWTLocals(),
	)

	protected.Get("/me", profileH.Me)

	protected.Post("/tasks", taskH.Create)
	protected.Get("/tasks/mine/all", taskH.MyTasks)
	protected.Patch("/tasks/:id", taskH.Update)
	protected.Delete("/tasks/:id", taskH.Delete)
	protected.Post("/tasks/:id/assign", taskH.Assign)
	protected.Post("/tasks/:id/transition", taskH.Transition)
	protected.Post("/tasks/:id/complete", taskH.Complete)
	protected.Post("/tasks/:id/cancel", taskH.Cancel)
	protected.Post("/tasks/:id/review", reviewH.Create)

	protected.Post("/tasks/:id/bids", bidH.Place)
	protected.Get("/tasks/:id/bids", bidH.ListForTask)
	protected.Get("/bids/mine", bidH.ListMine)
	protected.Post("/bids/:id/accept", bidH.Accept)
	protected.Post("/bids/:id/reject", bidH.Reject)
	protected.Post("/bids/:id/withdraw", bidH.Withdraw)

	protected.Post("/verification/email/request", verifH.RequestEmail)
	protected.Post("/verification/phone/request", verifH.RequestPhone)
	protected.Post("/verification/phone/confirm", verifH.ConfirmPhone)
	protected.Post("/verification/documents", verifH.SubmitDocument)
	protected.Post("/verification/documents/:id/resolve",
		middleware.RequireRoles(string(models.RoleAdmin)),
		verifH.ResolveDocument,
	)

	app.Get("/ws", websocket.New(realtimeH.WebSocketHandler))

	log.Fatal(app.Listen(":" + cfg.AppPort))
}
