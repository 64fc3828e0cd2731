package main

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/Renarion/AI-for-mock-interview/internal/config"
	"github.com/Renarion/AI-for-mock-interview/internal/database"
	"github.com/Renarion/AI-for-mock-interview/internal/handlers"
	"github.com/Renarion/AI-for-mock-interview/internal/jobs"
	"github.com/Renarion/AI-for-mock-interview/internal/logging"
	"github.com/Renarion/AI-for-mock-interview/internal/middleware"
	"github.com/Renarion/AI-for-mock-interview/internal/services"
	"github.com/Renarion/AI-for-mock-interview/pkg/auth"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/fsnotify/fsnotify"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
)

// sqlPinger adapts the catalog database to the health check
type sqlPinger struct{ db *database.DB }

func (p sqlPinger) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	// Initialize structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting Mock Interview Server...")

	cfg := config.Load()
	log.Printf("📋 Configuration loaded (Port: %s, Environment: %s, LLM: %s)", cfg.Port, cfg.Environment, cfg.LLMProvider)

	if cfg.JWTSecret == "" {
		if cfg.IsProduction() {
			log.Fatal("❌ JWT_SECRET is required in production. Generate with: openssl rand -hex 32")
		}
		cfg.JWTSecret = "dev-insecure-secret"
		log.Println("⚠️  JWT_SECRET not set - using an insecure development secret")
	}
	tokens, err := auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenExpiry, cfg.RefreshTokenExpiry)
	if err != nil {
		log.Fatalf("❌ Failed to initialize token manager: %v", err)
	}

	// Initialize MongoDB (optional - users, payments and the feedback audit trail)
	var mongoDB *database.MongoDB
	if cfg.MongoURI != "" {
		log.Println("🔗 Connecting to MongoDB...")
		mongoDB, err = database.NewMongoDB(cfg.MongoURI)
		if err != nil {
			if cfg.IsProduction() {
				log.Fatalf("❌ Failed to connect to MongoDB: %v", err)
			}
			log.Printf("⚠️ Failed to connect to MongoDB: %v (using in-memory stores)", err)
			mongoDB = nil
		} else {
			defer mongoDB.Close(context.Background())
			if err := mongoDB.Initialize(context.Background()); err != nil {
				log.Printf("⚠️ Failed to initialize MongoDB indexes: %v", err)
			}
		}
	} else {
		log.Println("⚠️ MONGODB_URI not set - accounts and payments are kept in memory")
	}

	// Initialize Redis (optional - webhook dedup and audit stream)
	var redisService *services.RedisService
	if cfg.RedisURL != "" {
		redisService, err = services.NewRedisService(cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️ Failed to connect to Redis: %v (webhook dedup falls back to the payment store)", err)
			redisService = nil
		} else {
			defer redisService.Close()
		}
	} else {
		log.Println("⚠️ REDIS_URL not set - Redis features disabled")
	}

	// Question catalog: SQL database when configured, YAML seed otherwise
	var catalog services.TaskRepository
	var catalogDB *database.DB
	if cfg.DatabaseURL != "" {
		catalogDB, err = database.New(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("❌ Failed to connect to catalog database: %v", err)
		}
		defer catalogDB.Close()

		if err := catalogDB.Initialize(); err != nil {
			log.Fatalf("❌ Failed to initialize catalog database: %v", err)
		}
		sqlRepo := services.NewSQLTaskRepository(catalogDB)
		if err := seedCatalog(context.Background(), sqlRepo, cfg.CatalogSeedPath); err != nil {
			log.Printf("⚠️ Catalog seed skipped: %v", err)
		}
		catalog = sqlRepo
	} else {
		memRepo, err := services.LoadMemoryTaskRepository(cfg.CatalogSeedPath)
		if err != nil {
			log.Printf("⚠️ Failed to load catalog seed: %v (catalog is empty)", err)
			memRepo = services.NewMemoryTaskRepository(nil)
		} else {
			go watchCatalogFile(cfg.CatalogSeedPath, memRepo)
		}
		catalog = memRepo
	}

	// Accounts and payments
	var userStore services.UserStore = services.NewMemoryUserStore()
	var paymentStore services.PaymentStore = services.NewMemoryPaymentStore()
	var auditWriters []services.AuditWriter
	if mongoDB != nil {
		userStore = services.NewMongoUserStore(mongoDB)
		paymentStore = services.NewMongoPaymentStore(mongoDB)
		auditWriters = append(auditWriters, services.NewMongoAuditWriter(mongoDB))
	}
	if redisService != nil {
		auditWriters = append(auditWriters, services.NewRedisAuditWriter(redisService))
	}

	ledger := services.NewEntitlementService(userStore)
	userService := services.NewUserService(userStore, tokens, ledger)
	paymentService := services.NewPaymentService(cfg, userStore, ledger, paymentStore, redisService)

	// Interview core
	sessionStore := services.NewSessionStore(cfg.SessionIdleTTL)
	services.InitMetrics(sessionStore)

	generator := services.NewFeedbackGenerator(cfg)
	feedback := services.NewGuardedFeedback(generator, cfg.FeedbackTimeout, cfg.ReportTimeout, cfg.FeedbackRateLimit, cfg.FeedbackRateBurst)

	var auditSink services.AuditSink
	var auditDispatcher *services.AuditDispatcher
	if len(auditWriters) > 0 {
		auditDispatcher = services.NewAuditDispatcher(1024, auditWriters...)
		auditSink = auditDispatcher
	} else {
		log.Println("⚠️ No audit writers configured - feedback audit trail disabled")
	}

	interviewService := services.NewInterviewService(
		ledger,
		services.NewTaskSelector(catalog, rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))),
		sessionStore,
		feedback,
		services.NewReportAggregator(feedback),
		auditSink,
		cfg.TaskTimeLimitMinutes,
	)
	log.Printf("✅ Interview service initialized (feedback: %s)", generator.Name())

	// Background jobs
	jobScheduler, err := jobs.NewJobScheduler()
	if err != nil {
		log.Fatalf("❌ Failed to create job scheduler: %v", err)
	}
	if err := jobScheduler.Register("session_expiry", jobs.NewSessionExpiryJob(interviewService, cfg.SessionMaxAge, cfg.SessionReaperCron)); err != nil {
		log.Fatalf("❌ Failed to register session expiry job: %v", err)
	}
	jobScheduler.Start()

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Mock Interview v1.0",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.ReportTimeout + 30*time.Second, // finishing waits for the report generator
		IdleTimeout:  120 * time.Second,
		BodyLimit:    1 * 1024 * 1024,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())

	if cfg.MetricsEnabled {
		prometheus := fiberprometheus.New("mock_interview")
		prometheus.RegisterAt(app, "/metrics")
		app.Use(prometheus.Middleware)
		log.Println("📊 Prometheus metrics endpoint enabled at /metrics")
	}

	rateLimitConfig := middleware.LoadRateLimitConfig()
	log.Printf("🛡️  [RATE-LIMIT] Loaded config: Global=%d/min, Auth=%d/15min, Answers=%d/min",
		rateLimitConfig.GlobalAPIMax,
		rateLimitConfig.AuthMax,
		rateLimitConfig.AnswerMax,
	)

	// Fiber's CORS middleware does not allow AllowCredentials with wildcard origins
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization",
		AllowCredentials: cfg.AllowedOrigins != "*",
		// Webhooks come from the payment provider, not a browser
		Next: func(c *fiber.Ctx) bool {
			return strings.HasPrefix(c.Path(), "/api/payments/webhook")
		},
	}))
	log.Printf("🔒 [SECURITY] CORS allowed origins: %s", cfg.AllowedOrigins)

	app.Use("/api", middleware.GlobalAPIRateLimiter(rateLimitConfig))

	// Initialize handlers
	healthDeps := map[string]handlers.Pinger{"mongodb": nil, "redis": nil, "catalog_db": nil}
	if mongoDB != nil {
		healthDeps["mongodb"] = mongoDB
	}
	if redisService != nil {
		healthDeps["redis"] = redisService
	}
	if catalogDB != nil {
		healthDeps["catalog_db"] = sqlPinger{db: catalogDB}
	}
	healthHandler := handlers.NewHealthHandler(sessionStore, healthDeps)
	authHandler := handlers.NewLocalAuthHandler(userService)
	interviewHandler := handlers.NewInterviewHandler(interviewService)
	paymentHandler := handlers.NewPaymentHandler(paymentService)
	webhookHandler := handlers.NewWebhookHandler(paymentService)

	app.Get("/health", healthHandler.Handle)

	api := app.Group("/api")
	requireAuth := middleware.LocalAuthMiddleware(tokens)

	// Authentication
	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", middleware.AuthRateLimiter(rateLimitConfig), authHandler.Register)
	authRoutes.Post("/login", middleware.AuthRateLimiter(rateLimitConfig), authHandler.Login)
	authRoutes.Post("/refresh", middleware.AuthRateLimiter(rateLimitConfig), authHandler.Refresh)
	authRoutes.Get("/me", requireAuth, authHandler.Me)

	// Interview
	interview := api.Group("/interview")
	interview.Get("/specializations", interviewHandler.Specializations)
	interview.Get("/experience-levels", interviewHandler.ExperienceLevels)
	interview.Get("/company-tiers", interviewHandler.CompanyTiers)
	interview.Get("/topics", interviewHandler.Topics)
	interview.Post("/start", requireAuth, interviewHandler.Start)
	interview.Get("/session/:id", requireAuth, interviewHandler.GetSession)
	interview.Get("/session/:id/task", requireAuth, interviewHandler.CurrentTask)
	interview.Post("/session/:id/answer", requireAuth, middleware.AnswerRateLimiter(rateLimitConfig), interviewHandler.SubmitAnswer)
	interview.Post("/session/:id/finish", requireAuth, interviewHandler.Finish)
	interview.Get("/session/:id/report.html", requireAuth, interviewHandler.ReportHTML)

	// Payments
	payments := api.Group("/payments")
	payments.Get("/plans", paymentHandler.ListPlans)
	payments.Post("/checkout", requireAuth, paymentHandler.CreateCheckout)
	payments.Post("/webhook", webhookHandler.HandleDodoWebhook)
	if paymentService.MockEnabled() {
		payments.Post("/mock/:id/complete", requireAuth, paymentHandler.CompleteMockPayment)
		log.Println("🧪 [PAYMENT] Mock checkout completion endpoint enabled")
	}

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("\n🛑 Shutting down server...")

		if err := app.Shutdown(); err != nil {
			log.Printf("⚠️ Error shutting down server: %v", err)
		}

		if err := jobScheduler.Stop(); err != nil {
			log.Printf("⚠️ Error stopping job scheduler: %v", err)
		}

		// Flush pending audit records
		if auditDispatcher != nil {
			auditDispatcher.Close()
		}
	}()

	log.Printf("✅ Server listening on :%s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}

// seedCatalog inserts the YAML seed tasks that are not in the database yet
func seedCatalog(ctx context.Context, repo *services.SQLTaskRepository, path string) error {
	if path == "" {
		return fmt.Errorf("no seed path configured")
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("seed file unavailable: %w", err)
	}

	seed, err := services.LoadMemoryTaskRepository(path)
	if err != nil {
		return err
	}
	tasks, err := seed.QueryTasks(ctx, services.TaskQuery{})
	if err != nil {
		return err
	}

	inserted := 0
	for _, task := range tasks {
		exists, err := repo.QuestionExists(ctx, task.Question)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if task.Source == "" {
			task.Source = filepath.Base(path)
		}
		if _, err := repo.InsertTask(ctx, task); err != nil {
			return err
		}
		inserted++
	}

	log.Printf("📚 [CATALOG] Seeded %d new tasks from %s", inserted, path)
	return nil
}

// watchCatalogFile watches the YAML seed and reloads the in-memory catalog on change
func watchCatalogFile(filePath string, repo *services.MemoryTaskRepository) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("⚠️  Failed to create file watcher: %v", err)
		return
	}
	defer watcher.Close()

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		log.Printf("⚠️  Failed to get absolute path for %s: %v", filePath, err)
		return
	}

	// Watch the directory containing the file (more reliable than watching the file directly)
	dir := filepath.Dir(absPath)
	filename := filepath.Base(absPath)

	if err := watcher.Add(dir); err != nil {
		log.Printf("⚠️  Failed to watch directory %s: %v", dir, err)
		return
	}

	log.Printf("👁️  Watching %s for changes (hot-reload enabled)", filePath)

	// Debounce timer to avoid multiple reloads for rapid file changes
	var debounceTimer *time.Timer
	debounceDuration := 500 * time.Millisecond

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filename {
				continue
			}

			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}

				debounceTimer = time.AfterFunc(debounceDuration, func() {
					log.Printf("🔄 Detected changes in %s, reloading catalog...", filePath)
					if err := repo.ReloadFrom(absPath); err != nil {
						log.Printf("❌ Failed to reload catalog: %v", err)
						return
					}
					log.Printf("✅ Catalog reloaded (%d tasks)", repo.Len())
				})
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("⚠️  File watcher error: %v", err)
		}
	}
}
