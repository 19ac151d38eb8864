package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"internmatch/internal/handlers"
	"internmatch/internal/mailer"
	"internmatch/internal/middleware"
	"internmatch/internal/models"
	"internmatch/internal/otp"
	"internmatch/internal/repositories"
	"internmatch/internal/resume"
	"internmatch/internal/services"
	"internmatch/internal/storage"
	"internmatch/pkg/rabbitmq"
)

func main() {
	// --- Configuration ---
	viper.SetDefault("APP_PORT", ":8080")
	viper.SetDefault("DATABASE_DRIVER", "sqlite")
	viper.SetDefault("DATABASE_DSN", "internmatch.db")
	viper.SetDefault("JWT_SECRET", "change-me")
	viper.SetDefault("SMTP_HOST", "smtp.gmail.com")
	viper.SetDefault("SMTP_PORT", 465)
	viper.SetDefault("STORAGE_DIR", "uploads")
	viper.AutomaticEnv() // Load environment variables

	// --- Database ---
	var dialector gorm.Dialector
	switch viper.GetString("DATABASE_DRIVER") {
	case "postgres":
		dialector = postgres.Open(viper.GetString("DATABASE_DSN"))
	default:
		dialector = sqlite.Open(viper.GetString("DATABASE_DSN"))
	}
	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	userRepo := repositories.NewGORMUserRepository(db)

	// --- OTP store ---
	// Redis keeps tickets across restarts and process instances; the
	// in-memory store is for single-process deployments.
	var otpStore otp.Store
	if addr := viper.GetString("REDIS_ADDR"); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr})
		otpStore = otp.NewRedisStore(client, otp.DefaultTTL)
		log.Printf("Using Redis OTP store at %s", addr)
	} else {
		memStore := otp.NewMemoryStore(otp.DefaultTTL)
		defer memStore.Close()
		otpStore = memStore
		log.Println("Using in-memory OTP store")
	}

	// --- Mailer ---
	mail := mailer.NewSMTPMailer(mailer.Config{
		Host: viper.GetString("SMTP_HOST"),
		Port: viper.GetInt("SMTP_PORT"),
		User: viper.GetString("SMTP_USER"),
		Pass: viper.GetString("SMTP_PASS"),
	})

	// --- Resume storage ---
	var store storage.ObjectStore
	if bucket := viper.GetString("S3_BUCKET"); bucket != "" {
		s3Store, err := storage.NewS3Store(context.Background(), storage.S3Config{
			Bucket:    bucket,
			AccessKey: viper.GetString("S3_ACCESS_KEY"),
			SecretKey: viper.GetString("S3_SECRET_KEY"),
			Region:    viper.GetString("S3_REGION"),
			Endpoint:  viper.GetString("S3_ENDPOINT"),
		})
		if err != nil {
			log.Fatalf("Failed to initialize S3 storage: %v", err)
		}
		store = s3Store
		log.Printf("Using S3 resume storage (bucket %s)", bucket)
	} else {
		store = storage.NewLocalStore(viper.GetString("STORAGE_DIR"))
		log.Printf("Using local resume storage in %s", viper.GetString("STORAGE_DIR"))
	}

	// --- External OCR field service (optional) ---
	var fieldExtractor services.FieldExtractor
	if ocrURL := viper.GetString("OCR_SERVICE_URL"); ocrURL != "" {
		fieldExtractor = resume.NewOCRClient(ocrURL)
		log.Printf("Using external OCR service at %s", ocrURL)
	}

	// --- Extraction queue (optional) ---
	var mqClient *rabbitmq.Client
	var extractQueue services.ExtractPublisher
	if mqURL := viper.GetString("RABBITMQ_URL"); mqURL != "" {
		mqClient, err = rabbitmq.NewClient(rabbitmq.Config{URL: mqURL})
		if err != nil {
			log.Fatalf("Failed to initialize RabbitMQ client: %v", err)
		}
		defer mqClient.Close()
		extractQueue = mqClient
	}

	// --- Services ---
	authService := services.NewAuthService(userRepo, otpStore, mail,
		viper.GetString("JWT_SECRET"), viper.GetBool("SKIP_EMAIL"))
	profileService := services.NewProfileService(userRepo)
	resumeService := services.NewResumeService(userRepo, store, extractQueue, fieldExtractor)
	recommendationService := services.NewRecommendationService(userRepo, viper.GetString("RECO_SERVICE_URL"))

	// --- Handlers ---
	authHandler := handlers.NewAuthHandler(authService)
	profileHandler := handlers.NewProfileHandler(profileService)
	resumeHandler := handlers.NewResumeHandler(resumeService)
	recommendationHandler := handlers.NewRecommendationHandler(recommendationService)

	// --- Fiber app ---
	app := fiber.New()
	app.Use(logger.New()) // Request logger

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// --- API Routes ---
	auth := middleware.AuthRequired(authService)
	users := app.Group("/api/v1/users")
	authHandler.RegisterRoutes(users, auth)
	profileHandler.RegisterRoutes(users, auth)
	resumeHandler.RegisterRoutes(users, auth)
	recommendationHandler.RegisterRoutes(users, auth)
	// The catch-all profile lookup must be the last route registered.
	profileHandler.RegisterProfileLookup(users, auth)

	// --- Extraction worker ---
	if mqClient != nil {
		log.Println("Starting resume extraction consumer...")
		err := mqClient.ConsumeResumeExtract(func(job rabbitmq.ExtractJob) error {
			_, err := resumeService.Extract(context.Background(), job.UserID, job.ObjectKey, job.Mime, job.Filename)
			return err
		})
		if err != nil {
			log.Printf("Failed to start extraction consumer: %v", err)
		}
	}

	// --- Start HTTP server ---
	appPort := viper.GetString("APP_PORT")
	log.Printf("Starting server on port %s", appPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Listen(appPort); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Printf("Error during Fiber shutdown: %v", err)
	}

	log.Println("Server gracefully stopped")
}
