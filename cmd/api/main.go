package main

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	config "github.com/jkarani9/bookmed/configs"
	"github.com/jkarani9/bookmed/database"
	"github.com/jkarani9/bookmed/handlers"
	"github.com/jkarani9/bookmed/jobs"
	"github.com/jkarani9/bookmed/middleware"
	"github.com/jkarani9/bookmed/notifications"
	"github.com/jkarani9/bookmed/payments"
	"github.com/jkarani9/bookmed/routes"
	"github.com/jkarani9/bookmed/services"
	"github.com/jkarani9/bookmed/store"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
)

func main() {
	cfg := config.Load()
	database.ConnectDB(cfg)
	database.Migrate()

	var events services.EventPublisher
	publisher, err := notifications.NewPublisher(cfg.AMQPURL, "bookmed.events")
	if err != nil {
		log.Printf("⚠️ Event publisher not available, continuing without notifications: %v", err)
	} else {
		events = publisher
		defer publisher.Close()
	}

	var cache fiber.Handler
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️ Invalid REDIS_URL, continuing without response cache: %v", err)
		} else {
			cache = middleware.ResponseCache(redis.NewClient(opts), cfg.AvailabilityCacheTTL)
		}
	}

	scheduleStore := store.NewScheduleStore(database.DB)
	appointmentStore := store.NewAppointmentStore(database.DB)
	gateway := payments.NewClient(cfg)

	scheduleSvc := services.NewScheduleService(scheduleStore)
	appointmentSvc := services.NewAppointmentService(appointmentStore, gateway, events, cfg.PaymentGracePeriod)
	paymentSvc := services.NewPaymentService(appointmentStore, events)

	// One sweep trigger only; Cancel is idempotent either way.
	c := cron.New()
	if _, err := c.AddJob(cfg.SweepSchedule, jobs.NewExpiryJob(appointmentSvc)); err != nil {
		log.Fatalf("🔥 Failed to schedule expiry sweep: %v", err)
	}
	c.Start()
	defer c.Stop()
	log.Println("✅ Expiry sweep scheduled successfully.")

	app := fiber.New(fiber.Config{
		AppName:       "BookMed",
		CaseSensitive: true,
		StrictRouting: true,
		ReadTimeout:   15 * time.Second,
		WriteTimeout:  15 * time.Second,
		IdleTimeout:   60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}

			log.Printf("[ERROR] %v | Path: %s | Method: %s", err, c.Path(), c.Method())
			return c.Status(code).JSON(fiber.Map{
				"status":  "error",
				"code":    code,
				"message": err.Error(),
			})
		},
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization",
		AllowMethods:  "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		ExposeHeaders: "Content-Length, Authorization",
		MaxAge:        86400,
	}))
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		TimeFormat: "2006-01-02 15:04:05",
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "success",
			"message": "Welcome to BookMed API",
		})
	})

	routes.ScheduleRoutes(app, handlers.NewScheduleHandler(scheduleSvc), cfg.JWTSecret)
	routes.AvailabilityRoutes(app, handlers.NewAvailabilityHandler(scheduleSvc), cfg.JWTSecret, cache)
	routes.AppointmentRoutes(app, handlers.NewAppointmentHandler(appointmentSvc), cfg.JWTSecret)
	routes.PaymentRoutes(app, handlers.NewPaymentHandler(paymentSvc, cfg.GatewayWebhookSecret))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})

	log.Printf("✅ Server is running on port %s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("🔥 Server failed to start: %v", err)
	}
}
