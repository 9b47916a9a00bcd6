package main

import (
	"edumart/config"
	courseControllers "edumart/controllers/course"
	paymentControllers "edumart/controllers/payment"
	"edumart/database"
	"edumart/payments"
	authRoutes "edumart/routers/authRoutes"
	courseRoutes "edumart/routers/courseRoutes"
	paymentRoutes "edumart/routers/paymentRoutes"
	"edumart/services/checkout"
	coursesvc "edumart/services/course"
	"edumart/services/fulfillment"
	"edumart/services/media"
	"edumart/storage"
	"edumart/utils"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

func main() {
	config.LoadConfig()
	database.ConnectDb()

	cfg := config.AppConfig
	db := database.Database.Db

	// External clients
	store := storage.NewHTTPClient(cfg.StorageApiURL, cfg.StorageApiKey, cfg.StorageSecret)
	processor := payments.NewHTTPProcessor(cfg.PaymentApiURL, cfg.PaymentApiKey)

	// Services
	writer := coursesvc.NewWriter(db)
	coordinator := media.NewCoordinator(db, store, cfg.MaxImageUploadBytes, cfg.MaxVideoUploadBytes)
	checkoutService := checkout.NewService(db, processor, cfg.RedirectBaseURL, cfg.Pricing)
	engine := fulfillment.NewEngine(db)

	courseControllers.Setup(coordinator, writer)
	paymentControllers.Setup(checkoutService, engine, processor)

	utils.InitializeReconcileScheduler()

	app := fiber.New(fiber.Config{
		BodyLimit: int(cfg.MaxVideoUploadBytes) + 10*1024*1024, // multipart overhead
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE",        // Allowed HTTP methods
		AllowHeaders: "Content-Type,Authorization,X-Webhook-Signature", // Allowed headers
	}))

	// Enable the built-in logger middleware to log all requests
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${ip} ${method} ${path} ${status} ${latency}\n",
	}))

	authRoutes.SetupAuthRoutes(app)
	courseRoutes.SetupCourseRoutes(app)
	paymentRoutes.SetupPaymentRoutes(app)

	log.Printf("Server is running on port %s", cfg.Port)
	log.Fatal(app.Listen(":" + cfg.Port))
}
