package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// PlanPricing maps internal subscription plans to the payment
// gateway's price identifiers.
type PlanPricing struct {
	MonthlyPriceID string
	YearlyPriceID  string
}

// Config holds application configuration
type Config struct {
	Port      string
	JWTKey    string
	SaltRound int

	EmailSender string
	Password    string // SMTP Password

	PaymentApiURL   string // Payment gateway base URL
	PaymentApiKey   string // Payment gateway secret key
	WebhookSecret   string // Webhook signing secret
	RedirectBaseURL string // Base URL for checkout success/cancel redirects
	Pricing         PlanPricing

	StorageApiURL string // Object storage base URL
	StorageApiKey string
	StorageSecret string

	MaxImageUploadBytes int64
	MaxVideoUploadBytes int64
}

// AppConfig is a global variable to access configuration
var AppConfig *Config

// LoadConfig initializes configuration from environment variables or defaults
func LoadConfig() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found. Using system environment variables.")
	}

	// Initialize AppConfig with values from environment variables
	AppConfig = &Config{
		Port:      getEnv("PORT", "3000"),
		JWTKey:    getEnv("JWT_SECRET_KEY", "defaultSecret"),
		SaltRound: getEnvInt("SALT_ROUND", 10),

		EmailSender: getEnv("EMAIL_SENDER", "defaultSecret"),
		Password:    getEnv("PASSWORD", "defaultSecret"),

		PaymentApiURL:   getEnv("PAYMENT_API_URL", "https://api.sandbox.credpay.io/v1/"),
		PaymentApiKey:   getEnv("PAYMENT_API_KEY", "defaultSecret"),
		WebhookSecret:   getEnv("PAYMENT_WEBHOOK_SECRET", "defaultSecret"),
		RedirectBaseURL: getEnv("REDIRECT_BASE_URL", "http://localhost:5173"),
		Pricing: PlanPricing{
			MonthlyPriceID: getEnv("PLAN_MONTHLY_PRICE_ID", "price_monthly"),
			YearlyPriceID:  getEnv("PLAN_YEARLY_PRICE_ID", "price_yearly"),
		},

		StorageApiURL: getEnv("STORAGE_API_URL", "https://api.mediavault.io/v1/"),
		StorageApiKey: getEnv("STORAGE_API_KEY", "defaultSecret"),
		StorageSecret: getEnv("STORAGE_SECRET_KEY", "defaultSecret"),

		MaxImageUploadBytes: getEnvInt64("MAX_IMAGE_UPLOAD_BYTES", 5*1024*1024),
		MaxVideoUploadBytes: getEnvInt64("MAX_VIDEO_UPLOAD_BYTES", 100*1024*1024),
	}

	// Validate critical configuration
	if AppConfig.JWTKey == "defaultSecret" {
		log.Println("Warning: Using default JWT_SECRET_KEY. Update it in your environment.")
	}
	if AppConfig.WebhookSecret == "defaultSecret" {
		log.Println("Warning: Using default PAYMENT_WEBHOOK_SECRET. Webhooks will not verify against the live gateway.")
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt retrieves an environment variable as an integer or returns the default integer value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Error converting environment variable %s to int: %v", key, err)
		return defaultValue
	}
	return intValue
}

// getEnvInt64 retrieves an environment variable as int64 or returns the default value
func getEnvInt64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		log.Printf("Error converting environment variable %s to int64: %v", key, err)
		return defaultValue
	}
	return intValue
}
