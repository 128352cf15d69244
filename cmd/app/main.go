package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	goredis "github.com/redis/go-redis/v9"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"orderflow/cmd"
	httpin "orderflow/internal/adapters/in/http"
	"orderflow/internal/adapters/out/postgres/orderrepo"
)

func main() {
	configs := getConfigs()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	gormDB := mustConnectDB(configs)
	redisClient := goredis.NewClient(&goredis.Options{
		Addr:     configs.RedisAddr,
		Password: configs.RedisPassword,
	})

	root := cmd.NewCompositionRoot(configs, gormDB, redisClient, logger)

	jobManager := root.CreateJobManager(logger)
	if err := jobManager.StartAll(); err != nil {
		log.Fatalf("Failed to start jobs: %v", err)
	}
	defer jobManager.StopAll()

	startWebServer(root.HTTPHandlers(configs), configs.HTTPPort)
}

func mustConnectDB(configs cmd.Config) *gorm.DB {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		configs.DBHost, configs.DBPort, configs.DBUser,
		configs.DBPassword, configs.DBName, configs.DBSslMode)

	gormDB, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	err = gormDB.AutoMigrate(
		&orderrepo.OrderDTO{},
		&orderrepo.StepDTO{},
		&orderrepo.StopDTO{},
		&orderrepo.ActionDTO{},
		&orderrepo.ItemDTO{},
	)
	if err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	return gormDB
}

func getConfigs() cmd.Config {
	return cmd.Config{
		HTTPPort:   goDotEnvVariable("HTTP_PORT"),
		DBHost:     goDotEnvVariable("DB_HOST"),
		DBPort:     goDotEnvVariable("DB_PORT"),
		DBUser:     goDotEnvVariable("DB_USER"),
		DBPassword: goDotEnvVariable("DB_PASSWORD"),
		DBName:     goDotEnvVariable("DB_NAME"),
		DBSslMode:  goDotEnvVariable("DB_SSLMODE"),

		RedisAddr:     goDotEnvVariable("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		GeocoderURL:   goDotEnvVariable("GEOCODER_URL"),
		RouterURL:     goDotEnvVariable("ROUTER_URL"),
		SolverURL:     goDotEnvVariable("SOLVER_URL"),
		ComplianceURL: goDotEnvVariable("COMPLIANCE_URL"),

		SearchRadiusM:   envFloat("DISPATCH_SEARCH_RADIUS_M", 10000),
		ChainingRadiusM: envFloat("DISPATCH_CHAINING_RADIUS_M", 1000),
		ChainingCeiling: envInt("DISPATCH_CHAINING_CEILING", 3),
		OfferTTL:        envDuration("DISPATCH_OFFER_TTL", 3*time.Minute),
		OfferTTLHigh:    envDuration("DISPATCH_OFFER_TTL_HIGH", time.Minute),
		RejectionTTL:    envDuration("DISPATCH_REJECTION_TTL", time.Hour),

		VehicleCapacityKg: envFloat("VEHICLE_CAPACITY_KG", 1000),
		BaseFare:          envFloat("PRICE_BASE_FARE", 3),
		PricePerKm:        envFloat("PRICE_PER_KM", 1),
		PricePerMinute:    envFloat("PRICE_PER_MINUTE", 0.2),
		EstimateSpeedMps:  envFloat("ESTIMATE_SPEED_MPS", 10),

		ArrivalRadiusM: envFloat("ARRIVAL_RADIUS_M", 300),
	}
}

func goDotEnvVariable(key string) string {
	err := godotenv.Load(".env")
	if err != nil {
		log.Fatalf("Error loading .env file")
	}
	return os.Getenv(key)
}

func envFloat(key string, fallback float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Fatalf("Invalid value for %s: %v", key, err)
	}
	return value
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		log.Fatalf("Invalid value for %s: %v", key, err)
	}
	return value
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		log.Fatalf("Invalid value for %s: %v", key, err)
	}
	return value
}

func startWebServer(handlers httpin.Handlers, port string) {
	e := echo.New()
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "Healthy")
	})

	httpin.NewServer(handlers).RegisterRoutes(e)

	e.Logger.Fatal(e.Start(fmt.Sprintf("0.0.0.0:%s", port)))
}
