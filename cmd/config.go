package cmd

import "time"

// Config carries everything the composition root needs to wire the
// application: connection settings plus the dispatch and pricing tuning.
type Config struct {
	HTTPPort string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string

	RedisAddr     string
	RedisPassword string

	GeocoderURL   string
	RouterURL     string
	SolverURL     string
	ComplianceURL string

	SearchRadiusM   float64
	ChainingRadiusM float64
	ChainingCeiling int
	OfferTTL        time.Duration
	OfferTTLHigh    time.Duration
	RejectionTTL    time.Duration

	VehicleCapacityKg float64
	BaseFare          float64
	PricePerKm        float64
	PricePerMinute    float64
	EstimateSpeedMps  float64

	// ArrivalRadiusM bounds the advisory proximity check on arrival
	// reports; zero disables it.
	ArrivalRadiusM float64
}
