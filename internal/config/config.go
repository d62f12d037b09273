package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full application configuration, loaded from the environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Cleaning CleaningConfig
	API      APIConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// BoundingBox is the valid geographic region for pickups and dropoffs.
type BoundingBox struct {
	MinLongitude float64
	MaxLongitude float64
	MinLatitude  float64
	MaxLatitude  float64
}

// Contains reports whether the point lies inside the box, edges included.
func (b BoundingBox) Contains(lon, lat float64) bool {
	return lon >= b.MinLongitude && lon <= b.MaxLongitude &&
		lat >= b.MinLatitude && lat <= b.MaxLatitude
}

// CleaningConfig holds the validity rules and derivation thresholds of the
// cleaning pipeline. All of these are deployment calibration, not constants.
type CleaningConfig struct {
	BoundingBox        BoundingBox
	MaxDurationSeconds int
	MaxDistanceMiles   float64
	MaxFareAmount      float64
	MinPassengers      int
	MaxPassengers      int
	MinSpeedKmh        float64
	MaxSpeedKmh        float64
	ExclusionSampleCap int

	// Distance category thresholds in miles: < Short is very_short,
	// [Short, Medium) is short, [Medium, Long) is medium, >= Long is long.
	DistanceShortMiles  float64
	DistanceMediumMiles float64
	DistanceLongMiles   float64
}

type APIConfig struct {
	DefaultPageLimit int
	MaxPageLimit     int
	VendorIDs        []int
}

type LoggingConfig struct {
	Level string
}

// LoadConfig loads configuration from the environment, reading a .env file
// first if one exists.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "taxi_user"),
			Password:        getEnv("DB_PASSWORD", "taxi_pass"),
			Database:        getEnv("DB_NAME", "taxi_trips"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			TTL:      getEnvAsDuration("REDIS_TTL", 60*time.Second),
		},
		Cleaning: CleaningConfig{
			BoundingBox: BoundingBox{
				MinLongitude: getEnvAsFloat("CLEAN_MIN_LONGITUDE", -74.3),
				MaxLongitude: getEnvAsFloat("CLEAN_MAX_LONGITUDE", -73.7),
				MinLatitude:  getEnvAsFloat("CLEAN_MIN_LATITUDE", 40.5),
				MaxLatitude:  getEnvAsFloat("CLEAN_MAX_LATITUDE", 41.0),
			},
			MaxDurationSeconds:  getEnvAsInt("CLEAN_MAX_DURATION_SECONDS", 86400),
			MaxDistanceMiles:    getEnvAsFloat("CLEAN_MAX_DISTANCE_MILES", 100),
			MaxFareAmount:       getEnvAsFloat("CLEAN_MAX_FARE_AMOUNT", 500),
			MinPassengers:       getEnvAsInt("CLEAN_MIN_PASSENGERS", 1),
			MaxPassengers:       getEnvAsInt("CLEAN_MAX_PASSENGERS", 7),
			MinSpeedKmh:         getEnvAsFloat("CLEAN_MIN_SPEED_KMH", 0),
			MaxSpeedKmh:         getEnvAsFloat("CLEAN_MAX_SPEED_KMH", 120),
			ExclusionSampleCap:  getEnvAsInt("CLEAN_EXCLUSION_SAMPLE_CAP", 1000),
			DistanceShortMiles:  getEnvAsFloat("CLEAN_DISTANCE_SHORT_MILES", 1),
			DistanceMediumMiles: getEnvAsFloat("CLEAN_DISTANCE_MEDIUM_MILES", 3),
			DistanceLongMiles:   getEnvAsFloat("CLEAN_DISTANCE_LONG_MILES", 8),
		},
		API: APIConfig{
			DefaultPageLimit: getEnvAsInt("API_DEFAULT_PAGE_LIMIT", 1000),
			MaxPageLimit:     getEnvAsInt("API_MAX_PAGE_LIMIT", 1000),
			VendorIDs:        getEnvAsIntSlice("API_VENDOR_IDS", []int{1, 2}),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	return cfg, nil
}

// Validate checks the configuration before any row is processed.
// Configuration errors are fatal at run start.
func (c *Config) Validate() error {
	box := c.Cleaning.BoundingBox
	if box.MinLongitude >= box.MaxLongitude {
		return fmt.Errorf("invalid bounding box: min longitude %.4f >= max longitude %.4f",
			box.MinLongitude, box.MaxLongitude)
	}
	if box.MinLatitude >= box.MaxLatitude {
		return fmt.Errorf("invalid bounding box: min latitude %.4f >= max latitude %.4f",
			box.MinLatitude, box.MaxLatitude)
	}
	if c.Cleaning.MaxDurationSeconds <= 0 {
		return fmt.Errorf("max duration must be positive, got %d", c.Cleaning.MaxDurationSeconds)
	}
	if c.Cleaning.MaxDistanceMiles <= 0 {
		return fmt.Errorf("max distance must be positive, got %.2f", c.Cleaning.MaxDistanceMiles)
	}
	if c.Cleaning.MaxFareAmount < 0 {
		return fmt.Errorf("max fare must be non-negative, got %.2f", c.Cleaning.MaxFareAmount)
	}
	if c.Cleaning.MinPassengers < 1 || c.Cleaning.MaxPassengers < c.Cleaning.MinPassengers {
		return fmt.Errorf("invalid passenger band [%d,%d]", c.Cleaning.MinPassengers, c.Cleaning.MaxPassengers)
	}
	if c.Cleaning.MinSpeedKmh >= c.Cleaning.MaxSpeedKmh {
		return fmt.Errorf("invalid speed band [%.1f,%.1f]", c.Cleaning.MinSpeedKmh, c.Cleaning.MaxSpeedKmh)
	}
	if c.Cleaning.ExclusionSampleCap <= 0 {
		return fmt.Errorf("exclusion sample cap must be positive, got %d", c.Cleaning.ExclusionSampleCap)
	}
	thresholds := []float64{c.Cleaning.DistanceShortMiles, c.Cleaning.DistanceMediumMiles, c.Cleaning.DistanceLongMiles}
	if !sort.Float64sAreSorted(thresholds) || thresholds[0] <= 0 ||
		thresholds[0] == thresholds[1] || thresholds[1] == thresholds[2] {
		return fmt.Errorf("distance category thresholds must be positive and strictly ascending, got %v", thresholds)
	}
	if c.API.DefaultPageLimit <= 0 || c.API.MaxPageLimit < c.API.DefaultPageLimit {
		return fmt.Errorf("invalid page limits: default %d, max %d", c.API.DefaultPageLimit, c.API.MaxPageLimit)
	}
	if len(c.API.VendorIDs) == 0 {
		return fmt.Errorf("vendor set must not be empty")
	}
	return nil
}

// KnownVendor reports whether id belongs to the configured vendor set.
func (c *Config) KnownVendor(id int) bool {
	for _, v := range c.API.VendorIDs {
		if v == id {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsIntSlice(key string, defaultValue []int) []int {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	var out []int
	for _, part := range strings.Split(raw, ",") {
		value, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return defaultValue
		}
		out = append(out, value)
	}
	return out
}
