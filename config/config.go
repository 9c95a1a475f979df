package config

import (
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Port     string
	APIToken string

	PortalURL       string
	UnitURLTemplate string

	MaxConcurrency int
	NavTimeoutSec  int
	NavDelayMs     int
	MaxRetries     int
	Headless       bool

	StorageStatePath string
	ReportsDir       string

	LoginUsername string
	LoginPassword string

	ChromeBin string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		Port:     getEnv("PORT", "8000"),
		APIToken: getEnv("API_TOKEN", "change_me_in_production"),

		PortalURL:       getEnv("PORTAL_URL", ""),
		UnitURLTemplate: getEnv("UNIT_URL_TEMPLATE", ""),

		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 4),
		NavTimeoutSec:  getEnvInt("NAV_TIMEOUT", 30),
		NavDelayMs:     getEnvInt("NAV_DELAY_MS", 500),
		MaxRetries:     getEnvInt("MAX_RETRIES", 2),
		Headless:       getEnvBool("HEADLESS", true),

		StorageStatePath: getEnv("STORAGE_STATE_PATH", "./storage/storage_state.json"),
		ReportsDir:       getEnv("REPORTS_DIR", "./reports"),

		LoginUsername: getEnv("LOGIN_USERNAME", ""),
		LoginPassword: getEnv("LOGIN_PASSWORD", ""),

		ChromeBin: getEnv("CHROME_BIN", ""),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "lave"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "lave123"),
		PostgresDB:       getEnv("POSTGRES_DB", "lave_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
	}
}

// NavTimeout returns the navigation timeout as a duration.
func (c *Config) NavTimeout() time.Duration {
	return time.Duration(c.NavTimeoutSec) * time.Second
}

// NavDelay returns the inter-navigation delay as a duration.
func (c *Config) NavDelay() time.Duration {
	return time.Duration(c.NavDelayMs) * time.Millisecond
}

// UnitURL builds the portal URL for one unit. When the template carries a
// {unit_id} placeholder it is substituted; otherwise the unit is appended to
// the portal URL as a ?unit= query parameter.
func (c *Config) UnitURL(unitID string) string {
	const placeholder = "{unit_id}"
	if c.UnitURLTemplate != "" && strings.Contains(c.UnitURLTemplate, placeholder) {
		return strings.ReplaceAll(c.UnitURLTemplate, placeholder, unitID)
	}
	return c.PortalURL + "?unit=" + url.QueryEscape(unitID)
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}
