package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultSQLiteDSN is the database location used when CLEANBOOK_SQLITE_DSN
// is unset. Foreign key enforcement is turned on per connection by
// sqlite.Open, not via the DSN.
const DefaultSQLiteDSN = "file:cleanbook.db"

// Config captures environment driven configuration values for the booking service.
type Config struct {
	HTTPPort        int
	SQLiteDSN       string
	ShutdownTimeout time.Duration

	// Bootstrap* seed a first tenant on startup so a fresh deployment
	// has a usable API key. All three are set together or not at all.
	BootstrapBusinessID   string
	BootstrapBusinessName string
	BootstrapAPIKey       string
}

// Load parses configuration values from the current process environment.
// A .env file next to the binary is merged in first when present;
// variables already exported win over file entries.
func Load() (Config, error) {
	// Missing file is the normal case outside local development.
	_ = godotenv.Load()
	return loadFromEnv()
}

func loadFromEnv() (Config, error) {
	cfg := Config{
		HTTPPort:        8080,
		SQLiteDSN:       DefaultSQLiteDSN,
		ShutdownTimeout: 10 * time.Second,
	}

	invalid := make([]string, 0, 2)

	if portValue := strings.TrimSpace(os.Getenv("CLEANBOOK_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "CLEANBOOK_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := strings.TrimSpace(os.Getenv("CLEANBOOK_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if timeoutValue := strings.TrimSpace(os.Getenv("CLEANBOOK_SHUTDOWN_TIMEOUT")); timeoutValue != "" {
		timeout, err := time.ParseDuration(timeoutValue)
		if err != nil || timeout <= 0 {
			invalid = append(invalid, "CLEANBOOK_SHUTDOWN_TIMEOUT")
		} else {
			cfg.ShutdownTimeout = timeout
		}
	}

	cfg.BootstrapBusinessID = strings.TrimSpace(os.Getenv("CLEANBOOK_BOOTSTRAP_BUSINESS_ID"))
	cfg.BootstrapBusinessName = strings.TrimSpace(os.Getenv("CLEANBOOK_BOOTSTRAP_BUSINESS_NAME"))
	cfg.BootstrapAPIKey = strings.TrimSpace(os.Getenv("CLEANBOOK_BOOTSTRAP_API_KEY"))

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}

	if err := validateBootstrap(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// validateBootstrap rejects partially configured bootstrap tenants; a
// business record without an API key would be unreachable.
func validateBootstrap(cfg Config) error {
	set := 0
	for _, v := range []string{cfg.BootstrapBusinessID, cfg.BootstrapBusinessName, cfg.BootstrapAPIKey} {
		if v != "" {
			set++
		}
	}
	if set != 0 && set != 3 {
		return fmt.Errorf("bootstrap tenant requires CLEANBOOK_BOOTSTRAP_BUSINESS_ID, CLEANBOOK_BOOTSTRAP_BUSINESS_NAME and CLEANBOOK_BOOTSTRAP_API_KEY together")
	}
	return nil
}

// BootstrapConfigured reports whether a bootstrap tenant should be
// seeded on startup.
func (c Config) BootstrapConfigured() bool {
	return c.BootstrapBusinessID != ""
}
