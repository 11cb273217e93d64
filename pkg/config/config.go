// Package config provides configuration management for the job-cost
// reconciliation service. It loads configuration from environment variables
// and .env files.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the application configuration.
type Config struct {
	QBO    QBOConfig
	Ledger LedgerConfig
	Server ServerConfig
	Debug  bool
}

// QBOConfig represents QuickBooks Online API configuration.
type QBOConfig struct {
	ClientID     string
	ClientSecret string
	RealmID      string
	APIURL       string
	TokenURL     string // overrides the OAuth token endpoint when set
	TokenFile    string
	Timeout      time.Duration
}

// LedgerConfig represents internal job-cost ledger configuration.
type LedgerConfig struct {
	DBPath    string
	RulesFile string
}

// ServerConfig represents HTTP server configuration.
type ServerConfig struct {
	Addr   string
	APIKey string
}

// Load loads configuration from environment variables.
// It automatically loads .env file from the current directory if available.
// You can optionally specify a custom .env file path.
func Load(envPath ...string) (*Config, error) {
	if len(envPath) > 0 && envPath[0] != "" {
		if err := godotenv.Load(envPath[0]); err != nil {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	} else {
		// Try to load .env from current directory (ignore error if not found)
		_ = godotenv.Load()
	}

	config := &Config{
		QBO: QBOConfig{
			ClientID:     os.Getenv("QBO_CLIENT_ID"),
			ClientSecret: os.Getenv("QBO_CLIENT_SECRET"),
			RealmID:      os.Getenv("QBO_REALM_ID"),
			APIURL:       getEnvOrDefault("QBO_API_URL", "https://quickbooks.api.intuit.com"),
			TokenURL:     os.Getenv("QBO_TOKEN_URL"),
			TokenFile:    getEnvOrDefault("QBO_TOKEN_FILE", ".config/jobcost-sync/qbo_token.json"),
			Timeout:      30 * time.Second,
		},
		Ledger: LedgerConfig{
			DBPath:    getEnvOrDefault("LEDGER_DB_PATH", "./data/jobcost.db"),
			RulesFile: os.Getenv("CLASSIFY_RULES_FILE"),
		},
		Server: ServerConfig{
			Addr:   getEnvOrDefault("SERVER_ADDR", ":8080"),
			APIKey: os.Getenv("SERVER_API_KEY"),
		},
		Debug: os.Getenv("DEBUG") == "true",
	}

	return config, nil
}

// Validate validates the configuration.
// It checks if all required fields are set.
func (c *Config) Validate(required ...[]string) error {
	var missing []string

	for _, path := range required {
		if len(path) < 2 {
			continue
		}

		var value string
		switch path[0] {
		case "qbo":
			switch path[1] {
			case "clientId":
				value = c.QBO.ClientID
			case "clientSecret":
				value = c.QBO.ClientSecret
			case "realmId":
				value = c.QBO.RealmID
			case "apiUrl":
				value = c.QBO.APIURL
			case "tokenUrl":
				value = c.QBO.TokenURL
			case "tokenFile":
				value = c.QBO.TokenFile
			}
		case "ledger":
			switch path[1] {
			case "dbPath":
				value = c.Ledger.DBPath
			case "rulesFile":
				value = c.Ledger.RulesFile
			}
		case "server":
			switch path[1] {
			case "addr":
				value = c.Server.Addr
			case "apiKey":
				value = c.Server.APIKey
			}
		}

		if value == "" {
			missing = append(missing, joinPath(path))
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %v\nPlease check your .env file or environment variables", missing)
	}

	return nil
}

// getEnvOrDefault returns the value of the environment variable or a default value if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// joinPath joins a path slice into a dot-separated string.
func joinPath(path []string) string {
	result := ""
	for i, p := range path {
		if i > 0 {
			result += "."
		}
		result += p
	}
	return result
}
