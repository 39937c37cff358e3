package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type Config struct {
	// HTTP Server
	Port string

	// Database
	DataBackend  string
	SQLiteDBPath string
	PostgresURL  string

	// AMQP
	AMQPURL           string
	AMQPExchange      string
	AMQPReminderQueue string

	// Suggestions
	SuggestionURL string

	// Reminder worker
	ReminderCron string

	// Google Sheets export
	SheetsSpreadsheetID   string
	SheetsName            string
	SheetsCredentialsFile string
	ExportCron            string
}

func Load() *Config {
	cfg := &Config{
		Port: getEnv("PORT", "8081"),

		DataBackend:  getEnv("DATA_BACKEND", "sqlite"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/bilancio.db"),
		PostgresURL:  getEnv("POSTGRES_URL", ""),

		AMQPURL:           getEnv("AMQP_URL", ""),
		AMQPExchange:      getEnv("AMQP_EXCHANGE", "bilancio"),
		AMQPReminderQueue: getEnv("AMQP_REMINDER_QUEUE", "habit_reminders"),

		SuggestionURL: getEnv("SUGGESTION_URL", ""),

		ReminderCron: getEnv("REMINDER_CRON", "0 8 * * *"),

		SheetsSpreadsheetID:   getEnv("SHEETS_SPREADSHEET_ID", ""),
		SheetsName:            getEnv("SHEETS_NAME", "Weekly Review"),
		SheetsCredentialsFile: getEnv("SHEETS_CREDENTIALS_FILE", ""),
		ExportCron:            getEnv("EXPORT_CRON", "0 9 * * 1"),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.DataBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	case "postgres":
		if c.PostgresURL == "" {
			errors = append(errors, "POSTGRES_URL is required when using postgres backend")
		} else if parsed, err := url.Parse(c.PostgresURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid postgres URL '%s': %v", c.PostgresURL, err))
		} else if parsed.Scheme != "postgres" && parsed.Scheme != "postgresql" {
			errors = append(errors, fmt.Sprintf("invalid postgres URL scheme '%s': must be 'postgres' or 'postgresql'", parsed.Scheme))
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of [sqlite postgres]", c.DataBackend))
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}

		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPReminderQueue == "" {
			errors = append(errors, "AMQP reminder queue name cannot be empty when AMQP URL is provided")
		}
	}

	// Validate suggestion URL if provided
	if c.SuggestionURL != "" {
		if parsed, err := url.Parse(c.SuggestionURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid suggestion URL '%s': %v", c.SuggestionURL, err))
		} else if parsed.Scheme != "http" && parsed.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid suggestion URL scheme '%s': must be 'http' or 'https'", parsed.Scheme))
		}
	}

	// Validate sheets export configuration if enabled
	if c.SheetsSpreadsheetID != "" {
		if c.SheetsCredentialsFile == "" {
			errors = append(errors, "SHEETS_CREDENTIALS_FILE is required when a spreadsheet id is set")
		} else if _, err := os.Stat(c.SheetsCredentialsFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("sheets credentials file does not exist: %s", c.SheetsCredentialsFile))
		}
		if c.SheetsName == "" {
			errors = append(errors, "SHEETS_NAME cannot be empty when a spreadsheet id is set")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// SheetsExportEnabled reports whether the weekly export has enough
// configuration to run.
func (c *Config) SheetsExportEnabled() bool {
	return c.SheetsSpreadsheetID != "" && c.SheetsCredentialsFile != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
