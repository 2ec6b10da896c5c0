package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Redis    RedisConfig    `json:"redis"`
	Security SecurityConfig `json:"security"`
	Logging  LoggingConfig  `json:"logging"`
	Email    EmailConfig    `json:"email"`
	SMS      SMSConfig      `json:"sms"`
	Storage  StorageConfig  `json:"storage"`
	Workflow WorkflowConfig `json:"workflow"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	Mode         string        `json:"mode"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
	// AllowedOrigins applies to CORS and websocket upgrades. Empty allows any.
	AllowedOrigins []string `json:"allowed_origins"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	User           string        `json:"user"`
	Password       string        `json:"password"`
	DBName         string        `json:"db_name"`
	SSLMode        string        `json:"ssl_mode"`
	MaxConnections int           `json:"max_connections"`
	MaxIdleConns   int           `json:"max_idle_conns"`
	MaxLifetime    time.Duration `json:"max_lifetime"`
}

// RedisConfig configures the summary cache. An empty URL selects the
// in-process cache.
type RedisConfig struct {
	URL string        `json:"url"`
	TTL time.Duration `json:"ttl"`
}

// SecurityConfig
type SecurityConfig struct {
	JWTSecret string        `json:"jwt_secret"`
	TokenTTL  time.Duration `json:"token_ttl"`
}

// LoggingConfig
type LoggingConfig struct {
	Level       string `json:"level"`
	Development bool   `json:"development"`
}

// EmailConfig selects SMTP or SES delivery. Provider is "smtp", "ses" or
// "log".
type EmailConfig struct {
	Provider    string `json:"provider"`
	SMTPHost    string `json:"smtp_host"`
	SMTPPort    int    `json:"smtp_port"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	FromAddress string `json:"from_address"`
	FromName    string `json:"from_name"`
	SESRegion   string `json:"ses_region"`
}

// SMSConfig enables SNS text messages.
type SMSConfig struct {
	Enabled  bool   `json:"enabled"`
	Region   string `json:"region"`
	SenderID string `json:"sender_id"`
}

// StorageConfig is where exported reports are uploaded.
type StorageConfig struct {
	Bucket string `json:"bucket"`
	Region string `json:"region"`
	Prefix string `json:"prefix"`
	// Endpoint and static keys target S3-compatible stores such as MinIO.
	Endpoint        string `json:"endpoint"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
}

// WorkflowConfig tunes the scheduled jobs and notification routing.
type WorkflowConfig struct {
	SLAHours            map[string]int `json:"sla_hours"`
	TriggerLookback     time.Duration  `json:"trigger_lookback"`
	TriggerLimit        int            `json:"trigger_limit"`
	ReminderDaysOverdue int            `json:"reminder_days_overdue"`
	StaffGroup          string         `json:"staff_group"`
	EscalationGroup     string         `json:"escalation_group"`
	EscalationHours     int            `json:"escalation_hours"`
	SLACron             string         `json:"sla_cron"`
	TriggerCron         string         `json:"trigger_cron"`
	ReminderCron        string         `json:"reminder_cron"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	config := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	overrideWithEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			Mode:         "release",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           5432,
			User:           os.Getenv("USER"),
			DBName:         "rentflow_portal",
			SSLMode:        "disable",
			MaxConnections: 25,
			MaxIdleConns:   5,
			MaxLifetime:    30 * time.Minute,
		},
		Redis:    RedisConfig{TTL: time.Minute},
		Security: SecurityConfig{TokenTTL: 24 * time.Hour},
		Logging:  LoggingConfig{Level: "info"},
		Email: EmailConfig{
			Provider:    "log",
			SMTPPort:    587,
			FromAddress: "noreply@rentflow.local",
			FromName:    "Property Portal",
		},
		Workflow: WorkflowConfig{
			SLAHours: map[string]int{
				"urgent": 2,
				"high":   24,
				"medium": 72,
				"low":    168,
			},
			TriggerLookback:     24 * time.Hour,
			TriggerLimit:        100,
			ReminderDaysOverdue: 0,
			StaffGroup:          "Managers",
			EscalationGroup:     "Managers",
			EscalationHours:     24,
			SLACron:             "0 * * * *",
			TriggerCron:         "*/15 * * * *",
			ReminderCron:        "0 8 * * *",
		},
	}
}

func overrideWithEnv(config *Config) {
	setString(&config.Server.Host, "SERVER_HOST")
	setInt(&config.Server.Port, "SERVER_PORT")
	setString(&config.Server.Mode, "GIN_MODE")
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		config.Server.AllowedOrigins = strings.Split(v, ",")
	}

	setString(&config.Database.Host, "DATABASE_HOST")
	setInt(&config.Database.Port, "DATABASE_PORT")
	setString(&config.Database.User, "DATABASE_USER")
	setString(&config.Database.Password, "DATABASE_PASSWORD")
	setString(&config.Database.DBName, "DATABASE_DBNAME")
	setString(&config.Database.SSLMode, "DATABASE_SSLMODE")

	setString(&config.Redis.URL, "REDIS_URL")
	setString(&config.Security.JWTSecret, "JWT_SECRET")
	setString(&config.Logging.Level, "LOG_LEVEL")
	if v := os.Getenv("LOG_DEVELOPMENT"); v != "" {
		config.Logging.Development, _ = strconv.ParseBool(v)
	}

	setString(&config.Email.Provider, "EMAIL_PROVIDER")
	setString(&config.Email.SMTPHost, "SMTP_HOST")
	setInt(&config.Email.SMTPPort, "SMTP_PORT")
	setString(&config.Email.Username, "SMTP_USERNAME")
	setString(&config.Email.Password, "SMTP_PASSWORD")
	setString(&config.Email.FromAddress, "EMAIL_FROM")
	setString(&config.Email.SESRegion, "SES_REGION")

	if v := os.Getenv("SMS_ENABLED"); v != "" {
		config.SMS.Enabled, _ = strconv.ParseBool(v)
	}
	setString(&config.SMS.Region, "SNS_REGION")
	setString(&config.SMS.SenderID, "SMS_SENDER_ID")

	setString(&config.Storage.Bucket, "REPORTS_BUCKET")
	setString(&config.Storage.Region, "AWS_REGION")
	setString(&config.Storage.Prefix, "REPORTS_PREFIX")
	setString(&config.Storage.Endpoint, "S3_ENDPOINT")
	setString(&config.Storage.AccessKeyID, "S3_ACCESS_KEY_ID")
	setString(&config.Storage.SecretAccessKey, "S3_SECRET_ACCESS_KEY")

	setInt(&config.Workflow.ReminderDaysOverdue, "REMINDER_DAYS_OVERDUE")
	setString(&config.Workflow.StaffGroup, "WORKFLOW_STAFF_GROUP")
	setString(&config.Workflow.EscalationGroup, "WORKFLOW_ESCALATION_GROUP")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Email.Provider) {
	case "", "log":
	case "smtp":
		if c.Email.SMTPHost == "" {
			return fmt.Errorf("email provider smtp requires smtp_host")
		}
	case "ses":
		if c.Email.SESRegion == "" {
			return fmt.Errorf("email provider ses requires ses_region")
		}
	default:
		return fmt.Errorf("unknown email provider %q", c.Email.Provider)
	}
	if c.SMS.Enabled && c.SMS.Region == "" {
		return fmt.Errorf("sms enabled without region")
	}
	for _, p := range []string{"urgent", "high", "medium", "low"} {
		if c.Workflow.SLAHours[p] <= 0 {
			return fmt.Errorf("workflow.sla_hours.%s must be positive", p)
		}
	}
	return nil
}

// SLA returns the SLA window for a priority, defaulting to the medium one.
func (c *WorkflowConfig) SLA(priority string) time.Duration {
	if h, ok := c.SLAHours[priority]; ok && h > 0 {
		return time.Duration(h) * time.Hour
	}
	return time.Duration(c.SLAHours["medium"]) * time.Hour
}

// GetDatabaseURL returns the database connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
