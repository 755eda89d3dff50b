package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/njrgourav11/service-buddy-sub000/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	BackendSQLite = "sqlite"
	BackendMongo  = "mongo"

	IdentityFirebase = "firebase"
	IdentityStatic   = "static"
)

type Config struct {
	App           AppConfig           `yaml:"app"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Backup        BackupConfig        `yaml:"backup"`
	Monitoring    MonitoringConfig    `yaml:"monitoring"`
	Logging       LoggingConfig       `yaml:"logging"`
	API           APIConfig           `yaml:"api"`
	Identity      IdentityConfig      `yaml:"identity"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Catalog       CatalogConfig       `yaml:"catalog"`
	Booking       BookingConfig       `yaml:"booking"`
	Exports       ExportConfig        `yaml:"exports"`
	Google        GoogleConfig        `yaml:"google"`
	Worker        WorkerConfig        `yaml:"worker"`
	// Admins lists identity-provider uids promoted to admin on startup.
	Admins []string `yaml:"admins"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Backend string      `yaml:"backend"`
	Path    string      `yaml:"path"`
	Mongo   MongoConfig `yaml:"mongo"`
}

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	GRPC      APIGRPCConfig      `yaml:"grpc"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIGRPCConfig struct {
	Enabled    bool         `yaml:"enabled"`
	Port       int          `yaml:"port"`
	Reflection bool         `yaml:"reflection"`
	TLS        APITLSConfig `yaml:"tls"`
}

type APITLSConfig struct {
	Enabled           bool   `yaml:"enabled"`
	CertFile          string `yaml:"cert_file"`
	KeyFile           string `yaml:"key_file"`
	ClientCAFile      string `yaml:"client_ca_file"`
	RequireClientCert bool   `yaml:"require_client_cert"`
}

// APIAuthConfig controls the client application keys checked in front of
// the bearer token. Each key identifies a calling app (web, mobile, ops).
type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key  string `yaml:"key"`
	Name string `yaml:"name"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type IdentityConfig struct {
	Provider string         `yaml:"provider"`
	Firebase FirebaseConfig `yaml:"firebase"`
	// StaticTokens maps bearer tokens to uids for local runs and tests.
	StaticTokens    map[string]string `yaml:"static_tokens"`
	CacheTTLSeconds int               `yaml:"cache_ttl_seconds"`
	// AutoProvision creates a customer profile for a verified uid with none.
	AutoProvision bool `yaml:"auto_provision"`
}

type FirebaseConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	ProjectID       string `yaml:"project_id"`
}

type NotificationsConfig struct {
	PushEnabled bool           `yaml:"push_enabled"`
	Telegram    TelegramConfig `yaml:"telegram"`
}

type TelegramConfig struct {
	BotToken     string  `yaml:"bot_token"`
	AdminChatIDs []int64 `yaml:"admin_chat_ids"`
	Debug        bool    `yaml:"debug"`
}

type CatalogConfig struct {
	Path string `yaml:"path"`
}

type BookingConfig struct {
	// DeferredPaymentMethods confirm a booking without capturing money.
	DeferredPaymentMethods []string `yaml:"deferred_payment_methods"`
	ClaimRateLimit         int      `yaml:"claim_rate_limit"`
	ClaimRateWindowSeconds int      `yaml:"claim_rate_window_seconds"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

type GoogleConfig struct {
	GoogleCredentialsFile string `yaml:"credentials_file"`
	BookingSpreadSheetID  string `yaml:"bookings_spreadsheet_id"`
	SheetName             string `yaml:"sheet_name"`
}

type WorkerConfig struct {
	QueueKey       string `yaml:"queue_key"`
	PollInterval   string `yaml:"poll_interval"`
	MaxRetries     int    `yaml:"max_retries"`
	BaseRetryDelay string `yaml:"base_retry_delay"`
}

// Load reads the YAML file at configPath, expanding ${VAR} references from
// the environment and an optional .env file.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Database.Backend {
	case BackendSQLite:
		if c.Database.Path == "" {
			return errors.New("database path is required")
		}
	case BackendMongo:
		if c.Database.Mongo.URI == "" || c.Database.Mongo.Database == "" {
			return errors.New("mongo uri and database are required")
		}
	default:
		return fmt.Errorf("unknown database backend %q", c.Database.Backend)
	}

	switch c.Identity.Provider {
	case IdentityFirebase:
		if c.Identity.Firebase.CredentialsFile == "" && c.Identity.Firebase.ProjectID == "" {
			return errors.New("firebase credentials file or project id is required")
		}
	case IdentityStatic:
		if len(c.Identity.StaticTokens) == 0 {
			return errors.New("static identity provider needs at least one token")
		}
	default:
		return fmt.Errorf("unknown identity provider %q", c.Identity.Provider)
	}

	if c.Catalog.Path == "" {
		return errors.New("catalog path is required")
	}

	if c.API.Auth.Enabled {
		seen := make(map[string]bool)
		for _, k := range c.API.Auth.APIKeys {
			if k.Key == "" {
				return fmt.Errorf("api key %q is empty", k.Name)
			}
			if seen[k.Key] {
				return fmt.Errorf("duplicate api key for client %q", k.Name)
			}
			seen[k.Key] = true
		}
	}
	return nil
}

// IsDeferredPayment reports whether method confirms a booking with payment
// still to be verified.
func (c *Config) IsDeferredPayment(method string) bool {
	method = strings.ToLower(strings.TrimSpace(method))
	for _, m := range c.Booking.DeferredPaymentMethods {
		if strings.ToLower(m) == method {
			return true
		}
	}
	return false
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "service-buddy"
	}
	if c.Database.Backend == "" {
		c.Database.Backend = BackendSQLite
	}
	if c.Identity.Provider == "" {
		c.Identity.Provider = IdentityFirebase
	}
	if c.Identity.CacheTTLSeconds == 0 {
		c.Identity.CacheTTLSeconds = models.DefaultIdentityCacheTTL
	}
	if c.Catalog.Path == "" {
		c.Catalog.Path = "configs/catalog.yaml"
	}
	if len(c.Booking.DeferredPaymentMethods) == 0 {
		c.Booking.DeferredPaymentMethods = []string{models.PaymentMethodCash, models.PaymentMethodPayLater}
	}
	if c.Booking.ClaimRateLimit == 0 {
		c.Booking.ClaimRateLimit = models.ClaimRateLimit
	}
	if c.Booking.ClaimRateWindowSeconds == 0 {
		c.Booking.ClaimRateWindowSeconds = models.ClaimRateWindow
	}
	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.RateLimit.RPS == 0 {
		c.API.RateLimit.RPS = 20
	}
	if c.API.RateLimit.Burst == 0 {
		c.API.RateLimit.Burst = 40
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "backups"
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
	if c.Google.SheetName == "" {
		c.Google.SheetName = "Bookings"
	}
	if c.Worker.QueueKey == "" {
		c.Worker.QueueKey = "sync:bookings"
	}
	if c.Worker.PollInterval == "" {
		c.Worker.PollInterval = "5s"
	}
	if c.Worker.MaxRetries == 0 {
		c.Worker.MaxRetries = 5
	}
	if c.Worker.BaseRetryDelay == "" {
		c.Worker.BaseRetryDelay = "2s"
	}
}
