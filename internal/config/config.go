package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mantonx/medialibrary/internal/logger"
	"gopkg.in/yaml.v3"
)

// Config holds the complete application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `yaml:"server" json:"server"`

	// Database configuration
	Database DatabaseConfig `yaml:"database" json:"database"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Security configuration
	Security SecurityConfig `yaml:"security" json:"security"`

	// External feed import configuration
	Import ImportConfig `yaml:"import" json:"import"`

	// Outgoing mail configuration
	Mail MailConfig `yaml:"mail" json:"mail"`

	// Metrics configuration
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Module toggles
	Modules ModulesConfig `yaml:"modules" json:"modules"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Host           string        `yaml:"host" json:"host" env:"MEDIALIB_HOST" default:"0.0.0.0"`
	Port           int           `yaml:"port" json:"port" env:"MEDIALIB_PORT" default:"8080"`
	PublicURL      string        `yaml:"public_url" json:"public_url" env:"MEDIALIB_PUBLIC_URL"`
	ReadTimeout    time.Duration `yaml:"read_timeout" json:"read_timeout" env:"MEDIALIB_READ_TIMEOUT" default:"30s"`
	WriteTimeout   time.Duration `yaml:"write_timeout" json:"write_timeout" env:"MEDIALIB_WRITE_TIMEOUT" default:"30s"`
	MaxHeaderBytes int           `yaml:"max_header_bytes" json:"max_header_bytes" env:"MEDIALIB_MAX_HEADER_BYTES" default:"1048576"`
	EnableCORS     bool          `yaml:"enable_cors" json:"enable_cors" env:"MEDIALIB_ENABLE_CORS" default:"true"`
	TrustedProxies []string      `yaml:"trusted_proxies" json:"trusted_proxies" env:"MEDIALIB_TRUSTED_PROXIES"`
	ReleaseMode    bool          `yaml:"release_mode" json:"release_mode" env:"MEDIALIB_RELEASE_MODE" default:"false"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Type            string        `yaml:"type" json:"type" env:"DATABASE_TYPE" default:"sqlite"`
	Host            string        `yaml:"host" json:"host" env:"POSTGRES_HOST" default:"localhost"`
	Port            int           `yaml:"port" json:"port" env:"POSTGRES_PORT" default:"5432"`
	Username        string        `yaml:"username" json:"username" env:"POSTGRES_USER" default:"medialibrary"`
	Password        string        `yaml:"password" json:"-" env:"POSTGRES_PASSWORD"`
	Database        string        `yaml:"database" json:"database" env:"POSTGRES_DB" default:"medialibrary"`
	SSLMode         string        `yaml:"ssl_mode" json:"ssl_mode" env:"POSTGRES_SSLMODE" default:"disable"`
	DataDir         string        `yaml:"data_dir" json:"data_dir" env:"MEDIALIB_DATA_DIR" default:"./data"`
	DatabasePath    string        `yaml:"database_path" json:"database_path" env:"MEDIALIB_DATABASE_PATH"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns" env:"DB_MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns" env:"DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME" default:"1h"`
	LogQueries      bool          `yaml:"log_queries" json:"log_queries" env:"DB_LOG_QUERIES" default:"false"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level" env:"MEDIALIB_LOG_LEVEL" default:"info"`
	Format string `yaml:"format" json:"format" env:"MEDIALIB_LOG_FORMAT" default:"text"`
}

// SecurityConfig holds authentication configuration
type SecurityConfig struct {
	JWTSecret          string        `yaml:"jwt_secret" json:"-" env:"MEDIALIB_JWT_SECRET"`
	JWTIssuer          string        `yaml:"jwt_issuer" json:"jwt_issuer" env:"MEDIALIB_JWT_ISSUER" default:"medialibrary"`
	JWTExpiration      time.Duration `yaml:"jwt_expiration" json:"jwt_expiration" env:"MEDIALIB_JWT_EXPIRATION" default:"24h"`
	BcryptCost         int           `yaml:"bcrypt_cost" json:"bcrypt_cost" env:"MEDIALIB_BCRYPT_COST" default:"10"`
	ResetTokenTTL      time.Duration `yaml:"reset_token_ttl" json:"reset_token_ttl" env:"MEDIALIB_RESET_TOKEN_TTL" default:"10m"`
	ResetRequestWindow time.Duration `yaml:"reset_request_window" json:"reset_request_window" env:"MEDIALIB_RESET_WINDOW" default:"1m"`
}

// ImportConfig holds the external feed import configuration
type ImportConfig struct {
	Enabled      bool          `yaml:"enabled" json:"enabled" env:"MEDIALIB_IMPORT_ENABLED" default:"true"`
	BaseURL      string        `yaml:"base_url" json:"base_url" env:"MEDIALIB_IMPORT_BASE_URL" default:"https://datasets.imdbws.com"`
	TitleType    string        `yaml:"title_type" json:"title_type" env:"MEDIALIB_IMPORT_TITLE_TYPE" default:"movie"`
	Limit        int           `yaml:"limit" json:"limit" env:"MEDIALIB_IMPORT_LIMIT" default:"1000"`
	Interval     time.Duration `yaml:"interval" json:"interval" env:"MEDIALIB_IMPORT_INTERVAL" default:"24h"`
	RunOnStart   bool          `yaml:"run_on_start" json:"run_on_start" env:"MEDIALIB_IMPORT_RUN_ON_START" default:"false"`
	HTTPTimeout  time.Duration `yaml:"http_timeout" json:"http_timeout" env:"MEDIALIB_IMPORT_HTTP_TIMEOUT" default:"30m"`
	BatchSize    int           `yaml:"batch_size" json:"batch_size" env:"MEDIALIB_IMPORT_BATCH_SIZE" default:"200"`
	UpdateFields []string      `yaml:"update_fields" json:"update_fields" env:"MEDIALIB_IMPORT_UPDATE_FIELDS"`
}

// MailConfig holds SMTP configuration. An empty host logs messages instead of sending them.
type MailConfig struct {
	Host     string `yaml:"host" json:"host" env:"MEDIALIB_SMTP_HOST"`
	Port     int    `yaml:"port" json:"port" env:"MEDIALIB_SMTP_PORT" default:"587"`
	Username string `yaml:"username" json:"username" env:"MEDIALIB_SMTP_USER"`
	Password string `yaml:"password" json:"-" env:"MEDIALIB_SMTP_PASSWORD"`
	From     string `yaml:"from" json:"from" env:"MEDIALIB_SMTP_FROM" default:"noreply@medialibrary.local"`
	UseTLS   bool   `yaml:"use_tls" json:"use_tls" env:"MEDIALIB_SMTP_TLS" default:"true"`
}

// MetricsConfig holds Prometheus exporter configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled" env:"MEDIALIB_METRICS_ENABLED" default:"true"`
	Path    string `yaml:"path" json:"path" env:"MEDIALIB_METRICS_PATH" default:"/metrics"`
}

// ModulesConfig lists modules disabled at startup
type ModulesConfig struct {
	Disabled []string `yaml:"disabled" json:"disabled" env:"MEDIALIB_DISABLED_MODULES"`
}

// DefaultUpdateFields are the movie columns refreshed when an imported record already exists
var DefaultUpdateFields = []string{"title", "duration"}

// AllowedUpdateFields are the movie columns the importer knows how to refresh
var AllowedUpdateFields = map[string]bool{
	"title":        true,
	"duration":     true,
	"release_date": true,
}

// ConfigWatcher is called when configuration changes
type ConfigWatcher func(oldConfig, newConfig *Config)

// ConfigManager manages application configuration with hot-reload support
type ConfigManager struct {
	config     *Config
	configPath string
	watchers   []ConfigWatcher
	mu         sync.RWMutex
}

var (
	globalManager *ConfigManager
	managerOnce   sync.Once
)

// GetConfigManager returns the process-wide configuration manager
func GetConfigManager() *ConfigManager {
	managerOnce.Do(func() {
		globalManager = NewConfigManager()
	})
	return globalManager
}

// NewConfigManager creates a manager holding the default configuration
func NewConfigManager() *ConfigManager {
	return &ConfigManager{
		config:   DefaultConfig(),
		watchers: make([]ConfigWatcher, 0),
	}
}

// DefaultConfig returns the configuration built from the default tags only
func DefaultConfig() *Config {
	cfg := &Config{}
	// Defaults are literal tag values; a failure here is a programming error.
	if err := applyDefaults(reflect.ValueOf(cfg).Elem()); err != nil {
		panic(fmt.Sprintf("invalid default configuration: %v", err))
	}
	cfg.Import.UpdateFields = append([]string(nil), DefaultUpdateFields...)
	return cfg
}

// LoadConfig loads configuration from file and environment variables
func (cm *ConfigManager) LoadConfig(configPath string) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	oldConfig := *cm.config
	cm.configPath = configPath

	// Start with default configuration
	newConfig := DefaultConfig()

	// Load from file if it exists
	if configPath != "" && fileExists(configPath) {
		if err := cm.loadFromFile(configPath, newConfig); err != nil {
			return fmt.Errorf("failed to load config from file: %w", err)
		}
		logger.Info("Configuration loaded from file", "path", configPath)
	}

	// Override with environment variables
	if err := cm.loadFromEnv(newConfig); err != nil {
		return fmt.Errorf("failed to load config from environment: %w", err)
	}

	if err := cm.validateConfig(newConfig); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	cm.applyDerivedConfig(newConfig)

	cm.config = newConfig

	// Notify watchers of config change
	for _, watcher := range cm.watchers {
		go watcher(&oldConfig, newConfig)
	}

	return nil
}

// GetConfig returns the current configuration (thread-safe)
func (cm *ConfigManager) GetConfig() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	// Return a copy to prevent external modifications
	configCopy := *cm.config
	configCopy.Import.UpdateFields = append([]string(nil), cm.config.Import.UpdateFields...)
	return &configCopy
}

// ConfigPath returns the file the configuration was loaded from
func (cm *ConfigManager) ConfigPath() string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.configPath
}

// AddWatcher adds a configuration change watcher
func (cm *ConfigManager) AddWatcher(watcher ConfigWatcher) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.watchers = append(cm.watchers, watcher)
}

// Helper methods

func (cm *ConfigManager) loadFromFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, config)
	case ".json":
		return json.Unmarshal(data, config)
	default:
		return fmt.Errorf("unsupported config file format: %s", ext)
	}
}

func (cm *ConfigManager) loadFromEnv(config *Config) error {
	return loadStructFromEnv(reflect.ValueOf(config).Elem())
}

// loadStructFromEnv overrides fields whose env variable is set
func loadStructFromEnv(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.CanSet() {
			continue
		}

		if field.Kind() == reflect.Struct {
			if err := loadStructFromEnv(field); err != nil {
				return err
			}
			continue
		}

		envTag := fieldType.Tag.Get("env")
		if envTag == "" {
			continue
		}

		envValue, ok := os.LookupEnv(envTag)
		if !ok || envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set field %s from %s: %w", fieldType.Name, envTag, err)
		}
	}

	return nil
}

// applyDefaults sets every field that carries a default tag
func applyDefaults(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if field.Kind() == reflect.Struct {
			if err := applyDefaults(field); err != nil {
				return err
			}
			continue
		}

		defaultTag := fieldType.Tag.Get("default")
		if defaultTag == "" {
			continue
		}

		if err := setFieldValue(field, defaultTag); err != nil {
			return fmt.Errorf("failed to set default for %s: %w", fieldType.Name, err)
		}
	}

	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			duration, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(duration))
		} else {
			intVal, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(intVal)
		}
	case reflect.Float32, reflect.Float64:
		floatVal, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(floatVal)
	case reflect.Bool:
		boolVal, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(boolVal)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %v", field.Type())
		}
		values := strings.Split(value, ",")
		for i, v := range values {
			values[i] = strings.TrimSpace(v)
		}
		field.Set(reflect.ValueOf(values))
	default:
		return fmt.Errorf("unsupported field type: %v", field.Kind())
	}

	return nil
}

func (cm *ConfigManager) validateConfig(config *Config) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Database.Type != "sqlite" && config.Database.Type != "postgres" {
		return fmt.Errorf("unsupported database type: %s", config.Database.Type)
	}

	if config.Import.Limit <= 0 {
		return fmt.Errorf("invalid import limit: %d", config.Import.Limit)
	}

	if config.Import.Interval <= 0 {
		return fmt.Errorf("invalid import interval: %s", config.Import.Interval)
	}

	for _, field := range config.Import.UpdateFields {
		if !AllowedUpdateFields[field] {
			return fmt.Errorf("unsupported import update field: %s", field)
		}
	}

	if config.Security.BcryptCost < 4 || config.Security.BcryptCost > 31 {
		return fmt.Errorf("invalid bcrypt cost: %d", config.Security.BcryptCost)
	}

	return nil
}

func (cm *ConfigManager) applyDerivedConfig(config *Config) {
	if config.Database.DatabasePath == "" && config.Database.Type == "sqlite" {
		config.Database.DatabasePath = filepath.Join(config.Database.DataDir, "medialibrary.db")
	}

	if config.Server.PublicURL == "" {
		host := config.Server.Host
		if host == "0.0.0.0" || host == "" {
			host = "localhost"
		}
		config.Server.PublicURL = fmt.Sprintf("http://%s:%d", host, config.Server.Port)
	}
	config.Server.PublicURL = strings.TrimRight(config.Server.PublicURL, "/")

	if len(config.Import.UpdateFields) == 0 {
		config.Import.UpdateFields = append([]string(nil), DefaultUpdateFields...)
	}

	if config.Import.BatchSize <= 0 {
		config.Import.BatchSize = 200
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Global convenience functions

// Get returns the current global configuration
func Get() *Config {
	return GetConfigManager().GetConfig()
}

// Load loads configuration from the specified path
func Load(configPath string) error {
	return GetConfigManager().LoadConfig(configPath)
}

// AddWatcher adds a global configuration watcher
func AddWatcher(watcher ConfigWatcher) {
	GetConfigManager().AddWatcher(watcher)
}
