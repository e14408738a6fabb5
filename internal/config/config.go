package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

var (
	cfg  *Config
	once sync.Once
	mu   sync.RWMutex
)

// Config represents the application configuration
type Config struct {
	App          AppConfig          `mapstructure:"app"`
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Email        EmailConfig        `mapstructure:"email"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
	RateLimiting RateLimitingConfig `mapstructure:"rate_limiting"`
	Runner       RunnerConfig       `mapstructure:"runner"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	Env      string `mapstructure:"env"`
	Debug    bool   `mapstructure:"debug"`
	Timezone string `mapstructure:"timezone"`
	BaseURL  string `mapstructure:"base_url"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORS            CORSConfig    `mapstructure:"cors"`
}

type CORSConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Origins []string `mapstructure:"origins"`
	Methods []string `mapstructure:"methods"`
	Headers []string `mapstructure:"headers"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Name            string        `mapstructure:"name"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	PoolSize int           `mapstructure:"pool_size"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type AuthConfig struct {
	JWT struct {
		Secret   string        `mapstructure:"secret"`
		Issuer   string        `mapstructure:"issuer"`
		TokenTTL time.Duration `mapstructure:"token_ttl"`
	} `mapstructure:"jwt"`
	BcryptCost int `mapstructure:"bcrypt_cost"`
	Login      struct {
		MaxAttempts   int           `mapstructure:"max_attempts"`
		WindowSeconds int           `mapstructure:"window_seconds"`
		BaseBackoff   time.Duration `mapstructure:"base_backoff"`
		MaxBackoff    time.Duration `mapstructure:"max_backoff"`
	} `mapstructure:"login"`
}

type EmailConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	From     string `mapstructure:"from"`
	FromName string `mapstructure:"from_name"`
	SMTP        SMTPConfig `mapstructure:"smtp"`
	MaxAttempts int        `mapstructure:"max_attempts"`
	BatchSize   int        `mapstructure:"batch_size"`
}

type SMTPConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	User       string `mapstructure:"user"`
	Password   string `mapstructure:"password"`
	AuthType   string `mapstructure:"auth_type"`
	TLSMode    string `mapstructure:"tls_mode"`
	SkipVerify bool   `mapstructure:"skip_verify"`
}

type StorageConfig struct {
	Images struct {
		MaxSize      int64    `mapstructure:"max_size"`
		AllowedTypes []string `mapstructure:"allowed_types"`
	} `mapstructure:"images"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type RateLimitingConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	Burst             int  `mapstructure:"burst"`
}

type RunnerConfig struct {
	Enabled              bool   `mapstructure:"enabled"`
	NotificationSchedule string `mapstructure:"notification_schedule"`
	StatisticsSchedule   string `mapstructure:"statistics_schedule"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "bdt")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.timezone", "Europe/Paris")
	v.SetDefault("app.base_url", "http://localhost:8080")
	v.SetDefault("app.debug", false)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.cors.enabled", true)
	v.SetDefault("server.cors.origins", []string{"http://localhost:3000"})
	v.SetDefault("server.cors.methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("server.cors.headers", []string{"Authorization", "Content-Type", "X-Request-ID"})

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "bdt")
	v.SetDefault("database.user", "bdt")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.auto_migrate", false)
	v.SetDefault("database.path", "bdt.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.prefix", "bdt:")
	v.SetDefault("redis.ttl", 5*time.Minute)

	v.SetDefault("auth.jwt.secret", "")
	v.SetDefault("auth.jwt.issuer", "bdt")
	v.SetDefault("auth.jwt.token_ttl", 12*time.Hour)
	v.SetDefault("auth.bcrypt_cost", 10)
	v.SetDefault("auth.login.max_attempts", 5)
	v.SetDefault("auth.login.window_seconds", 300)
	v.SetDefault("auth.login.base_backoff", 2*time.Second)
	v.SetDefault("auth.login.max_backoff", time.Minute)

	v.SetDefault("email.enabled", false)
	v.SetDefault("email.from", "noreply@bdt.local")
	v.SetDefault("email.from_name", "Bons de travaux")
	v.SetDefault("email.smtp.host", "localhost")
	v.SetDefault("email.smtp.port", 1025)
	v.SetDefault("email.smtp.user", "")
	v.SetDefault("email.smtp.password", "")
	v.SetDefault("email.smtp.auth_type", "plain")
	v.SetDefault("email.smtp.tls_mode", "none")
	v.SetDefault("email.smtp.skip_verify", false)
	v.SetDefault("email.max_attempts", 5)
	v.SetDefault("email.batch_size", 50)

	v.SetDefault("storage.images.max_size", 5<<20)
	v.SetDefault("storage.images.allowed_types", []string{"image/png", "image/jpeg", "image/gif", "image/webp"})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("rate_limiting.enabled", false)
	v.SetDefault("rate_limiting.requests_per_minute", 300)
	v.SetDefault("rate_limiting.burst", 50)

	v.SetDefault("runner.enabled", true)
	v.SetDefault("runner.notification_schedule", "0 * * * * *")
	v.SetDefault("runner.statistics_schedule", "0 */15 * * * *")
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)
	v.SetEnvPrefix("BDT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load initializes the configuration with hot reload support. The directory
// may contain default.yaml and an optional config.yaml overlay; both are
// optional, built-in defaults and BDT_* environment variables apply on top.
func Load(configPath string) error {
	var err error
	once.Do(func() {
		v := newViper()
		v.AddConfigPath(configPath)

		v.SetConfigName("default")
		if err = v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				err = fmt.Errorf("failed to read default config: %w", err)
				return
			}
			err = nil
		}

		v.SetConfigName("config")
		if err = v.MergeInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				err = fmt.Errorf("failed to merge config: %w", err)
				return
			}
			err = nil
		}

		loaded := &Config{}
		if err = v.Unmarshal(loaded); err != nil {
			err = fmt.Errorf("failed to unmarshal config: %w", err)
			return
		}
		set(loaded)

		if v.ConfigFileUsed() == "" {
			return
		}
		v.OnConfigChange(func(e fsnotify.Event) {
			newCfg := &Config{}
			if err := v.Unmarshal(newCfg); err != nil {
				fmt.Printf("Failed to reload config %s: %v\n", e.Name, err)
				return
			}
			set(newCfg)
			fmt.Printf("Configuration reloaded from %s\n", e.Name)
		})
		v.WatchConfig()
	})

	return err
}

func set(c *Config) {
	mu.Lock()
	defer mu.Unlock()
	cfg = c
}

// Get returns the current configuration (thread-safe). Built-in defaults are
// returned when Load was never called.
func Get() *Config {
	mu.RLock()
	c := cfg
	mu.RUnlock()
	if c == nil {
		return Defaults()
	}
	return c
}

// Defaults returns a configuration built only from defaults and environment.
func Defaults() *Config {
	c := &Config{}
	if err := newViper().Unmarshal(c); err != nil {
		panic(fmt.Sprintf("invalid built-in configuration: %v", err))
	}
	return c
}

// LoadFromFile loads configuration from a specific file (useful for testing)
func LoadFromFile(configFile string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configFile)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	set(c)
	return c, nil
}

// GetDSN returns the connection string for the configured driver.
func (c *DatabaseConfig) GetDSN() string {
	switch c.Driver {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
			c.User, c.Password, c.Host, c.Port, c.Name)
	case "sqlite", "sqlite3":
		return fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", c.Path)
	default:
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
		)
	}
}

// GetRedisAddr returns the Redis server address
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetServerAddr returns the server listen address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// EffectiveTLSMode normalizes the SMTP TLS mode to "smtps", "starttls"
// or "none". Port 465 implies smtps when no mode is set.
func (c *EmailConfig) EffectiveTLSMode() string {
	switch strings.ToLower(strings.TrimSpace(c.SMTP.TLSMode)) {
	case "smtps", "ssl", "tls":
		return "smtps"
	case "starttls":
		return "starttls"
	case "", "none":
		if c.SMTP.Port == 465 && c.SMTP.TLSMode == "" {
			return "smtps"
		}
	}
	return "none"
}

// IsProduction returns true if running in production mode
func (c *AppConfig) IsProduction() bool {
	return c.Env == "production"
}

// IsDevelopment returns true if running in development mode
func (c *AppConfig) IsDevelopment() bool {
	return c.Env == "development"
}
