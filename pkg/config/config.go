package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Robot  RobotConfig  `mapstructure:"robot"`
	Auth   AuthConfig   `mapstructure:"auth"`
	CORS   CORSConfig   `mapstructure:"cors"`
	Log    LogConfig    `mapstructure:"log"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port            int    `mapstructure:"port"`
	Host            string `mapstructure:"host"`
	Environment     string `mapstructure:"environment"`
	HealthCheckPath string `mapstructure:"health_check_path"`
}

// RedisConfig holds Redis-related configuration
type RedisConfig struct {
	Host         string             `mapstructure:"host"`
	Port         int                `mapstructure:"port"`
	Password     string             `mapstructure:"password"`
	DB           int                `mapstructure:"db"`
	MaxRetries   int                `mapstructure:"max_retries"`
	PoolSize     int                `mapstructure:"pool_size"`
	DialTimeout  time.Duration      `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration      `mapstructure:"read_timeout"`
	WriteTimeout time.Duration      `mapstructure:"write_timeout"`
	Streams      RedisStreamsConfig `mapstructure:"streams"`
}

// RedisStreamsConfig holds Redis Streams specific configuration
type RedisStreamsConfig struct {
	MaxLen        int64  `mapstructure:"max_len"`
	ConsumerGroup string `mapstructure:"consumer_group"`
}

// RobotConfig identifies the vacuum this bridge serves
type RobotConfig struct {
	DeviceID      string        `mapstructure:"device_id"`
	Name          string        `mapstructure:"name"`
	Model         string        `mapstructure:"model"`
	ActiveTTL     time.Duration `mapstructure:"active_ttl"`
	RefreshPeriod time.Duration `mapstructure:"refresh_period"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret          string        `mapstructure:"jwt_secret"`
	JWTExpiration      time.Duration `mapstructure:"jwt_expiration"`
	AccessPasswordHash string        `mapstructure:"access_password_hash"`
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Environment string `mapstructure:"environment"`
	Encoding    string `mapstructure:"encoding"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	setDefaults()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("/etc/robomap")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Config file is optional; env vars and defaults are enough to run
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.environment", "development")
	viper.SetDefault("server.health_check_path", "/health")

	// Redis defaults
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.max_retries", 3)
	viper.SetDefault("redis.pool_size", 10)
	viper.SetDefault("redis.dial_timeout", "5s")
	viper.SetDefault("redis.read_timeout", "3s")
	viper.SetDefault("redis.write_timeout", "3s")
	viper.SetDefault("redis.streams.max_len", 10000)
	viper.SetDefault("redis.streams.consumer_group", "robomap-bridge")

	// Robot defaults
	viper.SetDefault("robot.device_id", "robovac")
	viper.SetDefault("robot.name", "Robovac")
	viper.SetDefault("robot.model", "")
	viper.SetDefault("robot.active_ttl", "30s")
	viper.SetDefault("robot.refresh_period", "1s")

	// Auth defaults
	viper.SetDefault("auth.jwt_secret", "dev-jwt-secret-change-in-production")
	viper.SetDefault("auth.jwt_expiration", "24h")
	viper.SetDefault("auth.access_password_hash", "")

	// CORS defaults
	viper.SetDefault("cors.allowed_origins", []string{"http://localhost:3000", "http://localhost:8080"})
	viper.SetDefault("cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	viper.SetDefault("cors.allowed_headers", []string{"Content-Type", "Authorization"})

	// Log defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.environment", "development")
	viper.SetDefault("log.encoding", "console")
}

// validateConfig validates the loaded configuration
func validateConfig(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}

	if cfg.Server.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}

	if cfg.Redis.Host == "" {
		return fmt.Errorf("redis host cannot be empty")
	}

	if cfg.Redis.Port < 1 || cfg.Redis.Port > 65535 {
		return fmt.Errorf("invalid redis port: %d", cfg.Redis.Port)
	}

	if cfg.Redis.PoolSize < 1 {
		return fmt.Errorf("redis pool size must be at least 1")
	}

	if cfg.Robot.DeviceID == "" {
		return fmt.Errorf("robot device_id cannot be empty")
	}

	if cfg.Robot.ActiveTTL < time.Second {
		return fmt.Errorf("robot active_ttl must be at least 1 second")
	}

	if cfg.Robot.RefreshPeriod < 100*time.Millisecond {
		return fmt.Errorf("robot refresh_period must be at least 100ms")
	}

	if len(cfg.Auth.JWTSecret) < 8 {
		return fmt.Errorf("JWT secret must be at least 8 characters long")
	}

	if cfg.Auth.JWTExpiration < time.Minute {
		return fmt.Errorf("JWT expiration must be at least 1 minute")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, cfg.Log.Level) {
		return fmt.Errorf("invalid log level: %s", cfg.Log.Level)
	}

	validEncodings := []string{"json", "console"}
	if !contains(validEncodings, cfg.Log.Encoding) {
		return fmt.Errorf("invalid log encoding: %s", cfg.Log.Encoding)
	}

	return nil
}

// GetRedisAddr returns the Redis address in host:port format
func (r *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// GetServerAddr returns the server address in host:port format
func (s *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// IsProduction returns true if the environment is production
func (s *ServerConfig) IsProduction() bool {
	return strings.ToLower(s.Environment) == "production"
}

// IsDevelopment returns true if the environment is development
func (s *ServerConfig) IsDevelopment() bool {
	return strings.ToLower(s.Environment) == "development"
}

// contains checks if a slice contains a string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if strings.EqualFold(s, item) {
			return true
		}
	}
	return false
}
