package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	API      APIConfig      `mapstructure:"api"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Push     PushConfig     `mapstructure:"push"`
	UI       UIConfig       `mapstructure:"ui"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port         string `mapstructure:"port"`
	Host         string `mapstructure:"host"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	IdleTimeout  int    `mapstructure:"idle_timeout"`
}

// DatabaseConfig holds database configuration.
// Driver is either "postgres" or "sqlite"; Path is only used by sqlite.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	Path     string `mapstructure:"path"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// APIConfig describes where the field API lives.
// Host is the externally reachable origin used by bound elements and the browser.
type APIConfig struct {
	Host           string   `mapstructure:"host"`
	Endpoint       string   `mapstructure:"endpoint"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	RateLimit      int      `mapstructure:"rate_limit"`
}

// AuthConfig holds bearer token configuration for the guarded field API
type AuthConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
	TokenTTL  int    `mapstructure:"token_ttl"`
}

// PushConfig holds push channel configuration
type PushConfig struct {
	ChannelPrefix     string `mapstructure:"channel_prefix"`
	HeartbeatInterval int    `mapstructure:"heartbeat_interval"`
	BufferSize        int    `mapstructure:"buffer_size"`
}

// UIConfig holds the pages served with bound elements
type UIConfig struct {
	Enabled     bool         `mapstructure:"enabled"`
	PageTimeout int          `mapstructure:"page_timeout"`
	Pages       []PageConfig `mapstructure:"pages" validate:"dive"`
}

// PageConfig declares one page and the elements bound on it
type PageConfig struct {
	Path     string          `mapstructure:"path" validate:"required,startswith=/"`
	Title    string          `mapstructure:"title"`
	Bindings []BindingConfig `mapstructure:"bindings" validate:"dive"`
}

// BindingConfig declares one bound element
type BindingConfig struct {
	Element         string                 `mapstructure:"element" validate:"omitempty,oneof=input checkbox slider textarea button label"`
	Label           string                 `mapstructure:"label"`
	ElementID       string                 `mapstructure:"element_id"`
	Collection      string                 `mapstructure:"collection" validate:"required"`
	RecordType      string                 `mapstructure:"record_type" validate:"required"`
	RecordID        string                 `mapstructure:"record_id"`
	Fields          []string               `mapstructure:"fields"`
	DisplayProperty string                 `mapstructure:"display_property"`
	DynamicQuery    map[string]interface{} `mapstructure:"dynamic_query"`
	Token           string                 `mapstructure:"token"`
}

// LoadConfig loads configuration from environment and config files
func LoadConfig() (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("server.idle_timeout", 120)
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", "fieldsync.db")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("api.host", "http://localhost:8080")
	v.SetDefault("api.endpoint", "/api")
	v.SetDefault("api.allowed_origins", []string{"*"})
	v.SetDefault("api.rate_limit", 0)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.jwt_secret", "change-me")
	v.SetDefault("auth.issuer", "fieldsync")
	v.SetDefault("auth.token_ttl", 24)
	v.SetDefault("push.channel_prefix", "fields")
	v.SetDefault("push.heartbeat_interval", 15)
	v.SetDefault("push.buffer_size", 16)
	v.SetDefault("ui.enabled", true)
	v.SetDefault("ui.page_timeout", 60)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// BaseURL returns the absolute prefix of the field API, e.g. http://host:8080/api
func (c *APIConfig) BaseURL() string {
	return strings.TrimRight(c.Host, "/") + c.Prefix()
}

// Prefix returns the endpoint normalised to a leading slash and no trailing slash
func (c *APIConfig) Prefix() string {
	endpoint := strings.Trim(c.Endpoint, "/")
	if endpoint == "" {
		return ""
	}
	return "/" + endpoint
}
