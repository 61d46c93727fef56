package global

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis_rate/v10"
	"gopkg.in/yaml.v3"
)

// Conf global config
var Conf Config

// Global rate limiter (reference server)
var RateLimiter *redis_rate.Limiter

type Config struct {
	Version    string           `yaml:"version"`
	Mode       string           `yaml:"mode"` // debug or release
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	Scheme     string           `yaml:"scheme"`
	Server     KeyServerConfig  `yaml:"keyserver" validate:"required"`
	Sync       SyncConfig       `yaml:"sync"`
	CouchDB    CouchDBConfig    `yaml:"couchdb"`
	Redis      RedisConfig      `yaml:"redis"`
	Queue      Queue            `yaml:"queue"`
	Prometheus PrometheusConfig `yaml:"prometheus"`
	Api        ApiConfig        `yaml:"api"`
}

// KeyServerConfig describes the remote key server this client talks to
type KeyServerConfig struct {
	BaseURL string `yaml:"baseUrl" validate:"required,url"`
	// Dialect selects the server adapter: "full" or "stream"
	Dialect      string `yaml:"dialect" validate:"required,oneof=full stream"`
	AuthPath     string `yaml:"authPath"`
	KeysPath     string `yaml:"keysPath"`
	SubmitPath   string `yaml:"submitPath"`
	PreferBinary bool   `yaml:"preferBinary"`
	// ReceiptPath points at the purchase-receipt proof handed to the auth endpoint
	ReceiptPath string `yaml:"receiptPath"`
}

type SyncConfig struct {
	MinIntervalMinutes int    `yaml:"minIntervalMinutes"` // floor between cycles, default 60
	TimeoutSeconds     int    `yaml:"timeoutSeconds"`     // per-request bound, default 30
	ResultPageSize     int    `yaml:"resultPageSize"`     // exposure result pagination, default 100
	Detector           string `yaml:"detector"`           // registered detection capability name
	AutoResume         bool   `yaml:"autoResume"`
}

// MinInterval returns the configured cycle floor, defaulting to one hour
func (s SyncConfig) MinInterval() time.Duration {
	if s.MinIntervalMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(s.MinIntervalMinutes) * time.Minute
}

// Timeout returns the per-request network bound, defaulting to 30 seconds
func (s SyncConfig) Timeout() time.Duration {
	if s.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.TimeoutSeconds) * time.Second
}

func (s SyncConfig) PageSize() int {
	if s.ResultPageSize <= 0 {
		return 100
	}
	return s.ResultPageSize
}

type CouchDBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Scheme   string `yaml:"scheme"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	Username string `yaml:"username"`
}

type Queue struct {
	Concurrency int `yaml:"concurrency"`
}

type PrometheusConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// ApiConfig configures the bundled reference server endpoints
type ApiConfig struct {
	Enabled        bool     `yaml:"enabled"`
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

// LoadConfig reads and validates the yaml configuration file into Conf
func LoadConfig(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	var conf Config
	if err := yaml.Unmarshal(content, &conf); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	validate := validator.New()
	if err := validate.Struct(&conf); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	Conf = conf
	return nil
}
