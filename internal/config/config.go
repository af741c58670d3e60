package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the terminal
type Config struct {
	Terminal TerminalConfig `yaml:"terminal"`
	Database DatabaseConfig `yaml:"database"`
	Mongo    MongoConfig    `yaml:"mongo"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Remote   RemoteConfig   `yaml:"remote"`
	Queue    QueueConfig    `yaml:"queue"`
	Network  NetworkConfig  `yaml:"network"`
	HTTP     HTTPConfig     `yaml:"http"`
	Catalog  CatalogConfig  `yaml:"catalog"`
}

// TerminalConfig identifies this till
type TerminalConfig struct {
	ID       string `yaml:"id" validate:"required"`
	Currency string `yaml:"currency" validate:"required,len=3"`
	Locale   string `yaml:"locale" validate:"required"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host       string `yaml:"host" validate:"required"`
	Port       int    `yaml:"port" validate:"min=1,max=65535"`
	User       string `yaml:"user"`
	Password   string `yaml:"password"`
	Database   string `yaml:"database" validate:"required"`
	MaxRetries int    `yaml:"max_retries" validate:"min=1"`
}

// MongoConfig is used when remote.driver is mongo
type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// RabbitMQConfig holds RabbitMQ connection configuration
type RabbitMQConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// RemoteConfig selects the remote order store
type RemoteConfig struct {
	Driver        string        `yaml:"driver" validate:"oneof=postgres mongo"`
	WriteTimeout  time.Duration `yaml:"write_timeout" validate:"min=0"`
	RetryInterval time.Duration `yaml:"retry_interval" validate:"min=0"`
}

// QueueConfig configures the local durable queue
type QueueConfig struct {
	Path       string        `yaml:"path" validate:"required"`
	Debounce   time.Duration `yaml:"debounce" validate:"min=0"`
	MaxEntries int           `yaml:"max_entries" validate:"min=1"`
}

// NetworkConfig selects how connectivity is detected
type NetworkConfig struct {
	Mode          string        `yaml:"mode" validate:"oneof=probe manual"`
	ProbeInterval time.Duration `yaml:"probe_interval"`
	InitialOnline bool          `yaml:"initial_online"`
}

// HTTPConfig configures the operator API
type HTTPConfig struct {
	Port         int      `yaml:"port" validate:"min=1,max=65535"`
	AllowOrigins []string `yaml:"allow_origins"`
}

// CatalogConfig points at the read-only reference data
type CatalogConfig struct {
	ItemsPath string `yaml:"items_path" validate:"required"`
	StaffPath string `yaml:"staff_path"`
}

// Default returns a configuration usable on a developer machine
func Default() *Config {
	return &Config{
		Terminal: TerminalConfig{ID: "till-1", Currency: "PHP", Locale: "en-PH"},
		Database: DatabaseConfig{Host: "localhost", Port: 5432, User: "pos", Password: "pos", Database: "pos", MaxRetries: 5},
		Mongo:    MongoConfig{URI: "mongodb://localhost:27017", Database: "pos"},
		RabbitMQ: RabbitMQConfig{Host: "localhost", Port: 5672, User: "guest", Password: "guest"},
		Remote:   RemoteConfig{Driver: "postgres", WriteTimeout: 15 * time.Second, RetryInterval: 30 * time.Second},
		Queue:    QueueConfig{Path: "pos-terminal.db", Debounce: 150 * time.Millisecond, MaxEntries: 5000},
		Network:  NetworkConfig{Mode: "probe", ProbeInterval: 5 * time.Second},
		HTTP:     HTTPConfig{Port: 8080, AllowOrigins: []string{"http://localhost:3000"}},
		Catalog:  CatalogConfig{ItemsPath: "catalog.yaml", StaffPath: "staff.yaml"},
	}
}

// Load reads a YAML file over the defaults, then applies .env and POS_*
// environment overrides, then validates
func Load(filename string) (*Config, error) {
	cfg := Default()

	if filename != "" {
		data, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct constraints plus cross-section rules
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Remote.Driver == "mongo" && (c.Mongo.URI == "" || c.Mongo.Database == "") {
		return errors.New("invalid configuration: mongo.uri and mongo.database are required for the mongo driver")
	}
	if c.RabbitMQ.Enabled && c.RabbitMQ.Host == "" {
		return errors.New("invalid configuration: rabbitmq.host is required when rabbitmq is enabled")
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

// applyEnv overrides fields from POS_<SECTION>_<KEY> variables
func (c *Config) applyEnv(lookup lookupFunc) error {
	texts := map[string]*string{
		"POS_TERMINAL_ID":        &c.Terminal.ID,
		"POS_TERMINAL_CURRENCY":  &c.Terminal.Currency,
		"POS_TERMINAL_LOCALE":    &c.Terminal.Locale,
		"POS_DATABASE_HOST":      &c.Database.Host,
		"POS_DATABASE_USER":      &c.Database.User,
		"POS_DATABASE_PASSWORD":  &c.Database.Password,
		"POS_DATABASE_NAME":      &c.Database.Database,
		"POS_MONGO_URI":          &c.Mongo.URI,
		"POS_MONGO_DATABASE":     &c.Mongo.Database,
		"POS_RABBITMQ_HOST":      &c.RabbitMQ.Host,
		"POS_RABBITMQ_USER":      &c.RabbitMQ.User,
		"POS_RABBITMQ_PASSWORD":  &c.RabbitMQ.Password,
		"POS_REMOTE_DRIVER":      &c.Remote.Driver,
		"POS_QUEUE_PATH":         &c.Queue.Path,
		"POS_NETWORK_MODE":       &c.Network.Mode,
		"POS_CATALOG_ITEMS_PATH": &c.Catalog.ItemsPath,
		"POS_CATALOG_STAFF_PATH": &c.Catalog.StaffPath,
	}
	for key, dst := range texts {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"POS_DATABASE_PORT":     &c.Database.Port,
		"POS_RABBITMQ_PORT":     &c.RabbitMQ.Port,
		"POS_QUEUE_MAX_ENTRIES": &c.Queue.MaxEntries,
		"POS_HTTP_PORT":         &c.HTTP.Port,
		"POS_DATABASE_RETRIES":  &c.Database.MaxRetries,
	}
	for key, dst := range ints {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s value: %w", key, err)
			}
			*dst = n
		}
	}

	durations := map[string]*time.Duration{
		"POS_REMOTE_WRITE_TIMEOUT":   &c.Remote.WriteTimeout,
		"POS_REMOTE_RETRY_INTERVAL":  &c.Remote.RetryInterval,
		"POS_QUEUE_DEBOUNCE":         &c.Queue.Debounce,
		"POS_NETWORK_PROBE_INTERVAL": &c.Network.ProbeInterval,
	}
	for key, dst := range durations {
		if v, ok := lookup(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s value: %w", key, err)
			}
			*dst = d
		}
	}

	bools := map[string]*bool{
		"POS_RABBITMQ_ENABLED":       &c.RabbitMQ.Enabled,
		"POS_NETWORK_INITIAL_ONLINE": &c.Network.InitialOnline,
	}
	for key, dst := range bools {
		if v, ok := lookup(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid %s value: %w", key, err)
			}
			*dst = b
		}
	}

	if v, ok := lookup("POS_HTTP_ALLOW_ORIGINS"); ok {
		c.HTTP.AllowOrigins = splitList(v)
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// DatabaseURL returns a PostgreSQL connection URL
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User, c.Database.Password, c.Database.Host, c.Database.Port, c.Database.Database)
}

// RabbitMQURL returns an AMQP connection URL
func (c *Config) RabbitMQURL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/",
		c.RabbitMQ.User, c.RabbitMQ.Password, c.RabbitMQ.Host, c.RabbitMQ.Port)
}
