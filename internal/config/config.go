package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Store       StoreConfig       `mapstructure:"store"`
	Redis       RedisConfig       `mapstructure:"redis"`
	MySQL       MySQLConfig       `mapstructure:"mysql"`
	Auction     AuctionConfig     `mapstructure:"auction"`
	Relay       RelayConfig       `mapstructure:"relay"`
	RabbitMQ    RabbitMQConfig    `mapstructure:"rabbitmq"`
	RateLimit   RateLimitConfig   `mapstructure:"ratelimit"`
	Eligibility EligibilityConfig `mapstructure:"eligibility"`
	Leader      LeaderConfig      `mapstructure:"leader"`
	Instance    InstanceConfig    `mapstructure:"instance"`
	Log         LogConfig         `mapstructure:"log"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

// StoreConfig selects the ledger store backend: "mysql" or "memory".
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	// Companies seeds the memory driver's company directory with eligible
	// bidders. The mysql driver reads the companies table instead.
	Companies []string `mapstructure:"companies"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

type MySQLConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type AuctionConfig struct {
	// AutoExtendWindow is the trailing window before a session's end time in
	// which an accepted bid triggers auto-extension.
	AutoExtendWindow time.Duration `mapstructure:"auto_extend_window"`
	MaxTxRetries     int           `mapstructure:"max_tx_retries"`
}

type RelayConfig struct {
	Schedule  string `mapstructure:"schedule"`
	BatchSize int    `mapstructure:"batch_size"`
}

type RabbitMQConfig struct {
	URL   string `mapstructure:"url"`
	Queue string `mapstructure:"queue"`
}

type RateLimitConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Capacity       int           `mapstructure:"capacity"`
	RefillInterval time.Duration `mapstructure:"refill_interval"`
	TTL            time.Duration `mapstructure:"ttl"`
	Prefix         string        `mapstructure:"prefix"`
}

type EligibilityConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type LeaderConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type InstanceConfig struct {
	ID string `mapstructure:"id"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

var envBindings = map[string]string{
	"server.port":                "SERVER_PORT",
	"server.host":                "SERVER_HOST",
	"store.driver":               "STORE_DRIVER",
	"store.companies":            "STORE_COMPANIES",
	"redis.address":              "REDIS_ADDRESS",
	"redis.password":             "REDIS_PASSWORD",
	"redis.db":                   "REDIS_DB",
	"redis.channel":              "REDIS_CHANNEL",
	"mysql.dsn":                  "MYSQL_DSN",
	"mysql.max_open_conns":       "MYSQL_MAX_OPEN_CONNS",
	"mysql.max_idle_conns":       "MYSQL_MAX_IDLE_CONNS",
	"mysql.conn_max_lifetime":    "MYSQL_CONN_MAX_LIFETIME",
	"auction.auto_extend_window": "AUCTION_AUTO_EXTEND_WINDOW",
	"auction.max_tx_retries":     "AUCTION_MAX_TX_RETRIES",
	"relay.schedule":             "RELAY_SCHEDULE",
	"relay.batch_size":           "RELAY_BATCH_SIZE",
	"rabbitmq.url":               "RABBITMQ_URL",
	"rabbitmq.queue":             "RABBITMQ_QUEUE",
	"ratelimit.enabled":          "RATE_LIMIT_ENABLED",
	"ratelimit.capacity":         "RATE_LIMIT_CAPACITY",
	"ratelimit.refill_interval":  "RATE_LIMIT_REFILL_INTERVAL",
	"ratelimit.ttl":              "RATE_LIMIT_TTL",
	"ratelimit.prefix":           "RATE_LIMIT_PREFIX",
	"eligibility.cache_ttl":      "ELIGIBILITY_CACHE_TTL",
	"leader.ttl":                 "LEADER_TTL",
	"instance.id":                "INSTANCE_ID",
	"log.level":                  "LOG_LEVEL",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("store.driver", "mysql")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "auction_notifications")
	v.SetDefault("mysql.dsn", "auction_user:auction_pass@tcp(localhost:3306)/slot_auction?parseTime=true&loc=UTC")
	v.SetDefault("mysql.max_open_conns", 25)
	v.SetDefault("mysql.max_idle_conns", 10)
	v.SetDefault("mysql.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("auction.auto_extend_window", 30*time.Second)
	v.SetDefault("auction.max_tx_retries", 3)
	v.SetDefault("relay.schedule", "@every 2s")
	v.SetDefault("relay.batch_size", 100)
	v.SetDefault("rabbitmq.url", "")
	v.SetDefault("rabbitmq.queue", "auction.notifications")
	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.capacity", 20)
	v.SetDefault("ratelimit.refill_interval", time.Second)
	v.SetDefault("ratelimit.ttl", 10*time.Minute)
	v.SetDefault("ratelimit.prefix", "rl")
	v.SetDefault("eligibility.cache_ttl", time.Minute)
	v.SetDefault("leader.ttl", 30*time.Second)
	v.SetDefault("instance.id", "slot-auction-1")
	v.SetDefault("log.level", "info")
}

func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	// Configuration file settings
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/slot-auction/")

	return load(v, false)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	return load(v, true)
}

func load(v *viper.Viper, requireFile bool) (*Config, error) {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || requireFile {
			return nil, err
		}
		// Config file not found, continue with defaults and environment variables
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "mysql", "memory":
	default:
		return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Auction.MaxTxRetries < 1 {
		return fmt.Errorf("config: auction.max_tx_retries must be at least 1, got %d", c.Auction.MaxTxRetries)
	}
	if c.Auction.AutoExtendWindow < 0 {
		return fmt.Errorf("config: auction.auto_extend_window must not be negative")
	}
	if c.Relay.BatchSize < 1 {
		return fmt.Errorf("config: relay.batch_size must be at least 1, got %d", c.Relay.BatchSize)
	}
	if c.RateLimit.Enabled && (c.RateLimit.Capacity < 1 || c.RateLimit.RefillInterval <= 0) {
		return fmt.Errorf("config: ratelimit needs a positive capacity and refill interval")
	}
	return nil
}

// GetConfigString returns a formatted string representation of the config
func (c *Config) GetConfigString() string {
	return fmt.Sprintf(
		"Server: %s:%d, Store: %s, Redis: %s, Instance: %s",
		c.Server.Host,
		c.Server.Port,
		c.Store.Driver,
		c.Redis.Address,
		c.Instance.ID,
	)
}
