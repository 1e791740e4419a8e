package config

import (
	"log"
	"os"
	"time"

	"github.com/Arsyadam/bhawikarsu-store/pkg/utils"
	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env        string     `yaml:"env" env:"ENV" env-default:"local"`
	LogLevel   string     `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	HTTP       HTTP       `yaml:"http"`
	Postgres   PG         `yaml:"postgres"`
	Redis      Redis      `yaml:"redis"`
	Kafka      Kafka      `yaml:"kafka"`
	JWT        JWT        `yaml:"jwt"`
	Midtrans   Midtrans   `yaml:"midtrans"`
	Biteship   Biteship   `yaml:"biteship"`
	SMTP       SMTP       `yaml:"smtp"`
	Reconciler Reconciler `yaml:"reconciler"`
	Services   Services   `yaml:"services"`
	Limiter    Limiter    `yaml:"limiter"`
	Gateway    Gateway    `yaml:"gateway"`
}

type HTTP struct {
	Port    string        `yaml:"port" env:"HTTP_PORT" env-default:":3000"`
	Timeout time.Duration `yaml:"timeout" env:"HTTP_TIMEOUT" env-default:"4s"`
}

type PG struct {
	URL            string `yaml:"url" env:"DB_URL"`
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
}

type Redis struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type Kafka struct {
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:"," env-default:"localhost:9092"`
	GroupID string   `yaml:"group_id" env:"KAFKA_GROUP_ID"`
}

type JWT struct {
	AccessSecret  string        `yaml:"access_secret" env:"ACCESS_SECRET"`
	RefreshSecret string        `yaml:"refresh_secret" env:"REFRESH_SECRET"`
	AccessTTL     time.Duration `yaml:"access_ttl" env:"ACCESS_TTL" env-default:"15m"`
	RefreshTTL    time.Duration `yaml:"refresh_ttl" env:"REFRESH_TTL" env-default:"720h"`
}

type Midtrans struct {
	ServerKey     string `yaml:"server_key" env:"MIDTRANS_SERVER_KEY"`
	BaseURL       string `yaml:"base_url" env:"MIDTRANS_BASE_URL" env-default:"https://api.sandbox.midtrans.com"`
	Acquirer      string `yaml:"acquirer" env:"MIDTRANS_QRIS_ACQUIRER" env-default:"gopay"`
	ExpiryMinutes int    `yaml:"expiry_minutes" env:"MIDTRANS_EXPIRY_MINUTES" env-default:"15"`
}

type Biteship struct {
	APIKey       string `yaml:"api_key" env:"BITESHIP_API_KEY"`
	BaseURL      string `yaml:"base_url" env:"BITESHIP_BASE_URL" env-default:"https://api.biteship.com"`
	OriginAreaID string `yaml:"origin_area_id" env:"BITESHIP_ORIGIN_AREA_ID"`
	Couriers     string `yaml:"couriers" env:"BITESHIP_COURIERS" env-default:"jne,jnt,sicepat"`
}

type SMTP struct {
	Host     string `yaml:"host" env:"SMTP_HOST"`
	Port     string `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	User     string `yaml:"user" env:"SMTP_USER"`
	Password string `yaml:"password" env:"SMTP_PASSWORD"`
	StoreURL string `yaml:"store_url" env:"STORE_URL" env-default:"http://localhost:3000"`
}

type Reconciler struct {
	Interval       time.Duration `yaml:"interval" env:"RECONCILE_INTERVAL" env-default:"1m"`
	BatchSize      int           `yaml:"batch_size" env:"RECONCILE_BATCH_SIZE" env-default:"50"`
	PendingGrace   time.Duration `yaml:"pending_grace" env:"RECONCILE_PENDING_GRACE" env-default:"2m"`
	InitiatedGrace time.Duration `yaml:"initiated_grace" env:"RECONCILE_INITIATED_GRACE" env-default:"30s"`
}

type Services struct {
	CatalogURL string `yaml:"catalog_url" env:"CATALOG_URL" env-default:"http://localhost:3001"`
	OrderURL   string `yaml:"order_url" env:"ORDER_URL" env-default:"http://localhost:3002"`
	AuthURL    string `yaml:"auth_url" env:"AUTH_URL" env-default:"http://localhost:3003"`
}

type Gateway struct {
	AllowOrigins    string        `yaml:"allow_origins" env:"CORS_ALLOW_ORIGINS" env-default:"http://localhost:3000"`
	UpstreamTimeout time.Duration `yaml:"upstream_timeout" env:"UPSTREAM_TIMEOUT" env-default:"10s"`
}

type Limiter struct {
	Max    int           `yaml:"max" env:"LIMITER_MAX" env-default:"20"`
	Window time.Duration `yaml:"window" env:"LIMITER_WINDOW" env-default:"5s"`
}

// MustLoad reads the YAML file at CONFIG_PATH when it exists and falls back
// to environment variables only. Env always wins over YAML.
func MustLoad() *Config {
	configPath := utils.ParseWithFallback("CONFIG_PATH", "./config/local.yaml")

	var cfg Config
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			log.Fatalf("error reading env config: %v", err)
		}

		return &cfg
	}

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("error reading config: %v", err)
	}

	return &cfg
}

func (c *Config) Logger() LoggerConfig {
	return LoggerConfig{Level: c.LogLevel, Env: c.Env}
}
