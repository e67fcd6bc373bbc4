package config

import (
	"fmt"
	"log/slog"
	"time"

	"payment_validator/internal/counters"
	"payment_validator/internal/fraud"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const DefaultEnvFile = "config.env"

type Config struct {
	HTTPAddr        string        `envconfig:"HTTP_ADDR"        default:":8080"`
	MetricsAddr     string        `envconfig:"METRICS_ADDR"     default:":9090"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT"  default:"10s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	LogLevel        string        `envconfig:"LOG_LEVEL"        default:"info"`
	PolicyFile      string        `envconfig:"POLICY_FILE"`
	Validation      ValidationConfig
	Counters        CountersConfig
	Fraud           FraudConfig
	Audit           AuditConfig
	Kafka           KafkaConfig
}

type ValidationConfig struct {
	StageTimeout        time.Duration `envconfig:"STAGE_TIMEOUT"        default:"2s"`
	StatusCacheTTL      time.Duration `envconfig:"STATUS_CACHE_TTL"     default:"5s"`
	ComplianceThreshold string        `envconfig:"COMPLIANCE_THRESHOLD" default:"1000000"`
}

type CountersConfig struct {
	Capacity            int           `envconfig:"COUNTER_CAPACITY"           default:"256"`
	Retention           time.Duration `envconfig:"COUNTER_RETENTION"          default:"768h"`
	ReservationTTL      time.Duration `envconfig:"RESERVATION_TTL"            default:"30s"`
	Shards              int           `envconfig:"COUNTER_SHARDS"             default:"64"`
	MaxAccountsPerShard int           `envconfig:"COUNTER_ACCOUNTS_PER_SHARD" default:"4096"`
	Timezone            string        `envconfig:"COUNTER_TIMEZONE"           default:"Asia/Kolkata"`
}

type FraudConfig struct {
	VelocityWindow       time.Duration `envconfig:"FRAUD_VELOCITY_WINDOW"    default:"30m"`
	VelocityMedium       int           `envconfig:"FRAUD_VELOCITY_MEDIUM"    default:"3"`
	VelocityHigh         int           `envconfig:"FRAUD_VELOCITY_HIGH"      default:"6"`
	AmountMinHistory     int           `envconfig:"FRAUD_AMOUNT_MIN_HISTORY" default:"3"`
	AmountMediumMultiple float64       `envconfig:"FRAUD_AMOUNT_MEDIUM"      default:"5"`
	AmountHighMultiple   float64       `envconfig:"FRAUD_AMOUNT_HIGH"        default:"10"`
	MaxSpeedKmh          float64       `envconfig:"FRAUD_MAX_SPEED_KMH"      default:"900"`
	MinJumpKm            float64       `envconfig:"FRAUD_MIN_JUMP_KM"        default:"50"`
}

type AuditConfig struct {
	SigningKey string `envconfig:"AUDIT_SIGNING_KEY"`
	Workers    int    `envconfig:"AUDIT_WORKERS"     default:"2"`
	QueueSize  int    `envconfig:"AUDIT_QUEUE_SIZE"  default:"1000"`
}

type KafkaConfig struct {
	Brokers []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	Topic   string   `envconfig:"KAFKA_TOPIC"   default:"payment-audit"`
	Enabled bool     `envconfig:"KAFKA_ENABLED" default:"false"`
}

// NewConfig loads config.env if present, then the process environment.
func NewConfig() (*Config, error) {
	return Load(DefaultEnvFile)
}

func Load(envFile string) (*Config, error) {
	if err := godotenv.Load(envFile); err != nil {
		slog.Warn("Env file not loaded, using process environment only",
			slog.String("file", envFile),
			slog.String("error", err.Error()))
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	if _, err := cfg.Validation.Threshold(); err != nil {
		return nil, err
	}
	if _, err := cfg.Counters.Store(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (v ValidationConfig) Threshold() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.ComplianceThreshold)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid COMPLIANCE_THRESHOLD %q: %w", v.ComplianceThreshold, err)
	}
	return d, nil
}

func (c CountersConfig) Store() (counters.Config, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return counters.Config{}, fmt.Errorf("invalid COUNTER_TIMEZONE %q: %w", c.Timezone, err)
	}
	cfg := counters.DefaultConfig()
	cfg.Capacity = c.Capacity
	cfg.Retention = c.Retention
	cfg.ReservationTTL = c.ReservationTTL
	cfg.Shards = c.Shards
	cfg.MaxAccountsPerShard = c.MaxAccountsPerShard
	cfg.Location = loc
	return cfg, nil
}

func (f FraudConfig) Detector() fraud.Config {
	return fraud.Config{
		Velocity: fraud.VelocityConfig{
			Window:      f.VelocityWindow,
			MediumCount: f.VelocityMedium,
			HighCount:   f.VelocityHigh,
		},
		Amount: fraud.AmountConfig{
			MinHistory:     f.AmountMinHistory,
			MediumMultiple: decimal.NewFromFloat(f.AmountMediumMultiple),
			HighMultiple:   decimal.NewFromFloat(f.AmountHighMultiple),
		},
		Location: fraud.LocationConfig{
			MaxSpeedKmh: f.MaxSpeedKmh,
			MinJumpKm:   f.MinJumpKm,
		},
	}
}

func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
