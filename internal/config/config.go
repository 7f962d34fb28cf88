package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	RunAddress    string `env:"RUN_ADDRESS"`
	DatabaseDSN   string `env:"DATABASE_URI"`
	MigrationsDir string `env:"MIGRATIONS_DIR"`
	JWTSecret     string `env:"JWT_SECRET"`
	LogLevel      string `env:"LOG_LEVEL"`

	PayoutProviderAddress string        `env:"PAYOUT_PROVIDER_ADDRESS"`
	PayoutProviderTimeout time.Duration `env:"PAYOUT_PROVIDER_TIMEOUT"`

	// RedisAddress адрес redis для публикации событий. Если пустой, события только пишутся в лог.
	RedisAddress string `env:"REDIS_ADDRESS"`
	RedisChannel string `env:"REDIS_CHANNEL"`

	ProcessorWorkers  uint `env:"PROCESSOR_WORKERS"`
	ProcessorBatch    uint `env:"PROCESSOR_BATCH"`
	MaxCommitAttempts uint `env:"MAX_COMMIT_ATTEMPTS"`
	// ExecuteInline проводить вывод сразу в рамках http запроса.
	ExecuteInline bool `env:"EXECUTE_INLINE"`
}

// LoadConfig читает конфигурацию из .env (если есть), переменных окружения и флагов.
// Переменные окружения имеют приоритет над флагами.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

func Load(args []string) (*Config, error) {
	// .env не обязателен.
	_ = godotenv.Load()

	var envConfig Config
	if envParseErr := env.Parse(&envConfig); envParseErr != nil {
		return nil, fmt.Errorf("parse env config: %w", envParseErr)
	}

	flagsConfig, flagsErr := parseFlags(args)
	if flagsErr != nil {
		return nil, fmt.Errorf("parse flags: %w", flagsErr)
	}

	conf := mergeConfig(&envConfig, flagsConfig)
	if err := conf.validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func MustLoadConfig() *Config {
	config, err := LoadConfig()
	if err != nil {
		panic(err)
	}
	return config
}

func (c *Config) validate() error {
	var errs []error
	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New("database DSN is not set"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt secret is not set"))
	}
	if c.PayoutProviderAddress == "" {
		errs = append(errs, errors.New("payout provider address is not set"))
	}
	if c.ProcessorWorkers == 0 {
		errs = append(errs, errors.New("processor workers must be greater than 0"))
	}
	return errors.Join(errs...)
}

func parseFlags(args []string) (*Config, error) {
	var c Config
	fs := flag.NewFlagSet("payout", flag.ContinueOnError)

	fs.StringVar(&c.RunAddress, "a", "localhost:8080", "Run address in format host:port")
	fs.StringVar(&c.DatabaseDSN, "d", "", "Database DSN")
	fs.StringVar(&c.MigrationsDir, "m", "internal/db/migrations", "Database migrations directory")
	fs.StringVar(&c.JWTSecret, "j", "", "JWT secret key")
	fs.StringVar(&c.LogLevel, "log-level", "", "Log level")
	fs.StringVar(&c.PayoutProviderAddress, "p", "", "Payout provider base URL")
	fs.DurationVar(&c.PayoutProviderTimeout, "provider-timeout", 10*time.Second, "Payout provider call timeout")
	fs.StringVar(&c.RedisAddress, "r", "", "Redis address for withdrawal events")
	fs.StringVar(&c.RedisChannel, "redis-channel", "withdrawal_events", "Redis pub/sub channel")
	fs.UintVar(&c.ProcessorWorkers, "workers", 5, "Payout processor workers")
	fs.UintVar(&c.ProcessorBatch, "batch", 50, "Withdrawals claimed per processor iteration")
	fs.UintVar(&c.MaxCommitAttempts, "max-commit-attempts", 5, "Commit attempts before reconciliation")
	fs.BoolVar(&c.ExecuteInline, "inline", false, "Execute withdrawals within the request")

	if err := fs.Parse(args); err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &c, nil
}

func mergeConfig(envConfig, flagsConfig *Config) *Config {
	return &Config{
		RunAddress:            defaultIfZero(envConfig.RunAddress, flagsConfig.RunAddress),
		DatabaseDSN:           defaultIfZero(envConfig.DatabaseDSN, flagsConfig.DatabaseDSN),
		MigrationsDir:         defaultIfZero(envConfig.MigrationsDir, flagsConfig.MigrationsDir),
		JWTSecret:             defaultIfZero(envConfig.JWTSecret, flagsConfig.JWTSecret),
		LogLevel:              defaultIfZero(envConfig.LogLevel, flagsConfig.LogLevel),
		PayoutProviderAddress: defaultIfZero(envConfig.PayoutProviderAddress, flagsConfig.PayoutProviderAddress),
		PayoutProviderTimeout: defaultIfZero(envConfig.PayoutProviderTimeout, flagsConfig.PayoutProviderTimeout),
		RedisAddress:          defaultIfZero(envConfig.RedisAddress, flagsConfig.RedisAddress),
		RedisChannel:          defaultIfZero(envConfig.RedisChannel, flagsConfig.RedisChannel),
		ProcessorWorkers:      defaultIfZero(envConfig.ProcessorWorkers, flagsConfig.ProcessorWorkers),
		ProcessorBatch:        defaultIfZero(envConfig.ProcessorBatch, flagsConfig.ProcessorBatch),
		MaxCommitAttempts:     defaultIfZero(envConfig.MaxCommitAttempts, flagsConfig.MaxCommitAttempts),
		ExecuteInline:         envConfig.ExecuteInline || flagsConfig.ExecuteInline,
	}
}

func defaultIfZero[T comparable](value T, defaultValue T) T {
	var zero T
	if value == zero {
		return defaultValue
	}
	return value
}
