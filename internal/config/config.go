package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	DB        DBConfig        `mapstructure:"db"`
	Precision PrecisionConfig `mapstructure:"precision"`
	Compute   ComputeConfig   `mapstructure:"compute"`
	Cron      CronConfig      `mapstructure:"cron"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

// PrecisionConfig controls the per-symbol dust/rounding provider. When
// use_table is false the static defaults are used for every symbol.
type PrecisionConfig struct {
	UseTable        bool   `mapstructure:"use_table"`
	DefaultDust     string `mapstructure:"default_dust"`
	DefaultDecimals int32  `mapstructure:"default_decimals"`
}

type ComputeConfig struct {
	ActiveVersion   int    `mapstructure:"active_version"`
	TriggeredBy     string `mapstructure:"triggered_by"`
	InsertBatchSize int    `mapstructure:"insert_batch_size"`
}

type CronConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Recompute     string `mapstructure:"recompute"`
	ValidateAfter bool   `mapstructure:"validate_after"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FIFO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("precision.use_table", true)
	v.SetDefault("precision.default_dust", "0.00000001")
	v.SetDefault("precision.default_decimals", 8)
	v.SetDefault("compute.active_version", 1)
	v.SetDefault("compute.triggered_by", "scheduler")
	v.SetDefault("compute.insert_batch_size", 500)
	v.SetDefault("cron.enabled", false)
	v.SetDefault("cron.recompute", "0 0 2 * * *")
	v.SetDefault("cron.validate_after", true)

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
