package config

import (
	"time"

	"github.com/spf13/viper"
)

type (
	Config struct {
		Database
		Pool
		Metrics
	}

	Database struct {
		Path        string
		BusyTimeout time.Duration // how long a connection waits on a lock before SQLITE_BUSY
	}

	Pool struct {
		Size           int           // maximum number of physical connections
		AcquireTimeout time.Duration // how long Acquire blocks before giving up
	}

	Metrics struct {
		SampleInterval time.Duration // minimum spacing between time-series samples
		SampleCapacity int           // ring buffer size, oldest sample evicted on overflow
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("database_path", DefaultDatabasePath)
	v.SetDefault("database_busy_timeout", "30s")

	v.SetDefault("pool_size", 4)
	v.SetDefault("pool_acquire_timeout", "10s")

	v.SetDefault("metrics_sample_interval", "60s")
	v.SetDefault("metrics_sample_capacity", 60)

	return &Config{
		Database: Database{
			Path:        v.GetString("DATABASE_PATH"),
			BusyTimeout: v.GetDuration("DATABASE_BUSY_TIMEOUT"),
		},
		Pool: Pool{
			Size:           v.GetInt("POOL_SIZE"),
			AcquireTimeout: v.GetDuration("POOL_ACQUIRE_TIMEOUT"),
		},
		Metrics: Metrics{
			SampleInterval: v.GetDuration("METRICS_SAMPLE_INTERVAL"),
			SampleCapacity: v.GetInt("METRICS_SAMPLE_CAPACITY"),
		},
	}
}
