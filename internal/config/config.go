// Package config loads the process-wide TOML configuration for the
// pricing-cache daemon: a singleton populated once and a defaulting pass
// applied after decode.
package config

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
)

type redisConfig struct {
	Addr             string   `toml:"addr"`
	Password         string   `toml:"password"`
	DB               int      `toml:"db"`
	UseSentinel      bool     `toml:"useSentinel"`
	SentinelAddrs    []string `toml:"sentinelAddrs"`
	MasterName       string   `toml:"masterName"`
	SentinelPassword string   `toml:"sentinelPassword"`

	PoolSize     int `toml:"poolSize"`
	MinIdleConns int `toml:"minIdleConns"`
	MaxRetries   int `toml:"maxRetries"`
	DialTimeout  int `toml:"dialTimeout"`
	ReadTimeout  int `toml:"readTimeout"`
	WriteTimeout int `toml:"writeTimeout"`
}

type oracleConfig struct {
	BaseURL        string `toml:"baseUrl"`
	BearerToken    string `toml:"bearerToken"`
	TimeoutSeconds int    `toml:"timeoutSeconds"`
}

type cacheConfig struct {
	FreshTTLSeconds        int `toml:"freshTtlSeconds"`
	StaleTTLSeconds        int `toml:"staleTtlSeconds"`
	LeaseTTLSeconds        int `toml:"leaseTtlSeconds"`
	FollowerTimeoutSeconds int `toml:"followerTimeoutSeconds"`
	FollowerRetries        int `toml:"followerRetries"`
	FetchBudgetSeconds     int  `toml:"fetchBudgetSeconds"`
	DisableStaleRetention  bool `toml:"disableStaleRetention"`
}

type breakerConfig struct {
	FailureThreshold  int `toml:"failureThreshold"`
	CooldownSeconds   int `toml:"cooldownSeconds"`
	HalfOpenMaxProbes int `toml:"halfOpenMaxProbes"`
}

type logConfig struct {
	Level string `toml:"level"`
}

type httpConfig struct {
	Addr string `toml:"addr"`
}

// Config is the top-level decoded TOML document.
type Config struct {
	Environment string        `toml:"environment"`
	Redis       redisConfig   `toml:"redis"`
	Oracle      oracleConfig  `toml:"oracle"`
	Cache       cacheConfig   `toml:"cache"`
	Breaker     breakerConfig `toml:"breaker"`
	Log         logConfig     `toml:"log"`
	HTTP        httpConfig    `toml:"http"`
}

var (
	instance *Config
	once     sync.Once
)

// DefaultPath is where the daemon looks for its TOML file unless overridden.
const DefaultPath = "/etc/pricecoalescer/config.toml"

// GetInstance lazily parses DefaultPath exactly once per process.
func GetInstance() *Config {
	once.Do(func() {
		var err error
		instance, err = Load(DefaultPath)
		if err != nil {
			panic(err.Error())
		}
	})
	return instance
}

// Load parses the TOML file at path and applies defaults. An empty path, or
// a missing file, yields a fully-defaulted Config rather than an error, so
// tests and local runs work without a config file on disk.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	cfg.setDefaults()
	return cfg, nil
}

func (c *Config) setDefaults() {
	if c.Environment == "" {
		c.Environment = "dev"
	}

	if c.Redis.Addr == "" && !c.Redis.UseSentinel {
		c.Redis.Addr = "127.0.0.1:6379"
	}
	if c.Redis.PoolSize <= 0 {
		c.Redis.PoolSize = 10
	}
	if c.Redis.MaxRetries <= 0 {
		c.Redis.MaxRetries = 3
	}
	if c.Redis.DialTimeout <= 0 {
		c.Redis.DialTimeout = 5
	}
	if c.Redis.ReadTimeout <= 0 {
		c.Redis.ReadTimeout = 3
	}
	if c.Redis.WriteTimeout <= 0 {
		c.Redis.WriteTimeout = 3
	}

	if c.Oracle.TimeoutSeconds <= 0 {
		c.Oracle.TimeoutSeconds = 30
	}

	if c.Cache.FreshTTLSeconds <= 0 {
		c.Cache.FreshTTLSeconds = 300
	}
	if c.Cache.StaleTTLSeconds <= 0 {
		c.Cache.StaleTTLSeconds = 900
	}
	if c.Cache.LeaseTTLSeconds <= 0 {
		c.Cache.LeaseTTLSeconds = 60
	}
	if c.Cache.FollowerTimeoutSeconds <= 0 {
		c.Cache.FollowerTimeoutSeconds = 15
	}
	if c.Cache.FollowerRetries <= 0 {
		c.Cache.FollowerRetries = 2
	}
	if c.Cache.FetchBudgetSeconds <= 0 {
		c.Cache.FetchBudgetSeconds = 30
	}

	if c.Breaker.FailureThreshold <= 0 {
		c.Breaker.FailureThreshold = 5
	}
	if c.Breaker.CooldownSeconds <= 0 {
		c.Breaker.CooldownSeconds = 60
	}
	if c.Breaker.HalfOpenMaxProbes <= 0 {
		c.Breaker.HalfOpenMaxProbes = 1
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":9090"
	}
}

func (c *redisConfig) dialTimeout() time.Duration  { return time.Duration(c.DialTimeout) * time.Second }
func (c *redisConfig) readTimeout() time.Duration  { return time.Duration(c.ReadTimeout) * time.Second }
func (c *redisConfig) writeTimeout() time.Duration { return time.Duration(c.WriteTimeout) * time.Second }

// RedisDialTimeout, RedisReadTimeout, RedisWriteTimeout expose the derived
// durations to the store package without leaking the unexported type.
func (c *Config) RedisDialTimeout() time.Duration  { return c.Redis.dialTimeout() }
func (c *Config) RedisReadTimeout() time.Duration  { return c.Redis.readTimeout() }
func (c *Config) RedisWriteTimeout() time.Duration { return c.Redis.writeTimeout() }

func (c *Config) FreshTTL() time.Duration {
	return time.Duration(c.Cache.FreshTTLSeconds) * time.Second
}

func (c *Config) StaleTTL() time.Duration {
	return time.Duration(c.Cache.StaleTTLSeconds) * time.Second
}

func (c *Config) LeaseTTL() time.Duration {
	return time.Duration(c.Cache.LeaseTTLSeconds) * time.Second
}

func (c *Config) FollowerTimeout() time.Duration {
	return time.Duration(c.Cache.FollowerTimeoutSeconds) * time.Second
}

func (c *Config) FetchBudget() time.Duration {
	return time.Duration(c.Cache.FetchBudgetSeconds) * time.Second
}

// StaleRetentionEnabled is true unless the operator explicitly opted out; a
// plain bool cannot distinguish "unset" from "false" in TOML, so the field
// is phrased as a negative and inverted here to keep the safe default (stale
// fallback on) when the key is absent from the file.
func (c *Config) StaleRetentionEnabled() bool {
	return !c.Cache.DisableStaleRetention
}

func (c *Config) BreakerCooldown() time.Duration {
	return time.Duration(c.Breaker.CooldownSeconds) * time.Second
}

func (c *Config) OracleTimeout() time.Duration {
	return time.Duration(c.Oracle.TimeoutSeconds) * time.Second
}
