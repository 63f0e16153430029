package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions describes the connection parameters for the backing Redis
// deployment.
type RedisOptions struct {
	UseSentinel      bool
	Addr             string
	Password         string
	DB               int
	SentinelAddrs    []string
	SentinelPassword string
	MasterName       string

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MinIdleConns int
}

func (o *RedisOptions) normalize() {
	if o.DialTimeout <= 0 {
		o.DialTimeout = 5 * time.Second
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 3 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 3 * time.Second
	}
	if o.PoolSize <= 0 {
		o.PoolSize = 10
	}
	if o.MinIdleConns < 0 {
		o.MinIdleConns = 0
	}
}

// NewRedisClient builds a *redis.Client (or failover client in sentinel
// mode), pinging it with a short bounded retry before returning.
func NewRedisClient(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	opts.normalize()

	var client *redis.Client
	if opts.UseSentinel {
		if len(opts.SentinelAddrs) == 0 {
			return nil, errors.New("store: sentinel mode enabled but sentinelAddrs is empty")
		}
		if opts.MasterName == "" {
			return nil, errors.New("store: sentinel mode requires masterName")
		}
		client = redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:       opts.MasterName,
			SentinelAddrs:    opts.SentinelAddrs,
			SentinelPassword: opts.SentinelPassword,
			Password:         opts.Password,
			DB:               opts.DB,
			PoolSize:         opts.PoolSize,
			MinIdleConns:     opts.MinIdleConns,
			DialTimeout:      opts.DialTimeout,
			ReadTimeout:      opts.ReadTimeout,
			WriteTimeout:     opts.WriteTimeout,
		})
	} else {
		if opts.Addr == "" {
			return nil, errors.New("store: addr is required in standalone mode")
		}
		client = redis.NewClient(&redis.Options{
			Addr:         opts.Addr,
			Password:     opts.Password,
			DB:           opts.DB,
			PoolSize:     opts.PoolSize,
			MinIdleConns: opts.MinIdleConns,
			DialTimeout:  opts.DialTimeout,
			ReadTimeout:  opts.ReadTimeout,
			WriteTimeout: opts.WriteTimeout,
		})
	}

	if err := pingWithRetry(ctx, client, 3); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("store: connect to redis: %w", err)
	}
	return client, nil
}

func pingWithRetry(ctx context.Context, client *redis.Client, maxRetries int) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if err := client.Ping(ctx).Err(); err != nil {
			lastErr = err
			if !isRetryableRedisErr(err) || attempt == maxRetries-1 {
				return err
			}
			time.Sleep(50 * time.Millisecond)
			continue
		}
		return nil
	}
	return lastErr
}

func isRetryableRedisErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
