package kv

import (
	"context"
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"
)

const (
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

type Options struct {
	Driver        string
	Path          string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Prefix        string
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open builds the Store selected by opts.Driver. The returned closer releases
// the underlying connection.
func Open(ctx context.Context, opts Options) (Store, io.Closer, error) {
	switch opts.Driver {
	case DriverSQLite, "":
		store, err := NewSQLite(opts.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite store at %s: %w", opts.Path, err)
		}
		return store, store, nil
	case DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     opts.RedisAddr,
			Password: opts.RedisPassword,
			DB:       opts.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.RedisAddr, err)
		}
		store := NewRedis(client, opts.Prefix)
		return store, store, nil
	case DriverMemory:
		return NewMemory(), nopCloser{}, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}
