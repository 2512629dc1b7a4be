package cache

import (
	"context"
	"log"
)

type OpenOptions struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SQLitePath    string
}

// Open picks the cache backend: redis when an address is configured and
// reachable, otherwise the sqlite file. The returned close func is never nil.
func Open(ctx context.Context, opts OpenOptions) (*Local, func() error, error) {
	if opts.RedisAddr != "" {
		redisBackend := NewRedisBackend(opts.RedisAddr, opts.RedisPassword, opts.RedisDB)
		if err := redisBackend.Ping(ctx); err != nil {
			log.Printf("[cache] WARN: redis unavailable (%v), using sqlite at %s", err, opts.SQLitePath)
			_ = redisBackend.Close()
		} else {
			log.Println("[cache] backend: redis")
			return NewLocal(redisBackend), redisBackend.Close, nil
		}
	}

	sqliteBackend, err := NewSQLiteBackend(ctx, opts.SQLitePath)
	if err != nil {
		return nil, func() error { return nil }, err
	}
	log.Printf("[cache] backend: sqlite (%s)", opts.SQLitePath)
	return NewLocal(sqliteBackend), sqliteBackend.Close, nil
}
