package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRedisOptions_KeepDefaultsOnZeroValues(t *testing.T) {
	cfg := &RedisConfig{Host: "localhost", Port: 6379, Prefix: "finfactor"}
	for _, opt := range []RedisOption{
		WithRedisAddr("", 0),
		WithRedisPrefix(""),
		WithRedisAuth("secret", 3),
		WithRedisPool(4, 1, time.Second),
	} {
		opt(cfg)
	}
	assert.Equal(t, &RedisConfig{
		Host: "localhost", Port: 6379, Password: "secret", DB: 3,
		PoolSize: 4, MinIdleConns: 1, PoolTimeout: time.Second, Prefix: "finfactor",
	}, cfg)

	WithRedisAddr("redis", 6380)(cfg)
	WithRedisPrefix("ff")(cfg)
	assert.Equal(t, "redis", cfg.Host)
	assert.Equal(t, 6380, cfg.Port)
	assert.Equal(t, "ff", cfg.Prefix)
}

func TestLayeredMemoryOption(t *testing.T) {
	cfg := &LayeredConfig{MemoryMaxSize: 1000, MemoryTTL: 10 * time.Minute}
	WithLayeredMemory(0, 0)(cfg)
	assert.Equal(t, LayeredConfig{MemoryMaxSize: 1000, MemoryTTL: 10 * time.Minute}, *cfg)

	WithLayeredMemory(64, 90*time.Minute)(cfg)
	assert.Equal(t, LayeredConfig{MemoryMaxSize: 64, MemoryTTL: 90 * time.Minute}, *cfg)

	lc := NewLayeredCache(NewMemoryCache(), WithLayeredMemory(8, time.Minute))
	defer lc.Close()
	assert.Equal(t, time.Minute, lc.l1TTL)
}
