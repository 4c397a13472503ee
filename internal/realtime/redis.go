package realtime

import (
	"log"

	"github.com/redis/go-redis/v9"
)

// NewRedis creates a new Redis client.
func NewRedis(addr, password string) *redis.Client {
	if addr == "" {
		addr = "localhost:6379"
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	log.Printf("Redis client created (addr: %s)\n", addr)
	return rdb
}
