package cache

import "time"

// BytesCache is a minimal cache API storing raw bytes with TTL. The fraud
// velocity control keeps its cooldown markers here so a Redis-backed
// implementation can share cooldowns across nodes.
type BytesCache interface {
	GetBytes(key string) (b []byte, ok bool, err error)
	SetBytes(key string, value []byte, ttl time.Duration) error
	DeleteBytes(key string) error
}
