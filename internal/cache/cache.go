// Package cache defines the byte-oriented cache abstraction shared by the
// service. Two backends exist: memory (in-process, dev/testing) and redis
// (distributed, production).
package cache

import "time"

type Cache interface {
	Get(key string) (value []byte, ok bool)
	Set(key string, value []byte, ttl time.Duration)
	Delete(key string)
}
