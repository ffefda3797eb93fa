package cache

import "time"

// Cache stores raw bytes under a key for a limited time. A Get for a key that
// is absent or expired returns an error.
type Cache interface {
	Get(key string) ([]byte, error)
	Set(key string, content []byte, duration time.Duration) error
}
