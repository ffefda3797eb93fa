package redis

import (
	"time"

	"github.com/pkg/errors"
	r "gopkg.in/redis.v5"
)

const prefix = "_NVCI_"

type Cache struct {
	client *r.Client
}

func NewRedisCache(url string) (*Cache, error) {
	opts, err := r.ParseURL(url)
	if err != nil {
		return nil, errors.WithMessage(err, "invalid redis url")
	}

	return &Cache{
		client: r.NewClient(opts),
	}, nil
}

func (c Cache) Get(key string) ([]byte, error) {
	return c.client.Get(prefix + key).Bytes()
}

func (c Cache) Set(key string, content []byte, duration time.Duration) error {
	return c.client.Set(prefix+key, content, duration).Err()
}

func (c Cache) Close() error {
	return c.client.Close()
}
