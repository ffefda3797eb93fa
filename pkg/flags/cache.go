package flags

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/wabouhamad/nvidia-ci/pkg/apis/cache"
	"github.com/wabouhamad/nvidia-ci/pkg/cache/compressed"
	"github.com/wabouhamad/nvidia-ci/pkg/cache/redis"
)

// CacheFlags holds caching configuration for CI artifacts.
type CacheFlags struct {
	RedisURL string
}

func NewCacheFlags() *CacheFlags {
	return &CacheFlags{
		RedisURL: envOr("REDIS_URL", ""),
	}
}

func (f *CacheFlags) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&f.RedisURL,
		"redis-url",
		f.RedisURL,
		"Redis URL for caching CI artifacts")
}

// GetCacheClient returns a compressing redis cache, or nil when no redis URL
// is configured.
func (f *CacheFlags) GetCacheClient(logger log.FieldLogger) (cache.Cache, error) {
	if f.RedisURL == "" {
		return nil, nil
	}

	c, err := redis.NewRedisCache(f.RedisURL)
	if err != nil {
		return nil, err
	}
	return compressed.NewCompressedCache(c, logger), nil
}
