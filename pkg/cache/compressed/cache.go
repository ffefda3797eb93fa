package compressed

import (
	"bytes"
	"compress/gzip"

	// simple checksum usage for validation
	"crypto/md5" // nolint:gosec
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/wabouhamad/nvidia-ci/pkg/apis/cache"
)

const (
	cachePrefix = "cc:"
	sumLen      = md5.Size
)

// Cache gzips values before handing them to the wrapped cache and appends an
// md5 checksum that is verified on the way back.
type Cache struct {
	Cache cache.Cache
	log   log.FieldLogger
}

func NewCompressedCache(c cache.Cache, logger log.FieldLogger) *Cache {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Cache{
		Cache: c,
		log:   logger,
	}
}

func (c *Cache) Get(key string) ([]byte, error) {
	b, err := c.Cache.Get(cachePrefix + key)
	if err != nil {
		return nil, err
	}

	if len(b) < sumLen {
		return nil, errors.Errorf("invalid cache item length %d for key %s", len(b), key)
	}

	// the last bytes are the checksum
	data := b[:len(b)-sumLen]
	var checksum [sumLen]byte
	copy(checksum[:], b[len(b)-sumLen:])
	return uncompress(data, checksum)
}

func (c *Cache) Set(key string, content []byte, duration time.Duration) error {
	if len(content) == 0 {
		c.log.Warningf("Key: %s data size is 0", key)
		return nil
	}

	data, checksum, err := compress(content)
	if err != nil {
		return err
	}
	data = append(data, checksum[:]...)

	c.log.WithField("key", key).Debugf("compressed cache item from %d to %d bytes", len(content), len(data))

	return c.Cache.Set(cachePrefix+key, data, duration)
}

func compress(value []byte) ([]byte, [sumLen]byte, error) {
	var buf bytes.Buffer
	sum := md5.Sum(value) // nolint:gosec

	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(value); err != nil {
		return nil, sum, err
	}
	if err := zw.Close(); err != nil {
		return nil, sum, err
	}
	return buf.Bytes(), sum, nil
}

func uncompress(value []byte, vSum [sumLen]byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(value))
	if err != nil {
		return nil, err
	}

	var uncompressed bytes.Buffer
	if _, err := uncompressed.ReadFrom(zr); err != nil {
		return nil, err
	}
	if err := zr.Close(); err != nil {
		return nil, err
	}

	ret := uncompressed.Bytes()
	if md5.Sum(ret) != vSum { // nolint:gosec
		return nil, errors.New("check sum validation did not match")
	}
	return ret, nil
}
