package compressed

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pseudoCache struct {
	cache map[string][]byte
}

func (c *pseudoCache) Get(key string) ([]byte, error) {
	b, ok := c.cache[key]
	if !ok {
		return nil, errors.Errorf("no such key %s", key)
	}
	return b, nil
}

func (c *pseudoCache) Set(key string, content []byte, _ time.Duration) error {
	c.cache[key] = content
	return nil
}

const data = `{"passed":true,"result":"SUCCESS","timestamp":1712345678,"metadata":{"repo":"rh-ecosystem-edge/nvidia-ci"}}`

func TestPseudoCache(t *testing.T) {
	backing := &pseudoCache{cache: make(map[string][]byte)}
	c := NewCompressedCache(backing, nil)

	require.NoError(t, c.Set("finished.json", []byte(data), time.Hour))
	assert.Contains(t, backing.cache, cachePrefix+"finished.json")

	got, err := c.Get("finished.json")
	require.NoError(t, err)
	assert.Equal(t, data, string(got))

	_, err = c.Get("missing")
	assert.Error(t, err)
}

func TestEmptyContentIsNotStored(t *testing.T) {
	backing := &pseudoCache{cache: make(map[string][]byte)}
	c := NewCompressedCache(backing, nil)

	require.NoError(t, c.Set("empty", nil, time.Hour))
	assert.Empty(t, backing.cache)
}

func TestCorruptedItem(t *testing.T) {
	backing := &pseudoCache{cache: make(map[string][]byte)}
	c := NewCompressedCache(backing, nil)
	require.NoError(t, c.Set("key", []byte(data), time.Hour))

	stored := backing.cache[cachePrefix+"key"]
	stored[len(stored)-1] ^= 0xff

	_, err := c.Get("key")
	assert.Error(t, err)

	backing.cache[cachePrefix+"short"] = []byte("abc")
	_, err = c.Get("short")
	assert.Error(t, err)
}

func TestCompression(t *testing.T) {
	compressed, checksum, err := compress([]byte(data))
	require.NoError(t, err)
	require.NotNil(t, compressed)

	uncompressed, err := uncompress(compressed, checksum)
	require.NoError(t, err)
	assert.Equal(t, data, string(uncompressed))
}
