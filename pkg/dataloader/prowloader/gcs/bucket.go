package gcs

import (
	"context"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/iterator"

	"github.com/wabouhamad/nvidia-ci/pkg/apis/cache"
)

// ArtifactCacheDuration is how long artifact content stays cached. Artifacts
// of finished jobs never change.
const ArtifactCacheDuration = 14 * 24 * time.Hour

// Bucket lists and reads CI artifacts from a GCS bucket. Reads go through an
// optional cache.
type Bucket struct {
	name  string
	bkt   *storage.BucketHandle
	cache cache.Cache
	log   log.FieldLogger
}

func NewBucket(client *storage.Client, name string, c cache.Cache, logger log.FieldLogger) *Bucket {
	var bkt *storage.BucketHandle
	if client != nil {
		bkt = client.Bucket(name)
	}
	return newBucket(bkt, name, c, logger)
}

func newBucket(bkt *storage.BucketHandle, name string, c cache.Cache, logger log.FieldLogger) *Bucket {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Bucket{
		name:  name,
		bkt:   bkt,
		cache: c,
		log:   logger.WithField("bucket", name),
	}
}

// List returns the names of all objects under prefix that match glob. The
// storage iterator takes care of paging.
func (b *Bucket) List(ctx context.Context, prefix, glob string) ([]string, error) {
	it := b.bkt.Objects(ctx, &storage.Query{
		Prefix:    prefix,
		MatchGlob: glob,
	})

	var names []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return names, errors.Wrapf(err, "error listing %s under %s", glob, prefix)
		}
		names = append(names, attrs.Name)
	}
	b.log.Debugf("found %d objects matching %s under %s", len(names), glob, prefix)
	return names, nil
}

// ListPrefixes returns the immediate "directories" under prefix, in bucket order.
func (b *Bucket) ListPrefixes(ctx context.Context, prefix string) ([]string, error) {
	it := b.bkt.Objects(ctx, &storage.Query{
		Prefix:    prefix,
		Delimiter: "/",
	})

	var prefixes []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return prefixes, errors.Wrapf(err, "error listing prefixes under %s", prefix)
		}
		if attrs.Prefix != "" {
			prefixes = append(prefixes, attrs.Prefix)
		}
	}
	return prefixes, nil
}

// Read returns the content of an object. storage.ErrObjectNotExist is
// returned, wrapped, for missing objects.
func (b *Bucket) Read(ctx context.Context, path string) ([]byte, error) {
	if len(path) == 0 {
		return nil, errors.New("missing path to GCS content")
	}

	key := b.name + "/" + path
	if b.cache != nil {
		if content, err := b.cache.Get(key); err == nil {
			return content, nil
		}
	}

	r, err := b.bkt.Object(path).NewReader(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading GCS content for %s", path)
	}
	defer r.Close()

	content, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading GCS content for %s", path)
	}

	if b.cache != nil {
		if err := b.cache.Set(key, content, ArtifactCacheDuration); err != nil {
			b.log.WithError(err).Warningf("could not cache %s", path)
		}
	}
	return content, nil
}

// IsNotExist reports whether err was caused by a missing object.
func IsNotExist(err error) bool {
	return errors.Is(err, storage.ErrObjectNotExist)
}
