package external

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"gov_queue/internal/logging"
	"gov_queue/internal/metrics"
	"gov_queue/internal/models"
)

var ErrServiceNotFound = errors.New("service not found")

const serviceCachePrefix = "directory:service:"

// DirectoryClient reads services from the department directory. Answers are
// cached in Redis for ttl; concurrent misses for one service share a call.
type DirectoryClient struct {
	c     *client
	cache *redis.Client
	ttl   time.Duration
	group singleflight.Group
}

// NewDirectoryClient builds the client; cache may be nil.
func NewDirectoryClient(baseURL string, timeout time.Duration, bc BreakerConfig, cache *redis.Client, ttl time.Duration) *DirectoryClient {
	return &DirectoryClient{
		c:     newClient("directory", baseURL, timeout, bc),
		cache: cache,
		ttl:   ttl,
	}
}

func (d *DirectoryClient) GetService(ctx context.Context, id uuid.UUID) (*models.Service, error) {
	key := serviceCachePrefix + id.String()
	if svc, ok := d.cached(ctx, key); ok {
		metrics.DirectoryCache.WithLabelValues("hit").Inc()
		return svc, nil
	}
	metrics.DirectoryCache.WithLabelValues("miss").Inc()

	v, err, _ := d.group.Do(key, func() (any, error) {
		data, err := d.c.do(ctx, http.MethodGet, "/services/"+id.String(), nil)
		if err != nil {
			if isNotFound(err) {
				return nil, fmt.Errorf("%w: %s", ErrServiceNotFound, id)
			}
			return nil, err
		}
		var svc models.Service
		if err := json.Unmarshal(data, &svc); err != nil {
			return nil, fmt.Errorf("directory: decode %s: %w", id, err)
		}
		if d.cache != nil && d.ttl > 0 {
			if err := d.cache.Set(ctx, key, data, d.ttl).Err(); err != nil {
				logging.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("directory cache write failed")
			}
		}
		return &svc, nil
	})
	if err != nil {
		return nil, err
	}
	svc := *v.(*models.Service)
	return &svc, nil
}

func (d *DirectoryClient) cached(ctx context.Context, key string) (*models.Service, bool) {
	if d.cache == nil {
		return nil, false
	}
	data, err := d.cache.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logging.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("directory cache read failed")
		}
		return nil, false
	}
	var svc models.Service
	if err := json.Unmarshal(data, &svc); err != nil {
		return nil, false
	}
	return &svc, true
}
