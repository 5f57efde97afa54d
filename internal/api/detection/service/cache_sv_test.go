package detectionService

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/context"

	"github.com/Sei0217/visually-impaired/internal/api/detection"
	"github.com/Sei0217/visually-impaired/internal/entity"
	"github.com/Sei0217/visually-impaired/pkg/annotate"
	"github.com/Sei0217/visually-impaired/pkg/imgcodec"
	"github.com/Sei0217/visually-impaired/pkg/redis"
)

type memoryCache struct {
	entries map[string][]byte
	ttl     time.Duration
	getErr  error
	sets    int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]byte{}}
}

func (m *memoryCache) GetResult(_ context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	b, ok := m.entries[key]
	if !ok {
		return nil, redis.ErrCacheMiss
	}
	return b, nil
}

func (m *memoryCache) SetResult(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.sets++
	m.ttl = ttl
	m.entries[key] = value
	return nil
}

func cachedService(d *fakeDetector, cache ResultCache) IDetectionService {
	return NewDetectionService(quietLogger(), d, annotate.New("", nil), imgcodec.DefaultQuality, 0, cache, time.Minute)
}

func personDetector() *fakeDetector {
	return &fakeDetector{
		names: []string{"person", "car"},
		raw:   []entity.RawDetection{{Box: [4]float64{1, 1, 20, 20}, ClassIndex: 0, Score: 0.8}},
	}
}

func TestCacheHitSkipsDetector(t *testing.T) {
	d := personDetector()
	cache := newMemoryCache()
	svc := cachedService(d, cache)
	data := pngBytes(t, 32, 32)

	first, err := svc.Detect(context.Background(), data, defaultParams())
	require.NoError(t, err)
	second, err := svc.Detect(context.Background(), data, defaultParams())
	require.NoError(t, err)

	assert.Equal(t, 1, d.calls)
	assert.Equal(t, 1, cache.sets)
	assert.Equal(t, time.Minute, cache.ttl)
	assert.Equal(t, first, second)
}

func TestCacheKeyCoversParams(t *testing.T) {
	d := personDetector()
	svc := cachedService(d, newMemoryCache())
	data := pngBytes(t, 32, 32)

	_, err := svc.Detect(context.Background(), data, defaultParams())
	require.NoError(t, err)

	params := defaultParams()
	params.EmitAnnotatedImage = false
	resp, err := svc.Detect(context.Background(), data, params)
	require.NoError(t, err)

	assert.Equal(t, 2, d.calls)
	assert.Empty(t, resp.AnnotatedImageURL)
}

func TestCacheFailureFallsThrough(t *testing.T) {
	d := personDetector()
	cache := newMemoryCache()
	cache.getErr = errors.New("connection refused")
	svc := cachedService(d, cache)

	resp, err := svc.Detect(context.Background(), pngBytes(t, 32, 32), defaultParams())
	require.NoError(t, err)

	assert.Equal(t, "person", resp.ObjectType)
	assert.Equal(t, 1, d.calls)
}

func TestCacheSkipsFailedRequests(t *testing.T) {
	cache := newMemoryCache()
	svc := cachedService(personDetector(), cache)

	_, err := svc.Detect(context.Background(), []byte("not an image"), defaultParams())
	require.Error(t, err)
	assert.Zero(t, cache.sets)
}

func TestFingerprint(t *testing.T) {
	data := []byte("image")
	base := defaultParams()

	assert.Equal(t, fingerprint(data, base), fingerprint(data, base))
	assert.Len(t, fingerprint(data, base), 64)
	assert.NotEqual(t, fingerprint(data, base), fingerprint([]byte("other"), base))

	restricted := base
	restricted.ClassAllowList = detection.NewClassSet("person")
	assert.NotEqual(t, fingerprint(data, base), fingerprint(data, restricted))

	larger := base
	larger.InputSize = 320
	assert.NotEqual(t, fingerprint(data, base), fingerprint(data, larger))
}
