package mapper

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSettings struct {
	values map[string]string
}

func newFakeSettings() *fakeSettings {
	return &fakeSettings{values: map[string]string{}}
}

func (f *fakeSettings) GetSetting(key string) (string, error) {
	return f.values[key], nil
}

func (f *fakeSettings) SetSetting(key, value string) error {
	f.values[key] = value
	return nil
}

func (f *fakeSettings) DeleteSetting(key string) error {
	delete(f.values, key)
	return nil
}

func newCacheWithFetch(fetch func(ctx context.Context) ([]byte, error)) (*AttributeCache, *fakeSettings) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	settings := newFakeSettings()
	return NewAttributeCache(settings, fetch, logger), settings
}

func TestIDsFetchesOnceAndPersists(t *testing.T) {
	fetches := 0
	cache, settings := newCacheWithFetch(func(ctx context.Context) ([]byte, error) {
		fetches++
		return []byte(`[{"id":7,"name":"balcony"}]`), nil
	})

	ids, err := cache.IDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"balcony": 7}, ids)

	ids, err = cache.IDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, ids["balcony"])
	assert.Equal(t, 1, fetches, "the second call must hit the persisted map")
	assert.NotEmpty(t, settings.values[attributeCacheKey])
}

func TestInvalidateDropsPersistedMap(t *testing.T) {
	fetches := 0
	cache, settings := newCacheWithFetch(func(ctx context.Context) ([]byte, error) {
		fetches++
		return []byte(`[{"id":7,"name":"balcony"}]`), nil
	})

	_, err := cache.IDs(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, fetches)

	require.NoError(t, cache.Invalidate())
	assert.Empty(t, settings.values[attributeCacheKey])

	_, err = cache.IDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, fetches, "invalidation must force a refetch")
}

func TestRefreshOverwritesStaleMap(t *testing.T) {
	catalog := []byte(`[{"id":7,"name":"balcony"}]`)
	cache, _ := newCacheWithFetch(func(ctx context.Context) ([]byte, error) {
		return catalog, nil
	})

	ids, err := cache.IDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, ids["balcony"])

	// The remote catalog changed; a plain IDs call keeps serving the old map.
	catalog = []byte(`[{"id":8,"name":"balcony"},{"id":9,"name":"storage"}]`)
	ids, err = cache.IDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, ids["balcony"])

	ids, err = cache.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 8, ids["balcony"])
	assert.Equal(t, 9, ids["storage"])

	ids, err = cache.IDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 8, ids["balcony"], "the refreshed map must be the one persisted")
}

func TestIDsDegradesWhenFetchFails(t *testing.T) {
	cache, _ := newCacheWithFetch(func(ctx context.Context) ([]byte, error) {
		return nil, errors.New("connection refused")
	})

	ids, err := cache.IDs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}
