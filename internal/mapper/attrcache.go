package mapper

import (
	"context"
	"fmt"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
)

const attributeCacheKey = "api_attribute_ids_cache"

// SettingsStore is the key-value slice of the store backing the cache.
type SettingsStore interface {
	GetSetting(key string) (string, error)
	SetSetting(key, value string) error
	DeleteSetting(key string) error
}

type attributeItem struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type attributeListResponse struct {
	Data []attributeItem `json:"data"`
}

// AttributeCache maps attribute names to the ids the MLS protocol keys its
// attribute list by. The map is fetched once and persisted in the settings
// table; there is no staleness detection, so a catalog change on the
// remote side requires an explicit Refresh or Invalidate.
type AttributeCache struct {
	settings SettingsStore
	fetch    func(ctx context.Context) ([]byte, error)
	logger   *logrus.Logger
	mu       sync.Mutex
}

func NewAttributeCache(settings SettingsStore, fetch func(ctx context.Context) ([]byte, error), logger *logrus.Logger) *AttributeCache {
	return &AttributeCache{settings: settings, fetch: fetch, logger: logger}
}

// IDs returns the cached name-to-id map, loading it from the API on first
// use. A missing or unconfigured API yields an empty map, not an error, so
// callers degrade to an attribute-less payload.
func (c *AttributeCache) IDs(ctx context.Context) (map[string]int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cached, err := c.settings.GetSetting(attributeCacheKey)
	if err != nil {
		return nil, err
	}
	if cached != "" {
		var ids map[string]int
		if err := json.Unmarshal([]byte(cached), &ids); err == nil {
			return ids, nil
		}
		c.logger.Warn("Corrupt attribute cache entry, refetching")
	}

	return c.load(ctx)
}

// IDToName is the reverse of IDs, used on import.
func (c *AttributeCache) IDToName(ctx context.Context) (map[int]string, error) {
	ids, err := c.IDs(ctx)
	if err != nil {
		return nil, err
	}
	reversed := make(map[int]string, len(ids))
	for name, id := range ids {
		reversed[id] = name
	}
	return reversed, nil
}

// Invalidate drops the persisted map; the next IDs call refetches.
func (c *AttributeCache) Invalidate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings.DeleteSetting(attributeCacheKey)
}

// Refresh refetches the catalog unconditionally.
func (c *AttributeCache) Refresh(ctx context.Context) (map[string]int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load(ctx)
}

func (c *AttributeCache) load(ctx context.Context) (map[string]int, error) {
	body, err := c.fetch(ctx)
	if err != nil {
		c.logger.WithError(err).Warn("Failed to load attribute catalog from API")
		return map[string]int{}, nil
	}

	items, err := decodeAttributeList(body)
	if err != nil {
		return nil, err
	}

	ids := make(map[string]int, len(items))
	for _, item := range items {
		if item.Name != "" && item.ID != 0 {
			ids[item.Name] = item.ID
		}
	}

	encoded, err := json.Marshal(ids)
	if err != nil {
		return nil, err
	}
	if err := c.settings.SetSetting(attributeCacheKey, string(encoded)); err != nil {
		return nil, err
	}
	c.logger.WithField("count", len(ids)).Info("Cached API attribute ids")
	return ids, nil
}

// decodeAttributeList accepts both the bare-array and the data-wrapped
// response shapes.
func decodeAttributeList(body []byte) ([]attributeItem, error) {
	var items []attributeItem
	if err := json.Unmarshal(body, &items); err == nil {
		return items, nil
	}
	var wrapped attributeListResponse
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to decode attribute catalog: %w", err)
	}
	return wrapped.Data, nil
}
