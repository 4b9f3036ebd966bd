package geocoding

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
)

const yandexGeocoderURL = "https://geocode-maps.yandex.ru/1.x/"

// Geocoder resolves addresses through the Yandex geocoder API with a
// file-backed response cache, so repeated lookups for the same address
// never hit the network twice.
type Geocoder struct {
	apiKey    string
	logger    *logrus.Logger
	cacheDir  string
	cache     map[string][]float64
	cacheLock sync.RWMutex
	client    *http.Client
}

func NewGeocoder(apiKey string, logger *logrus.Logger, cacheDir string) *Geocoder {
	os.MkdirAll(cacheDir, 0755)

	g := &Geocoder{
		apiKey:   apiKey,
		logger:   logger,
		cacheDir: cacheDir,
		cache:    make(map[string][]float64),
		client:   &http.Client{Timeout: 10 * time.Second},
	}
	g.loadCache()
	return g
}

func (g *Geocoder) IsConfigured() bool {
	return g.apiKey != ""
}

func (g *Geocoder) loadCache() {
	cacheFile := filepath.Join(g.cacheDir, "geocode_cache.json")
	data, err := os.ReadFile(cacheFile)
	if err != nil {
		return
	}
	if err := json.Unmarshal(data, &g.cache); err != nil {
		g.logger.Errorf("Failed to parse geocode cache: %v", err)
		return
	}
	g.logger.Infof("Loaded %d cached addresses", len(g.cache))
}

func (g *Geocoder) saveCache() {
	g.cacheLock.RLock()
	defer g.cacheLock.RUnlock()

	cacheFile := filepath.Join(g.cacheDir, "geocode_cache.json")
	data, err := json.Marshal(g.cache)
	if err != nil {
		g.logger.Errorf("Failed to marshal geocode cache: %v", err)
		return
	}
	if err := os.WriteFile(cacheFile, data, 0644); err != nil {
		g.logger.Errorf("Failed to save geocode cache: %v", err)
	}
}

type yandexResponse struct {
	Response struct {
		GeoObjectCollection struct {
			FeatureMember []struct {
				GeoObject geoObject `json:"GeoObject"`
			} `json:"featureMember"`
		} `json:"GeoObjectCollection"`
	} `json:"response"`
}

type geoObject struct {
	Name  string `json:"name"`
	Point struct {
		Pos string `json:"pos"`
	} `json:"Point"`
	MetaDataProperty struct {
		GeocoderMetaData struct {
			Address struct {
				Components []struct {
					Kind string `json:"kind"`
					Name string `json:"name"`
				} `json:"Components"`
			} `json:"Address"`
		} `json:"GeocoderMetaData"`
	} `json:"metaDataProperty"`
}

func (g *Geocoder) query(ctx context.Context, params url.Values) (*yandexResponse, error) {
	params.Set("apikey", g.apiKey)
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, yandexGeocoderURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.URL.RawQuery = params.Encode()

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocoding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoder returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	var result yandexResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &result, nil
}

// GeocodeAddress resolves a free-form address to coordinates.
func (g *Geocoder) GeocodeAddress(ctx context.Context, address string) (float64, float64, error) {
	g.cacheLock.RLock()
	if coords, ok := g.cache[address]; ok {
		g.cacheLock.RUnlock()
		if len(coords) == 2 {
			return coords[0], coords[1], nil
		}
		return 0, 0, fmt.Errorf("invalid cached coordinates")
	}
	g.cacheLock.RUnlock()

	g.logger.WithField("address", address).Info("Geocoding address")

	result, err := g.query(ctx, url.Values{"geocode": []string{address}})
	if err != nil {
		g.logger.WithError(err).WithField("address", address).Error("Geocoding failed")
		return 0, 0, err
	}

	members := result.Response.GeoObjectCollection.FeatureMember
	if len(members) == 0 {
		return 0, 0, fmt.Errorf("no results found for address: %s", address)
	}

	// Yandex returns "lon lat".
	var lon, lat float64
	if _, err := fmt.Sscanf(members[0].GeoObject.Point.Pos, "%f %f", &lon, &lat); err != nil {
		return 0, 0, fmt.Errorf("malformed coordinates for address: %s", address)
	}

	g.cacheLock.Lock()
	g.cache[address] = []float64{lat, lon}
	g.cacheLock.Unlock()
	go g.saveCache()

	return lat, lon, nil
}

// ReverseGeocodeDistrict resolves coordinates to an administrative
// district name. Residential-complex pseudo-districts are skipped.
func (g *Geocoder) ReverseGeocodeDistrict(ctx context.Context, lat, lon float64) (string, error) {
	result, err := g.query(ctx, url.Values{
		"geocode": []string{fmt.Sprintf("%f,%f", lon, lat)},
		"kind":    []string{"district"},
	})
	if err != nil {
		return "", err
	}

	members := result.Response.GeoObjectCollection.FeatureMember
	for _, member := range members {
		if isDistrictName(member.GeoObject.Name) {
			return member.GeoObject.Name, nil
		}
	}
	for _, member := range members {
		for _, comp := range member.GeoObject.MetaDataProperty.GeocoderMetaData.Address.Components {
			if comp.Kind == "district" && isDistrictName(comp.Name) {
				return comp.Name, nil
			}
		}
	}
	return "", fmt.Errorf("no district found for %f,%f", lat, lon)
}

// isDistrictName accepts administrative districts and rejects residential
// complexes, which the geocoder also labels with the district kind.
func isDistrictName(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "район") && !strings.Contains(lower, "жилой")
}
