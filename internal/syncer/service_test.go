package syncer

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumarokov-vp/estate-sync/internal/apiclient"
	"github.com/sumarokov-vp/estate-sync/internal/database"
	"github.com/sumarokov-vp/estate-sync/internal/images"
	"github.com/sumarokov-vp/estate-sync/internal/mapper"
	"github.com/sumarokov-vp/estate-sync/internal/models"
)

type recordedRequest struct {
	Method string
	Path   string
}

// mlsStub is a scriptable fake of the MLS API that records every request.
type mlsStub struct {
	mu        sync.Mutex
	requests  []recordedRequest
	responses map[string]string // "METHOD path" -> body
	status    map[string]int
}

func newMLSStub() *mlsStub {
	return &mlsStub{
		responses: make(map[string]string),
		status:    make(map[string]int),
	}
}

func (s *mlsStub) on(method, path, body string) {
	s.responses[method+" "+path] = body
}

func (s *mlsStub) failWith(method, path string, status int) {
	s.status[method+" "+path] = status
}

func (s *mlsStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, recordedRequest{Method: r.Method, Path: r.URL.Path})
	s.mu.Unlock()

	key := r.Method + " " + r.URL.Path
	if status, ok := s.status[key]; ok {
		w.WriteHeader(status)
		return
	}
	if body, ok := s.responses[key]; ok {
		w.Write([]byte(body))
		return
	}
	// Reasonable defaults for the endpoints every sync touches.
	switch {
	case r.URL.Path == "/property-images":
		w.Write([]byte(`{"items":[]}`))
	case r.URL.Path == "/properties/attributes":
		w.Write([]byte(`[]`))
	default:
		w.Write([]byte(`{}`))
	}
}

func (s *mlsStub) calls(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, req := range s.requests {
		if req.Method == method && req.Path == path {
			count++
		}
	}
	return count
}

func (s *mlsStub) callsMatching(method, prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, req := range s.requests {
		if req.Method == method && strings.HasPrefix(req.Path, prefix) {
			count++
		}
	}
	return count
}

func newTestService(t *testing.T, stub *mlsStub) (*Service, *database.Database) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	server := httptest.NewServer(stub)
	t.Cleanup(server.Close)

	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())
	t.Cleanup(func() { db.Close() })

	client := apiclient.NewClient(server.URL, "test-key", logger)
	client.SetRetryPolicy(1, time.Millisecond)

	attrs := mapper.NewAttributeCache(db, func(ctx context.Context) ([]byte, error) {
		return client.Get(ctx, "/properties/attributes", nil)
	}, logger)
	m := mapper.NewMapper(db, logger)
	imageService := images.NewService(db, client, logger)

	return NewService(db, client, m, attrs, imageService, logger, 50), db
}

func TestPushFreshPropertyUsesPost(t *testing.T) {
	stub := newMLSStub()
	stub.on("POST", "/properties", `{"id":777}`)
	service, db := newTestService(t, stub)

	p := &models.Property{Name: "Fresh", State: models.StateActive, PropertyType: "apartment", DealType: "sale"}
	require.NoError(t, db.CreateProperty(p))

	require.NoError(t, service.Push(context.Background(), p))

	assert.Equal(t, 1, stub.calls("POST", "/properties"))
	assert.Equal(t, 0, stub.callsMatching("PUT", "/properties"))

	loaded, err := db.GetProperty(p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(777), loaded.ExternalID)
	assert.False(t, loaded.PendingSync)
	assert.NotNil(t, loaded.LastSyncedAt)
}

func TestPushMirroredPropertyUsesPut(t *testing.T) {
	stub := newMLSStub()
	stub.on("PUT", "/properties/777", `{"id":777}`)
	service, db := newTestService(t, stub)

	p := &models.Property{Name: "Mirrored", State: models.StateActive, ExternalID: 777}
	require.NoError(t, db.CreateProperty(p))

	require.NoError(t, service.Push(context.Background(), p))
	require.NoError(t, service.Push(context.Background(), p))

	assert.Equal(t, 0, stub.calls("POST", "/properties"), "a mirrored property is never re-created")
	assert.Equal(t, 2, stub.calls("PUT", "/properties/777"))
}

func TestPushFailureMarksPending(t *testing.T) {
	stub := newMLSStub()
	stub.failWith("POST", "/properties", http.StatusServiceUnavailable)
	service, db := newTestService(t, stub)

	p := &models.Property{Name: "Unlucky", State: models.StateActive}
	require.NoError(t, db.CreateProperty(p))

	err := service.Push(context.Background(), p)
	require.Error(t, err)

	loaded, err := db.GetProperty(p.ID)
	require.NoError(t, err)
	assert.True(t, loaded.PendingSync)
	assert.Zero(t, loaded.ExternalID)
}

func TestRetryPendingClearsFlagOnSuccess(t *testing.T) {
	stub := newMLSStub()
	stub.on("POST", "/properties", `{"id":888}`)
	service, db := newTestService(t, stub)

	p := &models.Property{Name: "Retry me", State: models.StateActive, PendingSync: true}
	require.NoError(t, db.CreateProperty(p))

	service.RetryPending(context.Background())

	loaded, err := db.GetProperty(p.ID)
	require.NoError(t, err)
	assert.False(t, loaded.PendingSync)
	assert.Equal(t, int64(888), loaded.ExternalID)
}

func TestPullCreatesNewProperties(t *testing.T) {
	stub := newMLSStub()
	stub.on("GET", "/properties", `{"items":[
		{"id":900,"property_type_id":1,"deal_type_id":1,"status_id":6,
		 "price":"30000000","area":"70","updated_at":"2026-08-01T10:00:00Z"}
	]}`)
	service, db := newTestService(t, stub)

	require.NoError(t, service.Pull(context.Background()))

	created, err := db.FindPropertyByExternalID(900)
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, models.StatePublished, created.State)
	assert.Equal(t, "apartment", created.PropertyType)
	assert.InDelta(t, 30000000, created.Price, 0.001)

	watermark, err := db.GetSetting("pull_watermark")
	require.NoError(t, err)
	assert.Equal(t, "2026-08-01T10:00:00Z", watermark)
}

func TestPullSkipsStaleItems(t *testing.T) {
	stub := newMLSStub()
	stub.on("GET", "/properties", `{"items":[
		{"id":901,"status_id":8,"description":"stale remote copy",
		 "updated_at":"2026-07-01T00:00:00Z"}
	]}`)
	service, db := newTestService(t, stub)

	syncedAt := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	p := &models.Property{
		Name:         "Local truth",
		State:        models.StatePublished,
		Description:  "fresh local copy",
		ExternalID:   901,
		LastSyncedAt: &syncedAt,
	}
	require.NoError(t, db.CreateProperty(p))

	require.NoError(t, service.Pull(context.Background()))

	loaded, err := db.GetProperty(p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatePublished, loaded.State, "stale remote item must not clobber local state")
	assert.Equal(t, "fresh local copy", loaded.Description)
}

func TestPullUpdatesNewerItems(t *testing.T) {
	stub := newMLSStub()
	stub.on("GET", "/properties", `{"items":[
		{"id":902,"status_id":7,"description":"rejected remotely",
		 "updated_at":"2026-08-20T00:00:00Z"}
	]}`)
	service, db := newTestService(t, stub)

	syncedAt := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	p := &models.Property{
		Name:         "Will update",
		State:        models.StateModeration,
		ExternalID:   902,
		LastSyncedAt: &syncedAt,
	}
	require.NoError(t, db.CreateProperty(p))

	require.NoError(t, service.Pull(context.Background()))

	loaded, err := db.GetProperty(p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateRejected, loaded.State)
	assert.Equal(t, "rejected remotely", loaded.Description)
}

func TestPushOwnerLazily(t *testing.T) {
	stub := newMLSStub()
	stub.on("POST", "/owners", `{"id":55}`)
	stub.on("POST", "/properties", `{"id":777}`)
	service, db := newTestService(t, stub)

	owner := &models.Owner{Name: "Aigerim", Phone: "+7 700 000 0000"}
	require.NoError(t, db.SaveOwner(owner))

	p := &models.Property{Name: "Owned", State: models.StateActive, OwnerID: &owner.ID}
	require.NoError(t, db.CreateProperty(p))

	require.NoError(t, service.Push(context.Background(), p))
	assert.Equal(t, 1, stub.calls("POST", "/owners"))

	// Owner already mirrored: the second push must skip the owner call.
	require.NoError(t, service.Push(context.Background(), p))
	assert.Equal(t, 1, stub.calls("POST", "/owners"))

	savedOwner, err := db.GetOwner(owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(55), savedOwner.ExternalOwnerID)
}

func TestSyncReferences(t *testing.T) {
	stub := newMLSStub()
	stub.on("GET", "/references/cities", `[{"id":100,"name":"Almaty","code":"almaty"}]`)
	stub.on("GET", "/references/districts", `[{"id":200,"name":"Medeu","city_id":100},{"id":201,"name":"Orphan","city_id":999}]`)
	stub.on("GET", "/references/streets", `[{"id":300,"name":"Abay Avenue","city_id":100}]`)
	service, db := newTestService(t, stub)

	require.NoError(t, service.SyncReferences(context.Background()))

	city, err := db.FindCityByExternalID(100)
	require.NoError(t, err)
	require.NotNil(t, city)
	assert.Equal(t, "almaty", city.Code)

	district, err := db.FindDistrictByExternalID(200)
	require.NoError(t, err)
	require.NotNil(t, district)
	assert.Equal(t, city.ID, district.CityID)

	orphan, err := db.FindDistrictByExternalID(201)
	require.NoError(t, err)
	assert.Nil(t, orphan, "district with unknown city is skipped")

	street, err := db.FindStreetByExternalID(300)
	require.NoError(t, err)
	require.NotNil(t, street)
}
