package apiclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(server.URL, "test-key", testLogger())
	client.SetRetryPolicy(3, 5*time.Millisecond)
	return client, server
}

func TestUnconfiguredClientShortCircuits(t *testing.T) {
	client := NewClient("", "", testLogger())
	_, err := client.Get(context.Background(), "/properties", nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.False(t, client.IsConfigured())
}

func TestPostSuccess(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "test-key", r.Header.Get("X-API-Key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":777}`))
	})

	body, err := client.Post(context.Background(), "/properties", map[string]string{"name": "Test"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":777}`, string(body))
}

func TestEmptyBodyIsEmptyObject(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	body, err := client.Delete(context.Background(), "/properties/1")
	require.NoError(t, err)
	assert.Equal(t, "{}", string(body))
}

func TestServerErrorsRetryWithGrowingDelay(t *testing.T) {
	var mu sync.Mutex
	var attempts []time.Time

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts = append(attempts, time.Now())
		mu.Unlock()
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	client.SetRetryPolicy(3, 20*time.Millisecond)

	_, err := client.Get(context.Background(), "/properties", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, attempts, 3, "exactly three attempts on persistent 5xx")

	firstGap := attempts[1].Sub(attempts[0])
	secondGap := attempts[2].Sub(attempts[1])
	assert.GreaterOrEqual(t, firstGap, 20*time.Millisecond)
	assert.GreaterOrEqual(t, secondGap, 40*time.Millisecond, "delay doubles between attempts")
}

func TestRetryRecoversMidway(t *testing.T) {
	var mu sync.Mutex
	calls := 0

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		current := calls
		mu.Unlock()
		if current < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	})

	body, err := client.Get(context.Background(), "/properties", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, 3, calls)
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var mu sync.Mutex
	calls := 0

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error":"price is required"}`))
	})

	_, err := client.Post(context.Background(), "/properties", map[string]string{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrClientError)
	assert.Equal(t, 1, calls, "4xx must fail on the first attempt")
}

func TestConnectionErrorsRetry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // nothing listens anymore

	client := NewClient(server.URL, "test-key", testLogger())
	client.SetRetryPolicy(2, time.Millisecond)

	_, err := client.Get(context.Background(), "/properties", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestUploadSendsMultipart(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "42", r.FormValue("property_id"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "photo.jpg", header.Filename)

		data, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, []byte("fake-image"), data)

		w.Write([]byte(`{"id":9,"url":"https://cdn.example/9.jpg"}`))
	})

	body, err := client.Upload(context.Background(), "/property-images/upload", "file", "photo.jpg", []byte("fake-image"), map[string]string{"property_id": "42"})
	require.NoError(t, err)
	assert.Contains(t, string(body), `"id":9`)
}

func TestContextCancelStopsRetries(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	client.SetRetryPolicy(3, 200*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Get(ctx, "/properties", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
