package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"favescreen/pkg/config"
	"favescreen/pkg/errors"
	"favescreen/pkg/logger"
	"favescreen/pkg/retry"
)

func testConfig() config.HTTPConfig {
	return config.HTTPConfig{
		Timeout:           5 * time.Second,
		RequestsPerMinute: 1000,
		MaxRetries:        3,
	}
}

// fastRetrier swaps in a constant 1ms backoff so retry paths run quickly.
func fastRetrier(c *Client, maxAttempts int) {
	c.retrier = retry.NewRetrier(&retry.Config{
		MaxAttempts: maxAttempts,
		Backoff:     retry.NewConstantBackoff(time.Millisecond),
		RetryIf:     retry.DefaultRetryIf,
		Context:     context.Background(),
		Logger:      logger.NewTestLogger(),
	})
}

func TestGetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "token abc", r.Header.Get("Authorization"))
		w.Header().Set("Link", `<https://example.com/next>; rel="next"`)
		w.Write([]byte(`{"id": "42", "name": "test"}`))
	}))
	defer server.Close()

	client := New(testConfig(), logger.NewTestLogger())
	client.SetHeader("Authorization", "token abc")

	var out struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	header, err := client.GetJSON(context.Background(), server.URL, &out)
	require.NoError(t, err)
	assert.Equal(t, "42", out.ID)
	assert.Equal(t, "test", out.Name)
	assert.Contains(t, header.Get("Link"), `rel="next"`)
}

func TestGetJSONRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	client := New(testConfig(), logger.NewTestLogger())
	fastRetrier(client, 5)

	var out struct {
		OK bool `json:"ok"`
	}
	_, err := client.GetJSON(context.Background(), server.URL, &out)
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGetJSONDoesNotRetryAuthErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := New(testConfig(), logger.NewTestLogger())
	fastRetrier(client, 5)

	var out map[string]interface{}
	_, err := client.GetJSON(context.Background(), server.URL, &out)
	require.Error(t, err)

	var apiErr *errors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, errors.ErrorTypeAuth, apiErr.Type)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestPostJSONSendsBodyAndDecodesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id": "new"}`))
	}))
	defer server.Close()

	client := New(testConfig(), logger.NewTestLogger())

	var out struct {
		ID string `json:"id"`
	}
	err := client.PostJSON(context.Background(), server.URL, map[string]string{"name": "album"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "new", out.ID)
}

func TestCheckResponseStatusMapping(t *testing.T) {
	tests := []struct {
		status   int
		wantType errors.ErrorType
	}{
		{http.StatusNotFound, errors.ErrorTypeNotFound},
		{http.StatusTooManyRequests, errors.ErrorTypeRateLimit},
		{http.StatusForbidden, errors.ErrorTypeAuth},
		{http.StatusInternalServerError, errors.ErrorTypeServerError},
		{http.StatusTeapot, errors.ErrorTypeUnknown},
	}

	for _, tt := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))

		client := New(testConfig(), logger.NewTestLogger())
		fastRetrier(client, 1)

		var out map[string]interface{}
		_, err := client.GetJSON(context.Background(), server.URL, &out)
		require.Error(t, err, "status %d", tt.status)

		var apiErr *errors.Error
		require.ErrorAs(t, err, &apiErr, "status %d", tt.status)
		assert.Equal(t, tt.wantType, apiErr.Type, "status %d", tt.status)
		assert.Equal(t, tt.status, apiErr.Code, "status %d", tt.status)

		server.Close()
	}
}

func TestParseErrorOnInvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>not json</html>`))
	}))
	defer server.Close()

	client := New(testConfig(), logger.NewTestLogger())

	var out map[string]interface{}
	_, err := client.GetJSON(context.Background(), server.URL, &out)
	require.Error(t, err)

	var apiErr *errors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, errors.ErrorTypeParsing, apiErr.Type)
}
