package translate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPTranslator_Translate(t *testing.T) {
	response := `{"text":"ताज़ा टमाटर","confidence":0.93}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/translate", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req translateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "fresh tomatoes", req.Text)
		assert.Equal(t, "en", req.SourceLang)
		assert.Equal(t, "hi", req.TargetLang)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(response))
	}))
	defer server.Close()

	translator := NewHTTPTranslator(server.URL, time.Second)
	payload, err := translator.Translate(context.Background(), "fresh tomatoes", "en", "hi")

	require.NoError(t, err)
	// The payload is stored verbatim, not re-encoded.
	assert.Equal(t, response, string(payload))
}

func TestHTTPTranslator_Translate_Errors(t *testing.T) {
	t.Run("non-200 status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		translator := NewHTTPTranslator(server.URL, time.Second)
		_, err := translator.Translate(context.Background(), "text", "en", "hi")
		assert.ErrorContains(t, err, "status 502")
	})

	t.Run("invalid JSON body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("<html>not json</html>"))
		}))
		defer server.Close()

		translator := NewHTTPTranslator(server.URL, time.Second)
		_, err := translator.Translate(context.Background(), "text", "en", "hi")
		assert.ErrorContains(t, err, "invalid JSON")
	})

	t.Run("unreachable service", func(t *testing.T) {
		translator := NewHTTPTranslator("http://127.0.0.1:1", 200*time.Millisecond)
		_, err := translator.Translate(context.Background(), "text", "en", "hi")
		assert.Error(t, err)
	})

	t.Run("canceled context", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{}`))
		}))
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		translator := NewHTTPTranslator(server.URL, time.Second)
		_, err := translator.Translate(ctx, "text", "en", "hi")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestCacheKey(t *testing.T) {
	a := cacheKey("hello", "en", "hi")
	b := cacheKey("hello", "en", "hi")
	assert.Equal(t, a, b)

	// The separator keeps ("ab", "c") and ("a", "bc") apart.
	assert.NotEqual(t, cacheKey("hello", "ab", "c"), cacheKey("hello", "a", "bc"))
	assert.NotEqual(t, cacheKey("hello", "en", "hi"), cacheKey("hello", "en", "ta"))
	assert.NotEqual(t, cacheKey("hello", "en", "hi"), cacheKey("hullo", "en", "hi"))
}
