package classifier

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyAIVerdict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"prediction":"ai","confidence":0.97,"probabilities":{"human":0.03,"ai":0.97}}`)) //nolint:errcheck
	}))
	defer srv.Close()

	client := NewClient(Config{URL: srv.URL, Timeout: time.Second})
	verdict, err := client.Classify(context.Background(), "some essay text")
	require.NoError(t, err)
	assert.True(t, verdict.IsAI())
	assert.InDelta(t, 0.97, verdict.Confidence, 1e-9)
	assert.InDelta(t, 0.97, verdict.Probabilities.AI, 1e-9)
}

func TestClassifyHumanVerdict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"prediction":"human","confidence":0.9,"probabilities":{"human":0.9,"ai":0.1}}`)) //nolint:errcheck
	}))
	defer srv.Close()

	client := NewClient(Config{URL: srv.URL})
	verdict, err := client.Classify(context.Background(), "hand written answer")
	require.NoError(t, err)
	assert.False(t, verdict.IsAI())
}

func TestClassifyNon2xxIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(Config{URL: srv.URL})
	_, err := client.Classify(context.Background(), "text")
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
}

func TestClassifyMalformedBodyIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"prediction":`)) //nolint:errcheck
	}))
	defer srv.Close()

	client := NewClient(Config{URL: srv.URL})
	_, err := client.Classify(context.Background(), "text")
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
}

func TestClassifyUnknownPredictionIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"prediction":"maybe","confidence":0.5,"probabilities":{"human":0.5,"ai":0.5}}`)) //nolint:errcheck
	}))
	defer srv.Close()

	client := NewClient(Config{URL: srv.URL})
	_, err := client.Classify(context.Background(), "text")
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
}

func TestClassifyTimeoutIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client := NewClient(Config{URL: srv.URL, Timeout: 20 * time.Millisecond})
	_, err := client.Classify(context.Background(), "text")
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
}
