package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func embeddingServer(t *testing.T, dims int, status int) (*httptest.Server, *embeddingRequest) {
	t.Helper()
	var captured embeddingRequest

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			return
		}

		type datum struct {
			Embedding []float64 `json:"embedding"`
			Index     int       `json:"index"`
		}
		data := make([]datum, len(captured.Input))
		for i := range captured.Input {
			vec := make([]float64, dims)
			vec[0] = float64(i + 1)
			data[i] = datum{Embedding: vec, Index: i}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, &captured
}

func TestNewEmbeddingService(t *testing.T) {
	t.Run("requires API key", func(t *testing.T) {
		_, err := NewEmbeddingService(Config{})
		assert.Error(t, err)
	})

	t.Run("model dimensions", func(t *testing.T) {
		svc, err := NewEmbeddingService(Config{APIKey: "k", Model: "text-embedding-3-large"})
		require.NoError(t, err)
		assert.Equal(t, 3072, svc.Dimensions())
	})

	t.Run("dimension override", func(t *testing.T) {
		svc, err := NewEmbeddingService(Config{APIKey: "k", Dimensions: 256})
		require.NoError(t, err)
		assert.Equal(t, 256, svc.Dimensions())
	})
}

func TestEmbeddingService_Embed(t *testing.T) {
	srv, _ := embeddingServer(t, 4, http.StatusOK)
	svc, err := NewEmbeddingService(Config{APIKey: "k", BaseURL: srv.URL, Dimensions: 4})
	require.NoError(t, err)

	vec, err := svc.Embed(context.Background(), "some text")
	require.NoError(t, err)
	assert.Len(t, vec, 4)
	assert.Equal(t, float32(1), vec[0])
}

func TestEmbeddingService_InputPreparation(t *testing.T) {
	srv, captured := embeddingServer(t, 4, http.StatusOK)
	svc, err := NewEmbeddingService(Config{APIKey: "k", BaseURL: srv.URL, Dimensions: 4})
	require.NoError(t, err)

	long := strings.Repeat("word\n", 3000)
	_, err = svc.Embed(context.Background(), long)
	require.NoError(t, err)

	require.Len(t, captured.Input, 1)
	sent := captured.Input[0]
	assert.NotContains(t, sent, "\n")
	assert.LessOrEqual(t, len(sent), maxInputLen+3)
	assert.True(t, strings.HasSuffix(sent, "..."))
}

func TestEmbeddingService_InputPreparationMultiByte(t *testing.T) {
	srv, captured := embeddingServer(t, 4, http.StatusOK)
	svc, err := NewEmbeddingService(Config{APIKey: "k", BaseURL: srv.URL, Dimensions: 4})
	require.NoError(t, err)

	// Three-byte runes never align with the byte budget, so a naive
	// byte slice would cut one in half.
	long := strings.Repeat("語", maxInputLen)
	_, err = svc.Embed(context.Background(), long)
	require.NoError(t, err)

	require.Len(t, captured.Input, 1)
	sent := captured.Input[0]
	// A mid-rune cut would surface as a replacement character after
	// the request body is marshalled.
	assert.NotContains(t, sent, string(utf8.RuneError))
	assert.True(t, strings.HasSuffix(sent, "..."))
	assert.LessOrEqual(t, len(sent), maxInputLen+3)
}

func TestEmbeddingService_DegradedMode(t *testing.T) {
	srv, _ := embeddingServer(t, 4, http.StatusInternalServerError)

	t.Run("hard failure by default", func(t *testing.T) {
		svc, err := NewEmbeddingService(Config{APIKey: "k", BaseURL: srv.URL, Dimensions: 4})
		require.NoError(t, err)
		_, err = svc.Embed(context.Background(), "text")
		assert.Error(t, err)
	})

	t.Run("degraded returns zero vector of full length", func(t *testing.T) {
		svc, err := NewEmbeddingService(Config{APIKey: "k", BaseURL: srv.URL, Dimensions: 4, Degraded: true})
		require.NoError(t, err)
		vec, err := svc.Embed(context.Background(), "text")
		require.NoError(t, err)
		assert.Equal(t, make([]float32, 4), vec)
	})

	t.Run("batch failures always reported", func(t *testing.T) {
		svc, err := NewEmbeddingService(Config{APIKey: "k", BaseURL: srv.URL, Dimensions: 4, Degraded: true})
		require.NoError(t, err)
		_, err = svc.EmbedBatch(context.Background(), []string{"a", "b"})
		assert.Error(t, err)
	})
}

func TestEmbeddingService_EmbedBatchOrdering(t *testing.T) {
	srv, _ := embeddingServer(t, 4, http.StatusOK)
	svc, err := NewEmbeddingService(Config{APIKey: "k", BaseURL: srv.URL, Dimensions: 4})
	require.NoError(t, err)

	vecs, err := svc.EmbedBatch(context.Background(), []string{"first", "second", "third"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for i, vec := range vecs {
		assert.Equal(t, float32(i+1), vec[0])
	}
}
