package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// summaryServer returns a test server that replies with the given
// assistant message content and captures the last request body.
func summaryServer(t *testing.T, reply string, captured *chatCompletionRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)

		if captured != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		}

		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": reply}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestNewSummaryService_RequiresAPIKey(t *testing.T) {
	_, err := NewSummaryService(Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}

func TestNewSummaryService_Defaults(t *testing.T) {
	svc, err := NewSummaryService(Config{APIKey: "test-key"})
	require.NoError(t, err)

	assert.Equal(t, DefaultBaseURL, svc.baseURL)
	assert.Equal(t, DefaultModel, svc.model)
}

func TestSummarise(t *testing.T) {
	var captured chatCompletionRequest
	server := summaryServer(t, `{"summary": "Explains how to install the module."}`, &captured)
	defer server.Close()

	svc, err := NewSummaryService(Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	summary, err := svc.Summarise(context.Background(), "# Install\n\nRun the installer.")
	require.NoError(t, err)
	assert.Equal(t, "Explains how to install the module.", summary)

	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Contains(t, captured.Messages[1].Content, "Run the installer.")
}

func TestSummarise_TruncatesLongContent(t *testing.T) {
	var captured chatCompletionRequest
	server := summaryServer(t, `{"summary": "ok"}`, &captured)
	defer server.Close()

	svc, err := NewSummaryService(Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	long := strings.Repeat("a", maxSummaryInput+500)
	_, err = svc.Summarise(context.Background(), long)
	require.NoError(t, err)

	sent := captured.Messages[1].Content
	assert.LessOrEqual(t, len(sent), len("Content:\n")+maxSummaryInput+3)
	assert.True(t, strings.HasSuffix(sent, "..."))
}

func TestSummarise_TruncationKeepsRunesIntact(t *testing.T) {
	var captured chatCompletionRequest
	server := summaryServer(t, `{"summary": "ok"}`, &captured)
	defer server.Close()

	svc, err := NewSummaryService(Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	// Three-byte runes do not align with the byte budget.
	long := strings.Repeat("語", maxSummaryInput)
	_, err = svc.Summarise(context.Background(), long)
	require.NoError(t, err)

	sent := captured.Messages[1].Content
	// A mid-rune cut would surface as a replacement character after
	// the request body is marshalled.
	assert.NotContains(t, sent, string(utf8.RuneError))
	assert.True(t, strings.HasSuffix(sent, "..."))
}

func TestSummarise_FencedReply(t *testing.T) {
	reply := "```json\n{\"summary\": \"Fenced reply.\"}\n```"
	server := summaryServer(t, reply, nil)
	defer server.Close()

	svc, err := NewSummaryService(Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	summary, err := svc.Summarise(context.Background(), "content")
	require.NoError(t, err)
	assert.Equal(t, "Fenced reply.", summary)
}

func TestSummarise_MalformedReply(t *testing.T) {
	server := summaryServer(t, "not json at all", nil)
	defer server.Close()

	svc, err := NewSummaryService(Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = svc.Summarise(context.Background(), "content")
	require.Error(t, err)
}

func TestSummarise_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error": {"message": "rate limit exceeded", "type": "rate_limit_error"}}`)
	}))
	defer server.Close()

	svc, err := NewSummaryService(Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = svc.Summarise(context.Background(), "content")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit exceeded")
}
