package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/archipel-labs/docvec/internal/adapters/driven/storage/memory"
	"github.com/archipel-labs/docvec/internal/core/ports/driven"
)

// stubEmbedder is a deterministic embedder for command tests. Setting
// failOn makes it reject texts containing that substring, simulating a
// transient provider outage for specific files.
type stubEmbedder struct {
	dims   int
	failOn string
}

func (e *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if e.failOn != "" && strings.Contains(text, e.failOn) {
		return nil, errors.New("embedding unavailable")
	}
	vec := make([]float32, e.dims)
	for i := range vec {
		vec[i] = float32(len(text)%7 + i)
	}
	return vec, nil
}

func (e *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (e *stubEmbedder) Dimensions() int   { return e.dims }
func (e *stubEmbedder) ModelName() string { return "stub" }

func (e *stubEmbedder) Ping(context.Context) error { return nil }
func (e *stubEmbedder) Close() error               { return nil }

var _ driven.EmbeddingService = (*stubEmbedder)(nil)

// setupTestServices injects fakes and points configuration at a temp
// directory. The returned store observes what commands persisted.
func setupTestServices(t *testing.T) *memory.Store {
	t.Helper()

	dataDir := t.TempDir()
	cfgPath := filepath.Join(dataDir, "config.toml")
	cfgContent := "[storage]\ndata_dir = " + tomlString(dataDir) + "\ncheckpoint_path = " + tomlString(filepath.Join(dataDir, "checkpoint.json")) + "\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgContent), 0600))

	store := memory.NewStore()
	passageStore = store
	embedder = &stubEmbedder{dims: 3}
	configPath = cfgPath

	t.Cleanup(func() {
		passageStore = nil
		embedder = nil
		summariser = nil
		configPath = ""
		ingestMode = ""
		ingestPolicy = ""
		ingestFanOut = 0
		ingestIncremental = false
		searchVersion = ""
		searchLimit = 0
		searchJSON = false
	})

	return store
}

// tomlString quotes a path for TOML, escaping backslashes.
func tomlString(s string) string {
	out := make([]byte, 0, len(s)+2)
	out = append(out, '"')
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' || s[i] == '"' {
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(append(out, '"'))
}

// execute runs the root command with args and captures its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}

// writeDocs creates <base>/versions/<version>/content/<rel> fixtures.
func writeDocs(t *testing.T, base string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(base, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
}
