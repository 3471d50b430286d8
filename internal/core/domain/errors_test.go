package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileError_Error(t *testing.T) {
	err := &FileError{Path: "content/a.md", Err: ErrMalformedPath}

	assert.Contains(t, err.Error(), "content/a.md")
	assert.Contains(t, err.Error(), ErrMalformedPath.Error())
}

func TestFileError_Unwrap(t *testing.T) {
	err := &FileError{Path: "content/a.md", Err: ErrEmbeddingUnavailable}

	require.True(t, errors.Is(err, ErrEmbeddingUnavailable))
	assert.False(t, errors.Is(err, ErrMalformedPath))
}

func TestFileError_AsThroughWrapping(t *testing.T) {
	inner := &FileError{Path: "content/a.md", Err: ErrNotFound}
	wrapped := fmt.Errorf("ingestion failed: %w", inner)

	var ferr *FileError
	require.True(t, errors.As(wrapped, &ferr))
	assert.Equal(t, "content/a.md", ferr.Path)
}
