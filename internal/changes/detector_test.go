package changes

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archipel-labs/docvec/internal/core/domain"
)

func newTestDetector(t *testing.T) *Detector {
	t.Helper()
	d, err := NewDetector(filepath.Join(t.TempDir(), "snapshot.json"))
	require.NoError(t, err)
	return d
}

func writeFile(t *testing.T, dir, rel, content string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNewDetector_RequiresPath(t *testing.T) {
	_, err := NewDetector("")
	require.Error(t, err)
}

func TestDetector_FirstRunReportsAllAdded(t *testing.T) {
	d := newTestDetector(t)
	dir := t.TempDir()
	ctx := context.Background()

	a := writeFile(t, dir, "a.md", "alpha")
	b := writeFile(t, dir, "sub/b.md", "beta")
	writeFile(t, dir, "notes.txt", "ignored")

	detected, err := d.Detect(ctx, dir)
	require.NoError(t, err)
	require.Len(t, detected, 2)
	assert.Equal(t, domain.FileChange{Path: a, Type: domain.ChangeAdded}, detected[0])
	assert.Equal(t, domain.FileChange{Path: b, Type: domain.ChangeAdded}, detected[1])
}

func TestDetector_DetectDoesNotAdvanceSnapshot(t *testing.T) {
	d := newTestDetector(t)
	dir := t.TempDir()
	ctx := context.Background()

	writeFile(t, dir, "a.md", "alpha")

	first, err := d.Detect(ctx, dir)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// Without a commit the same change shows up again.
	second, err := d.Detect(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDetector_CommitSettlesChanges(t *testing.T) {
	d := newTestDetector(t)
	dir := t.TempDir()
	ctx := context.Background()

	a := writeFile(t, dir, "a.md", "alpha")
	require.NoError(t, d.Commit(ctx, []string{a}))

	detected, err := d.Detect(ctx, dir)
	require.NoError(t, err)
	assert.Empty(t, detected)
}

func TestDetector_ReportsModified(t *testing.T) {
	d := newTestDetector(t)
	dir := t.TempDir()
	ctx := context.Background()

	a := writeFile(t, dir, "a.md", "alpha")
	require.NoError(t, d.Commit(ctx, []string{a}))

	// Same size, newer mtime.
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(a, future, future))

	detected, err := d.Detect(ctx, dir)
	require.NoError(t, err)
	require.Len(t, detected, 1)
	assert.Equal(t, domain.FileChange{Path: a, Type: domain.ChangeModified}, detected[0])
}

func TestDetector_ReportsRemoved(t *testing.T) {
	d := newTestDetector(t)
	dir := t.TempDir()
	ctx := context.Background()

	a := writeFile(t, dir, "a.md", "alpha")
	require.NoError(t, d.Commit(ctx, []string{a}))
	require.NoError(t, os.Remove(a))

	detected, err := d.Detect(ctx, dir)
	require.NoError(t, err)
	require.Len(t, detected, 1)
	assert.Equal(t, domain.FileChange{Path: a, Type: domain.ChangeRemoved}, detected[0])
}

func TestDetector_CommitDropsMissingPaths(t *testing.T) {
	d := newTestDetector(t)
	dir := t.TempDir()
	ctx := context.Background()

	a := writeFile(t, dir, "a.md", "alpha")
	require.NoError(t, d.Commit(ctx, []string{a}))
	require.NoError(t, os.Remove(a))
	require.NoError(t, d.Commit(ctx, []string{a}))

	detected, err := d.Detect(ctx, dir)
	require.NoError(t, err)
	assert.Empty(t, detected)
}

func TestDetector_SnapshotSurvivesRestart(t *testing.T) {
	snapshotPath := filepath.Join(t.TempDir(), "snapshot.json")
	dir := t.TempDir()
	ctx := context.Background()

	d1, err := NewDetector(snapshotPath)
	require.NoError(t, err)
	a := writeFile(t, dir, "a.md", "alpha")
	require.NoError(t, d1.Commit(ctx, []string{a}))

	d2, err := NewDetector(snapshotPath)
	require.NoError(t, err)
	detected, err := d2.Detect(ctx, dir)
	require.NoError(t, err)
	assert.Empty(t, detected)
}

func TestDetector_ScopedToDirectory(t *testing.T) {
	d := newTestDetector(t)
	dirA := t.TempDir()
	dirB := t.TempDir()
	ctx := context.Background()

	a := writeFile(t, dirA, "a.md", "alpha")
	require.NoError(t, d.Commit(ctx, []string{a}))

	// A snapshot entry under dirA must not surface as removed when
	// detecting over dirB.
	detected, err := d.Detect(ctx, dirB)
	require.NoError(t, err)
	assert.Empty(t, detected)
}

func TestChangeType_String(t *testing.T) {
	assert.Equal(t, "added", domain.ChangeAdded.String())
	assert.Equal(t, "modified", domain.ChangeModified.String())
	assert.Equal(t, "removed", domain.ChangeRemoved.String())
	assert.Equal(t, "unknown", domain.ChangeType(99).String())
}
