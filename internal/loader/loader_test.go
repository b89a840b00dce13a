package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoad_FilesAndFiltering(t *testing.T) {
	dir := t.TempDir()
	a := write(t, dir, "a.txt", "alpha")
	b := write(t, dir, "b.MD", "beta")
	c := write(t, dir, "c.pdf", "ignored")

	docs, err := Load([]string{a, b, c})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, a, docs[0].Source)
	assert.Equal(t, "alpha", docs[0].Content)
	assert.Equal(t, "beta", docs[1].Content)
	assert.Len(t, docs[0].ID, 16)
	assert.NotEqual(t, docs[0].ID, docs[1].ID)
}

func TestLoad_GlobAndDirectory(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "b.txt", "b")
	write(t, dir, "a.txt", "a")
	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.Mkdir(sub, 0o755))
	write(t, sub, "deep.txt", "not read")

	fromDir, err := Load([]string{dir})
	require.NoError(t, err)
	require.Len(t, fromDir, 2)
	assert.Equal(t, "a", fromDir[0].Content)
	assert.Equal(t, "b", fromDir[1].Content)

	fromGlob, err := Load([]string{filepath.Join(dir, "*.txt"), filepath.Join(dir, "a.txt")})
	require.NoError(t, err)
	assert.Equal(t, fromDir, fromGlob, "duplicates are dropped")
}

func TestLoad_StableIDs(t *testing.T) {
	dir := t.TempDir()
	p := write(t, dir, "a.txt", "alpha")
	first, err := Load([]string{p})
	require.NoError(t, err)
	second, err := Load([]string{p})
	require.NoError(t, err)
	assert.Equal(t, first[0].ID, second[0].ID)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	_, err := Load([]string{filepath.Join(dir, "missing.txt")})
	assert.Error(t, err)

	write(t, dir, "x.csv", "nope")
	_, err = Load([]string{dir})
	assert.ErrorContains(t, err, "no .txt/.md documents found")
}
