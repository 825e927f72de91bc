package vocab

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "oracleFrequency.json", "[3, 0, 12, 1]")

	idx, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, idx.NumCards())
	assert.Equal(t, 12, idx.Frequency(2))
	assert.Equal(t, []int{3, 0, 12, 1}, idx.Frequencies())
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		body string
	}{
		{"malformed", "[1, 2"},
		{"empty", "[]"},
		{"negative", "[1, -1]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, dir, tt.name+".json", tt.body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestLoadWithOracles(t *testing.T) {
	dir := t.TempDir()
	freq := writeFile(t, dir, "freq.json", "[1, 2, 3]")
	dict := writeFile(t, dir, "oracleDict.json", `["a-1", "b-2", "c-3"]`)

	idx, err := LoadWithOracles(freq, dict)
	require.NoError(t, err)

	id, ok := idx.Oracle(1)
	assert.True(t, ok)
	assert.Equal(t, "b-2", id)

	c, ok := idx.IndexOf("c-3")
	assert.True(t, ok)
	assert.Equal(t, 2, c)

	_, ok = idx.Oracle(7)
	assert.False(t, ok)

	short := writeFile(t, dir, "short.json", `["a-1"]`)
	_, err = LoadWithOracles(freq, short)
	assert.Error(t, err)

	dup := writeFile(t, dir, "dup.json", `["a", "a", "b"]`)
	_, err = LoadWithOracles(freq, dup)
	assert.Error(t, err)
}

func TestCheck(t *testing.T) {
	idx, err := New([]int{0, 0, 0})
	require.NoError(t, err)

	assert.NoError(t, idx.Check(0))
	assert.NoError(t, idx.Check(2))
	assert.ErrorIs(t, idx.Check(3), ErrIndexOutOfRange)
	assert.ErrorIs(t, idx.Check(-1), ErrIndexOutOfRange)
	assert.ErrorIs(t, idx.CheckAll([]int{0, 1, 5}), ErrIndexOutOfRange)
	assert.NoError(t, idx.CheckAll(nil))
}
