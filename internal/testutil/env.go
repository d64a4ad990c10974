package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/thruflo/slidesync/internal/config"
)

// SetupTestDir creates a temporary directory with the .slidesync directory
// structure for testing, containing SampleConfigYAML and an empty .env file.
// The directory is automatically cleaned up when the test completes.
func SetupTestDir(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()

	dir := filepath.Join(tmpDir, config.DefaultDirName)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(SampleConfigYAML), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("# overrides\n"), 0600))

	return tmpDir
}

// MustMarshalJSON marshals a value to JSON, failing the test on error.
func MustMarshalJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

// MustUnmarshalJSON unmarshals JSON data into v, failing the test on error.
func MustUnmarshalJSON(t *testing.T, data []byte, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(data, v))
}

// WriteTestFile writes content to a file in the test directory.
// Creates parent directories as needed.
func WriteTestFile(t *testing.T, basePath, relativePath string, content []byte) {
	t.Helper()
	fullPath := filepath.Join(basePath, relativePath)
	require.NoError(t, os.MkdirAll(filepath.Dir(fullPath), 0755))
	require.NoError(t, os.WriteFile(fullPath, content, 0644))
}
