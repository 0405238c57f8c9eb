// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T) string
		want  map[string]string
	}{
		{
			name: "reads key files and trims whitespace",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, CatalogAPIKey, "  sk_abc123  \n")
				writeFile(t, dir, OpenAIAPIKey, "oa_xyz789")
				writeFile(t, dir, CrossrefMailto, "user@example.com\n")
				return dir
			},
			want: map[string]string{
				CatalogAPIKey:  "sk_abc123",
				OpenAIAPIKey:   "oa_xyz789",
				CrossrefMailto: "user@example.com",
			},
		},
		{
			name: "returns empty map for nonexistent directory",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "does-not-exist")
			},
			want: map[string]string{},
		},
		{
			name: "skips empty files",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, OpenAIAPIKey, "valid-key")
				writeFile(t, dir, "empty-key", "")
				writeFile(t, dir, "whitespace-only", "   \n\t  ")
				return dir
			},
			want: map[string]string{
				OpenAIAPIKey: "valid-key",
			},
		},
		{
			name: "skips dotfiles and subdirectories",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, ".gitkeep", "")
				writeFile(t, dir, ".hidden-key", "secret")
				writeFile(t, dir, CatalogAPIKey, "sk_real")
				require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0o755))
				return dir
			},
			want: map[string]string{
				CatalogAPIKey: "sk_real",
			},
		},
		{
			name: "returns empty map for empty directory",
			setup: func(t *testing.T) string {
				return t.TempDir()
			},
			want: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Load(tt.setup(t))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValueFallsBackToEnv(t *testing.T) {
	t.Setenv("GENPAPER_TEST_KEY", " from-env ")

	loaded := map[string]string{CatalogAPIKey: "from-file"}
	assert.Equal(t, "from-file", Value(loaded, CatalogAPIKey, "GENPAPER_TEST_KEY"))
	assert.Equal(t, "from-env", Value(loaded, OpenAIAPIKey, "GENPAPER_TEST_KEY"))
	assert.Equal(t, "", Value(loaded, OpenAIAPIKey, "GENPAPER_MISSING"))
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}
