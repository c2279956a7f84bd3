package security

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveOutputPath(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "plain", in: "survey.grd", want: filepath.Join("out", "survey.grd")},
		{name: "nested", in: "a/b/survey.prf", want: filepath.Join("out", "a", "b", "survey.prf")},
		{name: "inner dotdot", in: "a/../survey.hdr", want: filepath.Join("out", "survey.hdr")},
		{name: "escape", in: "../survey.grd", wantErr: true},
		{name: "deep escape", in: "a/../../x", wantErr: true},
		{name: "bare dotdot", in: "..", wantErr: true},
		{name: "absolute", in: "/etc/passwd", wantErr: true},
		{name: "empty", in: "  ", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ResolveOutputPath("out", tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := ResolveOutputPath("out", "../x")
	assert.ErrorIs(t, err, ErrPathTraversal)
}

func TestValidatePathWithinDirectory(t *testing.T) {
	tmpDir := t.TempDir()

	safeDir := filepath.Join(tmpDir, "safe")
	unsafeDir := filepath.Join(tmpDir, "unsafe")
	require.NoError(t, os.MkdirAll(safeDir, 0755))
	require.NoError(t, os.MkdirAll(unsafeDir, 0755))
	require.NoError(t, os.Symlink(unsafeDir, filepath.Join(safeDir, "evil-symlink")))

	tests := []struct {
		name      string
		filePath  string
		wantError bool
	}{
		{"file in directory", filepath.Join(safeDir, "grid.grd"), false},
		{"nested new file", filepath.Join(safeDir, "runs", "a", "grid.grd"), false},
		{"dotdot traversal", filepath.Join(safeDir, "..", "grid.grd"), true},
		{"sibling directory", filepath.Join(unsafeDir, "grid.grd"), true},
		{"through symlink", filepath.Join(safeDir, "evil-symlink", "grid.grd"), true},
		{"through symlink nested", filepath.Join(safeDir, "evil-symlink", "x", "grid.grd"), true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tc.filePath, safeDir)
			if tc.wantError {
				assert.ErrorIs(t, err, ErrPathTraversal)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	err := ValidatePathWithinDirectory(filepath.Join(safeDir, "x"), filepath.Join(tmpDir, "missing"))
	assert.Error(t, err)
}

func TestSanitizeFilename(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "unknown", SanitizeFilename(""))
	assert.Equal(t, "unknown", SanitizeFilename("..."))
	assert.Equal(t, "Mount_Ida_DEM", SanitizeFilename("Mount Ida / DEM"))
	assert.Equal(t, "valle-2024.v1", SanitizeFilename("valle-2024.v1"))
	assert.Equal(t, "a_b", SanitizeFilename("a$$$b"))
	assert.Len(t, SanitizeFilename(strings.Repeat("x", 500)), 128)
}
