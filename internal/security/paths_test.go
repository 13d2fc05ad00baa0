package security

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithinDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "runs"), 0o755))

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"direct child", filepath.Join(dir, "report.html"), false},
		{"nested new file", filepath.Join(dir, "runs", "new", "mesh.obj"), false},
		{"parent traversal", filepath.Join(dir, "..", "escape.txt"), true},
		{"absolute elsewhere", "/etc/passwd", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := WithinDir(tt.path, dir)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWithinDir_SymlinkEscape(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	outside := t.TempDir()
	link := filepath.Join(dir, "link")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	assert.Error(t, WithinDir(filepath.Join(link, "file.json"), dir))
}

func TestSanitizeFilename(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"":                  "unknown",
		"run-01.json":       "run-01.json",
		"../../etc/passwd":  "etc_passwd",
		"my clip (final)!!": "my_clip_final",
		"___":               "unknown",
		"subject_a":         "subject_a",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeFilename(in), "input %q", in)
	}
}

func TestArtifactPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p, err := ArtifactPath(dir, "../run 7", ".png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "run_7.png"), p)
}
