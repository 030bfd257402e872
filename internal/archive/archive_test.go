package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// writeZip builds a zip file at path. Member names ending in "/" become
// directory entries.
func writeZip(t *testing.T, path string, members map[string]string) {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range members {
		if name[len(name)-1] == '/' {
			_, err := zw.Create(name)
			require.NoError(t, err)
			continue
		}
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
}

func TestSanitizeStem(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"000001", "000001"},
		{`a\b/c:d*e?f"g<h>i|j`, "a_b_c_d_e_f_g_h_i_j"},
		{"  spaced  ", "spaced"},
		{"..dotted..", "dotted"},
		{" .. ", "zip"},
		{"", "zip"},
		{"名作集", "名作集"},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, SanitizeStem(tc.in), "input %q", tc.in)
	}
}

// recordingConverter records converted paths and pretends every .txt
// file was shift_jis.
type recordingConverter struct {
	paths []string
}

func (r *recordingConverter) ConvertIfNeeded(path string) (string, error) {
	r.paths = append(r.paths, path)
	if filepath.Ext(path) == ".txt" {
		return "shift_jis", nil
	}
	return "", nil
}

func TestProcessArchiveExtractsAllMembers(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	zipPath := filepath.Join(dir, "000001.zip")
	writeZip(t, zipPath, map[string]string{
		"story.txt":        "本文",
		"images/":          "",
		"images/cover.png": "\x89PNG",
	})

	out := filepath.Join(dir, "out")
	conv := &recordingConverter{}
	e := NewExtractor(dir, out, conv, zap.NewNop())
	require.NoError(t, e.ProcessArchive(zipPath))

	dest := filepath.Join(out, "000001")
	data, err := os.ReadFile(filepath.Join(dest, "story.txt"))
	require.NoError(t, err)
	require.Equal(t, "本文", string(data))

	data, err = os.ReadFile(filepath.Join(dest, "images", "cover.png"))
	require.NoError(t, err)
	require.Equal(t, "\x89PNG", string(data))

	require.Len(t, conv.paths, 2, "directories are not handed to the converter")
}

func TestProcessArchiveRejectsTraversalMembers(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	zipPath := filepath.Join(dir, "evil.zip")
	writeZip(t, zipPath, map[string]string{
		"../../evil.txt": "escape",
		"safe.txt":       "fine",
	})

	out := filepath.Join(dir, "out")
	e := NewExtractor(dir, out, nil, zap.NewNop())
	require.NoError(t, e.ProcessArchive(zipPath), "a hostile member must not fail the archive")

	data, err := os.ReadFile(filepath.Join(out, "evil", "safe.txt"))
	require.NoError(t, err, "sibling members still extract")
	require.Equal(t, "fine", string(data))

	// Nothing may land outside the destination directory.
	var escaped []string
	require.NoError(t, filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Name() == "evil.txt" {
			escaped = append(escaped, path)
		}
		return nil
	}))
	require.Empty(t, escaped, "traversal member must not be written anywhere")
}

func TestSecurePath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	got, err := securePath(dir, "a/b/c.txt")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "a", "b", "c.txt"), got)

	_, err = securePath(dir, "../outside.txt")
	require.ErrorIs(t, err, ErrUnsafePath)

	_, err = securePath(dir, "a/../../outside.txt")
	require.ErrorIs(t, err, ErrUnsafePath)

	// Dot components that stay inside are fine.
	got, err = securePath(dir, "a/./b.txt")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "a", "b.txt"), got)
}

func TestRunMissingInputDir(t *testing.T) {
	t.Parallel()

	e := NewExtractor(filepath.Join(t.TempDir(), "nope"), t.TempDir(), nil, zap.NewNop())
	err := e.Run(context.Background())
	require.ErrorIs(t, err, ErrInputMissing)
}

func TestRunNoArchives(t *testing.T) {
	t.Parallel()

	e := NewExtractor(t.TempDir(), t.TempDir(), nil, zap.NewNop())
	err := e.Run(context.Background())
	require.ErrorIs(t, err, ErrNoArchives)
}

func TestRunSkipsMalformedArchives(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "000001.zip"), []byte("not a zip"), 0o600))
	writeZip(t, filepath.Join(dir, "000002.zip"), map[string]string{"ok.txt": "ok"})

	out := filepath.Join(dir, "out")
	e := NewExtractor(dir, out, nil, zap.NewNop())
	require.NoError(t, e.Run(context.Background()), "a bad archive must not fail the batch")

	data, err := os.ReadFile(filepath.Join(out, "000002", "ok.txt"))
	require.NoError(t, err)
	require.Equal(t, "ok", string(data))
}
