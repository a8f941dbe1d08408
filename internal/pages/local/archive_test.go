package local_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lunchbot/menuwatch/internal/pages/local"
)

func TestNew(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		tempDir := t.TempDir()
		archive, err := local.New(local.Config{BaseDir: tempDir})
		require.NoError(t, err)
		assert.NotNil(t, archive)
	})

	t.Run("MissingBaseDir", func(t *testing.T) {
		_, err := local.New(local.Config{})
		assert.Error(t, err)
	})

	t.Run("NegativeRetention", func(t *testing.T) {
		_, err := local.New(local.Config{BaseDir: t.TempDir(), RetentionDays: -1})
		assert.Error(t, err)
	})

	t.Run("BaseDirIsNotADirectory", func(t *testing.T) {
		tempFile, err := os.CreateTemp("", "testfile")
		require.NoError(t, err)
		t.Cleanup(func() {
			removeErr := os.Remove(tempFile.Name())
			if removeErr != nil && !os.IsNotExist(removeErr) {
				t.Fatalf("failed to remove temp file: %v", removeErr)
			}
		})

		_, err = local.New(local.Config{BaseDir: tempFile.Name()})
		assert.Error(t, err)
	})

	t.Run("CreatesMissingBaseDir", func(t *testing.T) {
		tempDir := t.TempDir()
		target := filepath.Join(tempDir, "archive")
		_, err := local.New(local.Config{BaseDir: target})
		require.NoError(t, err)

		info, err := os.Stat(target)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})
}

func TestPutObject(t *testing.T) {
	tempDir := t.TempDir()
	archive, err := local.New(local.Config{BaseDir: tempDir})
	require.NoError(t, err)

	t.Run("ValidPut", func(t *testing.T) {
		path := "2026-08-25/b94d27b9934d3e08.html"
		data := []byte("<html>Tagesmenü</html>")
		uri, err := archive.PutObject(context.Background(), path, "text/html", data)
		require.NoError(t, err)

		expectedURI := "file://" + filepath.Join(tempDir, path)
		assert.Equal(t, expectedURI, uri)

		// #nosec G304 -- test reads from the controlled temp directory.
		readData, err := os.ReadFile(filepath.Join(tempDir, path))
		require.NoError(t, err)
		assert.Equal(t, data, readData)
	})

	t.Run("ReplacesExistingPage", func(t *testing.T) {
		path := "2026-08-25/ffff0000ffff0000.html"
		_, err := archive.PutObject(context.Background(), path, "text/html", []byte("first"))
		require.NoError(t, err)
		_, err = archive.PutObject(context.Background(), path, "text/html", []byte("second"))
		require.NoError(t, err)

		// #nosec G304 -- test reads from the controlled temp directory.
		readData, err := os.ReadFile(filepath.Join(tempDir, path))
		require.NoError(t, err)
		assert.Equal(t, "second", string(readData))
	})

	t.Run("NoPartialFilesLeftBehind", func(t *testing.T) {
		path := "2026-08-26/abcd.html"
		_, err := archive.PutObject(context.Background(), path, "text/html", []byte("<html></html>"))
		require.NoError(t, err)

		entries, err := os.ReadDir(filepath.Join(tempDir, "2026-08-26"))
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "abcd.html", entries[0].Name())
	})

	t.Run("EmptyPath", func(t *testing.T) {
		_, err := archive.PutObject(context.Background(), "", "text/html", []byte("data"))
		assert.Error(t, err)
	})

	t.Run("PathTraversal", func(t *testing.T) {
		_, err := archive.PutObject(context.Background(), "../escape.html", "text/html", []byte("data"))
		assert.Error(t, err)
	})

	t.Run("AbsolutePath", func(t *testing.T) {
		_, err := archive.PutObject(context.Background(), "/etc/menuwatch.html", "text/html", []byte("data"))
		assert.Error(t, err)
	})
}

func TestRetention(t *testing.T) {
	mkDay := func(t *testing.T, base string, parts ...string) string {
		t.Helper()
		dir := filepath.Join(append([]string{base}, parts...)...)
		require.NoError(t, os.MkdirAll(dir, 0o750))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "page.html"), []byte("old"), 0o600))
		return dir
	}

	t.Run("PrunesExpiredDayDirs", func(t *testing.T) {
		tempDir := t.TempDir()
		expired := mkDay(t, tempDir, "2000-01-01")
		nested := mkDay(t, tempDir, "pages", "2000-01-02")
		keepDir := filepath.Join(tempDir, "notes")
		require.NoError(t, os.MkdirAll(keepDir, 0o750))

		archive, err := local.New(local.Config{BaseDir: tempDir, RetentionDays: 7})
		require.NoError(t, err)

		// The write triggers the prune; a far-future day never expires.
		_, err = archive.PutObject(context.Background(), "2100-01-01/new.html", "text/html", []byte("new"))
		require.NoError(t, err)

		_, err = os.Stat(expired)
		assert.True(t, os.IsNotExist(err), "expired day dir should be pruned")
		_, err = os.Stat(nested)
		assert.True(t, os.IsNotExist(err), "nested expired day dir should be pruned")
		_, err = os.Stat(keepDir)
		assert.NoError(t, err, "non-date dirs stay")
		_, err = os.Stat(filepath.Join(tempDir, "2100-01-01", "new.html"))
		assert.NoError(t, err, "fresh pages stay")
	})

	t.Run("DisabledKeepsEverything", func(t *testing.T) {
		tempDir := t.TempDir()
		expired := mkDay(t, tempDir, "2000-01-01")

		archive, err := local.New(local.Config{BaseDir: tempDir})
		require.NoError(t, err)

		_, err = archive.PutObject(context.Background(), "2100-01-01/new.html", "text/html", []byte("new"))
		require.NoError(t, err)

		_, err = os.Stat(expired)
		assert.NoError(t, err, "retention disabled keeps old days")
	})
}
