package request

import (
	"archive/zip"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jogardn/xconnect/pkg/models"
)

func newRequest(t *testing.T) *Request {
	t.Helper()
	req, err := New("EN", models.OrderConfig{ClientID: "CLIENT-ID", NeedsConfirmation: true},
		models.WithClock(encoderClock))
	require.NoError(t, err)
	req.AddTargetLanguage("NL")
	return req
}

func readZip(t *testing.T, path string) map[string]string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	entries := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		entries[f.Name] = string(data)
	}
	return entries
}

func TestBuildArchiveLayout(t *testing.T) {
	srcDir := t.TempDir()
	outDir := t.TempDir()

	local := filepath.Join(srcDir, "page.html")
	require.NoError(t, os.WriteFile(local, []byte("<p>Hello</p>"), 0o644))

	req := newRequest(t)
	req.AddFile(local)
	req.AddContent("inline.txt", []byte("inline content"))

	archive, err := BuildArchive(req, outDir)
	require.NoError(t, err)
	defer archive.Close()

	assert.Equal(t, filepath.Join(outDir, req.Order().Name()+".zip"), archive.Path())
	assert.Equal(t, req.Order().Name()+".zip", archive.FileName())

	entries := readZip(t, archive.Path())
	require.Len(t, entries, 3)

	orderXML, err := Encode(req.Order())
	require.NoError(t, err)
	assert.Equal(t, string(orderXML), entries["order.xml"])
	assert.Equal(t, "<p>Hello</p>", entries["Input/page.html"])
	assert.Equal(t, "inline content", entries["Input/inline.txt"])

	assert.Equal(t, []string{"page.html", "inline.txt"}, req.Order().Files())
}

func TestArchiveCloseRemovesFile(t *testing.T) {
	req := newRequest(t)
	req.AddContent("a.txt", []byte("a"))

	archive, err := BuildArchive(req, t.TempDir())
	require.NoError(t, err)
	require.FileExists(t, archive.Path())

	require.NoError(t, archive.Close())
	assert.NoFileExists(t, archive.Path())

	// Second close is a no-op.
	assert.NoError(t, archive.Close())
}

func TestBuildArchiveFailures(t *testing.T) {
	notADir := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(notADir, []byte("x"), 0o644))

	tests := []struct {
		name  string
		dir   func(t *testing.T) string
		setup func(req *Request)
	}{
		{
			name: "missing_directory",
			dir:  func(t *testing.T) string { return filepath.Join(t.TempDir(), "does", "not", "exist") },
		},
		{
			name: "target_is_a_file",
			dir:  func(t *testing.T) string { return notADir },
		},
		{
			name: "missing_attachment",
			dir:  func(t *testing.T) string { return t.TempDir() },
			setup: func(req *Request) {
				req.AddFile(filepath.Join(os.TempDir(), "xconnect-missing-attachment.html"))
			},
		},
		{
			name: "duplicate_entry",
			dir:  func(t *testing.T) string { return t.TempDir() },
			setup: func(req *Request) {
				local := filepath.Join(t.TempDir(), "same.txt")
				require.NoError(t, os.WriteFile(local, []byte("file"), 0o644))
				req.AddFile(local)
				req.AddContent("same.txt", []byte("content"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newRequest(t)
			if tt.setup != nil {
				tt.setup(req)
			}
			dir := tt.dir(t)

			archive, err := BuildArchive(req, dir)
			require.Error(t, err)
			assert.Nil(t, archive)

			var archiveErr *ArchiveError
			require.True(t, errors.As(err, &archiveErr))
			assert.NoFileExists(t, filepath.Join(dir, req.Order().Name()+".zip"))
		})
	}
}

type failingEncoder struct{}

func (failingEncoder) Encode(*models.Order) ([]byte, error) {
	return nil, errors.New("boom")
}

func TestBuildArchiveEncodeFailure(t *testing.T) {
	dir := t.TempDir()
	req := newRequest(t)

	_, err := BuildArchiveWith(failingEncoder{}, req, dir)

	var archiveErr *ArchiveError
	require.ErrorAs(t, err, &archiveErr)
	assert.Equal(t, "encode order", archiveErr.Op)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestBuildArchiveFailureKeepsExistingFile(t *testing.T) {
	dir := t.TempDir()
	req := newRequest(t)
	req.AddFile(filepath.Join(os.TempDir(), "xconnect-missing-attachment.html"))

	existing := filepath.Join(dir, req.Order().Name()+".zip")
	require.NoError(t, os.WriteFile(existing, []byte("earlier archive"), 0o644))

	_, err := BuildArchive(req, dir)
	require.Error(t, err)

	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "earlier archive", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary archive must be removed")
}

func TestRequestAttachments(t *testing.T) {
	req := newRequest(t)
	req.AddFile("/tmp/a/doc.html")
	req.AddFile("/tmp/b/doc.html")
	req.AddContent("note.txt", []byte("1"))
	req.AddContent("note.txt", []byte("2"))

	files := req.Files()
	require.Len(t, files, 1)
	assert.Equal(t, "/tmp/b/doc.html", files[0].Path)

	contents := req.Contents()
	require.Len(t, contents, 1)
	assert.Equal(t, []byte("2"), contents[0].Content)

	assert.Equal(t, []string{"doc.html", "note.txt"}, req.Order().Files())
}
