package response

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	name string
	body string
}

func writeZip(t *testing.T, path string, entries ...entry) string {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		require.NoError(t, err)
		_, err = w.Write([]byte(e.body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return path
}

func deliveryArchive(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "DELIVERY-TEST.zip")
	return writeZip(t, path,
		entry{"DELIVERY-TEST.xml", twoFileManifest},
		entry{"Output/nl-BE/FILE-1.html", "<p>Hallo</p>"},
		entry{"Output/nl-BE/FILE-2.html", "<p>Dag</p>"},
	)
}

func TestOpenArchiveFailures(t *testing.T) {
	notZip := filepath.Join(t.TempDir(), "plain.zip")
	require.NoError(t, os.WriteFile(notZip, []byte("not a zip archive"), 0o644))

	tests := []struct {
		name string
		path string
	}{
		{"missing", filepath.Join(t.TempDir(), "missing.zip")},
		{"not_an_archive", notZip},
		{"directory", t.TempDir()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader, err := OpenArchive(tt.path)
			assert.Nil(t, reader)

			var fileErr *FileError
			require.True(t, errors.As(err, &fileErr), "got %v", err)
			assert.Equal(t, tt.path, fileErr.Path)
			assert.Empty(t, fileErr.Entry)
		})
	}
}

func TestReaderInfo(t *testing.T) {
	reader, err := OpenArchive(deliveryArchive(t))
	require.NoError(t, err)
	defer reader.Close()

	assert.Equal(t, "DELIVERY-TEST.xml", reader.ManifestName())

	info, err := reader.Info()
	require.NoError(t, err)
	assert.Equal(t, "DELIVERY-TEST", info.ID())
	assert.Equal(t, 2, info.FileCount())

	again, err := reader.Info()
	require.NoError(t, err)
	assert.Same(t, info, again)
}

func TestReaderInfoMissingManifest(t *testing.T) {
	path := writeZip(t, filepath.Join(t.TempDir(), "NO-MANIFEST.zip"),
		entry{"other.xml", twoFileManifest},
	)
	reader, err := OpenArchive(path)
	require.NoError(t, err)
	defer reader.Close()

	_, err = reader.Info()

	var fileErr *FileError
	require.ErrorAs(t, err, &fileErr)
	assert.Equal(t, "NO-MANIFEST.xml", fileErr.Entry)
}

func TestReaderInfoInvalidManifest(t *testing.T) {
	path := writeZip(t, filepath.Join(t.TempDir(), "BROKEN.zip"),
		entry{"BROKEN.xml", "<ClientWoDelivery><DeliveryDate>soon</DeliveryDate></ClientWoDelivery>"},
	)
	reader, err := OpenArchive(path)
	require.NoError(t, err)
	defer reader.Close()

	_, err = reader.Info()

	var fileErr *FileError
	require.ErrorAs(t, err, &fileErr)
	assert.Equal(t, "invalid manifest", fileErr.Reason)
}

func TestReaderContent(t *testing.T) {
	reader, err := OpenArchive(deliveryArchive(t))
	require.NoError(t, err)
	defer reader.Close()

	data, err := reader.Content("Output/nl-BE/FILE-1.html")
	require.NoError(t, err)
	assert.Equal(t, "<p>Hallo</p>", string(data))

	_, err = reader.Content("Output/nl-BE/MISSING.html")
	var fileErr *FileError
	require.ErrorAs(t, err, &fileErr)
	assert.Equal(t, "Output/nl-BE/MISSING.html", fileErr.Entry)
	assert.Contains(t, err.Error(), "Output/nl-BE/MISSING.html")
}

func TestReaderClose(t *testing.T) {
	reader, err := OpenArchive(deliveryArchive(t))
	require.NoError(t, err)

	assert.Len(t, reader.Entries(), 3)
	require.NoError(t, reader.Close())
	require.NoError(t, reader.Close())

	_, err = reader.Content("Output/nl-BE/FILE-1.html")
	var fileErr *FileError
	assert.ErrorAs(t, err, &fileErr)
	assert.Nil(t, reader.Entries())
}
