package response

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const threeFileManifest = `<ClientWoDelivery>
    <DeliveryId>DELIVERY-3</DeliveryId>
    <DeliveryFiles>
        <DeliveryFile><FileName>a.html</FileName><FileSize>1</FileSize><TargetLangIsoCode>nl</TargetLangIsoCode><FileReference>Output/nl/a.html</FileReference></DeliveryFile>
        <DeliveryFile><FileName>b.html</FileName><FileSize>2</FileSize><TargetLangIsoCode>fr</TargetLangIsoCode><FileReference>Output/fr/b.html</FileReference></DeliveryFile>
        <DeliveryFile><FileName>c.html</FileName><FileSize>3</FileSize><TargetLangIsoCode>de</TargetLangIsoCode><FileReference>Output/de/c.html</FileReference></DeliveryFile>
    </DeliveryFiles>
</ClientWoDelivery>`

func TestTranslationsFollowManifestOrder(t *testing.T) {
	path := writeZip(t, filepath.Join(t.TempDir(), "DELIVERY-3.zip"),
		entry{"Output/de/c.html", "C"},
		entry{"DELIVERY-3.xml", threeFileManifest},
		entry{"Output/nl/a.html", "A"},
		entry{"Output/fr/b.html", "B"},
	)
	reader, err := OpenArchive(path)
	require.NoError(t, err)
	defer reader.Close()

	translations, err := NewTranslations(reader)
	require.NoError(t, err)
	require.Equal(t, 3, translations.Len())

	var names, contents []string
	for translations.Next() {
		tr := translations.Current()
		names = append(names, tr.Info().Name)
		data, err := tr.Content()
		require.NoError(t, err)
		contents = append(contents, string(data))
	}

	assert.Equal(t, []string{"a.html", "b.html", "c.html"}, names)
	assert.Equal(t, []string{"A", "B", "C"}, contents)

	translations.Rewind()
	require.True(t, translations.Next())
	assert.Equal(t, "a.html", translations.Current().Info().Name)
}

type countingSource struct {
	info  *Info
	reads map[string]int
}

func (s *countingSource) Info() (*Info, error) { return s.info, nil }

func (s *countingSource) Content(path string) ([]byte, error) {
	s.reads[path]++
	return []byte(fmt.Sprintf("%s#%d", path, s.reads[path])), nil
}

func TestTranslationContentIsNotCached(t *testing.T) {
	info, err := ParseInfo([]byte(oneFileManifest))
	require.NoError(t, err)
	source := &countingSource{info: info, reads: make(map[string]int)}

	translations, err := NewTranslations(source)
	require.NoError(t, err)
	require.True(t, translations.Next())
	tr := translations.Current()

	first, err := tr.Content()
	require.NoError(t, err)
	second, err := tr.Content()
	require.NoError(t, err)

	assert.Equal(t, "Output/fr-BE/FILE-1.html#1", string(first))
	assert.Equal(t, "Output/fr-BE/FILE-1.html#2", string(second))
	assert.Equal(t, 2, source.reads["Output/fr-BE/FILE-1.html"])
}

func TestTranslationMissingContent(t *testing.T) {
	path := writeZip(t, filepath.Join(t.TempDir(), "DELIVERY-3.zip"),
		entry{"DELIVERY-3.xml", threeFileManifest},
		entry{"Output/nl/a.html", "A"},
	)
	reader, err := OpenArchive(path)
	require.NoError(t, err)
	defer reader.Close()

	translations, err := NewTranslations(reader)
	require.NoError(t, err)

	var missing []string
	for _, tr := range translations.All() {
		if _, err := tr.Content(); err != nil {
			var fileErr *FileError
			require.True(t, errors.As(err, &fileErr))
			missing = append(missing, fileErr.Entry)
		}
	}
	assert.Equal(t, []string{"Output/fr/b.html", "Output/de/c.html"}, missing)
}

func TestNewTranslationsPropagatesInfoError(t *testing.T) {
	path := writeZip(t, filepath.Join(t.TempDir(), "EMPTY.zip"), entry{"unrelated.txt", "x"})
	reader, err := OpenArchive(path)
	require.NoError(t, err)
	defer reader.Close()

	_, err = NewTranslations(reader)
	var fileErr *FileError
	assert.ErrorAs(t, err, &fileErr)
}

func TestResponse(t *testing.T) {
	resp, err := Open(deliveryArchive(t))
	require.NoError(t, err)
	defer resp.Close()

	info, err := resp.Info()
	require.NoError(t, err)
	assert.Equal(t, "REFERENCE-TEST", info.Reference())

	translations, err := resp.Translations()
	require.NoError(t, err)
	again, err := resp.Translations()
	require.NoError(t, err)
	assert.Same(t, translations, again)
	assert.Equal(t, 2, translations.Len())

	_, err = Open(filepath.Join(t.TempDir(), "nope.zip"))
	var fileErr *FileError
	assert.ErrorAs(t, err, &fileErr)
}
