package lspmock

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jogardn/xconnect/internal/logging"
	"github.com/jogardn/xconnect/pkg/models"
	"github.com/jogardn/xconnect/pkg/request"
	"github.com/jogardn/xconnect/pkg/response"
	"github.com/jogardn/xconnect/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sendOrder(t *testing.T, svc *transport.LocalService) *request.Request {
	t.Helper()
	req, err := request.New("en-GB", models.DefaultOrderConfig())
	require.NoError(t, err)
	req.AddTargetLanguage("nl-BE")
	req.AddTargetLanguage("fr-BE")
	req.SetReference("REF-42")
	req.AddContent("page.html", []byte("<p>Hello</p>"))

	archive, err := request.BuildArchive(req, t.TempDir())
	require.NoError(t, err)
	defer archive.Close()
	require.NoError(t, svc.Send(context.Background(), archive))
	return req
}

func TestProcessOrders(t *testing.T) {
	svc, err := transport.NewLocal(t.TempDir(), transport.Directories{})
	require.NoError(t, err)

	at := time.Date(2015, 10, 13, 13, 10, 0, 0, time.UTC)
	provider := New(svc, logging.Discard(), WithClock(func() time.Time { return at }))
	req := sendOrder(t, svc)
	orderName := req.Order().Name()

	handled, err := provider.ProcessOrders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, handled)

	assert.FileExists(t, filepath.Join(svc.SendProcessedDir(), orderName+".zip"))
	assert.NoFileExists(t, filepath.Join(svc.SendDir(), orderName+".zip"))

	names, err := svc.Scan(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{orderName + "_delivery.zip"}, names)

	resp, err := response.Open(filepath.Join(svc.ReceiveDir(), names[0]))
	require.NoError(t, err)
	defer resp.Close()

	info, err := resp.Info()
	require.NoError(t, err)
	assert.Equal(t, orderName+"_delivery", info.ID())
	assert.Equal(t, "REF-42", info.Reference())
	assert.Equal(t, DeliveryStatus, info.Status())
	assert.True(t, at.Equal(info.Date()))

	translations, err := resp.Translations()
	require.NoError(t, err)
	require.Equal(t, 2, translations.Len())

	got := map[string]string{}
	for _, tr := range translations.All() {
		content, err := tr.Content()
		require.NoError(t, err)
		got[tr.Info().Path] = string(content)
		assert.Equal(t, int64(len(content)), tr.Info().Size)
		assert.Equal(t, "en-GB", tr.Info().SourceLanguage)
	}
	assert.Equal(t, map[string]string{
		"Output/nl-BE/page.html": "[nl-BE] <p>Hello</p>",
		"Output/fr-BE/page.html": "[fr-BE] <p>Hello</p>",
	}, got)
}

func TestProcessOrdersLeavesUnreadableArchives(t *testing.T) {
	svc, err := transport.NewLocal(t.TempDir(), transport.Directories{})
	require.NoError(t, err)
	broken := filepath.Join(svc.SendDir(), "broken.zip")
	require.NoError(t, os.WriteFile(broken, []byte("not a zip"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(svc.SendDir(), "notes.txt"), []byte("x"), 0o644))

	handled, err := New(svc, logging.Discard()).ProcessOrders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, handled)
	assert.FileExists(t, broken)

	names, err := svc.Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestCustomTranslator(t *testing.T) {
	svc, err := transport.NewLocal(t.TempDir(), transport.Directories{})
	require.NoError(t, err)

	langOnly := func(content []byte, _, lang string) []byte { return []byte(lang) }
	req := sendOrder(t, svc)
	_, err = New(svc, logging.Discard(), WithTranslator(langOnly), WithIssuedBy("acme")).ProcessOrders(context.Background())
	require.NoError(t, err)

	resp, err := response.Open(filepath.Join(svc.ReceiveDir(), req.Order().Name()+"_delivery.zip"))
	require.NoError(t, err)
	defer resp.Close()

	info, err := resp.Info()
	require.NoError(t, err)
	assert.Equal(t, "acme", info.IssuedBy())

	content, err := resp.Reader().Content("Output/fr-BE/page.html")
	require.NoError(t, err)
	assert.Equal(t, "fr-BE", string(content))
}
