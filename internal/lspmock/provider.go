package lspmock

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jogardn/xconnect/pkg/request"
	"github.com/jogardn/xconnect/pkg/transport"
	"github.com/sirupsen/logrus"
)

const (
	DeliveryStatus = "FullDelivery"
	deliverySuffix = "_delivery"
	outputDir      = "Output"
)

// Translator produces the delivered content of one input file.
type Translator func(content []byte, sourceLanguage, targetLanguage string) []byte

// PrefixTranslator tags the content with the target language.
func PrefixTranslator(content []byte, _, targetLanguage string) []byte {
	return append([]byte("["+targetLanguage+"] "), content...)
}

// Provider plays the language service provider on top of a LocalService:
// it picks up order archives and answers each with a delivery archive.
type Provider struct {
	service   *transport.LocalService
	translate Translator
	issuedBy  string
	now       func() time.Time
	logger    *logrus.Logger
}

type Option func(*Provider)

func WithTranslator(t Translator) Option    { return func(p *Provider) { p.translate = t } }
func WithClock(now func() time.Time) Option { return func(p *Provider) { p.now = now } }
func WithIssuedBy(name string) Option       { return func(p *Provider) { p.issuedBy = name } }

func New(service *transport.LocalService, logger *logrus.Logger, opts ...Option) *Provider {
	p := &Provider{
		service:   service,
		translate: PrefixTranslator,
		issuedBy:  "lsp-mock",
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type orderDocument struct {
	XMLName         xml.Name `xml:"ClientWoRequest"`
	OrderName       string   `xml:"OrderName"`
	SourceLanguage  string   `xml:"SourceLanguageIsoCode"`
	TargetLanguages []string `xml:"TargetLanguages>IsoCode"`
	ClientReference string   `xml:"ClientReference"`
	InputFiles      []struct {
		FileName      string `xml:"FileName"`
		FileReference string `xml:"FileReference"`
	} `xml:"InputFiles>InputFile"`
}

type deliveryManifest struct {
	XMLName      xml.Name       `xml:"ClientWoDelivery"`
	DeliveryID   string         `xml:"DeliveryId"`
	DeliveryDate string         `xml:"DeliveryDate"`
	Status       string         `xml:"DeliveryStatus"`
	Reference    string         `xml:"WOClientReference"`
	IssuedBy     string         `xml:"IssuedBy"`
	Files        []deliveryFile `xml:"DeliveryFiles>DeliveryFile"`
}

type deliveryFile struct {
	FileName       string `xml:"FileName"`
	FileSize       string `xml:"FileSize"`
	SourceLanguage string `xml:"SourceLangIsoCode"`
	TargetLanguage string `xml:"TargetLangIsoCode"`
	FileReference  string `xml:"FileReference"`
}

// ProcessOrders answers every order waiting in the send directory and
// returns how many were handled. An order that cannot be read stays where
// it is.
func (p *Provider) ProcessOrders(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(p.service.SendDir())
	if err != nil {
		return 0, err
	}

	handled := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return handled, err
		}
		name := entry.Name()
		if !entry.Type().IsRegular() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".zip") {
			continue
		}

		delivery, err := p.processOrder(filepath.Join(p.service.SendDir(), name))
		if err != nil {
			p.logger.WithError(err).WithField("archive", name).Error("Failed to process order")
			continue
		}

		if err := os.Rename(filepath.Join(p.service.SendDir(), name), filepath.Join(p.service.SendProcessedDir(), name)); err != nil {
			return handled, fmt.Errorf("move %s to processed: %w", name, err)
		}
		handled++

		p.logger.WithFields(logrus.Fields{
			"archive":  name,
			"delivery": delivery,
		}).Info("Order translated and delivered")
	}
	return handled, nil
}

// Run processes orders every interval until ctx is done.
func (p *Provider) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := p.ProcessOrders(ctx); err != nil && ctx.Err() == nil {
			p.logger.WithError(err).Error("Processing orders failed")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (p *Provider) processOrder(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", err
	}
	defer zr.Close()

	raw, err := readEntry(&zr.Reader, request.OrderEntryName)
	if err != nil {
		return "", err
	}
	var order orderDocument
	if err := xml.Unmarshal(raw, &order); err != nil {
		return "", fmt.Errorf("parse %s: %w", request.OrderEntryName, err)
	}
	if order.OrderName == "" {
		return "", fmt.Errorf("%s has no order name", request.OrderEntryName)
	}

	base := order.OrderName + deliverySuffix
	manifest := deliveryManifest{
		DeliveryID:   base,
		DeliveryDate: p.now().UTC().Format(time.RFC3339),
		Status:       DeliveryStatus,
		Reference:    order.ClientReference,
		IssuedBy:     p.issuedBy,
	}

	type output struct {
		path    string
		content []byte
	}
	var outputs []output
	for _, lang := range order.TargetLanguages {
		for _, in := range order.InputFiles {
			content, err := readEntry(&zr.Reader, in.FileReference)
			if err != nil {
				return "", err
			}
			translated := p.translate(content, order.SourceLanguage, lang)
			ref := outputDir + "/" + lang + "/" + in.FileName
			outputs = append(outputs, output{path: ref, content: translated})
			manifest.Files = append(manifest.Files, deliveryFile{
				FileName:       in.FileName,
				FileSize:       strconv.Itoa(len(translated)),
				SourceLanguage: order.SourceLanguage,
				TargetLanguage: lang,
				FileReference:  ref,
			})
		}
	}

	manifestXML, err := xml.MarshalIndent(manifest, "", "    ")
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(p.service.ReceiveDir(), "."+base+".*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	zw := zip.NewWriter(tmp)
	write := func(name string, data []byte) error {
		w, err := zw.Create(name)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}
	if err := write(base+".xml", append([]byte(xml.Header), manifestXML...)); err != nil {
		tmp.Close()
		return "", err
	}
	for _, out := range outputs {
		if err := write(out.path, out.content); err != nil {
			tmp.Close()
			return "", err
		}
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	if err := os.Rename(tmp.Name(), filepath.Join(p.service.ReceiveDir(), base+".zip")); err != nil {
		return "", err
	}
	return base, nil
}

func readEntry(zr *zip.Reader, name string) ([]byte, error) {
	f, err := zr.Open(name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	defer f.Close()
	return io.ReadAll(f)
}
