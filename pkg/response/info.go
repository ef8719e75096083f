package response

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Info is the parsed delivery manifest.
type Info struct {
	id        string
	date      time.Time
	status    string
	reference string
	issuedBy  string
	files     []InfoFile
}

// InfoFile describes one delivered file. Path is its location inside the
// delivery archive.
type InfoFile struct {
	Name           string
	Size           int64
	SourceLanguage string
	TargetLanguage string
	Path           string
}

type manifest struct {
	XMLName         xml.Name       `xml:"ClientWoDelivery"`
	DeliveryID      string         `xml:"DeliveryId"`
	DeliveryDate    string         `xml:"DeliveryDate"`
	DeliveryStatus  string         `xml:"DeliveryStatus"`
	ClientReference string         `xml:"WOClientReference"`
	IssuedBy        string         `xml:"IssuedBy"`
	Files           []manifestFile `xml:"DeliveryFiles>DeliveryFile"`
}

type manifestFile struct {
	FileName       string `xml:"FileName"`
	FileSize       string `xml:"FileSize"`
	SourceLanguage string `xml:"SourceLangIsoCode"`
	TargetLanguage string `xml:"TargetLangIsoCode"`
	FileReference  string `xml:"FileReference"`
}

var deliveryDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseInfo parses a ClientWoDelivery document. A manifest with no, one or
// several DeliveryFile elements yields the same uniform file list.
func ParseInfo(raw []byte) (*Info, error) {
	var m manifest
	if err := xml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse delivery manifest: %w", err)
	}

	date, err := parseDeliveryDate(m.DeliveryDate)
	if err != nil {
		return nil, err
	}

	info := &Info{
		id:        strings.TrimSpace(m.DeliveryID),
		date:      date,
		status:    strings.TrimSpace(m.DeliveryStatus),
		reference: strings.TrimSpace(m.ClientReference),
		issuedBy:  strings.TrimSpace(m.IssuedBy),
		files:     make([]InfoFile, 0, len(m.Files)),
	}

	for i, f := range m.Files {
		size, err := parseFileSize(f.FileSize)
		if err != nil {
			return nil, fmt.Errorf("parse delivery manifest: file %d: %w", i, err)
		}
		info.files = append(info.files, InfoFile{
			Name:           strings.TrimSpace(f.FileName),
			Size:           size,
			SourceLanguage: strings.TrimSpace(f.SourceLanguage),
			TargetLanguage: strings.TrimSpace(f.TargetLanguage),
			Path:           strings.TrimSpace(f.FileReference),
		})
	}

	return info, nil
}

func parseDeliveryDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	for _, layout := range deliveryDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse delivery manifest: unrecognized DeliveryDate %q", value)
}

func parseFileSize(value string) (int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	size, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid FileSize %q: %w", value, err)
	}
	return size, nil
}

func (i *Info) ID() string        { return i.id }
func (i *Info) Date() time.Time   { return i.date }
func (i *Info) Status() string    { return i.status }
func (i *Info) Reference() string { return i.reference }
func (i *Info) IssuedBy() string  { return i.issuedBy }
func (i *Info) FileCount() int    { return len(i.files) }

// Files returns a fresh sequence positioned before the first file.
func (i *Info) Files() *InfoFiles {
	return &InfoFiles{cursor: newCursor(i.files)}
}

// InfoFiles is a restartable sequence of InfoFile in manifest order.
type InfoFiles struct {
	cursor[InfoFile]
}
