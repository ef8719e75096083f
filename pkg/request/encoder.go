package request

import (
	"bytes"
	"strings"

	"github.com/jogardn/xconnect/pkg/models"
	"github.com/jogardn/xconnect/pkg/xmltree"
)

const (
	Namespace      = "http://www.euroscript.com/escaepe/types"
	SchemaLocation = Namespace + " clientOrderRequestTypes.xsd"

	RequestDateLayout = "2006-01-02T15:04:05"
	DueDateLayout     = "2006-01-02"

	// InputDir is the archive folder holding the files to translate.
	InputDir = "Input"
)

const (
	xmlHeader = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"
	rootOpen  = `<tns:ClientWoRequest xmlns:tns="` + Namespace + `"` +
		` xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"` +
		` xsi:schemaLocation="` + SchemaLocation + `">`
	rootClose = "</tns:ClientWoRequest>\n"
)

// Encoder turns an order into the document stored as order.xml.
type Encoder interface {
	Encode(order *models.Order) ([]byte, error)
}

type XMLEncoder struct{}

// Encode is XMLEncoder{}.Encode.
func Encode(order *models.Order) ([]byte, error) {
	return XMLEncoder{}.Encode(order)
}

func (XMLEncoder) Encode(order *models.Order) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xmlHeader)
	buf.WriteString(rootOpen)
	if err := xmltree.Write(&buf, orderTree(order)); err != nil {
		return nil, err
	}
	buf.WriteString(rootClose)
	return buf.Bytes(), nil
}

func orderTree(order *models.Order) xmltree.Value {
	entries := []xmltree.Entry{
		xmltree.E("ClientId", xmltree.Scalar(order.ClientID())),
		xmltree.E("OrderName", xmltree.Scalar(order.Name())),
		xmltree.E("TemplateId", xmltree.Scalar(order.TemplateID())),
		xmltree.E("RequestDate", xmltree.Scalar(order.RequestDate().Format(RequestDateLayout))),
		xmltree.E("RequestedDueDate", xmltree.Scalar(order.DueDate().Format(DueDateLayout))),
		xmltree.E("IssuedBy", xmltree.Scalar(order.IssuedBy())),
		xmltree.E("ConfidentialOrder", xmltree.Bool(order.IsConfidential())),
		xmltree.E("SourceLanguageIsoCode", xmltree.Scalar(order.SourceLanguage())),
		xmltree.E("TargetLanguages", targetLanguages(order)),
	}
	if service := order.Service(); service != "" {
		entries = append(entries, xmltree.E("Service", xmltree.Scalar(service)))
	}
	entries = append(entries,
		xmltree.E("ClientInstructions", xmltree.Scalar(instructions(order))),
		xmltree.E("ClientReference", xmltree.Scalar(order.Reference())),
		xmltree.E("ConfirmationRequested", xmltree.Bool(order.NeedsConfirmation())),
		xmltree.E("QuotationRequested", xmltree.Bool(order.NeedsQuotation())),
		xmltree.E("InputFiles", inputFiles(order)),
	)
	return xmltree.Map(entries...)
}

func targetLanguages(order *models.Order) xmltree.Value {
	langs := order.TargetLanguages()
	codes := make([]xmltree.Value, 0, len(langs))
	for _, lang := range langs {
		codes = append(codes, xmltree.Scalar(lang))
	}
	return xmltree.Repeated("IsoCode", codes...)
}

func instructions(order *models.Order) string {
	lines := order.Instructions()
	if len(lines) == 0 {
		return "None"
	}
	return strings.Join(lines, "\n")
}

func inputFiles(order *models.Order) xmltree.Value {
	names := order.Files()
	files := make([]xmltree.Value, 0, len(names))
	for _, name := range names {
		files = append(files, xmltree.Map(
			xmltree.E("FileName", xmltree.Scalar(name)),
			xmltree.E("FileReference", xmltree.Scalar(FileReference(name))),
		))
	}
	return xmltree.Repeated("InputFile", files...)
}

// FileReference is the archive path of an attached file.
func FileReference(fileName string) string {
	return InputDir + "/" + fileName
}
