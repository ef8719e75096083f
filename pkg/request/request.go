package request

import (
	"path/filepath"

	"github.com/jogardn/xconnect/pkg/models"
)

// Request is an order together with the files and in-memory content that
// travel with it.
type Request struct {
	order    *models.Order
	files    []Attachment
	contents []Attachment
}

// Attachment is one entry under Input/. Path is set for local files, Content
// for in-memory blobs.
type Attachment struct {
	Name    string
	Path    string
	Content []byte
}

func New(sourceLanguage string, config models.OrderConfig, opts ...models.OrderOption) (*Request, error) {
	order, err := models.NewOrder(sourceLanguage, config, opts...)
	if err != nil {
		return nil, err
	}
	return &Request{order: order}, nil
}

func (r *Request) Order() *models.Order { return r.order }

func (r *Request) AddTargetLanguage(lang string) { r.order.AddTargetLanguage(lang) }

func (r *Request) AddInstruction(instruction string) { r.order.AddInstruction(instruction) }

func (r *Request) SetReference(reference string) { r.order.SetReference(reference) }

// AddFile attaches a local file under its base name. Adding a second file
// with the same base name replaces the first.
func (r *Request) AddFile(path string) {
	name := filepath.Base(path)
	r.files = upsert(r.files, Attachment{Name: name, Path: path})
	r.order.AddFile(name)
}

// AddContent attaches content under fileName.
func (r *Request) AddContent(fileName string, content []byte) {
	r.contents = upsert(r.contents, Attachment{Name: fileName, Content: content})
	r.order.AddFile(fileName)
}

func (r *Request) Files() []Attachment {
	return append([]Attachment(nil), r.files...)
}

func (r *Request) Contents() []Attachment {
	return append([]Attachment(nil), r.contents...)
}

func upsert(list []Attachment, a Attachment) []Attachment {
	for i := range list {
		if list[i].Name == a.Name {
			list[i] = a
			return list
		}
	}
	return append(list, a)
}
