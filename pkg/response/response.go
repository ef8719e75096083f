package response

// Response is a received delivery: the archive, its manifest and the
// translated files.
type Response struct {
	reader       *Reader
	translations *Translations
}

func Open(path string) (*Response, error) {
	reader, err := OpenArchive(path)
	if err != nil {
		return nil, err
	}
	return &Response{reader: reader}, nil
}

func (r *Response) Info() (*Info, error) {
	return r.reader.Info()
}

// Translations is built once; callers Rewind to iterate again.
func (r *Response) Translations() (*Translations, error) {
	if r.translations == nil {
		translations, err := NewTranslations(r.reader)
		if err != nil {
			return nil, err
		}
		r.translations = translations
	}
	return r.translations, nil
}

func (r *Response) Reader() *Reader { return r.reader }

func (r *Response) Close() error {
	return r.reader.Close()
}
