package response

// Translation pairs a delivered file's metadata with its content in the
// archive. Content is read again on every call.
type Translation struct {
	source ContentSource
	info   InfoFile
}

func (t Translation) Info() InfoFile { return t.info }

func (t Translation) Content() ([]byte, error) {
	return t.source.Content(t.info.Path)
}

// Translations is a restartable sequence of Translation in manifest order.
type Translations struct {
	cursor[Translation]
}

func NewTranslations(source ContentSource) (*Translations, error) {
	info, err := source.Info()
	if err != nil {
		return nil, err
	}

	files := info.Files()
	items := make([]Translation, 0, files.Len())
	for _, f := range files.All() {
		items = append(items, Translation{source: source, info: f})
	}
	return &Translations{cursor: newCursor(items)}, nil
}
