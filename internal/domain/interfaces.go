package domain

// ImageRef identifies an embedded image on a page.
type ImageRef struct {
	Name   string
	Width  int
	Height int
}

// ImageData is the raw payload of an embedded image.
type ImageData struct {
	Bytes []byte
	Ext   string
}

// PDFOpener opens PDF files for extraction.
type PDFOpener interface {
	Open(path string) (PDFDocument, error)
}

// PDFDocument is an opened PDF. Close releases the underlying file handle.
type PDFDocument interface {
	PageCount() int
	// Page returns the page at the given 0-based index.
	Page(index int) (PDFPage, error)
	Metadata() map[string]string
	Close() error
}

// PDFPage exposes the content of a single page.
type PDFPage interface {
	// Number is the 1-based page number.
	Number() int
	Rect() Rect
	Text() (string, error)
	// TextIn returns the text whose glyphs intersect r.
	TextIn(r Rect) (string, error)
	Images() ([]ImageRef, error)
	ImageBBox(ref ImageRef) (Rect, error)
	ExtractImage(ref ImageRef) (ImageData, error)
}

// Chunk is a passage of a document's cleaned body text.
type Chunk struct {
	DocumentID string
	ChunkID    string
	Text       string
	Index      int
}

// Chunker splits body text into passages suitable for retrieval indexing.
type Chunker interface {
	Chunk(documentID, text string) ([]Chunk, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}
