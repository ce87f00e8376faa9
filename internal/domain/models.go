package domain

import "fmt"

// Legacy labels rendered in place of values that could not be extracted.
const (
	CaptionUnknown    = "Caption Unknown"
	ReferencesUnknown = "References Unknown"
)

// Artifact types stored in the "type" metadata field.
const (
	ArtifactText  = "text"
	ArtifactImage = "image"
	ArtifactTable = "table"
)

// Rect is an axis-aligned rectangle in page space with the origin at the
// top-left corner and y growing downwards.
type Rect struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

func (r Rect) Width() float64  { return r.X1 - r.X0 }
func (r Rect) Height() float64 { return r.Y1 - r.Y0 }

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool { return r.X1 <= r.X0 || r.Y1 <= r.Y0 }

// Intersects reports whether r and o share any area.
func (r Rect) Intersects(o Rect) bool {
	return r.X0 < o.X1 && o.X0 < r.X1 && r.Y0 < o.Y1 && o.Y0 < r.Y1
}

// Caption is the text found beneath a figure or above a table. Found is false
// when no caption marker was located; Text is then empty.
type Caption struct {
	Text  string
	Found bool
}

// String renders the caption, substituting CaptionUnknown when missing.
func (c Caption) String() string {
	if !c.Found {
		return CaptionUnknown
	}
	return c.Text
}

// References is the back-matter of a document split into entries.
type References struct {
	Entries []string
	Found   bool
}

// TextBlock holds a document's text in its raw and partitioned forms.
type TextBlock struct {
	// AllText is the concatenated text of every page.
	AllText string
	// Text is AllText with the references and acknowledgments regions removed.
	Text       string
	References References
}

// PageImageRecord is one embedded image on one page.
type PageImageRecord struct {
	// Name is the image's resource name on its page, the identifier the PDF
	// backend uses to locate it again.
	Name       string
	Bytes      []byte
	Ext        string
	Width      int
	Height     int
	BBox       Rect
	Caption    Caption
	PageNumber int
}

// TableRecord is a table extracted from a page.
type TableRecord struct {
	Caption    Caption
	Rows       [][]string
	PageNumber int
}

// DocumentRecord is the structured content of one PDF.
type DocumentRecord struct {
	Text     TextBlock
	Images   map[string]PageImageRecord
	Tables   map[string]TableRecord
	Metadata map[string]string
}

// Warning is a non-fatal diagnostic recorded while extracting a document.
type Warning struct {
	Page    int
	Image   string
	Message string
}

func (w Warning) String() string {
	if w.Image != "" {
		return fmt.Sprintf("Warning: %s - Skipping image with name %s.", w.Message, w.Image)
	}
	if w.Page > 0 {
		return fmt.Sprintf("Warning: page %d: %s", w.Page, w.Message)
	}
	return "Warning: " + w.Message
}

// Extraction pairs an extracted document with its troubleshoot log.
type Extraction struct {
	Document     *DocumentRecord
	Troubleshoot []Warning
}
