package pdfdoc

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paperindex/internal/domain"
)

// writeSamplePDF writes a one-page PDF with a title line, a 2x2 RGB image
// painted at (72,500)-(272,600) and a caption line just below it.
func writeSamplePDF(t *testing.T) string {
	t.Helper()

	content := "BT /F1 12 Tf 72 700 Td (Hello World) Tj ET\n" +
		"q 200 0 0 100 72 500 cm /Im0 Do Q\n" +
		"BT /F1 10 Tf 72 480 Td (Figure 1: Test image) Tj ET\n"
	pixels := string([]byte{255, 0, 0, 0, 255, 0, 0, 0, 255, 255, 255, 255})

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] " +
			"/Resources << /Font << /F1 4 0 R >> /XObject << /Im0 6 0 R >> >> /Contents 5 0 R >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		fmt.Sprintf("<< /Type /XObject /Subtype /Image /Width 2 /Height 2 /ColorSpace /DeviceRGB "+
			"/BitsPerComponent 8 /Length %d >>\nstream\n%s\nendstream", len(pixels), pixels),
		"<< /Title (Test Paper) /Author (A. Author) >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R /Info 7 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	path := filepath.Join(t.TempDir(), "sample.pdf")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestOpen_Sample(t *testing.T) {
	doc, err := NewOpener().Open(writeSamplePDF(t))
	require.NoError(t, err)
	defer doc.Close()

	assert.Equal(t, 1, doc.PageCount())
	meta := doc.Metadata()
	assert.Equal(t, "Test Paper", meta["Title"])
	assert.Equal(t, "A. Author", meta["Author"])

	page, err := doc.Page(0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Number())
	assert.Equal(t, domain.Rect{X1: 612, Y1: 792}, page.Rect())

	text, err := page.Text()
	require.NoError(t, err)
	assert.Contains(t, text, "Hello World")
	assert.Contains(t, text, "Figure 1: Test image")

	refs, err := page.Images()
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, domain.ImageRef{Name: "Im0", Width: 2, Height: 2}, refs[0])

	bbox, err := page.ImageBBox(refs[0])
	require.NoError(t, err)
	assert.Equal(t, domain.Rect{X0: 72, Y0: 192, X1: 272, Y1: 292}, bbox)

	below, err := page.TextIn(domain.Rect{X0: 0, Y0: bbox.Y1, X1: 612, Y1: bbox.Y1 + 50})
	require.NoError(t, err)
	assert.Equal(t, "Figure 1: Test image\n", below)

	_, err = page.ImageBBox(domain.ImageRef{Name: "Im9"})
	assert.Error(t, err)

	_, err = doc.Page(1)
	assert.Error(t, err)
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := NewOpener().Open(filepath.Join(t.TempDir(), "nope.pdf"))
	assert.Error(t, err)
}

func TestOpen_NotAPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.pdf")
	require.NoError(t, os.WriteFile(path, []byte("just some plain text, not a pdf\n"), 0o644))

	_, err := NewOpener().Open(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotPDF)
}

func TestOpen_TruncatedPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog"), 0o644))

	_, err := NewOpener().Open(path)
	assert.Error(t, err)
}
