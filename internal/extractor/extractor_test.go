package extractor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paperindex/internal/domain"
	"paperindex/internal/section"
)

func newExtractor(t *testing.T, docs map[string]*fakeDoc) *Extractor {
	t.Helper()
	ex, err := New(&fakeOpener{docs: docs}, Options{})
	require.NoError(t, err)
	return ex
}

func TestExtract_ReferencesEndToEnd(t *testing.T) {
	doc := &fakeDoc{
		meta: map[string]string{"title": "On X"},
		pages: []*fakePage{{
			num:  1,
			text: "Intro body.\nReferences \nSmith, J. Discovered X. \nJones, A. Found Y.",
		}},
	}
	ex := newExtractor(t, map[string]*fakeDoc{"a.pdf": doc})

	res, err := ex.Extract("a.pdf")
	require.NoError(t, err)

	refs := res.Document.Text.References
	require.True(t, refs.Found)
	assert.Equal(t, []string{"Smith, J. Discovered X.", "Jones, A. Found Y."}, refs.Entries)

	body := res.Document.Text.Text
	assert.Equal(t, "Intro body.", body)
	assert.NotContains(t, body, "Smith")
	assert.NotContains(t, body, "Jones")
	assert.Equal(t, "On X", res.Document.Metadata["title"])
	assert.Equal(t, 1, doc.closed)
}

func TestExtract_NoMarkersKeepsText(t *testing.T) {
	text := "Plain body with no back matter.\n"
	doc := &fakeDoc{pages: []*fakePage{{num: 1, text: text}}}
	ex := newExtractor(t, map[string]*fakeDoc{"a.pdf": doc})

	res, err := ex.Extract("a.pdf")
	require.NoError(t, err)
	assert.Equal(t, text, res.Document.Text.AllText)
	assert.Equal(t, text, res.Document.Text.Text)
	assert.False(t, res.Document.Text.References.Found)
	assert.NotNil(t, res.Document.Metadata)
}

func TestExtract_AcknowledgmentsRemoved(t *testing.T) {
	doc := &fakeDoc{pages: []*fakePage{
		{num: 1, text: "Results were good.\nAcknowledgments \nWe thank the reviewers.\n"},
		{num: 2, text: "References \nDoe, J. Earlier work.\n"},
	}}
	ex := newExtractor(t, map[string]*fakeDoc{"a.pdf": doc})

	res, err := ex.Extract("a.pdf")
	require.NoError(t, err)
	assert.Equal(t, "Results were good.", res.Document.Text.Text)
	assert.Equal(t, []string{"Doe, J. Earlier work."}, res.Document.Text.References.Entries)
}

func TestExtract_ImageWithoutCaptionIsKept(t *testing.T) {
	doc := &fakeDoc{pages: []*fakePage{{
		num:  1,
		text: "Body\n",
		blocks: []fakeBlock{
			{rect: domain.Rect{X0: 72, Y0: 320, X1: 300, Y1: 332}, text: "0 10 20 30"},
		},
		images: []fakeImage{{
			ref:   domain.ImageRef{Name: "Im0", Width: 640, Height: 480},
			bytes: []byte{0x89, 'P', 'N', 'G'},
			bbox:  domain.Rect{X0: 72, Y0: 100, X1: 540, Y1: 310},
		}},
	}}}
	ex := newExtractor(t, map[string]*fakeDoc{"a.pdf": doc})

	res, err := ex.Extract("a.pdf")
	require.NoError(t, err)
	require.Contains(t, res.Document.Images, "image_1")

	img := res.Document.Images["image_1"]
	assert.False(t, img.Caption.Found)
	assert.Equal(t, domain.CaptionUnknown, img.Caption.String())
	assert.Equal(t, 1, img.PageNumber)
	assert.Equal(t, "Im0", img.Name)
	assert.Equal(t, 640, img.Width)
	assert.Empty(t, res.Troubleshoot)
}

func TestExtract_CaptionBelowImage(t *testing.T) {
	doc := &fakeDoc{pages: []*fakePage{{
		num: 1,
		blocks: []fakeBlock{
			{rect: domain.Rect{X0: 72, Y0: 50, X1: 540, Y1: 62}, text: "Figure 9: above, not ours"},
			{rect: domain.Rect{X0: 72, Y0: 315, X1: 540, Y1: 327}, text: "axis: epoch"},
			{rect: domain.Rect{X0: 72, Y0: 330, X1: 540, Y1: 342}, text: "Figure 2: Training loss."},
			{rect: domain.Rect{X0: 72, Y0: 420, X1: 540, Y1: 432}, text: "Figure 3: too far below"},
		},
		images: []fakeImage{{
			ref:  domain.ImageRef{Name: "Im1"},
			bbox: domain.Rect{X0: 72, Y0: 100, X1: 540, Y1: 310},
		}},
	}}}
	ex := newExtractor(t, map[string]*fakeDoc{"a.pdf": doc})

	res, err := ex.Extract("a.pdf")
	require.NoError(t, err)
	img := res.Document.Images["image_1"]
	assert.True(t, img.Caption.Found)
	assert.Equal(t, "Figure 2: Training loss.", img.Caption.Text)
}

func TestExtract_BadImageIsSkippedWithWarning(t *testing.T) {
	doc := &fakeDoc{pages: []*fakePage{
		{
			num: 1,
			images: []fakeImage{
				{ref: domain.ImageRef{Name: "ImBad"}, bboxErr: errors.New("bad bbox")},
				{ref: domain.ImageRef{Name: "ImGood"}, bbox: domain.Rect{X1: 10, Y1: 10}},
			},
		},
		{
			num:    2,
			images: []fakeImage{{ref: domain.ImageRef{Name: "ImRaw"}, dataErr: errors.New("unsupported filter")}},
		},
	}}
	ex := newExtractor(t, map[string]*fakeDoc{"a.pdf": doc})

	res, err := ex.Extract("a.pdf")
	require.NoError(t, err)

	assert.NotContains(t, res.Document.Images, "image_1")
	assert.Contains(t, res.Document.Images, "image_2")
	assert.NotContains(t, res.Document.Images, "image_3")

	require.Len(t, res.Troubleshoot, 2)
	assert.Equal(t, "Warning: bad bbox - Skipping image with name ImBad.", res.Troubleshoot[0].String())
	assert.Equal(t, 2, res.Troubleshoot[1].Page)
	assert.Equal(t, "ImRaw", res.Troubleshoot[1].Image)
	assert.Equal(t, 1, doc.closed)
}

func TestExtract_PageFailuresAreWarnings(t *testing.T) {
	doc := &fakeDoc{pages: []*fakePage{
		nil,
		{num: 2, textErr: errors.New("bad font")},
		{num: 3, text: "Survivor text."},
	}}
	ex := newExtractor(t, map[string]*fakeDoc{"a.pdf": doc})

	res, err := ex.Extract("a.pdf")
	require.NoError(t, err)
	assert.Equal(t, "Survivor text.\n", res.Document.Text.AllText)
	assert.Len(t, res.Troubleshoot, 2)
}

func TestExtract_OpenFailureIsDocumentFatal(t *testing.T) {
	ex := newExtractor(t, nil)

	res, err := ex.Extract("missing.pdf")
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, domain.IsKind(err, domain.KindDocument))
}

func TestNew_RejectsIncompleteLibrary(t *testing.T) {
	lib, err := section.NewLibrary("partial", section.MustPatternSet(section.References, "References\n"))
	require.NoError(t, err)

	_, err = New(&fakeOpener{}, Options{Patterns: lib})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindConfig))
}
