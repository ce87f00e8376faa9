package extractor

import (
	"fmt"

	"paperindex/internal/domain"
	"paperindex/internal/section"
)

// DefaultCaptionMargin is the height of the caption search region below an
// image, in PDF units.
const DefaultCaptionMargin = 50.0

// CaptionRegion spans the full page width from the bottom edge of bbox to
// margin units below it.
func CaptionRegion(page domain.Rect, bbox domain.Rect, margin float64) domain.Rect {
	return domain.Rect{
		X0: 0,
		Y0: bbox.Y1,
		X1: page.Width(),
		Y1: bbox.Y1 + margin,
	}
}

// CaptionFor reads the text beneath bbox and keeps it from the first caption
// marker onward. A region without a marker yields a caption that is not found;
// the error is only set when the page text could not be read.
func CaptionFor(page domain.PDFPage, bbox domain.Rect, margin float64, set *section.PatternSet) (domain.Caption, error) {
	region := CaptionRegion(page.Rect(), bbox, margin)
	text, err := page.TextIn(region)
	if err != nil {
		return domain.Caption{}, fmt.Errorf("caption text on page %d: %w", page.Number(), err)
	}
	return FilterCaption(text, set), nil
}

// FilterCaption trims text preceding the first caption marker.
func FilterCaption(text string, set *section.PatternSet) domain.Caption {
	f := section.From(text, set)
	if !f.OK {
		return domain.Caption{}
	}
	return domain.Caption{Text: f.Text, Found: true}
}
