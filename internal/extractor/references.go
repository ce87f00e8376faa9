package extractor

import (
	"regexp"
	"strings"

	"paperindex/internal/domain"
	"paperindex/internal/section"
)

var (
	entryBreak = regexp.MustCompile(`\.\s*\n`)
	entryStart = regexp.MustCompile(`^[A-Za-z]+,`)
)

// ParseReferences locates the references section of text and splits it into
// entries.
func ParseReferences(text string, set *section.PatternSet) domain.References {
	f := section.From(text, set)
	if !f.OK {
		return domain.References{}
	}
	return domain.References{Entries: SplitReferences(f.Text), Found: true}
}

// SplitReferences drops the marker line of block and splits the remainder
// wherever a period and line break are followed by a "Surname," token. The
// period stays with the entry it ends.
//
// Only "Author, initials." styles segment well; numbered or footnote styles
// come back as a single entry.
func SplitReferences(block string) []string {
	nl := strings.IndexByte(block, '\n')
	if nl < 0 {
		return nil
	}
	body := block[nl+1:]

	var entries []string
	start := 0
	for _, m := range entryBreak.FindAllStringIndex(body, -1) {
		if !entryStart.MatchString(body[m[1]:]) {
			continue
		}
		entries = appendEntry(entries, body[start:m[0]+1])
		start = m[1]
	}
	return appendEntry(entries, body[start:])
}

func appendEntry(entries []string, s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return entries
	}
	return append(entries, s)
}

// StripBackMatter removes the references region and then the acknowledgments
// region from text. Text without either marker comes back unchanged.
func StripBackMatter(text string, refs, acks *section.PatternSet) string {
	return section.Before(section.Before(text, refs), acks)
}
