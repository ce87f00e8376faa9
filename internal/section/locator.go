package section

import "strings"

// Match is the span of the leftmost hit of a pattern set.
type Match struct {
	Start int
	End   int
	// Alternative is the matched text, useful when diagnosing which
	// fragment fired.
	Alternative string
}

// Found is a located value or its absence.
type Found struct {
	Text string
	OK   bool
}

// Or returns the text when found and label otherwise.
func (f Found) Or(label string) string {
	if !f.OK {
		return label
	}
	return f.Text
}

// Locate finds the leftmost match of any alternative in set. Among
// alternatives starting at the same offset the earlier fragment wins.
func Locate(text string, set *PatternSet) (Match, bool) {
	if set == nil {
		return Match{}, false
	}
	re, err := set.Compile()
	if err != nil {
		return Match{}, false
	}
	loc := re.FindStringIndex(text)
	if loc == nil {
		return Match{}, false
	}
	return Match{Start: loc[0], End: loc[1], Alternative: text[loc[0]:loc[1]]}, true
}

// Before returns the trimmed text preceding the first match, or text
// unchanged when nothing matches.
func Before(text string, set *PatternSet) string {
	m, ok := Locate(text, set)
	if !ok {
		return text
	}
	return strings.TrimSpace(text[:m.Start])
}

// From returns the trimmed text starting at the first match.
func From(text string, set *PatternSet) Found {
	m, ok := Locate(text, set)
	if !ok {
		return Found{}
	}
	return Found{Text: strings.TrimSpace(text[m.Start:]), OK: true}
}
