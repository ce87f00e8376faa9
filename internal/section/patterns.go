package section

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// Names of the pattern sets the extractor looks up.
const (
	FigureCaptions  = "figure_captions"
	References      = "references"
	Acknowledgments = "acknowledgments"
)

// DefaultVersion identifies the built-in pattern library.
const DefaultVersion = "2024.1"

// PatternSet is an ordered list of regular expression fragments describing one
// boundary. Fragments are joined into a single case-insensitive alternation.
type PatternSet struct {
	Name         string   `yaml:"name" json:"name"`
	Alternatives []string `yaml:"alternatives" json:"alternatives"`

	once sync.Once
	re   *regexp.Regexp
	err  error
}

// NewPatternSet compiles a pattern set, failing on invalid fragments.
func NewPatternSet(name string, alternatives ...string) (*PatternSet, error) {
	ps := &PatternSet{Name: name, Alternatives: alternatives}
	if _, err := ps.Compile(); err != nil {
		return nil, err
	}
	return ps, nil
}

// MustPatternSet is like NewPatternSet but panics on error.
func MustPatternSet(name string, alternatives ...string) *PatternSet {
	ps, err := NewPatternSet(name, alternatives...)
	if err != nil {
		panic(err)
	}
	return ps
}

// Compile returns the combined expression, building it on first use.
func (ps *PatternSet) Compile() (*regexp.Regexp, error) {
	ps.once.Do(func() {
		if len(ps.Alternatives) == 0 {
			ps.err = fmt.Errorf("pattern set %q: no alternatives", ps.Name)
			return
		}
		for _, alt := range ps.Alternatives {
			if _, err := regexp.Compile(alt); err != nil {
				ps.err = fmt.Errorf("pattern set %q: fragment %q: %w", ps.Name, alt, err)
				return
			}
		}
		ps.re, ps.err = regexp.Compile("(?i)(" + strings.Join(ps.Alternatives, "|") + ")")
	})
	return ps.re, ps.err
}

// Library is a versioned collection of named pattern sets.
type Library struct {
	Version string
	sets    map[string]*PatternSet
}

// NewLibrary validates and indexes the given sets by name.
func NewLibrary(version string, sets ...*PatternSet) (*Library, error) {
	lib := &Library{Version: version, sets: make(map[string]*PatternSet, len(sets))}
	for _, ps := range sets {
		if ps == nil {
			continue
		}
		if _, err := ps.Compile(); err != nil {
			return nil, err
		}
		if _, dup := lib.sets[ps.Name]; dup {
			return nil, fmt.Errorf("pattern set %q defined twice", ps.Name)
		}
		lib.sets[ps.Name] = ps
	}
	return lib, nil
}

// Set returns the named pattern set.
func (l *Library) Set(name string) (*PatternSet, bool) {
	ps, ok := l.sets[name]
	return ps, ok
}

// Require fails on the first name the library has no set for.
func (l *Library) Require(names ...string) error {
	for _, name := range names {
		if _, ok := l.sets[name]; !ok {
			return fmt.Errorf("pattern library %s: missing set %q", l.Version, name)
		}
	}
	return nil
}

// WithOverrides returns a copy of l where every non-empty override replaces
// the set of the same name.
func (l *Library) WithOverrides(version string, overrides map[string][]string) (*Library, error) {
	sets := make([]*PatternSet, 0, len(l.sets)+len(overrides))
	for name, ps := range l.sets {
		if alts, ok := overrides[name]; ok && len(alts) > 0 {
			continue
		}
		sets = append(sets, ps)
	}
	for name, alts := range overrides {
		if len(alts) == 0 {
			continue
		}
		sets = append(sets, &PatternSet{Name: name, Alternatives: alts})
	}
	if version == "" {
		version = l.Version
	}
	return NewLibrary(version, sets...)
}

// DefaultLibrary returns the built-in pattern sets.
func DefaultLibrary() *Library {
	lib, err := NewLibrary(DefaultVersion,
		MustPatternSet(FigureCaptions, `Figure \d+`, `Fig\. \d+`, `Figure`, `Fig\.`),
		MustPatternSet(References,
			"References \n",
			"Reference \n",
			"Bibliography \n",
			"Citations \n",
			"Works Cited \n",
			"Literature Cited \n",
			"References\n",
		),
		MustPatternSet(Acknowledgments,
			"Acknowledgments \n",
			"Acknowledgements \n",
			"Acknowledgments\n",
			"Acknowledgements\n",
		),
	)
	if err != nil {
		panic(err)
	}
	return lib
}
