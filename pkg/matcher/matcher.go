// Package matcher finds lexicon buzzwords in free text.
package matcher

import (
	"unicode"
	"unicode/utf8"

	aho "github.com/petar-dambovaliev/aho-corasick"

	"github.com/japaniel/bsdetect/pkg/lexicon"
)

// Detector scans text for whole-word, case-insensitive lexicon entries.
// It is immutable after construction and safe for concurrent use.
type Detector struct {
	langs map[lexicon.Language]*automaton
}

type automaton struct {
	ac      aho.AhoCorasick
	entries []string // display spelling, indexed like the automaton patterns
}

// New builds one automaton per language from lex.
func New(lex *lexicon.Lexicon) *Detector {
	d := &Detector{langs: make(map[lexicon.Language]*automaton, len(lexicon.Languages))}
	for _, lang := range lexicon.Languages {
		entries := lex.Entries(lang)
		folded := make([]string, len(entries))
		for i, e := range entries {
			folded[i] = lexicon.Fold(e)
		}
		builder := aho.NewAhoCorasickBuilder(aho.Opts{
			DFA: true,
		})
		d.langs[lang] = &automaton{
			ac:      builder.Build(folded),
			entries: entries,
		}
	}
	return d
}

// Detect returns the lexicon entries for lang that occur in text as whole
// words. Each entry appears at most once, in lexicon order. Unknown languages
// and empty text yield nil.
func (d *Detector) Detect(text string, lang lexicon.Language) []string {
	a, ok := d.langs[lang]
	if !ok || text == "" {
		return nil
	}
	content := []byte(lexicon.Fold(text))
	found := make([]bool, len(a.entries))
	hits := 0

	iter := a.ac.IterOverlappingByte(content)
	for next := iter.Next(); next != nil; next = iter.Next() {
		m := *next
		idx := m.Pattern()
		if found[idx] || !atBoundary(content, m.Start(), m.End()) {
			continue
		}
		found[idx] = true
		hits++
	}
	if hits == 0 {
		return nil
	}
	out := make([]string, 0, hits)
	for i, ok := range found {
		if ok {
			out = append(out, a.entries[i])
		}
	}
	return out
}

// atBoundary reports whether content[start:end] is not embedded in a larger
// word.
func atBoundary(content []byte, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRune(content[:start])
		if isWordRune(r) {
			return false
		}
	}
	if end < len(content) {
		r, _ := utf8.DecodeRune(content[end:])
		if isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}
