// Package lexicon holds the per-language buzzword lists used by the pattern
// matcher.
package lexicon

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// Language is a two-letter language selector.
type Language string

const (
	Norwegian Language = "no"
	English   Language = "en"
)

// Languages lists every supported language in display order.
var Languages = []Language{Norwegian, English}

// ParseLanguage validates a language code. Only the exact codes are
// accepted.
func ParseLanguage(s string) (Language, error) {
	switch Language(s) {
	case Norwegian:
		return Norwegian, nil
	case English:
		return English, nil
	}
	return "", fmt.Errorf("unsupported language %q", s)
}

// Fold returns the case-folded form of s used for matching and counter keys.
// Composed and decomposed spellings fold to the same string.
func Fold(s string) string {
	return strings.ToLower(norm.NFC.String(s))
}

//go:embed lexicon.yaml
var embedded []byte

// Lexicon maps each language to its ordered list of entries.
type Lexicon struct {
	entries map[Language][]string
}

var (
	defaultOnce sync.Once
	defaultLex  *Lexicon
)

// Default returns the built-in lexicon. It panics if the embedded file is
// malformed, which is a build defect.
func Default() *Lexicon {
	defaultOnce.Do(func() {
		lex, err := Parse(embedded)
		if err != nil {
			panic(fmt.Sprintf("lexicon: embedded lexicon invalid: %v", err))
		}
		defaultLex = lex
	})
	return defaultLex
}

// Load reads a lexicon override file.
func Load(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lexicon %s: %w", path, err)
	}
	lex, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse lexicon %s: %w", path, err)
	}
	return lex, nil
}

// Parse decodes a YAML document of the form `{no: [...], en: [...]}`.
// Blank and duplicate (case-insensitive) entries are dropped. Every supported
// language must end up with at least one entry.
func Parse(data []byte) (*Lexicon, error) {
	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	lex := &Lexicon{entries: make(map[Language][]string, len(Languages))}
	for key := range raw {
		if _, err := ParseLanguage(key); err != nil {
			return nil, err
		}
	}
	for _, lang := range Languages {
		seen := make(map[string]struct{})
		var list []string
		for _, e := range raw[string(lang)] {
			e = strings.TrimSpace(e)
			if e == "" {
				continue
			}
			k := Fold(e)
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			list = append(list, e)
		}
		if len(list) == 0 {
			return nil, fmt.Errorf("no entries for language %q", lang)
		}
		lex.entries[lang] = list
	}
	return lex, nil
}

// Entries returns the entries for lang in file order. The slice is a copy.
func (l *Lexicon) Entries(lang Language) []string {
	src := l.entries[lang]
	out := make([]string, len(src))
	copy(out, src)
	return out
}
