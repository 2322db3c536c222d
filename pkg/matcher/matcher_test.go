package matcher

import (
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japaniel/bsdetect/pkg/lexicon"
)

func newDetector(t *testing.T) *Detector {
	t.Helper()
	return New(lexicon.Default())
}

func sorted(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

func TestDetectEnglishScenario(t *testing.T) {
	d := newDetector(t)
	got := d.Detect("We need to leverage synergy to optimize our agile ecosystem", lexicon.English)
	assert.ElementsMatch(t, []string{"leverage", "synergy", "optimize", "agile", "ecosystem"}, got)
}

func TestDetectWordBoundaries(t *testing.T) {
	d := newDetector(t)
	for _, tc := range []struct {
		name string
		text string
		want []string
	}{
		{"capitalized", "Agile methodology is here", []string{"agile"}},
		{"suffix", "the team agiled the backlog", nil},
		{"prefix", "a fragile system", nil},
		{"punctuation", "(agile), robust.", []string{"agile", "robust"}},
		{"phrase", "Time for a DEEP DIVE into the numbers", []string{"deep dive"}},
		{"phrase split by newline", "a deep\ndive", nil},
		{"hyphenated entry", "a win-win deal", []string{"win-win"}},
		{"longer hyphenated word", "it is value-added work", []string{"value-added"}},
		{"shorter hyphenated word", "a value-add", []string{"value-add"}},
		{"underscore joins words", "agile_team", nil},
		{"digits join words", "agile2", nil},
		{"empty", "", nil},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, d.Detect(tc.text, lexicon.English))
		})
	}
}

func TestDetectNorwegian(t *testing.T) {
	d := newDetector(t)
	got := d.Detect("Vi må STRØMLINJEFORME prosessene og tenke holistisk og bærekraftig.", lexicon.Norwegian)
	assert.Equal(t, []string{"holistisk", "bærekraftig", "strømlinjeforme"}, got)

	// Letters outside ASCII still count as word characters.
	assert.Nil(t, d.Detect("synergiø", lexicon.Norwegian))
	assert.Nil(t, d.Detect("ærobust", lexicon.Norwegian))
}

func TestDetectDecomposedInput(t *testing.T) {
	lex, err := lexicon.Parse([]byte("no: [\"s\u00e5kalt\"]\nen: [x]\n"))
	require.NoError(t, err)
	d := New(lex)
	assert.Equal(t, []string{"s\u00e5kalt"}, d.Detect("et sa\u030akalt problem", lexicon.Norwegian))
	assert.Nil(t, d.Detect("det s\u00e5kalte", lexicon.Norwegian))
}

func TestDetectEachEntryOnce(t *testing.T) {
	d := newDetector(t)
	got := d.Detect("synergy Synergy SYNERGY synergy", lexicon.English)
	assert.Equal(t, []string{"synergy"}, got)
}

func TestDetectIsOrderIndependentAndIdempotent(t *testing.T) {
	d := newDetector(t)
	a := d.Detect("robust agile leverage", lexicon.English)
	b := d.Detect("leverage agile robust", lexicon.English)
	assert.Equal(t, sorted(a), sorted(b))
	assert.Equal(t, a, d.Detect("robust agile leverage", lexicon.English))
}

func TestDetectUnknownLanguage(t *testing.T) {
	d := newDetector(t)
	assert.Nil(t, d.Detect("synergy", lexicon.Language("de")))
}

func TestDetectConcurrent(t *testing.T) {
	d := newDetector(t)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got := d.Detect("leverage the ecosystem", lexicon.English)
			assert.Equal(t, []string{"leverage", "ecosystem"}, got)
		}()
	}
	wg.Wait()
}
