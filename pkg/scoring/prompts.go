package scoring

import (
	"fmt"
	"strings"

	"github.com/japaniel/bsdetect/pkg/lexicon"
)

// Band is one score range with the wording used in the model prompt and the
// label shown to users.
type Band struct {
	Min, Max int
	Prompt   map[lexicon.Language]string
	Label    map[lexicon.Language]string
}

// Bands partition 0..100 in ascending order.
var Bands = []Band{
	{
		Min: 0, Max: 20,
		Prompt: map[lexicon.Language]string{
			lexicon.Norwegian: "Klar, konkret og meningsfull tekst",
			lexicon.English:   "Clear, concrete and meaningful text",
		},
		Label: map[lexicon.Language]string{
			lexicon.Norwegian: "Utmerket - Klar og konkret",
			lexicon.English:   "Excellent - Clear and concrete",
		},
	},
	{
		Min: 21, Max: 40,
		Prompt: map[lexicon.Language]string{
			lexicon.Norwegian: "Noe bruk av buzzwords, men fortsatt forståelig",
			lexicon.English:   "Some use of buzzwords, but still understandable",
		},
		Label: map[lexicon.Language]string{
			lexicon.Norwegian: "God - Noe buzzwords",
			lexicon.English:   "Good - Some buzzwords",
		},
	},
	{
		Min: 41, Max: 60,
		Prompt: map[lexicon.Language]string{
			lexicon.Norwegian: "Betydelig bruk av sjargong og vage formuleringer",
			lexicon.English:   "Significant use of jargon and vague formulations",
		},
		Label: map[lexicon.Language]string{
			lexicon.Norwegian: "Middels - Betydelig sjargong",
			lexicon.English:   "Medium - Significant jargon",
		},
	},
	{
		Min: 61, Max: 80,
		Prompt: map[lexicon.Language]string{
			lexicon.Norwegian: "Mye innholdsløs tekst og buzzwords",
			lexicon.English:   "Lots of empty text and buzzwords",
		},
		Label: map[lexicon.Language]string{
			lexicon.Norwegian: "Dårlig - Mye innholdsløst",
			lexicon.English:   "Poor - Lots of empty content",
		},
	},
	{
		Min: 81, Max: 100,
		Prompt: map[lexicon.Language]string{
			lexicon.Norwegian: "Ekstremt høyt nivå av meningsløst innhold",
			lexicon.English:   "Extremely high level of meaningless content",
		},
		Label: map[lexicon.Language]string{
			lexicon.Norwegian: "Kritisk - Ekstremt høyt bullshit-nivå",
			lexicon.English:   "Critical - Extremely high bullshit level",
		},
	},
}

// BandFor returns the band containing score. Out-of-range scores map to the
// nearest band.
func BandFor(score int) Band {
	for _, b := range Bands {
		if score <= b.Max {
			return b
		}
	}
	return Bands[len(Bands)-1]
}

// BandLabel is the user-facing label of the band containing score.
func BandLabel(score int, lang lexicon.Language) string {
	b := BandFor(score)
	if l, ok := b.Label[lang]; ok {
		return l
	}
	return b.Label[lexicon.English]
}

var (
	systemIntro = map[lexicon.Language]string{
		lexicon.Norwegian: `Du er en ekspert på å identifisere "bullshit" i tekster - altså tomme fraser, buzzwords, og innholdsløs sjargong som ikke tilfører reell verdi. Din oppgave er å analysere tekster og gi en score fra 0-100 hvor:`,
		lexicon.English:   `You are an expert at identifying "bullshit" in texts - empty phrases, buzzwords, and meaningless jargon that adds no real value. Your task is to analyze texts and give a score from 0-100 where:`,
	}
	systemOutro = map[lexicon.Language]string{
		lexicon.Norwegian: "Identifiser også spesifikke buzzwords og gi konkrete forbedringsforslag.",
		lexicon.English:   "Also identify specific buzzwords and give concrete improvement suggestions.",
	}
	userIntro = map[lexicon.Language]string{
		lexicon.Norwegian: "Analyser følgende tekst og gi en bullshit-score (0-100), identifiser buzzwords, og gi forbedringsforslag:",
		lexicon.English:   "Analyze the following text and give a bullshit score (0-100), identify buzzwords, and give improvement suggestions:",
	}
)

// SystemPrompt describes the task and the score bands in lang.
func SystemPrompt(lang lexicon.Language) string {
	lang = promptLanguage(lang)
	var b strings.Builder
	b.WriteString(systemIntro[lang])
	b.WriteString("\n")
	for _, band := range Bands {
		fmt.Fprintf(&b, "- %d-%d: %s\n", band.Min, band.Max, band.Prompt[lang])
	}
	b.WriteString("\n")
	b.WriteString(systemOutro[lang])
	return b.String()
}

// UserPrompt embeds text in the per-language instruction.
func UserPrompt(text string, lang lexicon.Language) string {
	return userIntro[promptLanguage(lang)] + "\n\n" + text
}

func promptLanguage(lang lexicon.Language) lexicon.Language {
	if lang == lexicon.Norwegian {
		return lexicon.Norwegian
	}
	return lexicon.English
}
