package apperr

import "errors"

var catalog = map[string]map[Code]string{
	"en": {
		CodeTextTooShort:          "Text is too short (minimum 10 characters)",
		CodeTextTooLong:           "Text is too long (maximum 50000 characters)",
		CodeInvalidLanguage:       "Unsupported language",
		CodeInvalidURL:            "Invalid URL",
		CodeUnsupportedScheme:     "Only HTTP and HTTPS URLs are supported",
		CodeUnsupportedFileType:   "Unsupported file type",
		CodeExtractedTextTooShort: "Extracted text is too short",
		CodeInvalidLimit:          "Limit must be between 1 and 100",
		CodeFileTooLarge:          "File is too large",
		CodeInvalidRequest:        "Invalid request",
		CodeFetchFailed:           "Failed to fetch URL",
		CodeDownloadFailed:        "Failed to download file",
		CodeExtractFailed:         "Failed to extract text",
		CodeModelFailed:           "Analysis service failed",
		CodeInvalidModelResponse:  "Invalid response from analysis service",
		CodeStoreFailed:           "Failed to save analysis",
	},
	"no": {
		CodeTextTooShort:          "Teksten er for kort (minimum 10 tegn)",
		CodeTextTooLong:           "Teksten er for lang (maksimum 50000 tegn)",
		CodeInvalidLanguage:       "Språket støttes ikke",
		CodeInvalidURL:            "Ugyldig URL",
		CodeUnsupportedScheme:     "Kun HTTP- og HTTPS-adresser støttes",
		CodeUnsupportedFileType:   "Filtypen støttes ikke",
		CodeExtractedTextTooShort: "Uthentet tekst er for kort",
		CodeInvalidLimit:          "Grensen må være mellom 1 og 100",
		CodeFileTooLarge:          "Filen er for stor",
		CodeInvalidRequest:        "Ugyldig forespørsel",
		CodeFetchFailed:           "Kunne ikke hente URL",
		CodeDownloadFailed:        "Kunne ikke laste ned filen",
		CodeExtractFailed:         "Kunne ikke hente ut tekst",
		CodeModelFailed:           "Analysetjenesten feilet",
		CodeInvalidModelResponse:  "Ugyldig svar fra analysetjenesten",
		CodeStoreFailed:           "Kunne ikke lagre analysen",
	},
}

// Message renders err for an end user in lang ("no" or "en"). Errors outside
// the taxonomy are passed through unchanged.
func Message(err error, lang string) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) {
		return err.Error()
	}
	return compose(e, lang)
}

func compose(e *Error, lang string) string {
	msgs, ok := catalog[lang]
	if !ok {
		msgs = catalog["en"]
	}
	base, ok := msgs[e.Code]
	if !ok {
		base = string(e.Code)
	}
	switch {
	case e.Err != nil:
		return base + ": " + e.Err.Error()
	case e.Detail != "":
		return base + ": " + e.Detail
	}
	return base
}
