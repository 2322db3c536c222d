package extract

import (
	"bytes"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/japaniel/bsdetect/pkg/apperr"
)

// MIME types accepted by DocumentExtractor besides text/*.
const (
	MIMEPDF     = "application/pdf"
	MIMEDOCX    = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMEMSWord  = "application/msword"
	mimeTextAny = "text/"
)

// ParseFunc turns a binary document into text.
type ParseFunc func(data []byte) (string, error)

// DocumentExtractor dispatches on MIME type to a format parser.
type DocumentExtractor struct {
	PDF  ParseFunc
	Word ParseFunc
}

// NewDocumentExtractor returns an extractor backed by the built-in parsers.
func NewDocumentExtractor() *DocumentExtractor {
	return &DocumentExtractor{PDF: ExtractPDF, Word: ExtractDOCX}
}

// Supported reports whether mimeType can be extracted.
func Supported(mimeType string) bool {
	switch kind := mediaType(mimeType); {
	case kind == MIMEPDF, kind == MIMEDOCX, kind == MIMEMSWord:
		return true
	default:
		return strings.HasPrefix(kind, mimeTextAny)
	}
}

// Extract returns the document text with whitespace normalized and cut to
// MaxTextLength characters. It fails with a validation error for unsupported
// types or when the parser yields fewer than MinTextLength characters, and
// with an extract-stage upstream error when the parser rejects the file.
func (d *DocumentExtractor) Extract(data []byte, mimeType string) (string, error) {
	kind := mediaType(mimeType)

	var (
		text string
		err  error
	)
	switch {
	case kind == MIMEPDF:
		text, err = d.PDF(data)
		if err != nil {
			return "", apperr.Upstreamf(apperr.CodeExtractFailed, apperr.StageExtract, "pdf: %w", err)
		}
	case kind == MIMEDOCX, kind == MIMEMSWord:
		text, err = d.Word(data)
		if err != nil {
			return "", apperr.Upstreamf(apperr.CodeExtractFailed, apperr.StageExtract, "word document: %w", err)
		}
	case strings.HasPrefix(kind, mimeTextAny):
		text = decodeUTF8(data)
	default:
		return "", apperr.Validation(apperr.CodeUnsupportedFileType, apperr.StageExtract, mimeType)
	}

	if n := utf8.RuneCountInString(text); n < MinTextLength {
		return "", apperr.Validationf(apperr.CodeExtractedTextTooShort, apperr.StageExtract, "%d characters", n)
	}
	return truncateRunes(normalizeWhitespace(text), MaxTextLength), nil
}

var extensionTypes = map[string]string{
	".pdf":      MIMEPDF,
	".docx":     MIMEDOCX,
	".doc":      MIMEMSWord,
	".txt":      "text/plain",
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".csv":      "text/csv",
	".html":     "text/html",
	".htm":      "text/html",
}

// DetectMIME picks the type of an uploaded file: the declared type when it
// is specific, otherwise the file extension, otherwise content sniffing.
func DetectMIME(name string, data []byte, declared string) string {
	if kind := mediaType(declared); kind != "" && kind != "application/octet-stream" {
		return declared
	}
	ext := strings.ToLower(filepath.Ext(name))
	if t, ok := extensionTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); ext != "" && t != "" {
		return t
	}
	return http.DetectContentType(data)
}

// mediaType strips parameters and lowercases the type. Unparsable values
// are returned lowercased so they fall through to the unsupported branch.
func mediaType(v string) string {
	mt, _, err := mime.ParseMediaType(v)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(v))
	}
	return mt
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func decodeUTF8(data []byte) string {
	data = bytes.TrimPrefix(data, utf8BOM)
	return strings.ToValidUTF8(string(data), "�")
}
