// Package apperr defines the error taxonomy shared by the analysis pipeline
// and the API surface.
package apperr

import (
	"errors"
	"fmt"
)

// Kind separates caller mistakes from failures of a dependency.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUpstream:
		return "upstream"
	}
	return "unknown"
}

// Stage names the pipeline step that failed.
type Stage string

const (
	StageInput    Stage = "input"
	StageFetch    Stage = "fetch"
	StageDownload Stage = "download"
	StageExtract  Stage = "extract"
	StageModel    Stage = "model"
	StagePersist  Stage = "persist"
)

// Code is a stable machine-readable error identifier.
type Code string

const (
	CodeTextTooShort          Code = "text_too_short"
	CodeTextTooLong           Code = "text_too_long"
	CodeInvalidLanguage       Code = "invalid_language"
	CodeInvalidURL            Code = "invalid_url"
	CodeUnsupportedScheme     Code = "unsupported_scheme"
	CodeUnsupportedFileType   Code = "unsupported_file_type"
	CodeExtractedTextTooShort Code = "extracted_text_too_short"
	CodeInvalidLimit          Code = "invalid_limit"
	CodeFileTooLarge          Code = "file_too_large"
	CodeInvalidRequest        Code = "invalid_request"

	CodeFetchFailed          Code = "fetch_failed"
	CodeDownloadFailed       Code = "download_failed"
	CodeExtractFailed        Code = "extract_failed"
	CodeModelFailed          Code = "model_failed"
	CodeInvalidModelResponse Code = "invalid_model_response"
	CodeStoreFailed          Code = "store_failed"
)

// Error is the concrete error type. Two Errors match under errors.Is when
// their codes are equal, so the package-level sentinels can be used as
// targets regardless of detail or cause.
type Error struct {
	Kind   Kind
	Code   Code
	Stage  Stage
	Detail string
	Err    error
}

func (e *Error) Error() string {
	return compose(e, "en")
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

// Sentinels for errors.Is checks.
var (
	ErrTextTooShort          = &Error{Kind: KindValidation, Code: CodeTextTooShort, Stage: StageInput}
	ErrTextTooLong           = &Error{Kind: KindValidation, Code: CodeTextTooLong, Stage: StageInput}
	ErrInvalidLanguage       = &Error{Kind: KindValidation, Code: CodeInvalidLanguage, Stage: StageInput}
	ErrInvalidURL            = &Error{Kind: KindValidation, Code: CodeInvalidURL, Stage: StageInput}
	ErrUnsupportedScheme     = &Error{Kind: KindValidation, Code: CodeUnsupportedScheme, Stage: StageInput}
	ErrUnsupportedFileType   = &Error{Kind: KindValidation, Code: CodeUnsupportedFileType, Stage: StageExtract}
	ErrExtractedTextTooShort = &Error{Kind: KindValidation, Code: CodeExtractedTextTooShort, Stage: StageExtract}
	ErrInvalidLimit          = &Error{Kind: KindValidation, Code: CodeInvalidLimit, Stage: StageInput}
	ErrFileTooLarge          = &Error{Kind: KindValidation, Code: CodeFileTooLarge, Stage: StageInput}
	ErrInvalidRequest        = &Error{Kind: KindValidation, Code: CodeInvalidRequest, Stage: StageInput}

	ErrFetchFailed          = &Error{Kind: KindUpstream, Code: CodeFetchFailed, Stage: StageFetch}
	ErrDownloadFailed       = &Error{Kind: KindUpstream, Code: CodeDownloadFailed, Stage: StageDownload}
	ErrExtractFailed        = &Error{Kind: KindUpstream, Code: CodeExtractFailed, Stage: StageExtract}
	ErrModelFailed          = &Error{Kind: KindUpstream, Code: CodeModelFailed, Stage: StageModel}
	ErrInvalidModelResponse = &Error{Kind: KindUpstream, Code: CodeInvalidModelResponse, Stage: StageModel}
	ErrStoreFailed          = &Error{Kind: KindUpstream, Code: CodeStoreFailed, Stage: StagePersist}
)

// Validation builds a validation error. Detail is appended to the
// human-readable message.
func Validation(code Code, stage Stage, detail string) *Error {
	return &Error{Kind: KindValidation, Code: code, Stage: stage, Detail: detail}
}

// Validationf is Validation with a formatted detail.
func Validationf(code Code, stage Stage, format string, args ...any) *Error {
	return Validation(code, stage, fmt.Sprintf(format, args...))
}

// Upstream wraps a dependency failure with the stage it happened in.
func Upstream(code Code, stage Stage, err error) *Error {
	return &Error{Kind: KindUpstream, Code: code, Stage: stage, Err: err}
}

// Upstreamf wraps a formatted cause. Use %w to keep an underlying error.
func Upstreamf(code Code, stage Stage, format string, args ...any) *Error {
	return Upstream(code, stage, fmt.Errorf(format, args...))
}

// As extracts the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsValidation reports whether err is a caller-side error.
func IsValidation(err error) bool {
	e, ok := As(err)
	return ok && e.Kind == KindValidation
}

// IsUpstream reports whether err is a dependency failure.
func IsUpstream(err error) bool {
	e, ok := As(err)
	return ok && e.Kind == KindUpstream
}
