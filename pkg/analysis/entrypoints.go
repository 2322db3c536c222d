package analysis

import (
	"context"
	"errors"
	"net/url"
	"path"

	"go.uber.org/zap"

	"github.com/japaniel/bsdetect/pkg/apperr"
	"github.com/japaniel/bsdetect/pkg/db"
	"github.com/japaniel/bsdetect/pkg/extract"
	"github.com/japaniel/bsdetect/pkg/lexicon"
)

// Statistics query bounds.
const (
	DefaultTopLimit    = 20
	DefaultRecentLimit = 10
	MaxLimit           = 100
)

// LanguageAll selects every language in TopBuzzwords.
const LanguageAll = "all"

var errNotConfigured = errors.New("acquisition adapter not configured")

// AnalyzeText analyzes pasted text of MinTextLength..MaxTextLength characters.
func (s *Service) AnalyzeText(ctx context.Context, text string, lang lexicon.Language) (*Result, error) {
	if err := extract.ValidateText(text); err != nil {
		return nil, err
	}
	return s.Analyze(ctx, Input{Text: text, Language: lang, Source: Source{Kind: db.SourceText}})
}

// AnalyzeDocument downloads fileURL (http, https or data URL), extracts its
// text according to mimeType and analyzes it. An empty mimeType falls back
// to the Content-Type of the download.
func (s *Service) AnalyzeDocument(ctx context.Context, fileURL, mimeType string, lang lexicon.Language) (*Result, error) {
	if err := checkLanguage(lang); err != nil {
		return nil, err
	}
	if s.download == nil || s.documents == nil {
		return nil, apperr.Upstream(apperr.CodeDownloadFailed, apperr.StageDownload, errNotConfigured)
	}
	if mimeType != "" && !extract.Supported(mimeType) {
		return nil, apperr.Validation(apperr.CodeUnsupportedFileType, apperr.StageExtract, mimeType)
	}

	res, err := s.download.Download(ctx, fileURL)
	if err != nil {
		s.logger.Warn("document download failed", zap.Error(err))
		return nil, err
	}
	s.logger.Debug("document downloaded", zap.Stringer("resource", res))
	if mimeType == "" {
		mimeType = res.ContentType
	}
	text, err := s.documents.Extract(res.Body, mimeType)
	if err != nil {
		return nil, err
	}

	src := Source{Kind: db.SourceDocument}
	if res.URL != nil {
		src.Ref = res.URL.String()
		src.Title = fileName(res.URL)
	}
	return s.Analyze(ctx, Input{Text: text, Language: lang, Source: src})
}

// AnalyzeUpload analyzes a document sent as raw bytes. The MIME type is
// taken from mimeType when specific, else guessed from name and content.
func (s *Service) AnalyzeUpload(ctx context.Context, name string, data []byte, mimeType string, lang lexicon.Language) (*Result, error) {
	if err := checkLanguage(lang); err != nil {
		return nil, err
	}
	if s.documents == nil {
		return nil, apperr.Upstream(apperr.CodeExtractFailed, apperr.StageExtract, errNotConfigured)
	}
	text, err := s.documents.Extract(data, extract.DetectMIME(name, data, mimeType))
	if err != nil {
		return nil, err
	}
	return s.Analyze(ctx, Input{
		Text:     text,
		Language: lang,
		Source:   Source{Kind: db.SourceDocument, Ref: name, Title: name},
	})
}

// AnalyzeURL fetches a web page and analyzes its main content.
func (s *Service) AnalyzeURL(ctx context.Context, rawURL string, lang lexicon.Language) (*Result, error) {
	if err := checkLanguage(lang); err != nil {
		return nil, err
	}
	if s.pages == nil {
		return nil, apperr.Upstream(apperr.CodeFetchFailed, apperr.StageFetch, errNotConfigured)
	}
	page, err := s.pages.Extract(ctx, rawURL)
	if err != nil {
		s.logger.Warn("page extraction failed", zap.String("url", rawURL), zap.Error(err))
		return nil, err
	}
	s.logger.Debug("page extracted",
		zap.String("url", page.URL),
		zap.String("site", page.SiteName),
		zap.String("selector", page.Selector))
	title := page.Title
	if title == "" {
		title = page.SiteName
	}
	return s.Analyze(ctx, Input{
		Text:     page.Text,
		Language: lang,
		Source:   Source{Kind: db.SourceURL, Ref: rawURL, Title: title},
	})
}

// TopBuzzwords returns counters ordered by frequency. language is "no", "en"
// or "all" (the default); limit 0 selects DefaultTopLimit. A store failure
// is logged and yields an empty list.
func (s *Service) TopBuzzwords(ctx context.Context, language string, limit int) ([]db.BuzzwordCount, error) {
	if language == "" {
		language = LanguageAll
	}
	if language != LanguageAll {
		if err := checkLanguage(lexicon.Language(language)); err != nil {
			return nil, err
		}
	}
	limit, err := resolveLimit(limit, DefaultTopLimit)
	if err != nil {
		return nil, err
	}

	var out []db.BuzzwordCount
	if language == LanguageAll {
		out, err = s.store.AllBuzzwords(ctx, limit)
	} else {
		out, err = s.store.TopBuzzwords(ctx, language, limit)
	}
	if err != nil {
		s.logger.Warn("top buzzwords unavailable", zap.String("language", language), zap.Error(err))
		return []db.BuzzwordCount{}, nil
	}
	return out, nil
}

// RecentAnalyses returns the newest records. limit 0 selects
// DefaultRecentLimit. A store failure is logged and yields an empty list.
func (s *Service) RecentAnalyses(ctx context.Context, limit int) ([]db.Analysis, error) {
	limit, err := resolveLimit(limit, DefaultRecentLimit)
	if err != nil {
		return nil, err
	}
	out, err := s.store.RecentAnalyses(ctx, limit)
	if err != nil {
		s.logger.Warn("recent analyses unavailable", zap.Error(err))
		return []db.Analysis{}, nil
	}
	return out, nil
}

func checkLanguage(lang lexicon.Language) error {
	if _, err := lexicon.ParseLanguage(string(lang)); err != nil {
		return apperr.Validation(apperr.CodeInvalidLanguage, apperr.StageInput, string(lang))
	}
	return nil
}

func resolveLimit(limit, def int) (int, error) {
	if limit == 0 {
		return def, nil
	}
	if limit < 1 || limit > MaxLimit {
		return 0, apperr.Validationf(apperr.CodeInvalidLimit, apperr.StageInput, "got %d", limit)
	}
	return limit, nil
}

func fileName(u *url.URL) string {
	base := path.Base(u.Path)
	if base == "." || base == "/" {
		return ""
	}
	return base
}
