// Package analysis runs the detection pipeline: lexicon matching, model
// scoring, buzzword merging and persistence.
package analysis

import (
	"context"
	"crypto/rand"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/japaniel/bsdetect/pkg/apperr"
	"github.com/japaniel/bsdetect/pkg/db"
	"github.com/japaniel/bsdetect/pkg/extract"
	"github.com/japaniel/bsdetect/pkg/lexicon"
	"github.com/japaniel/bsdetect/pkg/logging"
	"github.com/japaniel/bsdetect/pkg/scoring"
)

// Detector finds lexicon buzzwords.
type Detector interface {
	Detect(text string, lang lexicon.Language) []string
}

// Scorer rates text with a language model.
type Scorer interface {
	Score(ctx context.Context, text string, lang lexicon.Language) (scoring.Result, error)
}

// Store persists analyses and counters.
type Store interface {
	RecordAnalysis(ctx context.Context, a *db.Analysis, words []string) error
	TopBuzzwords(ctx context.Context, language string, limit int) ([]db.BuzzwordCount, error)
	AllBuzzwords(ctx context.Context, limit int) ([]db.BuzzwordCount, error)
	RecentAnalyses(ctx context.Context, limit int) ([]db.Analysis, error)
}

// Downloader retrieves a referenced document.
type Downloader interface {
	Download(ctx context.Context, rawURL string) (*extract.Resource, error)
}

// PageExtractor reads the main text of a web page.
type PageExtractor interface {
	Extract(ctx context.Context, rawURL string) (*extract.Page, error)
}

// DocumentExtractor converts a document to text.
type DocumentExtractor interface {
	Extract(data []byte, mimeType string) (string, error)
}

// Deps wires a Service. Detector, Scorer and Store are required; the
// acquisition adapters are only needed by the entry points that use them.
type Deps struct {
	Detector  Detector
	Scorer    Scorer
	Store     Store
	Download  Downloader
	Pages     PageExtractor
	Documents DocumentExtractor
	Logger    *zap.Logger

	// StrictPersistence fails the request when the record cannot be saved.
	StrictPersistence bool
}

// Service is safe for concurrent use.
type Service struct {
	detector  Detector
	scorer    Scorer
	store     Store
	download  Downloader
	pages     PageExtractor
	documents DocumentExtractor
	logger    *zap.Logger
	strict    bool

	now       func() time.Time
	entropyMu sync.Mutex
	entropy   io.Reader
}

// New builds a Service from deps.
func New(deps Deps) *Service {
	return &Service{
		detector:  deps.Detector,
		scorer:    deps.Scorer,
		store:     deps.Store,
		download:  deps.Download,
		pages:     deps.Pages,
		documents: deps.Documents,
		logger:    logging.OrNop(deps.Logger),
		strict:    deps.StrictPersistence,
		now:       time.Now,
		entropy:   ulid.Monotonic(rand.Reader, 0),
	}
}

// Source describes where analyzed text came from.
type Source struct {
	Kind  string
	Ref   string
	Title string
}

// Input is one analysis request after text acquisition.
type Input struct {
	Text     string
	Language lexicon.Language
	Source   Source
}

// Result is returned to callers. Buzzwords keep the casing of their first
// occurrence.
type Result struct {
	ID          string   `json:"id"`
	Score       int      `json:"score"`
	Buzzwords   []string `json:"buzzwords"`
	Suggestions []string `json:"suggestions"`
	Explanation string   `json:"explanation"`
	Band        string   `json:"band"`
}

// Analyze runs the pipeline on already-acquired text. Scorer failures are
// returned unchanged; nothing is persisted in that case.
func (s *Service) Analyze(ctx context.Context, in Input) (*Result, error) {
	if err := checkLanguage(in.Language); err != nil {
		return nil, err
	}

	matched := s.detector.Detect(in.Text, in.Language)

	scored, err := s.scorer.Score(ctx, in.Text, in.Language)
	if err != nil {
		return nil, err
	}

	display, keys := MergeBuzzwords(matched, scored.Buzzwords)
	suggestions := scored.Suggestions
	if suggestions == nil {
		suggestions = []string{}
	}

	kind := in.Source.Kind
	if kind == "" {
		kind = db.SourceText
	}
	now := s.now().UTC()
	record := &db.Analysis{
		ID:          s.newID(now),
		Text:        in.Text,
		Language:    string(in.Language),
		Score:       scored.Score,
		Suggestions: suggestions,
		Buzzwords:   display,
		SourceKind:  kind,
		SourceRef:   in.Source.Ref,
		SourceTitle: in.Source.Title,
		CreatedAt:   now,
	}

	if err := s.store.RecordAnalysis(ctx, record, keys); err != nil {
		wrapped := apperr.Upstreamf(apperr.CodeStoreFailed, apperr.StagePersist, "%w", err)
		if s.strict {
			s.logger.Error("persist analysis failed", zap.String("id", record.ID), zap.Error(err))
			return nil, wrapped
		}
		s.logger.Warn("persist analysis failed, returning unsaved result",
			zap.String("id", record.ID), zap.Error(err))
	}

	s.logger.Info("analysis complete",
		zap.String("id", record.ID),
		zap.String("language", record.Language),
		zap.String("source", kind),
		zap.Int("score", record.Score),
		zap.Int("lexicon_hits", len(matched)),
		zap.Int("buzzwords", len(display)))

	return &Result{
		ID:          record.ID,
		Score:       scored.Score,
		Buzzwords:   display,
		Suggestions: suggestions,
		Explanation: scored.Explanation,
		Band:        scoring.BandLabel(scored.Score, in.Language),
	}, nil
}

// MergeBuzzwords unions lexicon matches with model-reported words. Entries
// are compared case-insensitively; the first spelling seen is kept for
// display and keys holds the case-folded form of each kept entry. Blank
// entries are dropped.
func MergeBuzzwords(lists ...[]string) (display, keys []string) {
	seen := make(map[string]struct{})
	display = []string{}
	for _, list := range lists {
		for _, w := range list {
			w = strings.TrimSpace(w)
			if w == "" {
				continue
			}
			k := lexicon.Fold(w)
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			display = append(display, w)
			keys = append(keys, k)
		}
	}
	return display, keys
}

func (s *Service) newID(at time.Time) string {
	s.entropyMu.Lock()
	defer s.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(at), s.entropy).String()
}
