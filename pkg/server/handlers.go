package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/japaniel/bsdetect/pkg/apperr"
	"github.com/japaniel/bsdetect/pkg/lexicon"
)

type analyzeRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

type analyzeDocumentRequest struct {
	FileURL  string `json:"fileUrl"`
	MimeType string `json:"mimeType"`
	Language string `json:"language"`
}

type analyzeURLRequest struct {
	URL      string `json:"url"`
	Language string `json:"language"`
}

type healthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// decodeJSON reads a request body of at most limit bytes into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	body := http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.Validationf(apperr.CodeFileTooLarge, apperr.StageInput, "request body exceeds %d bytes", limit)
		}
		return apperr.Validationf(apperr.CodeInvalidRequest, apperr.StageInput, "decode body: %v", err)
	}
	return nil
}

// jsonLimit leaves room for base64 data URLs carrying a full-size upload.
func (s *Server) jsonLimit() int64 {
	return s.opts.MaxUploadBytes*2 + 4096
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := decodeJSON(w, r, s.jsonLimit(), &req); err != nil {
		s.writeError(w, r, err, messageLanguage(r, ""))
		return
	}
	res, err := s.analyzer.AnalyzeText(r.Context(), req.Text, lexicon.Language(req.Language))
	if err != nil {
		s.writeError(w, r, err, messageLanguage(r, req.Language))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAnalyzeDocument(w http.ResponseWriter, r *http.Request) {
	var req analyzeDocumentRequest
	if err := decodeJSON(w, r, s.jsonLimit(), &req); err != nil {
		s.writeError(w, r, err, messageLanguage(r, ""))
		return
	}
	res, err := s.analyzer.AnalyzeDocument(r.Context(), req.FileURL, req.MimeType, lexicon.Language(req.Language))
	if err != nil {
		s.writeError(w, r, err, messageLanguage(r, req.Language))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes+64<<10)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, apperr.Validationf(apperr.CodeFileTooLarge, apperr.StageInput,
				"limit is %d bytes", s.opts.MaxUploadBytes), messageLanguage(r, ""))
			return
		}
		s.writeError(w, r, apperr.Validationf(apperr.CodeInvalidRequest, apperr.StageInput, "multipart form: %v", err),
			messageLanguage(r, ""))
		return
	}
	defer r.MultipartForm.RemoveAll()

	lang := r.FormValue("language")
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, apperr.Validation(apperr.CodeInvalidRequest, apperr.StageInput, "missing file part"),
			messageLanguage(r, lang))
		return
	}
	defer file.Close()
	if header.Size > s.opts.MaxUploadBytes {
		s.writeError(w, r, apperr.Validationf(apperr.CodeFileTooLarge, apperr.StageInput,
			"limit is %d bytes", s.opts.MaxUploadBytes), messageLanguage(r, lang))
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, r, apperr.Validationf(apperr.CodeInvalidRequest, apperr.StageInput, "read file: %v", err),
			messageLanguage(r, lang))
		return
	}

	mimeType := r.FormValue("mimeType")
	if mimeType == "" {
		mimeType = header.Header.Get("Content-Type")
	}
	res, err := s.analyzer.AnalyzeUpload(r.Context(), header.Filename, data, mimeType, lexicon.Language(lang))
	if err != nil {
		s.writeError(w, r, err, messageLanguage(r, lang))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAnalyzeURL(w http.ResponseWriter, r *http.Request) {
	var req analyzeURLRequest
	if err := decodeJSON(w, r, s.jsonLimit(), &req); err != nil {
		s.writeError(w, r, err, messageLanguage(r, ""))
		return
	}
	res, err := s.analyzer.AnalyzeURL(r.Context(), req.URL, lexicon.Language(req.Language))
	if err != nil {
		s.writeError(w, r, err, messageLanguage(r, req.Language))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleTopBuzzwords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := parseLimit(q.Get("limit"))
	if err != nil {
		s.writeError(w, r, err, messageLanguage(r, ""))
		return
	}
	out, err := s.analyzer.TopBuzzwords(r.Context(), q.Get("language"), limit)
	if err != nil {
		s.writeError(w, r, err, messageLanguage(r, ""))
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		s.writeError(w, r, err, messageLanguage(r, ""))
		return
	}
	out, err := s.analyzer.RecentAnalyses(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err, messageLanguage(r, ""))
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// parseLimit treats an absent limit as 0, the service default.
func parseLimit(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n == 0 {
		return 0, apperr.Validationf(apperr.CodeInvalidLimit, apperr.StageInput, "got %q", v)
	}
	return n, nil
}

// handleMe answers null for anonymous callers, including when the user
// lookup fails.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil || s.users == nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	claims, err := s.sessions.FromRequest(r)
	if err != nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	user, err := s.users.UserByOpenID(r.Context(), claims.OpenID)
	if err != nil {
		s.logger.Warn("session user lookup failed",
			zap.String("request_id", RequestID(r.Context())), zap.Error(err))
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if s.sessions != nil {
		http.SetCookie(w, s.sessions.ClearCookie())
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status: "ok",
		Uptime: time.Since(s.started).Round(time.Second).String(),
	})
}
