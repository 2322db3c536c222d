package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/japaniel/bsdetect/pkg/apperr"
	"github.com/japaniel/bsdetect/pkg/lexicon"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Stage   string `json:"stage,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto a status code and a localized message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, lang string) {
	var e *apperr.Error
	if !errors.As(err, &e) {
		s.logger.Error("internal error",
			zap.String("request_id", RequestID(r.Context())), zap.Error(err))
		msg := "Internal server error"
		if lang == string(lexicon.Norwegian) {
			msg = "Intern serverfeil"
		}
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: errorDetail{Code: "internal", Message: msg}})
		return
	}

	status := http.StatusBadGateway
	switch {
	case e.Code == apperr.CodeFileTooLarge:
		status = http.StatusRequestEntityTooLarge
	case e.Kind == apperr.KindValidation:
		status = http.StatusBadRequest
	}
	if status == http.StatusBadGateway {
		s.logger.Warn("upstream failure",
			zap.String("request_id", RequestID(r.Context())),
			zap.String("stage", string(e.Stage)),
			zap.Error(err))
	}
	writeJSON(w, status, errorBody{Error: errorDetail{
		Code:    string(e.Code),
		Message: apperr.Message(err, lang),
		Stage:   string(e.Stage),
	}})
}

// messageLanguage picks the language for error messages: the requested
// analysis language when valid, else the Accept-Language header.
func messageLanguage(r *http.Request, requested string) string {
	if l, err := lexicon.ParseLanguage(requested); err == nil {
		return string(l)
	}
	for _, part := range strings.Split(r.Header.Get("Accept-Language"), ",") {
		tag := strings.ToLower(strings.TrimSpace(part))
		tag, _, _ = strings.Cut(tag, ";")
		switch {
		case strings.HasPrefix(tag, "no"), strings.HasPrefix(tag, "nb"), strings.HasPrefix(tag, "nn"):
			return string(lexicon.Norwegian)
		case strings.HasPrefix(tag, "en"):
			return string(lexicon.English)
		}
	}
	return string(lexicon.English)
}
