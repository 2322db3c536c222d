package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/japaniel/bsdetect/pkg/analysis"
	"github.com/japaniel/bsdetect/pkg/apperr"
	"github.com/japaniel/bsdetect/pkg/auth"
	"github.com/japaniel/bsdetect/pkg/db"
	"github.com/japaniel/bsdetect/pkg/lexicon"
	"github.com/japaniel/bsdetect/pkg/matcher"
	"github.com/japaniel/bsdetect/pkg/scoring"
)

// mockAnalyzer records the last call and returns canned values.
type mockAnalyzer struct {
	result *analysis.Result
	err    error

	lastText, lastURL, lastMIME, lastName string
	lastLang                              lexicon.Language
	lastData                              []byte
	lastLimit                             int
	lastTopLang                           string
}

func (m *mockAnalyzer) AnalyzeText(_ context.Context, text string, lang lexicon.Language) (*analysis.Result, error) {
	m.lastText, m.lastLang = text, lang
	return m.result, m.err
}

func (m *mockAnalyzer) AnalyzeDocument(_ context.Context, fileURL, mimeType string, lang lexicon.Language) (*analysis.Result, error) {
	m.lastURL, m.lastMIME, m.lastLang = fileURL, mimeType, lang
	return m.result, m.err
}

func (m *mockAnalyzer) AnalyzeUpload(_ context.Context, name string, data []byte, mimeType string, lang lexicon.Language) (*analysis.Result, error) {
	m.lastName, m.lastData, m.lastMIME, m.lastLang = name, data, mimeType, lang
	return m.result, m.err
}

func (m *mockAnalyzer) AnalyzeURL(_ context.Context, rawURL string, lang lexicon.Language) (*analysis.Result, error) {
	m.lastURL, m.lastLang = rawURL, lang
	return m.result, m.err
}

func (m *mockAnalyzer) TopBuzzwords(_ context.Context, language string, limit int) ([]db.BuzzwordCount, error) {
	m.lastTopLang, m.lastLimit = language, limit
	if m.err != nil {
		return nil, m.err
	}
	return []db.BuzzwordCount{{Word: "synergy", Language: "en", Count: 3}}, nil
}

func (m *mockAnalyzer) RecentAnalyses(_ context.Context, limit int) ([]db.Analysis, error) {
	m.lastLimit = limit
	if m.err != nil {
		return nil, m.err
	}
	return []db.Analysis{{ID: "01J", Text: "t", Language: "en", Buzzwords: []string{}, Suggestions: []string{}}}, nil
}

type mockUsers struct {
	user *db.User
	err  error
}

func (m *mockUsers) UserByOpenID(context.Context, string) (*db.User, error) { return m.user, m.err }

func newResult() *analysis.Result {
	return &analysis.Result{
		ID:          "01HZX",
		Score:       72,
		Buzzwords:   []string{"synergy", "leverage"},
		Suggestions: []string{"Be concrete."},
		Explanation: "Jargon heavy.",
		Band:        "Poor - Lots of empty content",
	}
}

func setupTestServer(t *testing.T, a Analyzer, opts Options) *httptest.Server {
	t.Helper()
	srv := NewServer(a, &mockUsers{err: db.ErrNotFound}, auth.NewSessions("secret", "", time.Hour), opts)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(buf))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeError(t *testing.T, resp *http.Response) errorDetail {
	t.Helper()
	var body errorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Error
}

func TestHealthEndpoint(t *testing.T) {
	ts := setupTestServer(t, &mockAnalyzer{}, Options{})

	resp, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))

	var health healthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	assert.NotEmpty(t, health.Uptime)
}

func TestAnalyzeEndpoint(t *testing.T) {
	m := &mockAnalyzer{result: newResult()}
	ts := setupTestServer(t, m, Options{})

	resp := postJSON(t, ts.URL+"/api/analysis/analyze", analyzeRequest{Text: "leverage synergy", Language: "en"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.EqualValues(t, 72, got["score"])
	assert.Equal(t, []any{"synergy", "leverage"}, got["buzzwords"])
	assert.Equal(t, []any{"Be concrete."}, got["suggestions"])
	assert.Equal(t, "Jargon heavy.", got["explanation"])
	assert.Equal(t, "leverage synergy", m.lastText)
	assert.Equal(t, lexicon.English, m.lastLang)
}

func TestErrorMapping(t *testing.T) {
	for _, tc := range []struct {
		name     string
		err      error
		lang     string
		status   int
		code     string
		stage    string
		contains string
	}{
		{"validation en", apperr.Validation(apperr.CodeTextTooShort, apperr.StageInput, ""), "en",
			http.StatusBadRequest, "text_too_short", "input", "Text is too short"},
		{"validation no", apperr.Validation(apperr.CodeTextTooShort, apperr.StageInput, ""), "no",
			http.StatusBadRequest, "text_too_short", "input", "Teksten er for kort"},
		{"upstream", apperr.Upstreamf(apperr.CodeFetchFailed, apperr.StageFetch, "%s", "404 Not Found"), "en",
			http.StatusBadGateway, "fetch_failed", "fetch", "Failed to fetch URL: 404 Not Found"},
		{"upstream no", apperr.Upstreamf(apperr.CodeFetchFailed, apperr.StageFetch, "%s", "404 Not Found"), "no",
			http.StatusBadGateway, "fetch_failed", "fetch", "Kunne ikke hente URL: 404 Not Found"},
		{"oversized", apperr.Validation(apperr.CodeFileTooLarge, apperr.StageInput, ""), "en",
			http.StatusRequestEntityTooLarge, "file_too_large", "input", "File is too large"},
		{"internal", errors.New("nil pointer somewhere"), "en",
			http.StatusInternalServerError, "internal", "", "Internal server error"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ts := setupTestServer(t, &mockAnalyzer{err: tc.err}, Options{})
			resp := postJSON(t, ts.URL+"/api/analysis/analyze-url", analyzeURLRequest{URL: "https://example.com", Language: tc.lang})
			assert.Equal(t, tc.status, resp.StatusCode)
			e := decodeError(t, resp)
			assert.Equal(t, tc.code, e.Code)
			assert.Equal(t, tc.stage, e.Stage)
			assert.Contains(t, e.Message, tc.contains)
		})
	}
}

func TestMalformedBody(t *testing.T) {
	ts := setupTestServer(t, &mockAnalyzer{}, Options{})
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/analysis/analyze", strings.NewReader("{"))
	require.NoError(t, err)
	req.Header.Set("Accept-Language", "nb-NO,nb;q=0.9")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	e := decodeError(t, resp)
	assert.Equal(t, "invalid_request", e.Code)
	assert.Contains(t, e.Message, "Ugyldig forespørsel")
}

func TestAnalyzeDocumentEndpoint(t *testing.T) {
	m := &mockAnalyzer{result: newResult()}
	ts := setupTestServer(t, m, Options{})

	resp := postJSON(t, ts.URL+"/api/analysis/analyze-document", analyzeDocumentRequest{
		FileURL: "https://files.example.com/deck.pdf", MimeType: "application/pdf", Language: "no",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://files.example.com/deck.pdf", m.lastURL)
	assert.Equal(t, "application/pdf", m.lastMIME)
	assert.Equal(t, lexicon.Norwegian, m.lastLang)
}

func multipartBody(t *testing.T, fields map[string]string, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
		if contentType != "" {
			h.Set("Content-Type", contentType)
		}
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploadEndpoint(t *testing.T) {
	m := &mockAnalyzer{result: newResult()}
	ts := setupTestServer(t, m, Options{MaxUploadBytes: 1024})

	body, ct := multipartBody(t, map[string]string{"language": "en"}, "notes.docx",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document", []byte("PK\x03\x04fake"))
	resp, err := http.Post(ts.URL+"/api/analysis/upload", ct, body)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "notes.docx", m.lastName)
	assert.Equal(t, []byte("PK\x03\x04fake"), m.lastData)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", m.lastMIME)

	// explicit mimeType field wins over the part header
	body, ct = multipartBody(t, map[string]string{"language": "en", "mimeType": "application/pdf"}, "a.bin",
		"application/octet-stream", []byte("%PDF"))
	resp2, err := http.Post(ts.URL+"/api/analysis/upload", ct, body)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, "application/pdf", m.lastMIME)
}

func TestUploadRejections(t *testing.T) {
	ts := setupTestServer(t, &mockAnalyzer{result: newResult()}, Options{MaxUploadBytes: 1024})

	body, ct := multipartBody(t, map[string]string{"language": "en"}, "big.pdf", "application/pdf", bytes.Repeat([]byte("x"), 2000))
	resp, err := http.Post(ts.URL+"/api/analysis/upload", ct, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.Equal(t, "file_too_large", decodeError(t, resp).Code)

	body, ct = multipartBody(t, map[string]string{"language": "no"}, "", "", nil)
	resp2, err := http.Post(ts.URL+"/api/analysis/upload", ct, body)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
	assert.Equal(t, "invalid_request", decodeError(t, resp2).Code)
}

func TestTopBuzzwordsEndpoint(t *testing.T) {
	m := &mockAnalyzer{}
	ts := setupTestServer(t, m, Options{})

	resp, err := http.Get(ts.URL + "/api/analysis/top-buzzwords?language=en&limit=5")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, "synergy", got[0]["word"])
	assert.EqualValues(t, 3, got[0]["count"])
	assert.Equal(t, "en", m.lastTopLang)
	assert.Equal(t, 5, m.lastLimit)

	resp2, err := http.Get(ts.URL + "/api/analysis/top-buzzwords?limit=abc")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
	assert.Equal(t, "invalid_limit", decodeError(t, resp2).Code)
}

func TestRecentEndpoint(t *testing.T) {
	m := &mockAnalyzer{}
	ts := setupTestServer(t, m, Options{})

	resp, err := http.Get(ts.URL + "/api/analysis/recent")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, m.lastLimit, "absent limit defers to the service default")

	var got []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, "01J", got[0]["id"])
}

func TestMethodNotAllowed(t *testing.T) {
	ts := setupTestServer(t, &mockAnalyzer{}, Options{})
	resp, err := http.Get(ts.URL + "/api/analysis/analyze")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestAuthMe(t *testing.T) {
	sessions := auth.NewSessions("secret", "", time.Hour)
	user := &db.User{ID: 1, OpenID: "owner", Name: "Ada", Role: db.RoleAdmin}
	srv := NewServer(&mockAnalyzer{}, &mockUsers{user: user}, sessions, Options{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	// anonymous
	resp, err := http.Get(ts.URL + "/api/auth/me")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "null", strings.TrimSpace(string(body)))

	token, err := sessions.Issue("owner")
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/auth/me", nil)
	require.NoError(t, err)
	req.AddCookie(sessions.Cookie(token))
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var got map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "owner", got["openId"])
	assert.Equal(t, "admin", got["role"])
}

func TestAuthMeLookupFailureIsAnonymous(t *testing.T) {
	sessions := auth.NewSessions("secret", "", time.Hour)
	srv := NewServer(&mockAnalyzer{}, &mockUsers{err: errors.New("database is locked")}, sessions, Options{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	token, err := sessions.Issue("someone")
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/auth/me", nil)
	require.NoError(t, err)
	req.AddCookie(sessions.Cookie(token))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "null", strings.TrimSpace(string(body)))
}

func TestLogoutClearsCookie(t *testing.T) {
	ts := setupTestServer(t, &mockAnalyzer{}, Options{})
	resp := postJSON(t, ts.URL+"/api/auth/logout", map[string]any{})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got map[string]bool
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.True(t, got["success"])

	cookies := resp.Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "bsdetect_session", cookies[0].Name)
	assert.True(t, cookies[0].MaxAge < 0)
}

func TestRequestLogging(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	srv := NewServer(&mockAnalyzer{}, nil, nil, Options{Logger: zap.New(core)})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/health", nil)
	require.NoError(t, err)
	req.Header.Set(RequestIDHeader, "req-42")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "req-42", resp.Header.Get(RequestIDHeader))

	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/api/health", fields["path"])
	assert.EqualValues(t, 200, fields["status"])
	assert.Equal(t, "req-42", fields["request_id"])
}

func TestStartStop(t *testing.T) {
	srv := NewServer(&mockAnalyzer{}, nil, nil, Options{Addr: "127.0.0.1:0"})
	require.NoError(t, srv.Start())
	defer srv.Stop()

	resp, err := http.Get("http://" + srv.Addr() + "/api/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	srv.Stop()
	srv.Stop()
}

type countingScorer struct{ calls int }

func (c *countingScorer) Score(context.Context, string, lexicon.Language) (scoring.Result, error) {
	c.calls++
	return scoring.Result{Score: 50, Buzzwords: []string{}, Suggestions: []string{}}, nil
}

func TestAnalyzeRejectsInexactLanguage(t *testing.T) {
	scorer := &countingScorer{}
	svc := analysis.New(analysis.Deps{
		Detector: matcher.New(lexicon.Default()),
		Scorer:   scorer,
	})
	ts := setupTestServer(t, svc, Options{})

	for _, lang := range []string{" en", "en ", "EN", "no\n", "de"} {
		resp := postJSON(t, ts.URL+"/api/analysis/analyze", analyzeRequest{
			Text:     "We need to leverage synergy to optimize our agile ecosystem",
			Language: lang,
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "%q", lang)
		e := decodeError(t, resp)
		assert.Equal(t, "invalid_language", e.Code, "%q", lang)
		assert.Equal(t, "input", e.Stage)
	}
	assert.Equal(t, 0, scorer.calls)

	resp, err := http.Get(ts.URL + "/api/analysis/top-buzzwords?language=%20en")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_language", decodeError(t, resp).Code)
}
