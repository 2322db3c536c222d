package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DBExecutor is an interface that allows methods to accept either *sql.DB or *sql.Tx
type DBExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SaveAnalysis inserts one analysis record. Buzzwords and suggestions are
// stored as JSON arrays.
func SaveAnalysis(ctx context.Context, db DBExecutor, a *Analysis) error {
	if strings.TrimSpace(a.ID) == "" {
		return fmt.Errorf("analysis id must be non-empty")
	}
	suggestions, err := marshalList(a.Suggestions)
	if err != nil {
		return fmt.Errorf("encode suggestions: %w", err)
	}
	buzzwords, err := marshalList(a.Buzzwords)
	if err != nil {
		return fmt.Errorf("encode buzzwords: %w", err)
	}
	kind := a.SourceKind
	if kind == "" {
		kind = SourceText
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO analyses (id, text, language, score, suggestions, buzzwords, source_kind, source_ref, source_title, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Text, a.Language, a.Score, suggestions, buzzwords, kind,
		nullableString(a.SourceRef), nullableString(a.SourceTitle), a.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	return nil
}

// IncrementBuzzword adds one to the counter for (word, language), creating
// it with count 1 on first sighting. The upsert is a single statement, so
// concurrent callers never lose an increment.
func IncrementBuzzword(ctx context.Context, db DBExecutor, word, language string, at time.Time) error {
	trimmed := strings.TrimSpace(word)
	if trimmed == "" {
		return fmt.Errorf("word must be non-empty")
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO buzzwords (word, language, count, updated_at)
		 VALUES (?, ?, 1, ?)
		 ON CONFLICT(word, language) DO UPDATE SET
		   count = buzzwords.count + 1,
		   updated_at = excluded.updated_at`,
		trimmed, language, at.UTC())
	if err != nil {
		return fmt.Errorf("increment buzzword %q: %w", trimmed, err)
	}
	return nil
}

// GetTopBuzzwords returns the most frequent buzzwords for one language.
func GetTopBuzzwords(ctx context.Context, db DBExecutor, language string, limit int) ([]BuzzwordCount, error) {
	return queryBuzzwords(ctx, db,
		`SELECT id, word, language, count, updated_at FROM buzzwords
		 WHERE language = ?
		 ORDER BY count DESC, word ASC LIMIT ?`, language, limit)
}

// GetAllBuzzwords returns the most frequent (word, language) rows across
// languages.
func GetAllBuzzwords(ctx context.Context, db DBExecutor, limit int) ([]BuzzwordCount, error) {
	return queryBuzzwords(ctx, db,
		`SELECT id, word, language, count, updated_at FROM buzzwords
		 ORDER BY count DESC, word ASC, language ASC LIMIT ?`, limit)
}

func queryBuzzwords(ctx context.Context, db DBExecutor, query string, args ...any) ([]BuzzwordCount, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query buzzwords: %w", err)
	}
	defer rows.Close()
	out := []BuzzwordCount{}
	for rows.Next() {
		var b BuzzwordCount
		if err := rows.Scan(&b.ID, &b.Word, &b.Language, &b.Count, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan buzzword: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

const analysisColumns = `id, text, language, score, suggestions, buzzwords, source_kind, source_ref, source_title, created_at`

// GetAnalysis loads one record by id.
func GetAnalysis(ctx context.Context, db DBExecutor, id string) (*Analysis, error) {
	row := db.QueryRowContext(ctx, `SELECT `+analysisColumns+` FROM analyses WHERE id = ?`, id)
	a, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetRecentAnalyses returns the newest records first.
func GetRecentAnalyses(ctx context.Context, db DBExecutor, limit int) ([]Analysis, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+analysisColumns+` FROM analyses ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query analyses: %w", err)
	}
	defer rows.Close()
	out := []Analysis{}
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (*Analysis, error) {
	var a Analysis
	var suggestions, buzzwords string
	var ref, title sql.NullString
	if err := row.Scan(&a.ID, &a.Text, &a.Language, &a.Score, &suggestions, &buzzwords,
		&a.SourceKind, &ref, &title, &a.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(suggestions), &a.Suggestions); err != nil {
		return nil, fmt.Errorf("decode suggestions of %s: %w", a.ID, err)
	}
	if err := json.Unmarshal([]byte(buzzwords), &a.Buzzwords); err != nil {
		return nil, fmt.Errorf("decode buzzwords of %s: %w", a.ID, err)
	}
	if ref.Valid {
		a.SourceRef = ref.String
	}
	if title.Valid {
		a.SourceTitle = title.String
	}
	return &a, nil
}

// UpsertUser creates or updates the user identified by u.OpenID. Only
// non-nil fields overwrite stored values. The owner account is promoted to
// admin unless a role is given explicitly, and last_signed_in is always
// refreshed.
func UpsertUser(ctx context.Context, db DBExecutor, u UserUpsert, ownerOpenID string, now time.Time) error {
	openID := strings.TrimSpace(u.OpenID)
	if openID == "" {
		return fmt.Errorf("user openId is required for upsert")
	}
	var role any
	switch {
	case u.Role != nil:
		role = string(*u.Role)
	case ownerOpenID != "" && openID == ownerOpenID:
		role = string(RoleAdmin)
	}
	signedIn := now
	if u.LastSignedIn != nil {
		signedIn = *u.LastSignedIn
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO users (open_id, name, email, login_method, role, created_at, updated_at, last_signed_in)
		 VALUES (?, ?, ?, ?, COALESCE(?, 'user'), ?, ?, ?)
		 ON CONFLICT(open_id) DO UPDATE SET
		   name = COALESCE(excluded.name, users.name),
		   email = COALESCE(excluded.email, users.email),
		   login_method = COALESCE(excluded.login_method, users.login_method),
		   role = CASE WHEN ? IS NULL THEN users.role ELSE excluded.role END,
		   updated_at = excluded.updated_at,
		   last_signed_in = excluded.last_signed_in`,
		openID, u.Name, u.Email, u.LoginMethod, role, now.UTC(), now.UTC(), signedIn.UTC(), role)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// GetUserByOpenID loads a user, returning ErrNotFound when absent.
func GetUserByOpenID(ctx context.Context, db DBExecutor, openID string) (*User, error) {
	var u User
	var name, email, method sql.NullString
	var role string
	err := db.QueryRowContext(ctx,
		`SELECT id, open_id, name, email, login_method, role, created_at, updated_at, last_signed_in
		 FROM users WHERE open_id = ?`, openID).
		Scan(&u.ID, &u.OpenID, &name, &email, &method, &role, &u.CreatedAt, &u.UpdatedAt, &u.LastSignedIn)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.Name, u.Email, u.LoginMethod = name.String, email.String, method.String
	u.Role = Role(role)
	return &u, nil
}

func marshalList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// nullableString returns nil for "" so optional columns stay NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
