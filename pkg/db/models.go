package db

import (
	"errors"
	"time"
)

// ErrNotFound is returned by single-row lookups that match nothing.
var ErrNotFound = errors.New("not found")

// Role is a user's authorization level.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Source kinds recorded on an analysis.
const (
	SourceText     = "text"
	SourceDocument = "document"
	SourceURL      = "url"
)

// Analysis is one stored analysis. Records are written once and never
// updated.
type Analysis struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	Language    string    `json:"language"`
	Score       int       `json:"score"`
	Suggestions []string  `json:"suggestions"`
	Buzzwords   []string  `json:"buzzwords"`
	SourceKind  string    `json:"sourceKind"`
	SourceRef   string    `json:"sourceRef,omitempty"`
	SourceTitle string    `json:"sourceTitle,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// BuzzwordCount is the running counter for one (word, language) key.
type BuzzwordCount struct {
	ID        int64     `json:"-"`
	Word      string    `json:"word"`
	Language  string    `json:"language"`
	Count     int64     `json:"count"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// User is an account known through the external identity provider.
type User struct {
	ID           int64     `json:"id"`
	OpenID       string    `json:"openId"`
	Name         string    `json:"name,omitempty"`
	Email        string    `json:"email,omitempty"`
	LoginMethod  string    `json:"loginMethod,omitempty"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	LastSignedIn time.Time `json:"lastSignedIn"`
}

// UserUpsert carries the fields an identity callback supplies. Nil fields
// leave the stored value untouched.
type UserUpsert struct {
	OpenID       string
	Name         *string
	Email        *string
	LoginMethod  *string
	Role         *Role
	LastSignedIn *time.Time
}
