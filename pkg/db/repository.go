package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Store bundles the query functions behind a connection pool and runs the
// multi-statement writes in transactions.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore wraps an initialized connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// RecordAnalysis saves a and bumps the counter of every word in one
// transaction. Words must already be case-folded and deduplicated.
func (s *Store) RecordAnalysis(ctx context.Context, a *Analysis, words []string) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = SaveAnalysis(ctx, tx, a); err != nil {
		return err
	}
	at := a.CreatedAt
	if at.IsZero() {
		at = s.now()
	}
	for _, w := range words {
		if err = IncrementBuzzword(ctx, tx, w, a.Language, at); err != nil {
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit analysis: %w", err)
	}
	return nil
}

func (s *Store) TopBuzzwords(ctx context.Context, language string, limit int) ([]BuzzwordCount, error) {
	return GetTopBuzzwords(ctx, s.db, language, limit)
}

func (s *Store) AllBuzzwords(ctx context.Context, limit int) ([]BuzzwordCount, error) {
	return GetAllBuzzwords(ctx, s.db, limit)
}

func (s *Store) RecentAnalyses(ctx context.Context, limit int) ([]Analysis, error) {
	return GetRecentAnalyses(ctx, s.db, limit)
}

func (s *Store) Analysis(ctx context.Context, id string) (*Analysis, error) {
	return GetAnalysis(ctx, s.db, id)
}

// UpsertUser applies an identity-provider callback.
func (s *Store) UpsertUser(ctx context.Context, u UserUpsert, ownerOpenID string) error {
	return UpsertUser(ctx, s.db, u, ownerOpenID, s.now())
}

func (s *Store) UserByOpenID(ctx context.Context, openID string) (*User, error) {
	return GetUserByOpenID(ctx, s.db, openID)
}
