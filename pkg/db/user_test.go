package db

import (
	"context"
	"errors"
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func TestUpsertUserInsertAndPartialUpdate(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	defer db.Close()

	t0 := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	err := UpsertUser(ctx, db, UserUpsert{OpenID: "u-1", Name: strPtr("Kari"), Email: strPtr("kari@example.com")}, "", t0)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	u, err := GetUserByOpenID(ctx, db, "u-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if u.Name != "Kari" || u.Role != RoleUser || !u.LastSignedIn.Equal(t0) || !u.CreatedAt.Equal(t0) {
		t.Fatalf("unexpected user after insert: %+v", u)
	}

	t1 := t0.Add(24 * time.Hour)
	if err := UpsertUser(ctx, db, UserUpsert{OpenID: "u-1", LoginMethod: strPtr("google")}, "", t1); err != nil {
		t.Fatalf("update: %v", err)
	}
	u, err = GetUserByOpenID(ctx, db, "u-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if u.Name != "Kari" || u.Email != "kari@example.com" {
		t.Fatalf("fields not supplied must be kept: %+v", u)
	}
	if u.LoginMethod != "google" || !u.LastSignedIn.Equal(t1) || !u.CreatedAt.Equal(t0) {
		t.Fatalf("unexpected user after update: %+v", u)
	}
}

func TestUpsertUserRoles(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	defer db.Close()
	now := time.Now()

	if err := UpsertUser(ctx, db, UserUpsert{OpenID: "owner"}, "owner", now); err != nil {
		t.Fatalf("owner: %v", err)
	}
	owner, err := GetUserByOpenID(ctx, db, "owner")
	if err != nil {
		t.Fatalf("get owner: %v", err)
	}
	if owner.Role != RoleAdmin {
		t.Fatalf("expected owner to be admin, got %s", owner.Role)
	}

	admin := RoleAdmin
	if err := UpsertUser(ctx, db, UserUpsert{OpenID: "u-2"}, "owner", now); err != nil {
		t.Fatalf("user: %v", err)
	}
	if err := UpsertUser(ctx, db, UserUpsert{OpenID: "u-2", Role: &admin}, "owner", now); err != nil {
		t.Fatalf("promote: %v", err)
	}
	if err := UpsertUser(ctx, db, UserUpsert{OpenID: "u-2", Name: strPtr("Ola")}, "owner", now); err != nil {
		t.Fatalf("rename: %v", err)
	}
	u, err := GetUserByOpenID(ctx, db, "u-2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if u.Role != RoleAdmin || u.Name != "Ola" {
		t.Fatalf("role must survive updates without a role: %+v", u)
	}
}

func TestUpsertUserRequiresOpenID(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	if err := UpsertUser(context.Background(), db, UserUpsert{}, "", time.Now()); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := GetUserByOpenID(context.Background(), db, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
