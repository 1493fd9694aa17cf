package database

import (
	"context"
	"errors"
	"testing"
)

func TestCreateAndGetUser(t *testing.T) {
	t.Parallel()
	db := testDB(t)
	ctx := context.Background()

	id, err := db.CreateUser(ctx, "coach", "coach@example.com", "hash123", true)
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	byID, err := db.GetUser(ctx, id)
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if byID.Username != "coach" || byID.Email != "coach@example.com" || !byID.IsAdmin {
		t.Errorf("GetUser() = %+v", byID)
	}

	byEmail, err := db.GetUserByEmail(ctx, "coach@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail() error = %v", err)
	}
	if byEmail.ID != id {
		t.Errorf("GetUserByEmail() id = %d, want %d", byEmail.ID, id)
	}
}

func TestGetUserNotFound(t *testing.T) {
	t.Parallel()
	db := testDB(t)
	ctx := context.Background()

	if _, err := db.GetUser(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUser(999) error = %v, want ErrNotFound", err)
	}
	if _, err := db.GetUserByEmail(ctx, "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUserByEmail() error = %v, want ErrNotFound", err)
	}
}

func TestUpdateUserPassword(t *testing.T) {
	t.Parallel()
	db := testDB(t)
	ctx := context.Background()

	if _, err := db.CreateUser(ctx, "coach", "coach@example.com", "old-hash", false); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	if err := db.UpdateUserPassword(ctx, "coach@example.com", "new-hash"); err != nil {
		t.Fatalf("UpdateUserPassword() error = %v", err)
	}

	user, err := db.GetUserByEmail(ctx, "coach@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail() error = %v", err)
	}
	if user.PasswordHash != "new-hash" {
		t.Errorf("password hash = %q, want new-hash", user.PasswordHash)
	}

	if err := db.UpdateUserPassword(ctx, "nobody@example.com", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateUserPassword() for missing user error = %v, want ErrNotFound", err)
	}
}
