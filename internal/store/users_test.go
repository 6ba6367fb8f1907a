package store

import (
	"context"
	"errors"
	"testing"

	"github.com/erazemk/lostfound/internal/db"
	"github.com/erazemk/lostfound/internal/model"
)

func newUser(username, lname, fname string) *model.User {
	return &model.User{
		FirstName:    fname,
		LastName:     lname,
		Type:         model.TypeStudent,
		Email:        username + "@uep.edu.ph",
		Username:     username,
		PasswordHash: "hash",
	}
}

func TestSaveUserInsertAssignsID(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, err := SaveUser(ctx, database, newUser("alice", "Reyes", "Alice"))
	if err != nil {
		t.Fatalf("SaveUser: %v", err)
	}
	if user.ID == 0 {
		t.Fatal("expected a generated ID")
	}
	if user.Status != model.UserStatusActive {
		t.Errorf("expected status Active, got %q", user.Status)
	}

	got, err := GetUser(ctx, database, user.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.Username != "alice" || got.Email != "alice@uep.edu.ph" {
		t.Errorf("unexpected user %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}
}

func TestSaveUserUpdatePreservesID(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user := mustSaveUser(t, database, newUser("bob", "Cruz", "Bob"))
	id := user.ID

	user.Type = model.TypeAdmin
	user.RequestAdmin = false
	user.MiddleName = "Santos"
	updated, err := SaveUser(ctx, database, user)
	if err != nil {
		t.Fatalf("SaveUser update: %v", err)
	}
	if updated.ID != id {
		t.Errorf("expected ID %d preserved, got %d", id, updated.ID)
	}

	got, _ := GetUser(ctx, database, id)
	if got.Type != model.TypeAdmin || got.MiddleName != "Santos" {
		t.Errorf("update not persisted: %+v", got)
	}

	count, _ := CountUsers(ctx, database)
	if count != 1 {
		t.Errorf("expected 1 user after update, got %d", count)
	}
}

func TestSaveUserUpdateMissingRow(t *testing.T) {
	database := db.NewTestDB(t)

	u := newUser("ghost", "Ghost", "G")
	u.ID = 999
	_, err := SaveUser(context.Background(), database, u)
	if !errors.Is(err, ErrNoRowsAffected) {
		t.Fatalf("expected ErrNoRowsAffected, got %v", err)
	}
}

func TestGetUserByUsernameAndEmail(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	mustSaveUser(t, database, newUser("alice", "Reyes", "Alice"))

	user, err := GetUserByUsername(ctx, database, "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if user == nil {
		t.Fatal("expected user, got nil")
	}

	byEmail, err := GetUserByEmail(ctx, database, "ALICE@uep.edu.ph")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if byEmail == nil || byEmail.ID != user.ID {
		t.Errorf("expected case-insensitive email match, got %+v", byEmail)
	}

	missing, err := GetUserByUsername(ctx, database, "bob")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for missing user")
	}
}

func TestUsernameIsUnique(t *testing.T) {
	database := db.NewTestDB(t)

	mustSaveUser(t, database, newUser("alice", "Reyes", "Alice"))
	dup := newUser("alice", "Other", "Alice")
	dup.Email = "other@uep.edu.ph"
	_, err := SaveUser(context.Background(), database, dup)
	if !errors.Is(err, ErrDuplicateUsername) {
		t.Fatalf("expected ErrDuplicateUsername, got %v", err)
	}

	sameEmail := newUser("alicia", "Other", "Alicia")
	sameEmail.Email = "alice@uep.edu.ph"
	_, err = SaveUser(context.Background(), database, sameEmail)
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestSaveUserUpdateToTakenUsername(t *testing.T) {
	database := db.NewTestDB(t)

	mustSaveUser(t, database, newUser("alice", "Reyes", "Alice"))
	bob := mustSaveUser(t, database, newUser("bob", "Cruz", "Bob"))

	bob.Username = "alice"
	_, err := SaveUser(context.Background(), database, bob)
	if !errors.Is(err, ErrDuplicateUsername) {
		t.Fatalf("expected ErrDuplicateUsername, got %v", err)
	}
}

func TestListUsersOrderedByName(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	mustSaveUser(t, database, newUser("zed", "Zamora", "Zed"))
	mustSaveUser(t, database, newUser("ana", "Aquino", "Ana"))
	mustSaveUser(t, database, newUser("ben", "Aquino", "Ben"))

	users, err := ListUsers(ctx, database)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	want := []string{"ana", "ben", "zed"}
	if len(users) != len(want) {
		t.Fatalf("expected %d users, got %d", len(want), len(users))
	}
	for i, u := range users {
		if u.Username != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], u.Username)
		}
	}
}

func TestListAdminRequests(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	mustSaveUser(t, database, newUser("plain", "Plain", "P"))
	req := newUser("wants", "Wants", "W")
	req.RequestAdmin = true
	mustSaveUser(t, database, req)

	users, err := ListAdminRequests(ctx, database)
	if err != nil {
		t.Fatalf("ListAdminRequests: %v", err)
	}
	if len(users) != 1 || users[0].Username != "wants" {
		t.Errorf("expected only 'wants', got %+v", users)
	}
}

func TestDeleteUserCascadesItems(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user := mustSaveUser(t, database, newUser("gone", "Gone", "G"))
	mustSaveItem(t, database, &model.Item{Name: "Pen", Description: "blue", Status: model.ItemStatusLost, ReportedBy: "gone", UserID: user.ID})

	if err := DeleteUser(ctx, database, user.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}

	got, _ := GetUser(ctx, database, user.ID)
	if got != nil {
		t.Error("expected user to be deleted")
	}
	n, _ := CountItems(ctx, database)
	if n != 0 {
		t.Errorf("expected items to cascade, got %d", n)
	}
}

func TestCountUsersByType(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	mustSaveUser(t, database, newUser("s1", "S", "One"))
	admin := newUser("root", "Root", "R")
	admin.Type = model.TypeAdmin
	mustSaveUser(t, database, admin)

	n, err := CountUsersByType(ctx, database, model.TypeAdmin)
	if err != nil {
		t.Fatalf("CountUsersByType: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 admin, got %d", n)
	}
}
