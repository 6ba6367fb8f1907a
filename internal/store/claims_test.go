package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/lostfound/internal/db"
	"github.com/erazemk/lostfound/internal/model"
)

type claimFixture struct {
	alice, bob *model.User
	item       *model.Item
}

func setupClaimFixture(t *testing.T, database *sqlx.DB) claimFixture {
	t.Helper()
	alice := mustSaveUser(t, database, newUser("alice", "Reyes", "Alice"))
	bob := mustSaveUser(t, database, newUser("bob", "Cruz", "Bob"))
	item := mustSaveItem(t, database, &model.Item{Name: "Blue Backpack", Description: "library", Status: model.ItemStatusLost,
		ReportedBy: "alice", UserID: alice.ID})
	return claimFixture{alice: alice, bob: bob, item: item}
}

func mustSaveClaim(t *testing.T, database *sqlx.DB, c *model.Claim) *model.Claim {
	t.Helper()
	saved, err := SaveClaim(context.Background(), database, c)
	if err != nil {
		t.Fatalf("SaveClaim: %v", err)
	}
	return saved
}

func TestSaveClaimAndGetWithItem(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	f := setupClaimFixture(t, database)

	claim := mustSaveClaim(t, database, &model.Claim{
		ItemID: f.item.ID, ClaimantID: f.bob.ID, ClaimantUsername: "bob", Description: "it has my name inside",
	})
	if claim.ID == 0 {
		t.Fatal("expected a generated ID")
	}
	if claim.Status != model.ClaimStatusPending {
		t.Errorf("expected Pending, got %q", claim.Status)
	}

	got, err := GetClaim(ctx, database, claim.ID)
	if err != nil {
		t.Fatalf("GetClaim: %v", err)
	}
	if got.Item == nil || got.Item.ID != f.item.ID || got.Item.Name != "Blue Backpack" {
		t.Fatalf("expected embedded item, got %+v", got.Item)
	}
	if got.ClaimantUsername != "bob" || got.ApproverUsername != "" || got.DateApproved != nil {
		t.Errorf("unexpected claim %+v", got)
	}
}

func TestSaveClaimUpdatePersistsApprover(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	f := setupClaimFixture(t, database)

	claim := mustSaveClaim(t, database, &model.Claim{ItemID: f.item.ID, ClaimantID: f.bob.ID, ClaimantUsername: "bob", Description: "mine"})

	now := time.Now().UTC()
	claim.Status = model.ClaimStatusRejected
	claim.ApproverUsername = "admin"
	claim.DateApproved = &now
	if _, err := SaveClaim(ctx, database, claim); err != nil {
		t.Fatalf("SaveClaim update: %v", err)
	}

	got, _ := GetClaim(ctx, database, claim.ID)
	if got.Status != model.ClaimStatusRejected || got.ApproverUsername != "admin" || got.DateApproved == nil {
		t.Errorf("update not persisted: %+v", got)
	}

	missing := &model.Claim{ID: 999, ItemID: f.item.ID, ClaimantID: f.bob.ID, Description: "x"}
	if _, err := SaveClaim(ctx, database, missing); !errors.Is(err, ErrNoRowsAffected) {
		t.Errorf("expected ErrNoRowsAffected, got %v", err)
	}
}

func TestDecideClaimOnlyFromPending(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	f := setupClaimFixture(t, database)

	claim := mustSaveClaim(t, database, &model.Claim{ItemID: f.item.ID, ClaimantID: f.bob.ID, ClaimantUsername: "bob", Description: "mine"})

	changed, err := DecideClaim(ctx, database, claim.ID, model.ClaimStatusApproved, "admin", time.Now().UTC())
	if err != nil {
		t.Fatalf("DecideClaim: %v", err)
	}
	if !changed {
		t.Fatal("expected pending claim to change")
	}

	changed, err = DecideClaim(ctx, database, claim.ID, model.ClaimStatusRejected, "other", time.Now().UTC())
	if err != nil {
		t.Fatalf("second DecideClaim: %v", err)
	}
	if changed {
		t.Error("expected decided claim to stay unchanged")
	}

	got, _ := GetClaim(ctx, database, claim.ID)
	if got.Status != model.ClaimStatusApproved || got.ApproverUsername != "admin" {
		t.Errorf("expected first decision to stand, got %+v", got)
	}

	changed, err = DecideClaim(ctx, database, 999, model.ClaimStatusApproved, "admin", time.Now().UTC())
	if err != nil || changed {
		t.Errorf("expected (false, nil) for missing claim, got (%v, %v)", changed, err)
	}
}

func TestListClaimsFilters(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	f := setupClaimFixture(t, database)

	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	first := mustSaveClaim(t, database, &model.Claim{ItemID: f.item.ID, ClaimantID: f.bob.ID, ClaimantUsername: "bob",
		Description: "first", DateSubmitted: base})
	mustSaveClaim(t, database, &model.Claim{ItemID: f.item.ID, ClaimantID: f.alice.ID, ClaimantUsername: "alice",
		Description: "second", DateSubmitted: base.Add(time.Minute)})
	DecideClaim(ctx, database, first.ID, model.ClaimStatusRejected, "admin", time.Now().UTC())

	all, err := ListClaims(ctx, database, ClaimFilter{})
	if err != nil {
		t.Fatalf("ListClaims: %v", err)
	}
	if len(all) != 2 || all[0].Description != "second" {
		t.Errorf("expected newest first, got %+v", all)
	}

	pending, _ := ListClaims(ctx, database, ClaimFilter{Status: model.ClaimStatusPending})
	if len(pending) != 1 || pending[0].ClaimantUsername != "alice" {
		t.Errorf("expected alice's pending claim, got %+v", pending)
	}

	bobs, _ := ListClaims(ctx, database, ClaimFilter{ClaimantID: f.bob.ID})
	if len(bobs) != 1 || bobs[0].Status != model.ClaimStatusRejected {
		t.Errorf("expected bob's rejected claim, got %+v", bobs)
	}

	forItem, _ := ListClaims(ctx, database, ClaimFilter{ItemID: f.item.ID})
	if len(forItem) != 2 {
		t.Errorf("expected 2 claims for item, got %d", len(forItem))
	}

	n, _ := CountClaimsByStatus(ctx, database, model.ClaimStatusPending)
	total, _ := CountClaims(ctx, database)
	if n != 1 || total != 2 {
		t.Errorf("expected 1 pending of 2, got %d of %d", n, total)
	}
}

func TestDeleteItemCascadesClaims(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	f := setupClaimFixture(t, database)

	claim := mustSaveClaim(t, database, &model.Claim{ItemID: f.item.ID, ClaimantID: f.bob.ID, ClaimantUsername: "bob", Description: "mine"})
	if err := DeleteItem(ctx, database, f.item.ID); err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}

	got, _ := GetClaim(ctx, database, claim.ID)
	if got != nil {
		t.Error("expected claim to be removed with its item")
	}
}

func TestWithdrawClaimOnlyWhilePending(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	f := setupClaimFixture(t, database)

	pending := mustSaveClaim(t, database, &model.Claim{ItemID: f.item.ID, ClaimantID: f.bob.ID, ClaimantUsername: "bob", Description: "mine"})
	decided := mustSaveClaim(t, database, &model.Claim{ItemID: f.item.ID, ClaimantID: f.bob.ID, ClaimantUsername: "bob", Description: "also mine", Status: model.ClaimStatusRejected})

	ok, err := WithdrawClaim(ctx, database, pending.ID)
	if err != nil || !ok {
		t.Fatalf("WithdrawClaim pending: ok=%v err=%v", ok, err)
	}
	ok, err = WithdrawClaim(ctx, database, decided.ID)
	if err != nil || ok {
		t.Errorf("expected decided claim to stay, ok=%v err=%v", ok, err)
	}
	ok, _ = WithdrawClaim(ctx, database, 9999)
	if ok {
		t.Error("expected false for missing claim")
	}

	n, _ := CountClaims(ctx, database)
	if n != 1 {
		t.Errorf("expected 1 claim left, got %d", n)
	}
}
