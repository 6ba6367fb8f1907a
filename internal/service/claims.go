package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/lostfound/internal/model"
	"github.com/erazemk/lostfound/internal/store"
)

const maxClaimDescription = 1000

// Claims manages ownership claims and their review.
type Claims struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewClaims returns a Claims service backed by db.
func NewClaims(db *sqlx.DB) *Claims {
	return &Claims{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Create files a pending claim by claimant on the given item.
func (s *Claims) Create(ctx context.Context, itemID int64, claimant, description string) (*model.Claim, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, invalid("claim_description", "claim_description is required")
	}
	if utf8.RuneCountInString(description) > maxClaimDescription {
		return nil, invalid("claim_description", "claim_description must be at most %d characters", maxClaimDescription)
	}

	item, err := store.GetItem(ctx, s.db, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("item %d: %w", itemID, ErrNotFound)
	}
	user, err := store.GetUserByUsername(ctx, s.db, claimant)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %q: %w", claimant, ErrNotFound)
	}

	claim, err := store.SaveClaim(ctx, s.db, &model.Claim{
		ItemID:           item.ID,
		ClaimantID:       user.ID,
		ClaimantUsername: user.Username,
		Description:      description,
		Status:           model.ClaimStatusPending,
		DateSubmitted:    s.now(),
	})
	if err != nil {
		return nil, err
	}
	claim.Item = item

	slog.Info("claim submitted", "claim_id", claim.ID, "item_id", item.ID, "user", user.Username)
	return claim, nil
}

// Get returns the claim with the given ID.
func (s *Claims) Get(ctx context.Context, id int64) (*model.Claim, error) {
	claim, err := store.GetClaim(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if claim == nil {
		return nil, fmt.Errorf("claim %d: %w", id, ErrNotFound)
	}
	return claim, nil
}

// Approve marks a pending claim approved by approver.
func (s *Claims) Approve(ctx context.Context, id int64, approver string) (*model.Claim, error) {
	return s.decide(ctx, id, model.ClaimStatusApproved, approver)
}

// Reject marks a pending claim rejected by approver.
func (s *Claims) Reject(ctx context.Context, id int64, approver string) (*model.Claim, error) {
	return s.decide(ctx, id, model.ClaimStatusRejected, approver)
}

// decide applies a terminal status. A claim that was already decided is
// left untouched and reported as ErrClaimNotPending.
func (s *Claims) decide(ctx context.Context, id int64, status, approver string) (*model.Claim, error) {
	ok, err := store.DecideClaim(ctx, s.db, id, status, approver, s.now())
	if err != nil {
		return nil, err
	}

	claim, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("claim %d is %s: %w", id, claim.Status, ErrClaimNotPending)
	}

	slog.Info("claim decided", "claim_id", id, "status", status, "approver", approver)
	return claim, nil
}

// Withdraw deletes a pending claim. Only its claimant or an admin may
// withdraw it.
func (s *Claims) Withdraw(ctx context.Context, id int64, by *model.User) error {
	claim, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if claim.ClaimantID != by.ID && !by.IsAdmin() {
		return fmt.Errorf("withdrawing claim %d: %w", id, ErrForbidden)
	}

	ok, err := store.WithdrawClaim(ctx, s.db, id)
	if err != nil {
		return err
	}
	if !ok {
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("claim %d: %w", id, ErrClaimNotPending)
	}

	slog.Info("claim withdrawn", "claim_id", id, "by", by.Username)
	return nil
}

// ClaimStats counts claims per status.
type ClaimStats struct {
	Total    int64 `json:"total"`
	Pending  int64 `json:"pending"`
	Approved int64 `json:"approved"`
	Rejected int64 `json:"rejected"`
}

// Stats counts claims overall and per status.
func (s *Claims) Stats(ctx context.Context) (ClaimStats, error) {
	var st ClaimStats
	var err error
	if st.Total, err = store.CountClaims(ctx, s.db); err != nil {
		return st, err
	}
	for status, dst := range map[string]*int64{
		model.ClaimStatusPending:  &st.Pending,
		model.ClaimStatusApproved: &st.Approved,
		model.ClaimStatusRejected: &st.Rejected,
	} {
		if *dst, err = store.CountClaimsByStatus(ctx, s.db, status); err != nil {
			return st, err
		}
	}
	return st, nil
}

// ByUser returns every claim filed by the named user. An unknown user has
// no claims.
func (s *Claims) ByUser(ctx context.Context, username string) ([]model.Claim, error) {
	user, err := store.GetUserByUsername(ctx, s.db, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return []model.Claim{}, nil
	}
	return store.ListClaims(ctx, s.db, store.ClaimFilter{ClaimantID: user.ID})
}

// Pending returns claims awaiting review.
func (s *Claims) Pending(ctx context.Context) ([]model.Claim, error) {
	return store.ListClaims(ctx, s.db, store.ClaimFilter{Status: model.ClaimStatusPending})
}

// All returns every claim.
func (s *Claims) All(ctx context.Context) ([]model.Claim, error) {
	return store.ListClaims(ctx, s.db, store.ClaimFilter{})
}
