package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/lostfound/internal/model"
)

// claimSelect joins each claim with its item; item columns land in the
// nested itemRow through the "item." prefix.
const claimSelect = `SELECT c.id, c.item_id, c.claimant_id, c.claimant_username, c.claim_description,
       c.status, c.date_submitted, c.approver_username, c.date_approved,
       i.id AS "item.id", i.name AS "item.name", i.description AS "item.description",
       i.status AS "item.status", i.reported_by AS "item.reported_by", i.image AS "item.image",
       i.user_id AS "item.user_id", i.date_reported AS "item.date_reported"
  FROM claims c
  JOIN items i ON i.id = c.item_id`

type claimRow struct {
	ID               int64          `db:"id"`
	ItemID           int64          `db:"item_id"`
	ClaimantID       int64          `db:"claimant_id"`
	ClaimantUsername string         `db:"claimant_username"`
	Description      string         `db:"claim_description"`
	Status           string         `db:"status"`
	DateSubmitted    sql.NullTime   `db:"date_submitted"`
	ApproverUsername sql.NullString `db:"approver_username"`
	DateApproved     sql.NullTime   `db:"date_approved"`
	Item             itemRow        `db:"item"`
}

func (r claimRow) model() *model.Claim {
	c := &model.Claim{
		ID:               r.ID,
		ItemID:           r.ItemID,
		Item:             r.Item.model(),
		ClaimantID:       r.ClaimantID,
		ClaimantUsername: r.ClaimantUsername,
		Description:      r.Description,
		Status:           r.Status,
		DateSubmitted:    timeOrNow("claims", r.ID, "date_submitted", r.DateSubmitted),
		ApproverUsername: r.ApproverUsername.String,
	}
	if r.DateApproved.Valid {
		t := r.DateApproved.Time
		c.DateApproved = &t
	}
	return c
}

// ClaimFilter narrows ListClaims. Zero fields are ignored.
type ClaimFilter struct {
	Status     string
	ClaimantID int64
	ItemID     int64
}

func (f ClaimFilter) clause() (string, []any) {
	var conds []string
	var args []any
	if f.Status != "" {
		conds = append(conds, "c.status = ?")
		args = append(args, f.Status)
	}
	if f.ClaimantID != 0 {
		conds = append(conds, "c.claimant_id = ?")
		args = append(args, f.ClaimantID)
	}
	if f.ItemID != 0 {
		conds = append(conds, "c.item_id = ?")
		args = append(args, f.ItemID)
	}
	return where(conds), args
}

// GetClaim returns a claim with its item, or nil if there is none.
func GetClaim(ctx context.Context, q sqlx.ExtContext, id int64) (*model.Claim, error) {
	var row claimRow
	found, err := getOne(ctx, q, &row, claimSelect+` WHERE c.id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("getting claim: %w", err)
	}
	if !found {
		return nil, nil
	}
	return row.model(), nil
}

// ListClaims returns matching claims, newest submission first.
func ListClaims(ctx context.Context, q sqlx.ExtContext, f ClaimFilter) ([]model.Claim, error) {
	cond, args := f.clause()
	var rows []claimRow
	err := selectAll(ctx, q, &rows, claimSelect+cond+` ORDER BY c.date_submitted DESC, c.id DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("listing claims: %w", err)
	}
	claims := make([]model.Claim, 0, len(rows))
	for _, r := range rows {
		claims = append(claims, *r.model())
	}
	return claims, nil
}

// SaveClaim inserts c when it has no ID and updates it otherwise. Both
// paths persist the approver fields.
func SaveClaim(ctx context.Context, q sqlx.ExtContext, c *model.Claim) (*model.Claim, error) {
	var approver any
	if c.ApproverUsername != "" {
		approver = c.ApproverUsername
	}
	if c.Status == "" {
		c.Status = model.ClaimStatusPending
	}

	if c.ID != 0 {
		err := updateOne(ctx, q,
			`UPDATE claims SET item_id = ?, claimant_id = ?, claimant_username = ?, claim_description = ?,
			        status = ?, approver_username = ?, date_approved = ?
			 WHERE id = ?`,
			c.ItemID, c.ClaimantID, c.ClaimantUsername, c.Description,
			c.Status, approver, c.DateApproved, c.ID,
		)
		if err != nil {
			return nil, fmt.Errorf("updating claim %d: %w", c.ID, err)
		}
		return c, nil
	}

	if c.DateSubmitted.IsZero() {
		c.DateSubmitted = time.Now().UTC()
	}
	id, err := insertReturningID(ctx, q,
		`INSERT INTO claims (item_id, claimant_id, claimant_username, claim_description, status,
		                     date_submitted, approver_username, date_approved)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		c.ItemID, c.ClaimantID, c.ClaimantUsername, c.Description, c.Status,
		c.DateSubmitted, approver, c.DateApproved,
	)
	if err != nil {
		return nil, fmt.Errorf("creating claim: %w", err)
	}
	c.ID = id
	return c, nil
}

// DecideClaim moves a pending claim to status in one statement. It reports
// false when the claim does not exist or is no longer pending.
func DecideClaim(ctx context.Context, q sqlx.ExtContext, id int64, status, approver string, at time.Time) (bool, error) {
	err := updateOne(ctx, q,
		`UPDATE claims SET status = ?, approver_username = ?, date_approved = ?
		 WHERE id = ? AND status = ?`,
		status, approver, at, id, model.ClaimStatusPending,
	)
	if err == ErrNoRowsAffected {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("deciding claim: %w", err)
	}
	return true, nil
}

// WithdrawClaim deletes a claim that is still pending. It reports false
// when the claim does not exist or has already been decided.
func WithdrawClaim(ctx context.Context, q sqlx.ExtContext, id int64) (bool, error) {
	res, err := exec(ctx, q, `DELETE FROM claims WHERE id = ? AND status = ?`, id, model.ClaimStatusPending)
	if err != nil {
		return false, fmt.Errorf("withdrawing claim: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("withdrawing claim: %w", err)
	}
	return n > 0, nil
}

// CountClaims returns the number of claims.
func CountClaims(ctx context.Context, q sqlx.ExtContext) (int64, error) {
	n, err := count(ctx, q, `SELECT COUNT(*) FROM claims`)
	if err != nil {
		return 0, fmt.Errorf("counting claims: %w", err)
	}
	return n, nil
}

// CountClaimsByStatus returns the number of claims with the given status.
func CountClaimsByStatus(ctx context.Context, q sqlx.ExtContext, status string) (int64, error) {
	n, err := count(ctx, q, `SELECT COUNT(*) FROM claims WHERE status = ?`, status)
	if err != nil {
		return 0, fmt.Errorf("counting claims by status: %w", err)
	}
	return n, nil
}
