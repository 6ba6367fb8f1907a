package model

import "time"

// Claim is a user's assertion of ownership over a reported item.
type Claim struct {
	ID               int64      `json:"id"`
	ItemID           int64      `json:"itemId"`
	Item             *Item      `json:"item,omitempty"`
	ClaimantID       int64      `json:"claimantId"`
	ClaimantUsername string     `json:"claimantUsername"`
	Description      string     `json:"claimDescription"`
	Status           string     `json:"status"`
	DateSubmitted    time.Time  `json:"dateSubmitted"`
	ApproverUsername string     `json:"approverUsername,omitempty"`
	DateApproved     *time.Time `json:"dateApproved,omitempty"`
}

// Claim statuses. Pending is the only non-terminal state.
const (
	ClaimStatusPending  = "Pending"
	ClaimStatusApproved = "Approved"
	ClaimStatusRejected = "Rejected"
)
