package api

import (
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/erazemk/lostfound/internal/metrics"
	"github.com/erazemk/lostfound/internal/model"
	"github.com/erazemk/lostfound/internal/service"
)

const maxClaimBody = 64 << 10

// ClaimsHandler handles claim submission and review.
type ClaimsHandler struct {
	Claims *service.Claims
}

// List handles GET /api/claims?action=user|pending|all.
func (h *ClaimsHandler) List(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r.Context())
	q := r.URL.Query()

	var (
		claims []model.Claim
		err    error
	)
	switch q.Get("action") {
	case "user":
		username := strings.TrimSpace(q.Get("username"))
		if username == "" {
			jsonError(w, http.StatusBadRequest, "Invalid request")
			return
		}
		if username != user.Username && !user.IsAdmin() {
			jsonError(w, http.StatusForbidden, "Access denied")
			return
		}
		claims, err = h.Claims.ByUser(r.Context(), username)
	case "pending":
		if !user.IsAdmin() {
			jsonError(w, http.StatusForbidden, "Access denied")
			return
		}
		claims, err = h.Claims.Pending(r.Context())
	case "all":
		if !user.IsAdmin() {
			jsonError(w, http.StatusForbidden, "Access denied")
			return
		}
		claims, err = h.Claims.All(r.Context())
	default:
		jsonError(w, http.StatusBadRequest, "Invalid action")
		return
	}
	if err != nil {
		internalError(w, r, "failed to list claims", err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"claims": claims})
}

// Post handles POST /api/claims. The JSON body's action selects what
// happens to the claim.
func (h *ClaimsHandler) Post(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxClaimBody))
	if err != nil || !gjson.ValidBytes(body) {
		jsonError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	switch gjson.GetBytes(body, "action").String() {
	case "create":
		h.create(w, r, body)
	case "approve":
		h.decide(w, r, body, model.ClaimStatusApproved)
	case "reject":
		h.decide(w, r, body, model.ClaimStatusRejected)
	case "withdraw":
		h.withdraw(w, r, body)
	default:
		jsonError(w, http.StatusBadRequest, "Invalid action")
	}
}

func (h *ClaimsHandler) create(w http.ResponseWriter, r *http.Request, body []byte) {
	user := CurrentUser(r.Context())

	itemID, ok := idField(body, "item_id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "A valid item_id is required")
		return
	}

	claimant := strings.TrimSpace(gjson.GetBytes(body, "claimant_username").String())
	if claimant == "" {
		claimant = user.Username
	}
	if claimant != user.Username && !user.IsAdmin() {
		jsonError(w, http.StatusForbidden, "Access denied")
		return
	}

	desc := gjson.GetBytes(body, "claim_description")
	if !desc.Exists() {
		desc = gjson.GetBytes(body, "claimDescription")
	}

	claim, err := h.Claims.Create(r.Context(), itemID, claimant, desc.String())
	if err != nil {
		serviceError(w, r, err, "Item or user not found")
		return
	}
	jsonMessage(w, "Claim submitted successfully", "claim", claim)
}

func (h *ClaimsHandler) decide(w http.ResponseWriter, r *http.Request, body []byte, status string) {
	user := CurrentUser(r.Context())
	if !user.IsAdmin() {
		jsonError(w, http.StatusForbidden, "Access denied")
		return
	}

	id, ok := idField(body, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "A valid claim id is required")
		return
	}

	var (
		claim *model.Claim
		err   error
	)
	if status == model.ClaimStatusApproved {
		claim, err = h.Claims.Approve(r.Context(), id, user.Username)
	} else {
		claim, err = h.Claims.Reject(r.Context(), id, user.Username)
	}
	if err != nil {
		serviceError(w, r, err, "Claim not found")
		return
	}

	metrics.RecordClaimDecision(status)
	slog.Info("claim reviewed", "claim_id", id, "status", status, "by", user.Username)
	jsonMessage(w, "Claim "+strings.ToLower(status), "claim", claim)
}

func (h *ClaimsHandler) withdraw(w http.ResponseWriter, r *http.Request, body []byte) {
	id, ok := idField(body, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "A valid claim id is required")
		return
	}
	if err := h.Claims.Withdraw(r.Context(), id, CurrentUser(r.Context())); err != nil {
		serviceError(w, r, err, "Claim not found")
		return
	}
	jsonMessage(w, "Claim withdrawn")
}

// idField reads a positive integer ID sent either as a JSON number or as a
// numeric string.
func idField(body []byte, key string) (int64, bool) {
	res := gjson.GetBytes(body, key)
	switch res.Type {
	case gjson.Number:
		if res.Num != math.Trunc(res.Num) || res.Num <= 0 {
			return 0, false
		}
		return res.Int(), true
	case gjson.String:
		id, err := strconv.ParseInt(strings.TrimSpace(res.Str), 10, 64)
		if err != nil || id <= 0 {
			return 0, false
		}
		return id, true
	}
	return 0, false
}
