package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/attendly/beacon-service/internal/response"
	"github.com/attendly/beacon-service/internal/service"
)

type submitAttendanceRequest struct {
	Token     string  `json:"token,omitempty"`
	SessionID int64   `json:"session_id,omitempty"`
	OrgCode   *uint8  `json:"org_code,omitempty"`
	TokenHash *uint16 `json:"hash,omitempty"`
}

type submitAttendanceResponse struct {
	Accepted        bool `json:"accepted"`
	AlreadyRecorded bool `json:"already_recorded"`
}

// SubmitAttendance records a check-in. Accepts the full token, a session
// id, or the raw beacon fields; a beacon that matches more than one live
// session is refused with 409 rather than guessed at.
func (h *Handlers) SubmitAttendance(w http.ResponseWriter, r *http.Request) {
	claims := getClaims(r)
	if claims == nil {
		response.Unauthorized(w, "Authentication required")
		return
	}

	var req submitAttendanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}

	ref := service.SubmitRef{
		Token:     req.Token,
		SessionID: req.SessionID,
	}
	if req.Token == "" && req.SessionID == 0 && req.OrgCode != nil && req.TokenHash != nil {
		ref.OrgCode = *req.OrgCode
		ref.TokenHash = *req.TokenHash
		ref.ByBeacon = true
	}

	result, err := h.attendanceService.Submit(r.Context(), claims.Sub, ref)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, submitAttendanceResponse{
		Accepted:        result.Accepted,
		AlreadyRecorded: result.AlreadyRecorded,
	})
}
