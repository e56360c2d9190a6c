package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/attendly/beacon-service/internal/domain"
	"github.com/attendly/beacon-service/internal/response"
)

type createSessionRequest struct {
	OrgID      int64  `json:"org_id"`
	Title      string `json:"title"`
	TTLSeconds int64  `json:"ttl_seconds"`
}

type createSessionResponse struct {
	SessionID int64     `json:"session_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CreateSession opens a new attendance window. The token is returned to
// the organizer exactly once; only its hash ever hits the air.
func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	claims := getClaims(r)
	if claims == nil {
		response.Unauthorized(w, "Authentication required")
		return
	}

	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}

	sess, err := h.sessionService.Create(r.Context(), claims.Sub, req.OrgID, req.Title, time.Duration(req.TTLSeconds)*time.Second)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, createSessionResponse{
		SessionID: sess.ID,
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt,
	})
}

type sessionCandidate struct {
	SessionID int64     `json:"session_id"`
	OrgID     int64     `json:"org_id"`
	Title     string    `json:"title"`
	IsLive    bool      `json:"is_live"`
	ExpiresAt time.Time `json:"expires_at"`
}

type resolveResponse struct {
	Candidates []sessionCandidate `json:"candidates"`
}

// ResolveSession looks up live sessions either exactly (?token=) or by
// the lossy beacon fields (?org_code=&hash=). The lossy form can return
// several candidates; choosing among them is the caller's problem.
func (h *Handlers) ResolveSession(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if tok := q.Get("token"); tok != "" {
		sess, err := h.sessionService.ResolveByToken(r.Context(), tok)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, resolveResponse{Candidates: []sessionCandidate{toCandidate(sess)}})
		return
	}

	orgCode, ok1 := parseUint(q.Get("org_code"), 8)
	hash, ok2 := parseUint(q.Get("hash"), 16)
	if !ok1 || !ok2 {
		response.BadRequest(w, "Provide token or org_code and hash")
		return
	}

	candidates, err := h.sessionService.ResolveByOrgAndHash(r.Context(), uint8(orgCode), uint16(hash))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if len(candidates) == 0 {
		response.NotFound(w, "No live session matches this beacon")
		return
	}

	out := make([]sessionCandidate, 0, len(candidates))
	for i := range candidates {
		out = append(out, toCandidate(&candidates[i]))
	}
	writeJSON(w, http.StatusOK, resolveResponse{Candidates: out})
}

// GetOrg resolves a broadcast org code to the owning organization.
func (h *Handlers) GetOrg(w http.ResponseWriter, r *http.Request) {
	code, ok := parseUint(chi.URLParam(r, "code"), 8)
	if !ok {
		response.BadRequest(w, "Invalid org code")
		return
	}

	org, err := h.sessionService.GetOrgByCode(r.Context(), uint8(code))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

// ListSessionAttendance returns the recorded roster for organizers.
func (h *Handlers) ListSessionAttendance(w http.ResponseWriter, r *http.Request) {
	claims := getClaims(r)
	if claims == nil {
		response.Unauthorized(w, "Authentication required")
		return
	}

	sessionID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || sessionID <= 0 {
		response.BadRequest(w, "Invalid session id")
		return
	}

	limit, offset := parsePagination(r)
	recs, err := h.sessionService.ListAttendance(r.Context(), claims.Sub, sessionID, limit, offset)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"records": recs})
}

func toCandidate(s *domain.Session) sessionCandidate {
	return sessionCandidate{
		SessionID: s.ID,
		OrgID:     s.OrgID,
		Title:     s.Title,
		IsLive:    true,
		ExpiresAt: s.ExpiresAt,
	}
}

func parseUint(s string, bits int) (uint64, bool) {
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseUint(s, 10, bits)
	if err != nil {
		return 0, false
	}
	return n, true
}
