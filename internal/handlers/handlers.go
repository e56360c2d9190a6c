package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/attendly/beacon-service/internal/domain"
	"github.com/attendly/beacon-service/internal/response"
	"github.com/attendly/beacon-service/internal/service"
	"github.com/attendly/beacon-service/pkg/auth"
	"github.com/attendly/beacon-service/pkg/logger"
)

type contextKey string

const claimsKey contextKey = "claims"

type Handlers struct {
	sessionService    service.SessionService
	attendanceService service.AttendanceService
	jwtSecret         string
}

func New(sessionService service.SessionService, attendanceService service.AttendanceService, jwtSecret string) *Handlers {
	return &Handlers{
		sessionService:    sessionService,
		attendanceService: attendanceService,
		jwtSecret:         jwtSecret,
	}
}

// RequireJWT authenticates the caller. Role gating beyond authentication
// happens in the authorization guard against membership facts, so an
// organizer of org A carries no weight in org B.
func (h *Handlers) RequireJWT(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			response.Unauthorized(w, "Missing or invalid authorization header")
			return
		}

		tok := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := auth.Parse(tok, h.jwtSecret)
		if err != nil {
			response.Unauthorized(w, "Invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), logger.MemberIDKey, claims.Sub)
		ctx = context.WithValue(ctx, claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func getClaims(r *http.Request) *auth.Claims {
	if claims, ok := r.Context().Value(claimsKey).(*auth.Claims); ok {
		return claims
	}
	return nil
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeDomainError maps the closed error taxonomy onto HTTP. Forbidden is
// logged for audit; NotFound is routine and logged at debug only.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		response.BadRequest(w, "Invalid request")
	case errors.Is(err, domain.ErrNotFound):
		logger.DebugContext(r.Context(), "Resource not found", "path", r.URL.Path)
		response.NotFound(w, "Not found")
	case errors.Is(err, domain.ErrForbidden):
		logger.WarnContext(r.Context(), "Authorization denied", "path", r.URL.Path)
		response.Forbidden(w, "Not authorized")
	case errors.Is(err, domain.ErrAmbiguous):
		response.Ambiguous(w, "Beacon matches multiple live sessions; confirm with the full token")
	case errors.Is(err, domain.ErrUnavailable):
		logger.ErrorContext(r.Context(), "Dependency unavailable", "error", err)
		response.Unavailable(w, "Temporarily unavailable, retry later")
	default:
		logger.ErrorContext(r.Context(), "Unhandled error", "error", err)
		response.InternalError(w, "Internal error")
	}
}

func parsePagination(r *http.Request) (limit, offset int) {
	limit = 20
	offset = 0

	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return limit, offset
}
