package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/crewpool/dispatch/internal/arbiter"
	"github.com/crewpool/dispatch/internal/observability"
)

// Identity arrives on trusted headers set by the upstream gateway; this
// service performs authorization only, never authentication.
const (
	headerActorID   = "X-Actor-ID"
	headerActorRole = "X-Actor-Role"
)

func (s *Server) withRequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()

		ctx := observability.ContextWithRequestID(r.Context(), requestID)
		ctx = observability.ContextWithLogger(ctx, s.logger.With("request_id", requestID))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func actorFromRequest(r *http.Request) (arbiter.Actor, bool) {
	actorID, err := uuid.Parse(r.Header.Get(headerActorID))
	if err != nil {
		return arbiter.Actor{}, false
	}

	role := r.Header.Get(headerActorRole)
	if role != arbiter.RoleWorker && role != arbiter.RoleAdmin {
		return arbiter.Actor{}, false
	}

	return arbiter.Actor{ID: actorID, Role: role}, true
}
