package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// memberIDHeader carries the caller's member id. Requests arrive through a
// gateway that has already authenticated the caller, so the header is
// trusted input here; validating the credential itself is out of scope.
const memberIDHeader = "X-Member-ID"

type contextKey string

const memberIDKey contextKey = "memberID"

// RequireMember extracts the pre-validated member id and puts it in the
// request context. Requests without a parseable id are rejected.
func RequireMember(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.Header.Get(memberIDHeader))
		if err != nil {
			http.Error(w, `{"error":"member identity required"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), memberIDKey, id)))
	})
}

// MemberFromContext returns the caller's member id, or uuid.Nil if the
// request did not pass through RequireMember.
func MemberFromContext(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(memberIDKey).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}
