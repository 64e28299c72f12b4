package auth

import (
	"context"
	"net/http"
	"strings"
)

type subjectKey struct{}

// SubjectFromContext returns the authenticated subject stored by
// Middleware, if any.
func SubjectFromContext(ctx context.Context) (string, bool) {
	sub, ok := ctx.Value(subjectKey{}).(string)
	return sub, ok
}

// StreamIDFunc extracts the target stream ID from a request, so the
// policy can be evaluated before the handler runs.
type StreamIDFunc func(*http.Request) string

// Middleware verifies the bearer token on every request, evaluates the
// authorization policy against the resolved stream ID, and stores the
// subject in the request context on success. onError renders a failure
// using hematite's error envelope.
func Middleware(verifier *Verifier, policy *Policy, streamID StreamIDFunc, onError func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r)
			if err != nil {
				onError(w, r, err)
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				onError(w, r, err)
				return
			}

			stream := streamID(r)
			if err := policy.Authorize(claims.Subject, stream, r.Method); err != nil {
				onError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), subjectKey{}, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", errMissingBearer
	}
	token := strings.TrimSpace(header[len(prefix):])
	if token == "" {
		return "", errMissingBearer
	}
	return token, nil
}
