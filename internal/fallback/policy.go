// Package fallback decides whether a failed answering call gets a second attempt.
package fallback

import "github.com/MikeSquared-Agency/insight/internal/query"

// Policy is stateless; the zero value is ready to use.
type Policy struct{}

// Decide returns the provider to retry on, or false when no fallback applies.
// At most one fallback is ever offered per submission; callers must not consult
// the policy again after the fallback attempt.
func (Policy) Decide(failure *query.Failure, sub query.Submission) (query.Provider, bool) {
	if !sub.EnableFallback || failure == nil || !failure.Retryable {
		return "", false
	}
	if !sub.Fallback.Valid() {
		return "", false
	}
	failed := failure.Provider
	if failed == "" {
		failed = sub.Primary
	}
	if sub.Fallback == failed {
		return "", false
	}
	return sub.Fallback, true
}
