// Package clients holds helpers shared by the external service clients in
// its subpackages.
//
// Every client retries transient failures itself with api.Retry and
// reports a definitive error once its policy is exhausted; the stage
// executors and the orchestrator never retry.
package clients

import (
	"fmt"
	"net/http"

	"github.com/petrijr/auraflow/pkg/api"
)

// StatusError is an unexpected HTTP response.
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Service, e.StatusCode, e.Body)
}

// Retryable reports whether a response status is worth retrying: rate
// limits and server errors are, other client errors are not.
func Retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// ClassifyStatus wraps err as permanent unless status is retryable.
func ClassifyStatus(status int, err error) error {
	if Retryable(status) {
		return err
	}
	return api.Permanent(err)
}
