package llm

import (
	"errors"
	"fmt"
	"net/http"
)

var ErrUpstream = errors.New("upstream model service error")

// UpstreamError reports a failed call to the model or embedding service.
// Retryable is set for timeouts, throttling, 5xx and transport failures.
type UpstreamError struct {
	Op         string
	StatusCode int
	Retryable  bool
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.StatusCode > 0 && e.Message != "":
		return fmt.Sprintf("%s failed status=%d: %s", e.Op, e.StatusCode, e.Message)
	case e.StatusCode > 0:
		return fmt.Sprintf("%s failed status=%d", e.Op, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	default:
		return e.Op + " failed"
	}
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstream
}

func retryableStatus(status int) bool {
	return status == http.StatusRequestTimeout || status == http.StatusTooManyRequests || status >= 500
}
