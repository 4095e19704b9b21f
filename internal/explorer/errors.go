package explorer

import (
	"errors"
	"fmt"
)

// ErrRangeTooLarge marks upstream rejections of a block window that spans too
// many results. Callers shrink the window instead of retrying.
var ErrRangeTooLarge = errors.New("result range too large")

// ErrRateLimited marks upstream rate-limit responses. Retryable.
var ErrRateLimited = errors.New("rate limited by upstream")

// APIError is a non-OK explorer response that fits no known class.
type APIError struct {
	Status  string
	Message string
	Result  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("explorer error: status=%s message=%s result=%s", e.Status, e.Message, e.Result)
}
