package client

import (
	"errors"
	"math"
	"net/http"
	"time"
)

// RetryPolicy controls how often a call is attempted. The delay between
// attempt n and n+1 is BaseDelay * 2^(n-1).
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first one.
	MaxAttempts int `json:"max_attempts"`

	// BaseDelay is the wait before the second attempt.
	BaseDelay time.Duration `json:"base_delay"`
}

// DefaultRetryPolicy attempts a call three times, waiting 500ms then 1s.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 3,
	BaseDelay:   500 * time.Millisecond,
}

// maxBackoffShift keeps the exponential delay from overflowing.
const maxBackoffShift = 30

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	return p
}

// MaxDelay is the longest wait Delay ever returns.
const MaxDelay = time.Duration(math.MaxInt64)

// Delay returns the wait after the given (1-based) failed attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	shift := attempt - 1
	if shift > maxBackoffShift {
		shift = maxBackoffShift
	}
	factor := time.Duration(1) << shift
	if p.BaseDelay > MaxDelay/factor {
		return MaxDelay
	}
	return p.BaseDelay * factor
}

// retryableError is implemented by errors that know whether they are transient.
type retryableError interface {
	Retryable() bool
}

// IsRetryable reports whether err is a transient failure worth another attempt.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var re retryableError
	if errors.As(err, &re) {
		return re.Retryable()
	}
	return false
}

// IsRetryableStatus reports whether a response status is transient.
func IsRetryableStatus(status int) bool {
	return status >= http.StatusInternalServerError ||
		status == http.StatusRequestTimeout ||
		status == http.StatusTooManyRequests
}
