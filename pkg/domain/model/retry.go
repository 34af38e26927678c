package model

import "time"

// RetryState tracks a single host call's retry loop. It is discarded when
// the call resolves.
type RetryState struct {
	Attempt     int
	MaxAttempts int
	Backoff     time.Duration
}

// NewRetryState starts a retry loop at attempt 1. maxAttempts below 1 is
// treated as 1.
func NewRetryState(maxAttempts int, backoff time.Duration) *RetryState {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &RetryState{Attempt: 1, MaxAttempts: maxAttempts, Backoff: backoff}
}

// Next advances to the following attempt and reports whether one remains.
func (s *RetryState) Next() bool {
	if s.Attempt >= s.MaxAttempts {
		return false
	}
	s.Attempt++
	return true
}

// Last reports whether the current attempt is the final one.
func (s *RetryState) Last() bool {
	return s.Attempt >= s.MaxAttempts
}
