package signer

import "fmt"

// SessionExpiredError means no active session could be obtained after one
// reauthorization attempt. The caller decides whether to retry.
type SessionExpiredError struct {
	Err error
}

func (e *SessionExpiredError) Error() string {
	return fmt.Sprintf("signing session expired and reauthorization failed: %v", e.Err)
}

func (e *SessionExpiredError) Unwrap() error {
	return e.Err
}

// OracleRejectedError carries a negative oracle result verbatim. It is never
// retried automatically: a rejected signature is a policy decision, not a
// transient fault.
type OracleRejectedError struct {
	Message string
}

func (e *OracleRejectedError) Error() string {
	return fmt.Sprintf("signing oracle rejected request: %s", e.Message)
}
