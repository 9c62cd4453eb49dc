package tx

import "fmt"

// WouldRevertError means the pre-flight simulation of the transaction
// failed. Nothing was signed or broadcast and no cost was incurred; the
// caller must fix the inputs before retrying.
type WouldRevertError struct {
	Reason string
	Err    error
}

func (e *WouldRevertError) Error() string {
	return fmt.Sprintf("transaction would revert: %s", e.Reason)
}

func (e *WouldRevertError) Unwrap() error {
	return e.Err
}

// SignatureMismatchError means the signer recovered from a signature does
// not match the expected signing identity. The transaction is never
// broadcast in that case.
type SignatureMismatchError struct {
	Expected  string
	Recovered string
}

func (e *SignatureMismatchError) Error() string {
	return fmt.Sprintf("recovered signer %s does not match expected %s", e.Recovered, e.Expected)
}
