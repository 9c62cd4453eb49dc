package pipeline

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cyansociety/anchor-sdk-go/canonical"
	"github.com/cyansociety/anchor-sdk-go/client"
)

// NonceError means the chain rejected the broadcast because the nonce was
// already consumed (or an equivalent replacement condition). Nothing was
// spent; the request can be rebuilt with a fresh nonce and retried.
type NonceError struct {
	Message string
	Err     error
}

func (e *NonceError) Error() string {
	return fmt.Sprintf("stale nonce: %s", e.Message)
}

func (e *NonceError) Unwrap() error {
	return e.Err
}

// ConfirmationTimeoutError means the broadcast went out but no receipt
// appeared within the allotted time. The outcome is unknown, not failed:
// the transaction cannot be cancelled and may still confirm, so the caller
// must keep polling with the handle.
type ConfirmationTimeoutError struct {
	TxHash  common.Hash
	Timeout time.Duration
}

func (e *ConfirmationTimeoutError) Error() string {
	return fmt.Sprintf("no receipt for %s after %s; outcome unknown, poll again later", e.TxHash.Hex(), e.Timeout)
}

// TransactionRevertedError is terminal: the transaction was mined and
// reverted, gas was spent. It is never retried automatically.
type TransactionRevertedError struct {
	Receipt *client.Receipt
}

func (e *TransactionRevertedError) Error() string {
	return fmt.Sprintf("transaction %s reverted in block %d (gas used %d)",
		e.Receipt.TxHash.Hex(), e.Receipt.BlockNumber, e.Receipt.GasUsed)
}

// VerificationMismatchError means the post-confirmation readback of the
// anchor record disagrees with what was submitted. This is a data-integrity
// alarm (for example a concurrent conflicting write), never silently
// retried.
type VerificationMismatchError struct {
	TokenID  uint64
	Expected canonical.Commitment
	Actual   canonical.Commitment
}

func (e *VerificationMismatchError) Error() string {
	return fmt.Sprintf("on-chain anchor for token %d is %s, expected %s",
		e.TokenID, e.Actual.Hex(), e.Expected.Hex())
}
