package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cyansociety/anchor-sdk-go/canonical"
	"github.com/cyansociety/anchor-sdk-go/client"
	"github.com/cyansociety/anchor-sdk-go/tx"
)

// TxHandle identifies a broadcast transaction for later polling.
type TxHandle struct {
	Hash common.Hash
}

// DefaultPollInterval between receipt polls.
const DefaultPollInterval = 2 * time.Second

// SubmissionPipeline broadcasts signed transactions and tracks them to a
// receipt.
type SubmissionPipeline struct {
	client       client.ChainClient
	pollInterval time.Duration
	logger       client.Logger
}

// NewSubmissionPipeline creates a pipeline. pollInterval <= 0 uses the
// default.
func NewSubmissionPipeline(c client.ChainClient, pollInterval time.Duration, logger client.Logger) *SubmissionPipeline {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &SubmissionPipeline{client: c, pollInterval: pollInterval, logger: logger}
}

// Submit broadcasts signed bytes. Fire-and-forget at the transport level;
// the returned handle is the only way to learn the outcome.
//
// A stale-nonce rejection comes back as *NonceError: the broadcast never
// entered the pool, so the request is safely retryable after rebuilding.
func (p *SubmissionPipeline) Submit(ctx context.Context, raw []byte) (TxHandle, error) {
	hash, err := p.client.SendRawTransaction(ctx, raw)
	if err != nil {
		if nerr := classifyNonceError(err); nerr != nil {
			return TxHandle{}, nerr
		}
		return TxHandle{}, fmt.Errorf("broadcast transaction: %w", err)
	}
	if p.logger != nil {
		p.logger.Info("transaction broadcast", "tx", hash.Hex())
	}
	return TxHandle{Hash: hash}, nil
}

// AwaitConfirmation polls until a receipt appears or timeout elapses.
//
// Timeout yields *ConfirmationTimeoutError, which is ambiguity, not
// failure: the transaction is already out and cannot be recalled. A mined
// receipt with a failed status yields *TransactionRevertedError.
func (p *SubmissionPipeline) AwaitConfirmation(ctx context.Context, handle TxHandle, timeout time.Duration) (*client.Receipt, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := p.client.TransactionReceipt(ctx, handle.Hash)
		if err != nil {
			return nil, fmt.Errorf("poll receipt: %w", err)
		}
		if receipt != nil {
			if !receipt.Success() {
				return nil, &TransactionRevertedError{Receipt: receipt}
			}
			return receipt, nil
		}

		if time.Now().After(deadline) {
			return nil, &ConfirmationTimeoutError{TxHash: handle.Hash, Timeout: timeout}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// ReadAnchorRecord reads the current anchor record for a token from the
// registry contract.
func (p *SubmissionPipeline) ReadAnchorRecord(ctx context.Context, contract common.Address, tokenID uint64) (*tx.AnchorRecord, error) {
	data, err := tx.EncodeGetStateAnchor(tokenID)
	if err != nil {
		return nil, err
	}
	ret, err := p.client.CallContract(ctx, client.CallMsg{To: &contract, Data: data})
	if err != nil {
		return nil, fmt.Errorf("read anchor record: %w", err)
	}
	return tx.DecodeAnchorRecord(ret)
}

// Verify re-reads the anchor record and compares it byte for byte against
// the commitment that was meant to be written. A mismatch is surfaced as
// *VerificationMismatchError.
func (p *SubmissionPipeline) Verify(ctx context.Context, contract common.Address, tokenID uint64, expected canonical.Commitment) error {
	record, err := p.ReadAnchorRecord(ctx, contract, tokenID)
	if err != nil {
		return err
	}
	if record.Commitment != expected {
		return &VerificationMismatchError{
			TokenID:  tokenID,
			Expected: expected,
			Actual:   record.Commitment,
		}
	}
	return nil
}

// classifyNonceError recognizes chain-level nonce conflicts in the RPC
// error message. Wording varies across node implementations.
func classifyNonceError(err error) *NonceError {
	var rpcErr *client.RPCError
	if !errors.As(err, &rpcErr) {
		return nil
	}
	msg := strings.ToLower(rpcErr.Message)
	for _, s := range []string{
		"nonce too low",
		"nonce too high",
		"invalid nonce",
		"replacement transaction underpriced",
		"already known",
	} {
		if strings.Contains(msg, s) {
			return &NonceError{Message: rpcErr.Message, Err: err}
		}
	}
	return nil
}
