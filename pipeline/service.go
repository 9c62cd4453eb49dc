// Package pipeline orchestrates the full anchoring flow: compose, build,
// sign, assemble, broadcast, confirm, verify.
//
// One Service instance serves one signing identity. Requests for the same
// identity are serialized through build and submit so nonces are consumed
// strictly in order; independent identities can anchor concurrently with
// their own Service instances.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/oklog/ulid/v2"

	"github.com/cyansociety/anchor-sdk-go/anchor"
	"github.com/cyansociety/anchor-sdk-go/canonical"
	"github.com/cyansociety/anchor-sdk-go/client"
	"github.com/cyansociety/anchor-sdk-go/signer"
	"github.com/cyansociety/anchor-sdk-go/tx"
)

// ServiceConfig configures an anchoring service.
type ServiceConfig struct {
	// Contract is the anchor registry address.
	Contract common.Address

	// Signer is the delegated signing identity (the address transactions
	// are sent from).
	Signer common.Address

	// KeyID identifies the signing key at the oracle (public key).
	KeyID string

	// ConfirmTimeout bounds receipt polling. Zero means 2 minutes.
	ConfirmTimeout time.Duration

	// StateLocator and ActionLocator override the default locator
	// templates.
	StateLocator  anchor.LocatorTemplate
	ActionLocator anchor.LocatorTemplate

	// Logger is optional.
	Logger client.Logger
}

// Service runs anchoring requests end to end.
type Service struct {
	chain      client.ChainClient
	builder    *tx.Builder
	session    *signer.Session
	submission *SubmissionPipeline
	cfg        ServiceConfig

	// requests serializes build-to-submit per signing identity, so a second
	// request never fetches a nonce before the first one is broadcast.
	requests chan struct{}
}

// NewService wires the pipeline together.
func NewService(chain client.ChainClient, builder *tx.Builder, session *signer.Session, cfg ServiceConfig) *Service {
	if cfg.ConfirmTimeout == 0 {
		cfg.ConfirmTimeout = 2 * time.Minute
	}
	if cfg.StateLocator == "" {
		cfg.StateLocator = anchor.DefaultStateLocator
	}
	if cfg.ActionLocator == "" {
		cfg.ActionLocator = anchor.DefaultActionLocator
	}
	s := &Service{
		chain:      chain,
		builder:    builder,
		session:    session,
		submission: NewSubmissionPipeline(chain, 0, cfg.Logger),
		cfg:        cfg,
		requests:   make(chan struct{}, 1),
	}
	s.requests <- struct{}{}
	return s
}

// Result reports a completed anchoring request.
type Result struct {
	RequestID   string
	TxHash      common.Hash
	BlockNumber uint64
	GasUsed     uint64
	Commitment  canonical.Commitment
	Locator     string
	Verified    bool
}

// AnchorState hashes the agent's state document and anchors the commitment
// for the token.
func (s *Service) AnchorState(ctx context.Context, tokenID uint64, agentID string, doc canonical.Document) (*Result, error) {
	sa, err := anchor.ComposeState(tokenID, agentID, doc, s.cfg.StateLocator)
	if err != nil {
		return nil, err
	}
	return s.anchorCommitment(ctx, tokenID, sa.Commitment, sa.Locator)
}

// AnchorAction anchors authorship of a work product. The creator's current
// on-chain state commitment is read first; if the creator never anchored
// state the all-zero sentinel is used and the anchor still succeeds.
//
// The combined commitment is written through the same registry entry point
// as state anchors. The entry point is a generic commit-32-bytes primitive;
// only the locator convention distinguishes the two kinds on chain.
func (s *Service) AnchorAction(ctx context.Context, req anchor.ComposeActionRequest) (*Result, error) {
	if req.CreatorStateCommitment.IsZero() {
		req.CreatorStateCommitment = s.creatorStateCommitment(ctx, req.TokenID)
	}

	act, err := anchor.ComposeAction(req, s.cfg.ActionLocator)
	if err != nil {
		return nil, err
	}
	combined, err := act.CombinedCommitment()
	if err != nil {
		return nil, err
	}
	return s.anchorCommitment(ctx, req.TokenID, combined, act.Locator)
}

// AnchorCommitment anchors an already-computed commitment under the given
// locator. Callers that hash their own documents (for example a signing
// service fed precomputed state hashes) use this directly.
func (s *Service) AnchorCommitment(ctx context.Context, tokenID uint64, commitment canonical.Commitment, locator string) (*Result, error) {
	return s.anchorCommitment(ctx, tokenID, commitment, locator)
}

// VerifyStateAnchor re-reads the anchor record for a token and reports
// whether it matches the expected commitment.
func (s *Service) VerifyStateAnchor(ctx context.Context, tokenID uint64, expected canonical.Commitment) (bool, error) {
	err := s.submission.Verify(ctx, s.cfg.Contract, tokenID, expected)
	if err != nil {
		var mismatch *VerificationMismatchError
		if errors.As(err, &mismatch) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ReadStateAnchor returns the current on-chain anchor record for a token.
func (s *Service) ReadStateAnchor(ctx context.Context, tokenID uint64) (*tx.AnchorRecord, error) {
	return s.submission.ReadAnchorRecord(ctx, s.cfg.Contract, tokenID)
}

// Close releases the signing session.
func (s *Service) Close() error {
	return s.session.Close()
}

// anchorCommitment runs the shared pipeline for both anchor kinds.
func (s *Service) anchorCommitment(ctx context.Context, tokenID uint64, commitment canonical.Commitment, locator string) (*Result, error) {
	requestID := ulid.Make().String()
	log := s.cfg.Logger

	data, err := tx.EncodeAnchorState(tokenID, commitment, locator)
	if err != nil {
		return nil, err
	}

	// Hold the per-identity slot from nonce fetch through broadcast.
	// Abandoning the request before Submit has no on-chain side effect.
	select {
	case <-s.requests:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	handle, err := func() (TxHandle, error) {
		defer func() { s.requests <- struct{}{} }()

		unsigned, err := s.builder.Build(ctx, tx.BuildRequest{
			From: s.cfg.Signer,
			To:   s.cfg.Contract,
			Data: data,
		})
		if err != nil {
			return TxHandle{}, err
		}

		digest, err := tx.SigningDigest(unsigned)
		if err != nil {
			return TxHandle{}, err
		}

		if log != nil {
			log.Info("signing anchor transaction",
				"request", requestID, "token", tokenID, "nonce", unsigned.Nonce)
		}
		sig, err := s.session.Sign(ctx, digest, s.cfg.KeyID)
		if err != nil {
			return TxHandle{}, err
		}

		raw, err := tx.Assemble(unsigned, sig, s.cfg.Signer)
		if err != nil {
			return TxHandle{}, err
		}

		return s.submission.Submit(ctx, raw)
	}()
	if err != nil {
		return nil, err
	}

	// Past this point the transaction is irrevocable; cancelling only
	// stops the polling.
	receipt, err := s.submission.AwaitConfirmation(ctx, handle, s.cfg.ConfirmTimeout)
	if err != nil {
		return nil, err
	}

	result := &Result{
		RequestID:   requestID,
		TxHash:      receipt.TxHash,
		BlockNumber: receipt.BlockNumber,
		GasUsed:     receipt.GasUsed,
		Commitment:  commitment,
		Locator:     locator,
	}

	if err := s.submission.Verify(ctx, s.cfg.Contract, tokenID, commitment); err != nil {
		return result, err
	}
	result.Verified = true

	if log != nil {
		log.Info("anchor confirmed",
			"request", requestID, "tx", receipt.TxHash.Hex(), "block", receipt.BlockNumber)
	}
	return result, nil
}

// creatorStateCommitment reads the creator's anchored state, defaulting to
// the zero sentinel when the token has no record or the read fails.
func (s *Service) creatorStateCommitment(ctx context.Context, tokenID uint64) canonical.Commitment {
	record, err := s.submission.ReadAnchorRecord(ctx, s.cfg.Contract, tokenID)
	if err != nil {
		if s.cfg.Logger != nil {
			s.cfg.Logger.Debug("no anchored creator state", "token", tokenID, "error", err)
		}
		return canonical.Zero
	}
	return record.Commitment
}
