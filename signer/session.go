package signer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cyansociety/anchor-sdk-go/client"
	"github.com/cyansociety/anchor-sdk-go/tx"
)

// State of a session.
type State int

const (
	Disconnected State = iota
	Connecting
	Authorizing
	Active
	Expiring
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Authorizing:
		return "authorizing"
	case Active:
		return "active"
	case Expiring:
		return "expiring"
	default:
		return "unknown"
	}
}

// Config configures a Session.
type Config struct {
	// Network namespace passed to the oracle on connect.
	Network string

	// Chain namespace the capability grant is scoped to.
	Chain string

	// SessionTTL is the authorization lifetime requested from the oracle.
	SessionTTL time.Duration

	// RefreshMargin reauthorizes this long before the actual expiry, so a
	// sign call never races the oracle-side cutoff.
	RefreshMargin time.Duration

	// SigName labels the signature in the oracle's response.
	SigName string

	// Logger is optional.
	Logger client.Logger
}

// DefaultSessionTTL and DefaultRefreshMargin: one-hour grants refreshed five
// minutes early.
const (
	DefaultSessionTTL    = time.Hour
	DefaultRefreshMargin = 5 * time.Minute
	DefaultSigName       = "anchorStateSig"
)

func (c *Config) withDefaults() Config {
	out := *c
	if out.Network == "" {
		out.Network = "oracle-testnet"
	}
	if out.Chain == "" {
		out.Chain = "baseSepolia"
	}
	if out.SessionTTL == 0 {
		out.SessionTTL = DefaultSessionTTL
	}
	if out.RefreshMargin == 0 {
		out.RefreshMargin = DefaultRefreshMargin
	}
	if out.SigName == "" {
		out.SigName = DefaultSigName
	}
	return out
}

// Session owns the oracle connection for one signing identity.
//
// Exactly one Session exists per identity, and it is the sole mutator of the
// underlying session state. Sign calls are serialized: two in-flight sign
// calls for the same identity queue on the session mutex.
type Session struct {
	oracle Oracle
	cfg    Config
	now    func() time.Time

	mu        sync.Mutex
	state     State
	grant     *Grant
	expiry    time.Time
	connected bool
}

// NewSession creates a Session over the given oracle transport. The session
// is created lazily; no network traffic happens until the first use.
func NewSession(oracle Oracle, cfg *Config) *Session {
	var c Config
	if cfg != nil {
		c = *cfg
	}
	return &Session{
		oracle: oracle,
		cfg:    c.withDefaults(),
		now:    time.Now,
		state:  Disconnected,
	}
}

// State returns the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() State {
	if s.state == Active && s.now().After(s.expiry.Add(-s.cfg.RefreshMargin)) {
		s.state = Expiring
	}
	return s.state
}

// EnsureSession makes sure an Active session exists, connecting and
// authorizing as needed. Idempotent: a session outside the refresh margin is
// returned as-is.
func (s *Session) EnsureSession(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureLocked(ctx)
}

func (s *Session) ensureLocked(ctx context.Context) error {
	if s.stateLocked() == Active {
		return nil
	}

	if !s.connected {
		s.state = Connecting
		if err := s.oracle.Connect(ctx, s.cfg.Network); err != nil {
			s.state = Disconnected
			return fmt.Errorf("connect signing oracle: %w", err)
		}
		s.connected = true
	}

	s.state = Authorizing
	expiration := s.now().Add(s.cfg.SessionTTL)
	grant, err := s.oracle.Authorize(ctx, AuthorizeRequest{
		Chain:      s.cfg.Chain,
		Expiration: expiration,
		Abilities:  defaultAbilities,
	})
	if err != nil {
		s.state = Disconnected
		return fmt.Errorf("authorize signing session: %w", err)
	}

	s.grant = grant
	s.expiry = expiration
	if !grant.Expiration.IsZero() && grant.Expiration.Before(expiration) {
		s.expiry = grant.Expiration
	}
	s.state = Active

	if s.cfg.Logger != nil {
		s.cfg.Logger.Info("signing session active", "expiry", s.expiry)
	}
	return nil
}

// Sign obtains a signature over a 32-byte digest from the oracle, using the
// key identified by keyID.
//
// One reauthorization is attempted if no active session is available; after
// that the call fails with SessionExpiredError. A negative oracle result is
// surfaced verbatim as OracleRejectedError and never retried here; the
// execute call is at-most-once per attempt.
func (s *Session) Sign(ctx context.Context, digest [32]byte, keyID string) (tx.Signature, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLocked(ctx); err != nil {
		// One reauthorization attempt, as a full reconnect.
		_ = s.oracle.Close()
		s.connected = false
		if err2 := s.ensureLocked(ctx); err2 != nil {
			return tx.Signature{}, &SessionExpiredError{Err: err2}
		}
	}

	toSign := make([]interface{}, len(digest))
	for i, b := range digest {
		toSign[i] = int(b)
	}

	result, err := s.oracle.Execute(ctx, ExecuteRequest{
		Code: signingProgram,
		Params: map[string]interface{}{
			"toSign":    toSign,
			"publicKey": keyID,
			"sigName":   s.cfg.SigName,
		},
		Session: s.grant.Token,
	})
	if err != nil {
		return tx.Signature{}, fmt.Errorf("execute signing program: %w", err)
	}
	if result.Error != "" {
		return tx.Signature{}, &OracleRejectedError{Message: result.Error}
	}

	oracleSig, ok := result.Signatures[s.cfg.SigName]
	if !ok {
		return tx.Signature{}, &OracleRejectedError{
			Message: fmt.Sprintf("no signature named %q in oracle response", s.cfg.SigName),
		}
	}

	sig, err := tx.ParseSignature(oracleSig.R, oracleSig.S, oracleSig.RecID)
	if err != nil {
		return tx.Signature{}, fmt.Errorf("parse oracle signature: %w", err)
	}
	return sig, nil
}

// Close disconnects and releases the oracle connection. Valid from any
// state; the session always ends Disconnected even if the transport close
// fails.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = Disconnected
	s.grant = nil
	s.expiry = time.Time{}

	if !s.connected {
		return nil
	}
	s.connected = false
	if err := s.oracle.Close(); err != nil {
		return fmt.Errorf("close signing oracle: %w", err)
	}
	return nil
}
