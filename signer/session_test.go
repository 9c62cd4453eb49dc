package signer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyansociety/anchor-sdk-go/tx"
	"github.com/cyansociety/anchor-sdk-go/wallet"
)

// scriptedOracle counts calls and can be told to fail.
type scriptedOracle struct {
	mu         sync.Mutex
	connects   int
	authorizes int
	executes   int
	closes     int

	authorizeErr error
	executeErr   error
	result       *ExecuteResult

	inFlight atomic.Int32
	overlap  atomic.Bool
}

func (o *scriptedOracle) Connect(ctx context.Context, network string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.connects++
	return nil
}

func (o *scriptedOracle) Authorize(ctx context.Context, req AuthorizeRequest) (*Grant, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.authorizes++
	if o.authorizeErr != nil {
		return nil, o.authorizeErr
	}
	return &Grant{Token: "grant", Expiration: req.Expiration}, nil
}

func (o *scriptedOracle) Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResult, error) {
	if o.inFlight.Add(1) > 1 {
		o.overlap.Store(true)
	}
	time.Sleep(2 * time.Millisecond)
	o.inFlight.Add(-1)

	o.mu.Lock()
	defer o.mu.Unlock()
	o.executes++
	if o.executeErr != nil {
		return nil, o.executeErr
	}
	if o.result != nil {
		return o.result, nil
	}
	return &ExecuteResult{Signatures: map[string]OracleSignature{
		DefaultSigName: {R: "0x01", S: "0x02", RecID: 0},
	}}, nil
}

func (o *scriptedOracle) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closes++
	return nil
}

func TestEnsureSessionIdempotent(t *testing.T) {
	oracle := &scriptedOracle{}
	s := NewSession(oracle, nil)
	ctx := context.Background()

	require.NoError(t, s.EnsureSession(ctx))
	assert.Equal(t, Active, s.State())
	require.NoError(t, s.EnsureSession(ctx))

	assert.Equal(t, 1, oracle.connects)
	assert.Equal(t, 1, oracle.authorizes)
}

func TestSessionRefreshBeforeExpiry(t *testing.T) {
	oracle := &scriptedOracle{}
	s := NewSession(oracle, &Config{
		SessionTTL:    time.Hour,
		RefreshMargin: 5 * time.Minute,
	})
	base := time.Now()
	now := base
	s.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, s.EnsureSession(ctx))
	assert.Equal(t, 1, oracle.authorizes)

	// Inside the window nothing happens.
	now = base.Add(30 * time.Minute)
	require.NoError(t, s.EnsureSession(ctx))
	assert.Equal(t, 1, oracle.authorizes)

	// Crossing the safety margin (55 min into a 60 min grant) flips the
	// state to Expiring and triggers a reauthorization.
	now = base.Add(56 * time.Minute)
	assert.Equal(t, Expiring, s.State())
	require.NoError(t, s.EnsureSession(ctx))
	assert.Equal(t, Active, s.State())
	assert.Equal(t, 2, oracle.authorizes)
	assert.Equal(t, 1, oracle.connects, "refresh reuses the transport")
}

func TestSignWithLocalOracle(t *testing.T) {
	w, err := wallet.NewWallet()
	require.NoError(t, err)
	s := NewSession(NewLocalOracle(w), nil)
	defer s.Close()

	var digest [32]byte
	digest[31] = 0x7f

	sig, err := s.Sign(context.Background(), digest, w.PublicKeyHex())
	require.NoError(t, err)

	recovered, err := tx.RecoverSigner(digest, sig)
	require.NoError(t, err)
	assert.Equal(t, w.Address(), recovered)
}

func TestSignSessionExpired(t *testing.T) {
	oracle := &scriptedOracle{authorizeErr: errors.New("grant denied")}
	s := NewSession(oracle, nil)

	_, err := s.Sign(context.Background(), [32]byte{}, "key")
	require.Error(t, err)

	var expired *SessionExpiredError
	require.ErrorAs(t, err, &expired)
	// Exactly one reauthorization attempt beyond the first, as a full
	// reconnect.
	assert.Equal(t, 2, oracle.authorizes)
	assert.Equal(t, 2, oracle.connects)
	assert.Equal(t, 0, oracle.executes)
}

func TestSignOracleRejected(t *testing.T) {
	oracle := &scriptedOracle{result: &ExecuteResult{Error: "policy refused digest"}}
	s := NewSession(oracle, nil)

	_, err := s.Sign(context.Background(), [32]byte{}, "key")
	require.Error(t, err)

	var rejected *OracleRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Contains(t, rejected.Message, "policy refused")
	// Rejections are not retried.
	assert.Equal(t, 1, oracle.executes)
}

func TestSignMissingSignatureName(t *testing.T) {
	oracle := &scriptedOracle{result: &ExecuteResult{
		Signatures: map[string]OracleSignature{"other": {R: "0x01", S: "0x02"}},
	}}
	s := NewSession(oracle, nil)

	_, err := s.Sign(context.Background(), [32]byte{}, "key")
	var rejected *OracleRejectedError
	require.ErrorAs(t, err, &rejected)
}

func TestSignCallsSerialized(t *testing.T) {
	oracle := &scriptedOracle{}
	s := NewSession(oracle, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Sign(context.Background(), [32]byte{}, "key")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.False(t, oracle.overlap.Load(), "sign calls for one identity must not overlap")
	assert.Equal(t, 8, oracle.executes)
}

func TestCloseFromAnyState(t *testing.T) {
	oracle := &scriptedOracle{}
	s := NewSession(oracle, nil)

	// Close before any use is a no-op.
	require.NoError(t, s.Close())
	assert.Equal(t, 0, oracle.closes)

	require.NoError(t, s.EnsureSession(context.Background()))
	require.NoError(t, s.Close())
	assert.Equal(t, Disconnected, s.State())
	assert.Equal(t, 1, oracle.closes)

	// A closed session can be used again; it reconnects lazily.
	require.NoError(t, s.EnsureSession(context.Background()))
	assert.Equal(t, Active, s.State())
	assert.Equal(t, 2, oracle.connects)
}
