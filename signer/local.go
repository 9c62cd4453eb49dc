package signer

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/oklog/ulid/v2"

	"github.com/cyansociety/anchor-sdk-go/wallet"
)

// LocalOracle implements Oracle with an in-process wallet instead of a
// remote service. It follows the same session choreography (connect,
// authorize, execute) so the Session layer behaves identically in tests and
// local-key deployments.
type LocalOracle struct {
	wallet    wallet.Wallet
	connected bool
}

// NewLocalOracle wraps a wallet as a signing oracle.
func NewLocalOracle(w wallet.Wallet) *LocalOracle {
	return &LocalOracle{wallet: w}
}

func (o *LocalOracle) Connect(ctx context.Context, network string) error {
	o.connected = true
	return nil
}

func (o *LocalOracle) Authorize(ctx context.Context, req AuthorizeRequest) (*Grant, error) {
	if !o.connected {
		return nil, fmt.Errorf("not connected")
	}
	return &Grant{
		Token:      "local-" + ulid.Make().String(),
		Expiration: req.Expiration,
	}, nil
}

// Execute signs the digest passed in the program params with the local key.
func (o *LocalOracle) Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResult, error) {
	if !o.connected {
		return nil, fmt.Errorf("not connected")
	}
	if req.Session == "" {
		return &ExecuteResult{Error: "missing session"}, nil
	}

	toSign, ok := req.Params["toSign"].([]interface{})
	if !ok || len(toSign) != 32 {
		return &ExecuteResult{Error: "toSign must be 32 bytes"}, nil
	}
	var digest [32]byte
	for i, v := range toSign {
		b, ok := v.(int)
		if !ok || b < 0 || b > 255 {
			return &ExecuteResult{Error: "toSign must be a byte array"}, nil
		}
		digest[i] = byte(b)
	}

	sigName, _ := req.Params["sigName"].(string)
	if sigName == "" {
		sigName = DefaultSigName
	}

	sig, err := o.wallet.SignDigest(digest)
	if err != nil {
		return &ExecuteResult{Error: err.Error()}, nil
	}

	r := make([]byte, 32)
	s := make([]byte, 32)
	sig.R.FillBytes(r)
	sig.S.FillBytes(s)

	return &ExecuteResult{
		Signatures: map[string]OracleSignature{
			sigName: {
				R:     "0x" + hex.EncodeToString(r),
				S:     "0x" + hex.EncodeToString(s),
				RecID: int(sig.RecoveryID),
			},
		},
	}, nil
}

func (o *LocalOracle) Close() error {
	o.connected = false
	return nil
}
