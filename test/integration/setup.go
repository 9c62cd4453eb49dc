// Package integration runs the anchoring pipeline against a live chain.
//
// The tests are skipped unless ANCHOR_INTEGRATION=1 is set, along with
// ANCHOR_CONTRACT_ADDRESS and SIGNER_PRIVATE_KEY. RPC_URL defaults to the
// Base Sepolia public endpoint. The signer needs a small ETH balance.
package integration

import (
	"os"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/cyansociety/anchor-sdk-go/client"
	"github.com/cyansociety/anchor-sdk-go/pipeline"
	"github.com/cyansociety/anchor-sdk-go/signer"
	"github.com/cyansociety/anchor-sdk-go/tx"
	"github.com/cyansociety/anchor-sdk-go/wallet"
)

const confirmTimeout = 2 * time.Minute

// setupService wires a live pipeline from the environment, or skips.
func setupService(t *testing.T) (*pipeline.Service, client.ChainClient, common.Address) {
	t.Helper()
	if os.Getenv("ANCHOR_INTEGRATION") != "1" {
		t.Skip("set ANCHOR_INTEGRATION=1 to run live-chain tests")
	}

	contractHex := os.Getenv("ANCHOR_CONTRACT_ADDRESS")
	keyHex := os.Getenv("SIGNER_PRIVATE_KEY")
	if !common.IsHexAddress(contractHex) || keyHex == "" {
		t.Skip("ANCHOR_CONTRACT_ADDRESS and SIGNER_PRIVATE_KEY are required")
	}

	cfg := client.DefaultConfig()
	if rpc := os.Getenv("RPC_URL"); rpc != "" {
		cfg.Endpoint = rpc
	}
	chain, err := client.NewClient(cfg)
	require.NoError(t, err)

	w, err := wallet.NewWalletFromHex(keyHex)
	require.NoError(t, err)

	session := signer.NewSession(signer.NewLocalOracle(w), nil)
	svc := pipeline.NewService(chain, tx.NewBuilder(chain, nil), session, pipeline.ServiceConfig{
		Contract:       common.HexToAddress(contractHex),
		Signer:         w.Address(),
		KeyID:          w.PublicKeyHex(),
		ConfirmTimeout: confirmTimeout,
	})

	t.Cleanup(func() {
		_ = svc.Close()
		_ = chain.Close()
	})
	return svc, chain, w.Address()
}

// testTokenID returns the token used for live anchoring, default 1.
func testTokenID() uint64 {
	if v := os.Getenv("ANCHOR_TEST_TOKEN_ID"); v != "" {
		var id uint64
		for _, c := range v {
			if c < '0' || c > '9' {
				return 1
			}
			id = id*10 + uint64(c-'0')
		}
		if id > 0 {
			return id
		}
	}
	return 1
}
