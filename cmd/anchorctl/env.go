package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cyansociety/anchor-sdk-go/client"
	"github.com/cyansociety/anchor-sdk-go/memory"
	"github.com/cyansociety/anchor-sdk-go/pipeline"
	"github.com/cyansociety/anchor-sdk-go/signer"
	"github.com/cyansociety/anchor-sdk-go/tx"
	"github.com/cyansociety/anchor-sdk-go/wallet"
)

// env is the wired application: chain client, signing session, pipeline and
// memory source, all built from environment variables.
type env struct {
	chain   client.ChainClient
	service *pipeline.Service
	memory  *memory.Client
	signer  common.Address
}

// newEnv reads the deployment environment and wires the pipeline.
//
// Signing resolves in two steps: SIGNER_ORACLE_URL selects the remote
// oracle (with SIGNER_PUBLIC_KEY and SIGNER_ADDRESS identifying the key),
// otherwise SIGNER_PRIVATE_KEY runs a local in-process signer.
func newEnv(debug bool) (*env, error) {
	logger := client.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	clientCfg := client.DefaultConfig()
	if rpc := os.Getenv("RPC_URL"); rpc != "" {
		clientCfg.Endpoint = rpc
	}
	clientCfg.Debug = debug
	clientCfg.Logger = logger

	chain, err := client.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("connect chain client: %w", err)
	}

	contractHex := os.Getenv("ANCHOR_CONTRACT_ADDRESS")
	if contractHex == "" {
		return nil, fmt.Errorf("ANCHOR_CONTRACT_ADDRESS is not set")
	}
	if !common.IsHexAddress(contractHex) {
		return nil, fmt.Errorf("ANCHOR_CONTRACT_ADDRESS %q is not a valid address", contractHex)
	}
	contract := common.HexToAddress(contractHex)

	var (
		oracle     signer.Oracle
		keyID      string
		signerAddr common.Address
	)
	switch {
	case os.Getenv("SIGNER_ORACLE_URL") != "":
		keyID = os.Getenv("SIGNER_PUBLIC_KEY")
		addrHex := os.Getenv("SIGNER_ADDRESS")
		if keyID == "" || !common.IsHexAddress(addrHex) {
			return nil, fmt.Errorf("remote signing needs SIGNER_PUBLIC_KEY and SIGNER_ADDRESS")
		}
		signerAddr = common.HexToAddress(addrHex)
		oracle = signer.NewRemoteOracle(signer.RemoteConfig{
			Endpoint:  os.Getenv("SIGNER_ORACLE_URL"),
			AuthToken: os.Getenv("SIGNER_AUTH_TOKEN"),
			Logger:    logger,
		})

	case os.Getenv("SIGNER_PRIVATE_KEY") != "":
		w, err := wallet.NewWalletFromHex(os.Getenv("SIGNER_PRIVATE_KEY"))
		if err != nil {
			return nil, fmt.Errorf("load signer key: %w", err)
		}
		keyID = w.PublicKeyHex()
		signerAddr = w.Address()
		oracle = signer.NewLocalOracle(w)

	default:
		return nil, fmt.Errorf("set SIGNER_ORACLE_URL or SIGNER_PRIVATE_KEY")
	}

	session := signer.NewSession(oracle, &signer.Config{Logger: logger})
	builder := tx.NewBuilder(chain, nil)
	service := pipeline.NewService(chain, builder, session, pipeline.ServiceConfig{
		Contract: contract,
		Signer:   signerAddr,
		KeyID:    keyID,
		Logger:   logger,
	})

	var mem *memory.Client
	if base := os.Getenv("LETTA_BASE_URL"); base != "" {
		mem = memory.NewClient(memory.Config{
			BaseURL: base,
			Token:   os.Getenv("LETTA_PASSWORD"),
			Logger:  logger,
		})
	}

	return &env{chain: chain, service: service, memory: mem, signer: signerAddr}, nil
}

func (e *env) Close() {
	_ = e.service.Close()
	_ = e.chain.Close()
}
