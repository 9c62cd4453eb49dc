// anchor-mcp serves the anchoring pipeline as MCP tools over stdio.
// Configuration comes from the environment: RPC_URL, ANCHOR_CONTRACT_ADDRESS,
// SIGNER_* for the signing identity and MCP_API_KEY for tool authentication.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cyansociety/anchor-sdk-go/client"
	"github.com/cyansociety/anchor-sdk-go/mcpserver"
	"github.com/cyansociety/anchor-sdk-go/pipeline"
	"github.com/cyansociety/anchor-sdk-go/signer"
	"github.com/cyansociety/anchor-sdk-go/tx"
	"github.com/cyansociety/anchor-sdk-go/wallet"
)

// Version is stamped at build time.
var Version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "anchor-mcp:", err)
		os.Exit(1)
	}
}

func run() error {
	// Stdout carries the MCP protocol, so all logging goes to stderr.
	logger := client.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	apiKey := os.Getenv("MCP_API_KEY")
	if apiKey == "" {
		logger.Warn("MCP_API_KEY not set; all anchoring requests will be rejected")
	}

	clientCfg := client.DefaultConfig()
	if rpc := os.Getenv("RPC_URL"); rpc != "" {
		clientCfg.Endpoint = rpc
	}
	clientCfg.Logger = logger

	chain, err := client.NewClient(clientCfg)
	if err != nil {
		return fmt.Errorf("connect chain client: %w", err)
	}
	defer chain.Close()

	contractHex := os.Getenv("ANCHOR_CONTRACT_ADDRESS")
	if !common.IsHexAddress(contractHex) {
		return fmt.Errorf("ANCHOR_CONTRACT_ADDRESS %q is not a valid address", contractHex)
	}

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
			return fmt.Errorf("remote signing needs SIGNER_PUBLIC_KEY and SIGNER_ADDRESS")
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
			return fmt.Errorf("load signer key: %w", err)
		}
		keyID = w.PublicKeyHex()
		signerAddr = w.Address()
		oracle = signer.NewLocalOracle(w)

	default:
		return fmt.Errorf("set SIGNER_ORACLE_URL or SIGNER_PRIVATE_KEY")
	}

	session := signer.NewSession(oracle, &signer.Config{Logger: logger})
	service := pipeline.NewService(chain, tx.NewBuilder(chain, nil), session, pipeline.ServiceConfig{
		Contract: common.HexToAddress(contractHex),
		Signer:   signerAddr,
		KeyID:    keyID,
		Logger:   logger,
	})
	defer service.Close()

	logger.Info("anchor-mcp serving on stdio", "signer", signerAddr.Hex())
	return mcpserver.Run(service, chain, mcpserver.Config{
		APIKey:  apiKey,
		Signer:  signerAddr,
		Version: Version,
	})
}
