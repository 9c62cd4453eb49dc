// Package mcpserver exposes the anchoring pipeline as MCP tools over stdio,
// so agent runtimes can anchor state and work products through tool calls.
package mcpserver

import (
	"crypto/subtle"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/cyansociety/anchor-sdk-go/client"
	"github.com/cyansociety/anchor-sdk-go/pipeline"
)

// Config configures the MCP tool server.
type Config struct {
	// APIKey gates every state-changing tool. Empty means all anchoring
	// requests are rejected; read-only tools stay open.
	APIKey string

	// Signer is the signing identity, reported by get_signer_balance.
	Signer common.Address

	// Version reported in the MCP handshake.
	Version string
}

// NewServer builds the MCP server with all anchor tools registered.
func NewServer(svc *pipeline.Service, chain client.ChainClient, cfg Config) *server.MCPServer {
	s := server.NewMCPServer(
		"anchor-signer",
		cfg.Version,
		server.WithToolCapabilities(true),
	)

	h := &Handlers{service: svc, chain: chain, cfg: cfg}

	s.AddTool(mcp.NewTool("anchor_state",
		mcp.WithDescription("Anchor a precomputed state commitment on chain for a token."),
		mcp.WithNumber("token_id", mcp.Required(), mcp.Description("NFT token id to anchor state for")),
		mcp.WithString("state_hash", mcp.Required(), mcp.Description("keccak256 commitment, 0x-prefixed 32 bytes")),
		mcp.WithString("state_uri", mcp.Required(), mcp.Description("Locator for the full state data")),
		mcp.WithString("api_key", mcp.Description("Authentication key")),
	), h.HandleAnchorState)

	s.AddTool(mcp.NewTool("anchor_action",
		mcp.WithDescription("Anchor authorship of a work product, binding it to the creator's anchored state."),
		mcp.WithNumber("token_id", mcp.Required(), mcp.Description("NFT token id of the creator agent")),
		mcp.WithString("work_product_content", mcp.Required(), mcp.Description("The content to anchor")),
		mcp.WithString("content_type", mcp.Description("MIME type of the content")),
		mcp.WithString("description", mcp.Description("Human-readable description")),
		mcp.WithString("creator_agent_id", mcp.Required(), mcp.Description("Agent id of the creator")),
		mcp.WithString("creator_name", mcp.Description("Display name of the creator")),
		mcp.WithArray("collaborators", mcp.Description("Collaborator names")),
		mcp.WithString("anchor_type", mcp.Description("authorship, decision or action")),
		mcp.WithString("api_key", mcp.Description("Authentication key")),
	), h.HandleAnchorAction)

	s.AddTool(mcp.NewTool("verify_state_anchor",
		mcp.WithDescription("Read the current anchor record for a token."),
		mcp.WithNumber("token_id", mcp.Required(), mcp.Description("NFT token id")),
		mcp.WithString("expected_hash", mcp.Description("Commitment to compare the record against")),
	), h.HandleVerifyStateAnchor)

	s.AddTool(mcp.NewTool("get_signer_balance",
		mcp.WithDescription("Check the ETH balance of the signing identity."),
	), h.HandleSignerBalance)

	return s
}

// Run serves the tools over stdio until the client disconnects.
func Run(svc *pipeline.Service, chain client.ChainClient, cfg Config) error {
	return server.ServeStdio(NewServer(svc, chain, cfg))
}

// authorized checks the caller's key against the configured one in constant
// time. A missing configured key rejects everything.
func (c Config) authorized(provided string) bool {
	if c.APIKey == "" || provided == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(c.APIKey)) == 1
}
