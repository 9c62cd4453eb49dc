package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/cyansociety/anchor-sdk-go/anchor"
	"github.com/cyansociety/anchor-sdk-go/canonical"
	"github.com/cyansociety/anchor-sdk-go/client"
	"github.com/cyansociety/anchor-sdk-go/pipeline"
)

// Handlers holds the wired pipeline for tool dispatch.
type Handlers struct {
	service *pipeline.Service
	chain   client.ChainClient
	cfg     Config
}

// AnchorStateRequest are the arguments of anchor_state.
type AnchorStateRequest struct {
	TokenID   uint64 `json:"token_id"`
	StateHash string `json:"state_hash"`
	StateURI  string `json:"state_uri"`
	APIKey    string `json:"api_key,omitempty"`
}

// AnchorActionRequest are the arguments of anchor_action.
type AnchorActionRequest struct {
	TokenID        uint64   `json:"token_id"`
	Content        string   `json:"work_product_content"`
	ContentType    string   `json:"content_type,omitempty"`
	Description    string   `json:"description,omitempty"`
	CreatorAgentID string   `json:"creator_agent_id"`
	CreatorName    string   `json:"creator_name,omitempty"`
	Collaborators  []string `json:"collaborators,omitempty"`
	AnchorType     string   `json:"anchor_type,omitempty"`
	APIKey         string   `json:"api_key,omitempty"`
}

// VerifyRequest are the arguments of verify_state_anchor.
type VerifyRequest struct {
	TokenID      uint64 `json:"token_id"`
	ExpectedHash string `json:"expected_hash,omitempty"`
}

// HandleAnchorState anchors a precomputed commitment.
func (h *Handlers) HandleAnchorState(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[AnchorStateRequest](req)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	if !h.cfg.authorized(input.APIKey) {
		return errorResult("authentication failed: invalid or missing API key"), nil
	}

	commitment, err := canonical.ParseCommitment(input.StateHash)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	if input.StateURI == "" {
		return errorResult("state_uri is required"), nil
	}

	result, err := h.service.AnchorCommitment(ctx, input.TokenID, commitment, input.StateURI)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return successResult(resultPayload(result))
}

// HandleAnchorAction anchors authorship of a work product.
func (h *Handlers) HandleAnchorAction(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[AnchorActionRequest](req)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	if !h.cfg.authorized(input.APIKey) {
		return errorResult("authentication failed: invalid or missing API key"), nil
	}
	if input.Content == "" {
		return errorResult("work_product_content is required"), nil
	}

	result, err := h.service.AnchorAction(ctx, anchor.ComposeActionRequest{
		TokenID:       input.TokenID,
		Content:       input.Content,
		ContentType:   input.ContentType,
		Description:   input.Description,
		Subtype:       input.AnchorType,
		CreatorID:     input.CreatorAgentID,
		CreatorName:   input.CreatorName,
		Collaborators: input.Collaborators,
	})
	if err != nil {
		return errorResult(err.Error()), nil
	}
	payload := resultPayload(result)
	payload["content_hash"] = canonical.HashText(input.Content).Hex()
	return successResult(payload)
}

// HandleVerifyStateAnchor reads the anchor record for a token.
func (h *Handlers) HandleVerifyStateAnchor(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[VerifyRequest](req)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	record, err := h.service.ReadStateAnchor(ctx, input.TokenID)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	payload := map[string]interface{}{
		"token_id":   input.TokenID,
		"state_hash": record.Commitment.Hex(),
		"state_uri":  record.Locator,
		"timestamp":  record.Timestamp,
	}
	if input.ExpectedHash != "" {
		expected, err := canonical.ParseCommitment(input.ExpectedHash)
		if err != nil {
			return errorResult(err.Error()), nil
		}
		payload["matches"] = expected == record.Commitment
	}
	return successResult(payload)
}

// HandleSignerBalance reports the signing identity's balance.
func (h *Handlers) HandleSignerBalance(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	wei, err := h.chain.BalanceAt(ctx, h.cfg.Signer)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	low := wei.Cmp(big.NewInt(1_000_000_000_000_000)) < 0 // 0.001 ETH
	return successResult(map[string]interface{}{
		"address":             h.cfg.Signer.Hex(),
		"balance_wei":         wei.String(),
		"low_balance_warning": low,
	})
}

// decode unmarshals tool arguments into a typed request.
func decode[T any](req mcp.CallToolRequest) (T, error) {
	var out T
	raw, err := json.Marshal(req.GetArguments())
	if err != nil {
		return out, fmt.Errorf("marshal arguments: %w", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode arguments: %w", err)
	}
	return out, nil
}

func resultPayload(r *pipeline.Result) map[string]interface{} {
	return map[string]interface{}{
		"success":      true,
		"request_id":   r.RequestID,
		"tx_hash":      r.TxHash.Hex(),
		"block_number": r.BlockNumber,
		"gas_used":     r.GasUsed,
		"state_hash":   r.Commitment.Hex(),
		"state_uri":    r.Locator,
		"verified":     r.Verified,
		"explorer_url": "https://sepolia.basescan.org/tx/" + r.TxHash.Hex(),
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	content, _ := json.Marshal(map[string]interface{}{"error": msg})
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

func successResult(data interface{}) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
