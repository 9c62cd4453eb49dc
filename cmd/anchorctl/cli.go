package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/cyansociety/anchor-sdk-go/anchor"
	"github.com/cyansociety/anchor-sdk-go/canonical"
	"github.com/cyansociety/anchor-sdk-go/memory"
	"github.com/cyansociety/anchor-sdk-go/pipeline"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp() *cli.App {
	return &cli.App{
		Name:    "anchorctl",
		Usage:   "Anchor agent memory snapshots and work products on chain",
		Version: Version,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "debug", Usage: "Log RPC request and response bodies"},
		},
		Commands: []*cli.Command{
			anchorStateCmd(),
			anchorActionCmd(),
			verifyCmd(),
			balanceCmd(),
		},
	}
}

func anchorStateCmd() *cli.Command {
	return &cli.Command{
		Name:  "anchor-state",
		Usage: "Snapshot an agent's memory and anchor its commitment",
		Flags: []cli.Flag{
			&cli.Uint64Flag{Name: "token", Usage: "Token id of the agent", Required: true},
			&cli.StringFlag{Name: "agent", Usage: "Agent id on the memory server", Required: true},
			&cli.BoolFlag{Name: "include-archival", Value: true, Usage: "Include archival memory in the snapshot"},
			&cli.StringFlag{Name: "state-file", Usage: "Anchor a snapshot document from a JSON file instead of the memory server"},
		},
		Action: func(c *cli.Context) error {
			e, err := newEnv(c.Bool("debug"))
			if err != nil {
				return err
			}
			defer e.Close()

			var doc canonical.Document
			if path := c.String("state-file"); path != "" {
				doc, err = readDocument(path)
			} else {
				if e.memory == nil {
					return fmt.Errorf("set LETTA_BASE_URL or pass --state-file")
				}
				doc, err = e.memory.Snapshot(c.Context, c.String("agent"), memory.SnapshotOptions{
					IncludeArchival: c.Bool("include-archival"),
				})
			}
			if err != nil {
				return err
			}

			result, err := e.service.AnchorState(c.Context, c.Uint64("token"), c.String("agent"), doc)
			if err != nil {
				return err
			}
			return outputResult(result)
		},
	}
}

func anchorActionCmd() *cli.Command {
	return &cli.Command{
		Name:  "anchor-action",
		Usage: "Anchor authorship of a work product (content read from stdin unless --content is set)",
		Flags: []cli.Flag{
			&cli.Uint64Flag{Name: "token", Usage: "Token id of the creator agent", Required: true},
			&cli.StringFlag{Name: "content", Usage: "Work product content"},
			&cli.StringFlag{Name: "content-type", Value: "text/plain", Usage: "MIME type of the content"},
			&cli.StringFlag{Name: "description", Usage: "Human-readable description"},
			&cli.StringFlag{Name: "creator-id", Usage: "Agent id of the creator", Required: true},
			&cli.StringFlag{Name: "creator-name", Usage: "Display name of the creator"},
			&cli.StringFlag{Name: "collaborators", Usage: "Comma-separated collaborator names"},
			&cli.StringFlag{Name: "type", Value: "authorship", Usage: "Action type: authorship|decision|action"},
		},
		Action: func(c *cli.Context) error {
			content := c.String("content")
			if content == "" {
				raw, err := io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("read content from stdin: %w", err)
				}
				content = string(raw)
			}
			if content == "" {
				return fmt.Errorf("work product content is empty")
			}

			e, err := newEnv(c.Bool("debug"))
			if err != nil {
				return err
			}
			defer e.Close()

			result, err := e.service.AnchorAction(c.Context, anchor.ComposeActionRequest{
				TokenID:       c.Uint64("token"),
				Content:       content,
				ContentType:   c.String("content-type"),
				Description:   c.String("description"),
				Subtype:       c.String("type"),
				CreatorID:     c.String("creator-id"),
				CreatorName:   c.String("creator-name"),
				Collaborators: splitList(c.String("collaborators")),
			})
			if err != nil {
				return err
			}
			return outputResult(result)
		},
	}
}

func verifyCmd() *cli.Command {
	return &cli.Command{
		Name:  "verify",
		Usage: "Read a token's anchor record, optionally checking it against an expected commitment",
		Flags: []cli.Flag{
			&cli.Uint64Flag{Name: "token", Usage: "Token id", Required: true},
			&cli.StringFlag{Name: "hash", Usage: "Expected commitment (0x-prefixed 32 bytes)"},
		},
		Action: func(c *cli.Context) error {
			e, err := newEnv(c.Bool("debug"))
			if err != nil {
				return err
			}
			defer e.Close()

			record, err := e.service.ReadStateAnchor(c.Context, c.Uint64("token"))
			if err != nil {
				return err
			}
			out := map[string]interface{}{
				"token_id":   c.Uint64("token"),
				"state_hash": record.Commitment.Hex(),
				"state_uri":  record.Locator,
				"timestamp":  record.Timestamp,
			}

			if hex := c.String("hash"); hex != "" {
				expected, err := canonical.ParseCommitment(hex)
				if err != nil {
					return err
				}
				out["matches"] = expected == record.Commitment
			}
			return outputJSON(out)
		},
	}
}

func balanceCmd() *cli.Command {
	return &cli.Command{
		Name:  "balance",
		Usage: "Show the signer's ETH balance",
		Action: func(c *cli.Context) error {
			e, err := newEnv(c.Bool("debug"))
			if err != nil {
				return err
			}
			defer e.Close()

			wei, err := e.chain.BalanceAt(c.Context, e.signer)
			if err != nil {
				return err
			}
			return outputJSON(map[string]interface{}{
				"address":     e.signer.Hex(),
				"balance_wei": wei.String(),
				"balance_eth": weiToEth(wei),
				"low_balance": wei.Cmp(big.NewInt(1_000_000_000_000_000)) < 0, // 0.001 ETH
			})
		},
	}
}

func outputResult(r *pipeline.Result) error {
	return outputJSON(map[string]interface{}{
		"request_id":   r.RequestID,
		"tx_hash":      r.TxHash.Hex(),
		"block_number": r.BlockNumber,
		"gas_used":     r.GasUsed,
		"state_hash":   r.Commitment.Hex(),
		"state_uri":    r.Locator,
		"verified":     r.Verified,
		"explorer_url": "https://sepolia.basescan.org/tx/" + r.TxHash.Hex(),
	})
}

func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readDocument(path string) (canonical.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc canonical.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse state document: %w", err)
	}
	return doc, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func weiToEth(wei *big.Int) string {
	f := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(1e18))
	return f.Text('f', 6)
}
