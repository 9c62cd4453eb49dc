package memory

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/cyansociety/anchor-sdk-go/canonical"
)

// SnapshotVersion identifies the snapshot document schema.
const SnapshotVersion = "1.0.0"

// SnapshotOptions tunes snapshot assembly.
type SnapshotOptions struct {
	// IncludeArchival adds the agent's archival passages to the document.
	// Archival content changes the commitment, so two snapshots of the
	// same agent differ when this flag differs.
	IncludeArchival bool

	// Now overrides the export timestamp source. Nil uses time.Now.
	Now func() time.Time
}

// Snapshot exports the agent's memory and assembles the canonical state
// document.
//
// The document layout is fixed: changing a key name or nesting level
// changes every commitment ever produced, so additions must be purely
// appending and versioned through SnapshotVersion.
func (c *Client) Snapshot(ctx context.Context, agentID string, opts SnapshotOptions) (canonical.Document, error) {
	agent, err := c.GetAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}

	blocks := map[string]interface{}{}
	for _, b := range agent.Memory.Blocks {
		label := b.Label
		if label == "" {
			label = "unknown"
		}
		// Counted in code points, not bytes, so non-ASCII block values
		// produce the same document as the system that first anchored them.
		blocks[label] = map[string]interface{}{
			"value":       b.Value,
			"description": b.Description,
			"char_count":  utf8.RuneCountInString(b.Value),
		}
	}

	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	doc := canonical.Document{
		"schema_version":   SnapshotVersion,
		"export_timestamp": now().UTC().Format(time.RFC3339Nano),
		"agent": map[string]interface{}{
			"id":         agent.ID,
			"name":       agent.Name,
			"created_at": agent.CreatedAt,
		},
		"memory_blocks": blocks,
	}

	if opts.IncludeArchival {
		entries, err := c.ArchivalMemory(ctx, agentID)
		if err != nil {
			return nil, err
		}
		list := make([]interface{}, 0, len(entries))
		for _, e := range entries {
			tags := e.Tags
			if tags == nil {
				tags = []string{}
			}
			list = append(list, map[string]interface{}{
				"id":         e.ID,
				"text":       e.Text,
				"tags":       tags,
				"created_at": e.CreatedAt,
			})
		}
		doc["archival_memory"] = map[string]interface{}{
			"count":   len(list),
			"entries": list,
		}
	}

	return doc, nil
}
