// Package anchor composes the two on-chain anchor payload shapes: state
// anchors (memory snapshot commitments) and action anchors (authorship
// commitments over work products).
//
// Composition is pure: nothing here talks to the chain. Callers decide
// whether to look up the creator's anchored state beforehand and pass it in.
package anchor

import (
	"time"

	"github.com/cyansociety/anchor-sdk-go/canonical"
)

// StateAnchor binds an agent's memory snapshot commitment to a token and an
// out-of-band locator for the full content.
type StateAnchor struct {
	TokenID    uint64
	Commitment canonical.Commitment
	Locator    string
}

// ActionAnchor binds a work product to its creator, the creator's cognitive
// state at creation time, and a timestamp. The combined commitment over the
// anchor's own canonical document is what goes on chain.
type ActionAnchor struct {
	// Subtype of the action ("authorship", "decision", "action").
	Subtype string

	ContentCommitment canonical.Commitment
	ContentType       string
	Description       string
	SizeBytes         int

	TokenID     uint64
	CreatorID   string
	CreatorName string

	// CreatorStateCommitment is canonical.Zero when the creator never
	// anchored state. Authorship anchors must succeed regardless.
	CreatorStateCommitment canonical.Commitment

	Collaborators []string
	Timestamp     time.Time

	Locator string
}

// Document returns the anchor's canonical document. Key names and shapes
// match the format the anchored records were originally emitted in, so
// commitments stay comparable across implementations.
func (a *ActionAnchor) Document() canonical.Document {
	collaborators := make([]interface{}, len(a.Collaborators))
	for i, c := range a.Collaborators {
		collaborators[i] = c
	}

	ts := a.Timestamp.Unix()
	return canonical.Document{
		"anchor_type":    "action",
		"action_subtype": a.Subtype,
		"work_product": canonical.Document{
			"hash":         a.ContentCommitment.Hex(),
			"content_type": a.ContentType,
			"description":  a.Description,
			"size_bytes":   a.SizeBytes,
		},
		"creator": canonical.Document{
			"token_id":               a.TokenID,
			"agent_id":               a.CreatorID,
			"name":                   a.CreatorName,
			"state_hash_at_creation": a.CreatorStateCommitment.Hex(),
		},
		"collaborators": collaborators,
		"timestamp":     ts,
		"timestamp_iso": time.Unix(ts, 0).UTC().Format("2006-01-02T15:04:05") + "Z",
	}
}

// CombinedCommitment hashes the anchor's canonical document. It always
// incorporates the content commitment, the creator state commitment and the
// timestamp; changing any of the three changes the result.
func (a *ActionAnchor) CombinedCommitment() (canonical.Commitment, error) {
	return canonical.Hash(a.Document())
}
