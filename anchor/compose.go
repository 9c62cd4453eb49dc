package anchor

import (
	"fmt"
	"time"

	"github.com/cyansociety/anchor-sdk-go/canonical"
)

// ComposeState builds a state anchor for an agent's memory snapshot.
//
// The document is hashed canonically, then the locator template is expanded
// with the agent id and the commitment. Fails only if the document contains
// unsupported value types.
func ComposeState(tokenID uint64, agentID string, doc canonical.Document, tmpl LocatorTemplate) (*StateAnchor, error) {
	commitment, err := canonical.Hash(doc)
	if err != nil {
		return nil, fmt.Errorf("hash state document: %w", err)
	}

	return &StateAnchor{
		TokenID:    tokenID,
		Commitment: commitment,
		Locator:    tmpl.ExpandState(agentID, commitment),
	}, nil
}

// ComposeActionRequest carries the inputs for an action anchor.
type ComposeActionRequest struct {
	TokenID     uint64
	Content     string
	ContentType string
	Description string
	Subtype     string

	CreatorID   string
	CreatorName string

	// CreatorStateCommitment may be canonical.Zero when the creator has no
	// anchored state. That is the documented sentinel, not a failure.
	CreatorStateCommitment canonical.Commitment

	Collaborators []string
	Timestamp     time.Time
}

// ComposeAction builds an action anchor over opaque content.
//
// The content is hashed as raw bytes (it is not a structured document), and
// the resulting anchor document carries that content commitment alongside
// creator identity, creator state and timestamp.
func ComposeAction(req ComposeActionRequest, tmpl LocatorTemplate) (*ActionAnchor, error) {
	if req.Content == "" {
		return nil, fmt.Errorf("action anchor requires content")
	}
	if req.Subtype == "" {
		req.Subtype = "action"
	}
	ts := req.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	ts = ts.Truncate(time.Second)

	a := &ActionAnchor{
		Subtype:                req.Subtype,
		ContentCommitment:      canonical.HashText(req.Content),
		ContentType:            req.ContentType,
		Description:            req.Description,
		SizeBytes:              len(req.Content),
		TokenID:                req.TokenID,
		CreatorID:              req.CreatorID,
		CreatorName:            req.CreatorName,
		CreatorStateCommitment: req.CreatorStateCommitment,
		Collaborators:          req.Collaborators,
		Timestamp:              ts,
	}
	a.Locator = tmpl.ExpandAction(req.CreatorID, req.Subtype, ts)
	return a, nil
}
