package anchor

import (
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/cyansociety/anchor-sdk-go/canonical"
)

// LocatorTemplate expands into the opaque locator string recorded next to a
// commitment on chain. Placeholders:
//
//	{agent}  agent id
//	{hash16} first 16 hex chars of the commitment (no 0x prefix)
//	{hash}   full 0x-prefixed commitment
//	{type}   action subtype
//	{ts}     unix timestamp
//
// The locator is the only discriminator between anchor kinds on chain: state
// anchors and action anchors go through the same generic commit-32-bytes
// entry point, so consumers must rely on this convention to tell them apart.
type LocatorTemplate string

// Default templates, matching the convention the anchored records already
// on chain were written with.
const (
	DefaultStateLocator  LocatorTemplate = "letta://{agent}/state/{hash16}"
	DefaultActionLocator LocatorTemplate = "letta://agent/{agent}/action/{type}/{ts}"
)

// ExpandState expands the template for a state anchor.
func (t LocatorTemplate) ExpandState(agentID string, c canonical.Commitment) string {
	return t.expand(map[string]string{
		"agent":  agentID,
		"hash16": hex.EncodeToString(c[:])[:16],
		"hash":   c.Hex(),
	})
}

// ExpandAction expands the template for an action anchor.
func (t LocatorTemplate) ExpandAction(agentID, subtype string, ts time.Time) string {
	return t.expand(map[string]string{
		"agent": agentID,
		"type":  subtype,
		"ts":    strconv.FormatInt(ts.Unix(), 10),
	})
}

func (t LocatorTemplate) expand(vars map[string]string) string {
	out := string(t)
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return out
}
