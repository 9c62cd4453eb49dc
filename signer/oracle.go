// Package signer manages time-boxed authorization sessions with a remote
// signing oracle and obtains transaction signatures from it.
//
// The oracle is a host-controlled capability: the SDK never sees key
// material, only `execute a signing program for this digest and key id`.
// Any MPC/HSM/threshold service can sit behind the Oracle interface.
package signer

import (
	"context"
	"time"
)

// Ability is one capability requested during authorization.
type Ability struct {
	Resource string `json:"resource"`
	Prefix   string `json:"resourcePrefix"`
	Ability  string `json:"ability"`
}

// Abilities the anchor pipeline needs: signing with the delegated key and
// executing the signing program, scoped to the chain namespace.
var defaultAbilities = []Ability{
	{Resource: "*", Prefix: "oracle-key", Ability: "key-signing"},
	{Resource: "*", Prefix: "oracle-program", Ability: "program-execution"},
}

// AuthorizeRequest asks the oracle for a time-boxed capability grant.
type AuthorizeRequest struct {
	Chain      string    `json:"chain"`
	Expiration time.Time `json:"expiration"`
	Abilities  []Ability `json:"abilities"`
}

// Grant is an opaque session token issued by the oracle. The SDK holds it
// only to pass back on execute calls.
type Grant struct {
	Token      string    `json:"token"`
	Expiration time.Time `json:"expiration"`
}

// ExecuteRequest runs a signing program inside the oracle's runtime.
type ExecuteRequest struct {
	Code    string                 `json:"code"`
	Params  map[string]interface{} `json:"params"`
	Session string                 `json:"session"`
}

// OracleSignature is a signature component set as the oracle returns it.
type OracleSignature struct {
	R     string `json:"r"`
	S     string `json:"s"`
	RecID int    `json:"recid"`
}

// ExecuteResult is the oracle's response to an execute call.
type ExecuteResult struct {
	Signatures map[string]OracleSignature `json:"signatures,omitempty"`
	Error      string                     `json:"error,omitempty"`
}

// Oracle is the transport to the remote signing service.
//
// Execute is at-most-once per attempt: implementations must not retry
// internally, the session layer owns retry policy.
type Oracle interface {
	// Connect performs the transport handshake for a network namespace.
	Connect(ctx context.Context, network string) error

	// Authorize obtains a time-boxed capability grant.
	Authorize(ctx context.Context, req AuthorizeRequest) (*Grant, error)

	// Execute runs a signing program under a grant.
	Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResult, error)

	// Close releases the connection. Safe to call in any state.
	Close() error
}

// signingProgram is the program executed inside the oracle runtime. It signs
// the provided digest with the delegated key and publishes the signature
// under sigName.
const signingProgram = `
(async () => {
  try {
    const sig = await Oracle.signEcdsa({
      toSign: toSign,
      publicKey: publicKey,
      sigName: sigName
    });
    Oracle.setResponse({ response: JSON.stringify({ success: true }) });
  } catch (err) {
    Oracle.setResponse({ response: JSON.stringify({ success: false, error: err.message }) });
  }
})();
`
