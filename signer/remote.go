package signer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cyansociety/anchor-sdk-go/client"
)

// RemoteConfig configures the websocket oracle transport.
type RemoteConfig struct {
	// Endpoint of the oracle gateway (ws://, wss://, or http(s):// which is
	// rewritten).
	Endpoint string

	// AuthToken authenticates the controlling identity with the gateway.
	AuthToken string

	// HandshakeTimeout bounds the websocket dial. Zero means 10s.
	HandshakeTimeout time.Duration

	// CallTimeout bounds a single request/response exchange. Zero means 60s;
	// threshold signing rounds can take seconds.
	CallTimeout time.Duration

	// Logger is optional.
	Logger client.Logger
}

// remoteOracle speaks a JSON-RPC dialog with the oracle gateway over one
// websocket connection.
type remoteOracle struct {
	cfg RemoteConfig

	mu     sync.Mutex
	conn   *websocket.Conn
	closed atomic.Bool
	nextID uint64

	muReq    sync.Mutex
	requests map[uint64]chan *rpcEnvelope
}

type rpcEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method,omitempty"`
	Params  interface{}     `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcFault       `json:"error,omitempty"`
	ID      uint64          `json:"id"`
}

type rpcFault struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewRemoteOracle creates the websocket transport. No connection is made
// until Connect.
func NewRemoteOracle(cfg RemoteConfig) Oracle {
	return &remoteOracle{
		cfg:      cfg,
		requests: make(map[uint64]chan *rpcEnvelope),
	}
}

// Connect dials the gateway and performs the handshake for the network
// namespace.
func (o *remoteOracle) Connect(ctx context.Context, network string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.conn != nil {
		return nil
	}

	endpoint := wsEndpoint(o.cfg.Endpoint)
	timeout := o.cfg.HandshakeTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	dialer := websocket.Dialer{HandshakeTimeout: timeout}

	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial oracle gateway: %w", err)
	}
	o.conn = conn
	o.closed.Store(false)
	go o.readLoop(conn)

	_, err = o.call(ctx, "oracle_connect", map[string]interface{}{
		"network":   network,
		"authToken": o.cfg.AuthToken,
	})
	if err != nil {
		o.teardownLocked()
		return fmt.Errorf("oracle handshake: %w", err)
	}

	if o.cfg.Logger != nil {
		o.cfg.Logger.Debug("oracle connected", "network", network)
	}
	return nil
}

// Authorize requests a capability grant.
func (o *remoteOracle) Authorize(ctx context.Context, req AuthorizeRequest) (*Grant, error) {
	result, err := o.call(ctx, "oracle_authorize", map[string]interface{}{
		"chain":      req.Chain,
		"expiration": req.Expiration.UTC().Format("2006-01-02T15:04:05Z"),
		"abilities":  req.Abilities,
	})
	if err != nil {
		return nil, err
	}

	var grant Grant
	if err := json.Unmarshal(result, &grant); err != nil {
		return nil, fmt.Errorf("decode grant: %w", err)
	}
	if grant.Token == "" {
		return nil, fmt.Errorf("oracle returned empty grant")
	}
	return &grant, nil
}

// Execute runs a signing program. At-most-once: a transport failure here is
// returned without retry, the session layer decides what to do.
func (o *remoteOracle) Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResult, error) {
	result, err := o.call(ctx, "oracle_execute", req)
	if err != nil {
		return nil, err
	}

	var out ExecuteResult
	if err := json.Unmarshal(result, &out); err != nil {
		return nil, fmt.Errorf("decode execute result: %w", err)
	}
	return &out, nil
}

// Close shuts the connection down and fails all in-flight requests.
func (o *remoteOracle) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.teardownLocked()
	return nil
}

func (o *remoteOracle) teardownLocked() {
	if o.conn == nil {
		return
	}
	o.closed.Store(true)
	deadline := time.Now().Add(time.Second)
	_ = o.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	_ = o.conn.Close()
	o.conn = nil
}

// call performs one request/response exchange.
func (o *remoteOracle) call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	o.muReq.Lock()
	if o.conn == nil {
		o.muReq.Unlock()
		return nil, fmt.Errorf("oracle not connected")
	}
	o.nextID++
	id := o.nextID
	ch := make(chan *rpcEnvelope, 1)
	o.requests[id] = ch

	err := o.conn.WriteJSON(&rpcEnvelope{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      id,
	})
	o.muReq.Unlock()
	if err != nil {
		o.dropRequest(id)
		return nil, fmt.Errorf("write %s: %w", method, err)
	}

	timeout := o.cfg.CallTimeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		o.dropRequest(id)
		return nil, ctx.Err()
	case <-timer.C:
		o.dropRequest(id)
		return nil, fmt.Errorf("%s timed out after %s", method, timeout)
	case resp, ok := <-ch:
		if !ok || resp == nil {
			return nil, fmt.Errorf("oracle connection closed during %s", method)
		}
		if resp.Error != nil {
			return nil, fmt.Errorf("oracle error %d: %s", resp.Error.Code, resp.Error.Message)
		}
		return resp.Result, nil
	}
}

func (o *remoteOracle) dropRequest(id uint64) {
	o.muReq.Lock()
	delete(o.requests, id)
	o.muReq.Unlock()
}

func (o *remoteOracle) readLoop(conn *websocket.Conn) {
	defer func() {
		o.muReq.Lock()
		for id, ch := range o.requests {
			close(ch)
			delete(o.requests, id)
		}
		o.muReq.Unlock()
	}()

	for {
		if o.closed.Load() {
			return
		}

		var resp rpcEnvelope
		if err := conn.ReadJSON(&resp); err != nil {
			return
		}

		o.muReq.Lock()
		ch, exists := o.requests[resp.ID]
		if exists {
			delete(o.requests, resp.ID)
		}
		o.muReq.Unlock()

		if exists {
			ch <- &resp
		}
	}
}

// wsEndpoint rewrites http(s) schemes to ws(s) and defaults to ws.
func wsEndpoint(endpoint string) string {
	switch {
	case strings.HasPrefix(endpoint, "http://"):
		return "ws://" + endpoint[len("http://"):]
	case strings.HasPrefix(endpoint, "https://"):
		return "wss://" + endpoint[len("https://"):]
	case strings.HasPrefix(endpoint, "ws://"), strings.HasPrefix(endpoint, "wss://"):
		return endpoint
	default:
		return "ws://" + endpoint
	}
}
