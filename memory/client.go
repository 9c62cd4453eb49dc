// Package memory reads agent state from a Letta-compatible memory server
// and turns it into the canonical snapshot document that gets anchored.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cyansociety/anchor-sdk-go/client"
)

// Config configures the memory server client.
type Config struct {
	// BaseURL of the memory server, without the /v1 prefix.
	BaseURL string

	// Token is sent as a bearer credential on every request.
	Token string

	// Timeout for a single API request. Zero means 30 seconds.
	Timeout time.Duration

	// Logger is optional.
	Logger client.Logger
}

// DefaultTimeout for memory server requests.
const DefaultTimeout = 30 * time.Second

// Block is one labeled memory block of an agent.
type Block struct {
	Label       string `json:"label"`
	Value       string `json:"value"`
	Description string `json:"description"`
}

// Agent is the subset of the agent resource the snapshot consumes.
type Agent struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
	Memory    struct {
		Blocks []Block `json:"blocks"`
	} `json:"memory"`
}

// ArchivalEntry is one archival memory passage.
type ArchivalEntry struct {
	ID        string   `json:"id"`
	Text      string   `json:"text"`
	Tags      []string `json:"tags"`
	CreatedAt string   `json:"created_at"`
}

// APIError is a non-2xx response from the memory server.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("memory server returned %d: %s", e.Status, e.Body)
}

// Client talks to the memory server's REST API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  client.Logger
}

// NewClient creates a memory server client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		http:    &http.Client{Timeout: timeout},
		logger:  cfg.Logger,
	}
}

// GetAgent fetches the agent resource, including its memory blocks.
func (c *Client) GetAgent(ctx context.Context, agentID string) (*Agent, error) {
	var agent Agent
	if err := c.get(ctx, "/v1/agents/"+agentID, &agent); err != nil {
		return nil, fmt.Errorf("fetch agent %s: %w", agentID, err)
	}
	return &agent, nil
}

// ArchivalMemory fetches the agent's archival passages.
func (c *Client) ArchivalMemory(ctx context.Context, agentID string) ([]ArchivalEntry, error) {
	var entries []ArchivalEntry
	if err := c.get(ctx, "/v1/agents/"+agentID+"/archival-memory", &entries); err != nil {
		return nil, fmt.Errorf("fetch archival memory for %s: %w", agentID, err)
	}
	return entries, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")

	if c.logger != nil {
		c.logger.Debug("memory server request", "path", path)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
