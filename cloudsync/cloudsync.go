// Package cloudsync reports hash-only scan summaries to an optional central
// collector. The payload privacy rule is absolute: no plaintext, no preview,
// no username ever leaves the host, and the metadata context line (which can
// embed the matched secret) is stripped before transmission. Sync failures
// are logged and never roll back local persistence.
package cloudsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/keyvet-hq/keyvet/core/findings"
)

// requestTimeout bounds every call to the collector.
const requestTimeout = 5 * time.Second

// Client talks to the remote collector.
type Client struct {
	baseURL string
	agentID string
	http    *http.Client
}

// HeartbeatPayload registers or refreshes this agent with the collector.
type HeartbeatPayload struct {
	AgentID  string `json:"agent_id"`
	Hostname string `json:"hostname"`
	OS       string `json:"os"`
}

// FindingPayload is the hash-only projection of one finding. It must never
// grow a preview, username, or plaintext field.
type FindingPayload struct {
	AgentID    string              `json:"agent_id"`
	SecretHash string              `json:"secret_hash"`
	RiskScore  int                 `json:"risk_score"`
	SourceType findings.SourceType `json:"source_type"`
	Metadata   map[string]any      `json:"metadata"`
}

// New creates a Client for the given collector base URL. The agent ID
// defaults to the hostname.
func New(baseURL string) *Client {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown-host"
	}
	return &Client{
		baseURL: baseURL,
		agentID: hostname,
		http:    &http.Client{Timeout: requestTimeout},
	}
}

// Heartbeat posts the agent registration.
func (c *Client) Heartbeat(ctx context.Context) error {
	hostname, _ := os.Hostname()
	return c.post(ctx, "/api/v1/agents/heartbeat", HeartbeatPayload{
		AgentID:  c.agentID,
		Hostname: hostname,
		OS:       runtime.GOOS,
	})
}

// SyncFindings posts the hash-only projection of the scan's findings.
func (c *Client) SyncFindings(ctx context.Context, ff []findings.Finding) error {
	payload := make([]FindingPayload, 0, len(ff))
	for i := range ff {
		payload = append(payload, FindingPayload{
			AgentID:    c.agentID,
			SecretHash: ff[i].SecretHash,
			RiskScore:  ff[i].RiskScore,
			SourceType: ff[i].Source,
			Metadata:   scrubMetadata(ff[i].Metadata),
		})
	}
	return c.post(ctx, "/api/v1/findings/sync", payload)
}

// scrubMetadata copies the metadata map without the context key: the matched
// line's context can itself embed the secret, so it must not cross the wire.
func scrubMetadata(meta map[string]any) map[string]any {
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		if k == "context" {
			continue
		}
		out[k] = v
	}
	return out
}

func (c *Client) post(ctx context.Context, path string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding %s payload: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("building %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("posting %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("posting %s: collector returned %s", path, resp.Status)
	}
	return nil
}
