// Package pathstore is a client for the pathstore KV HTTP API, used as a
// shared store for document templates.
package pathstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dgallion1/docforge/internal/doctree"
)

// TemplatePrefix is the key prefix templates are stored under.
const TemplatePrefix = "docforge/templates/"

// Client communicates with the pathstore HTTP API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NodeRequest is the body for PUT /kv/{key}.
type NodeRequest struct {
	Value      any    `json:"value"`
	MergeMode  string `json:"merge_mode,omitempty"`
	MemoryType string `json:"memory_type,omitempty"`
	Source     string `json:"source,omitempty"`
}

// Node is a stored value as returned by GET /kv/{key} and prefix scans.
type Node struct {
	Key   string          `json:"key_path"`
	Value json.RawMessage `json:"value"`
}

func (c *Client) do(ctx context.Context, method, u string, body any, ok ...int) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	for _, code := range ok {
		if resp.StatusCode == code {
			return resp, nil
		}
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))
}

func (c *Client) keyURL(key string) string {
	return c.baseURL + "/kv/" + key
}

// PutNode stores or replaces the value at key.
func (c *Client) PutNode(ctx context.Context, key string, req NodeRequest) error {
	resp, err := c.do(ctx, http.MethodPut, c.keyURL(key), req, http.StatusOK, http.StatusCreated)
	if err != nil {
		return fmt.Errorf("put node %s: %w", key, err)
	}
	resp.Body.Close()
	return nil
}

// GetNode retrieves a node by key. A missing key returns nil, nil.
func (c *Client) GetNode(ctx context.Context, key string) (*Node, error) {
	resp, err := c.do(ctx, http.MethodGet, c.keyURL(key), nil, http.StatusOK, http.StatusNotFound)
	if err != nil {
		return nil, fmt.Errorf("get node %s: %w", key, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	var node Node
	if err := json.NewDecoder(resp.Body).Decode(&node); err != nil {
		return nil, fmt.Errorf("decode node: %w", err)
	}
	return &node, nil
}

// DeleteNode deletes a node.
func (c *Client) DeleteNode(ctx context.Context, key string) error {
	resp, err := c.do(ctx, http.MethodDelete, c.keyURL(key), nil, http.StatusOK, http.StatusNoContent, http.StatusNotFound)
	if err != nil {
		return fmt.Errorf("delete node %s: %w", key, err)
	}
	resp.Body.Close()
	return nil
}

// ListChildren does a prefix scan under key.
func (c *Client) ListChildren(ctx context.Context, key string, limit int) ([]Node, error) {
	u := c.keyURL(strings.TrimSuffix(key, "/")) + "/*"
	if limit > 0 {
		u += "?limit=" + url.QueryEscape(fmt.Sprint(limit))
	}
	resp, err := c.do(ctx, http.MethodGet, u, nil, http.StatusOK)
	if err != nil {
		return nil, fmt.Errorf("list children %s: %w", key, err)
	}
	defer resp.Body.Close()

	var result struct {
		Nodes []Node `json:"nodes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode children: %w", err)
	}
	return result.Nodes, nil
}

// GetTemplate fetches a template by ID. A missing template returns
// doctree.ErrTemplateNotFound.
func (c *Client) GetTemplate(ctx context.Context, id string) (*doctree.Template, error) {
	node, err := c.GetNode(ctx, TemplatePrefix+id)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, fmt.Errorf("%w: %s", doctree.ErrTemplateNotFound, id)
	}
	return decodeTemplate(node)
}

// PutTemplate stores t under its ID, replacing any earlier version.
func (c *Client) PutTemplate(ctx context.Context, t *doctree.Template) error {
	if !doctree.ValidID(t.ID) {
		return fmt.Errorf("invalid template id %q", t.ID)
	}
	return c.PutNode(ctx, TemplatePrefix+t.ID, NodeRequest{
		Value:     t,
		MergeMode: "replace",
		Source:    "docforge",
	})
}

// DeleteTemplate removes a template. Deleting a missing one is not an
// error.
func (c *Client) DeleteTemplate(ctx context.Context, id string) error {
	return c.DeleteNode(ctx, TemplatePrefix+id)
}

// ListTemplates returns every stored template. Entries that fail to
// decode are skipped.
func (c *Client) ListTemplates(ctx context.Context) ([]*doctree.Template, error) {
	nodes, err := c.ListChildren(ctx, TemplatePrefix, 0)
	if err != nil {
		return nil, err
	}
	out := make([]*doctree.Template, 0, len(nodes))
	for i := range nodes {
		t, err := decodeTemplate(&nodes[i])
		if err != nil {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func decodeTemplate(n *Node) (*doctree.Template, error) {
	var t doctree.Template
	if err := json.Unmarshal(n.Value, &t); err != nil {
		return nil, fmt.Errorf("decode template %s: %w", n.Key, err)
	}
	if t.ID == "" {
		t.ID = strings.TrimPrefix(n.Key, TemplatePrefix)
	}
	return &t, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

var _ doctree.RemoteSource = (*Client)(nil)
