// Package client provides the attestd Go SDK for submitting, listing, and
// revoking attestations, and for verifying inclusion proofs against a
// committed root without contacting the server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/merklebase/attestd/pkg/merkle"
)

// Attestation is the record shape returned by the attestd API.
type Attestation struct {
	ID           string     `json:"id"`
	BusinessID   string     `json:"business_id"`
	Period       string     `json:"period"`
	MerkleRoot   string     `json:"merkle_root"`
	LeafCount    int        `json:"leaf_count"`
	Timestamp    time.Time  `json:"timestamp"`
	Version      string     `json:"version"`
	TxHash       string     `json:"tx_hash"`
	Status       string     `json:"status"`
	RevokeReason string     `json:"revoke_reason,omitempty"`
	RevokedAt    *time.Time `json:"revoked_at,omitempty"`
	AttestedAt   time.Time  `json:"attested_at"`
}

// SubmitRequest is the payload for Submit.
type SubmitRequest struct {
	Period     string     `json:"period"`
	MerkleRoot string     `json:"merkle_root,omitempty"`
	Leaves     []string   `json:"leaves,omitempty"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
	Version    string     `json:"version,omitempty"`
}

// ListOptions narrows and paginates a List call. Zero values use the server
// defaults.
type ListOptions struct {
	Period string
	Status string
	Page   int
	Limit  int
}

// ListResult is one page of attestations.
type ListResult struct {
	Items      []Attestation `json:"items"`
	Page       int           `json:"page"`
	Limit      int           `json:"limit"`
	Total      int           `json:"total"`
	TotalPages int           `json:"total_pages"`
}

// Client is the attestd SDK entry point.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	bearerToken string
}

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBearerToken attaches a business token to every request.
func WithBearerToken(token string) Option {
	return func(c *Client) { c.bearerToken = token }
}

// New creates a Client connected to baseURL.
//
//	c := client.New("https://attestd.example.com",
//	    client.WithBearerToken(token),
//	)
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Submit posts a new attestation. idempotencyKey may be empty; when set,
// retries with the same key return the original record.
func (c *Client) Submit(ctx context.Context, req SubmitRequest, idempotencyKey string) (*Attestation, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/attestations", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if idempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", idempotencyKey)
	}

	body, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Attestation Attestation `json:"attestation"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &resp.Attestation, nil
}

// List returns one page of the caller's attestations.
func (c *Client) List(ctx context.Context, opts ListOptions) (*ListResult, error) {
	q := url.Values{}
	if opts.Period != "" {
		q.Set("period", opts.Period)
	}
	if opts.Status != "" {
		q.Set("status", opts.Status)
	}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}

	endpoint := c.baseURL + "/api/v1/attestations"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var result ListResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}

// Get fetches a single attestation by ID.
func (c *Client) Get(ctx context.Context, id string) (*Attestation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/attestations/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Attestation Attestation `json:"attestation"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &resp.Attestation, nil
}

// Revoke marks an attestation revoked. reason may be empty.
func (c *Client) Revoke(ctx context.Context, id, reason string) (*Attestation, error) {
	payload, _ := json.Marshal(map[string]string{"reason": reason})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/attestations/"+id+"/revoke", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Attestation Attestation `json:"attestation"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &resp.Attestation, nil
}

// VerifyRemote asks the server to verify an inclusion proof. The endpoint is
// public; no token is required.
func (c *Client) VerifyRemote(ctx context.Context, leaf string, proof merkle.Proof, root string, index int) (bool, error) {
	payload, err := json.Marshal(map[string]any{
		"leaf":  leaf,
		"proof": proof,
		"root":  root,
		"index": index,
	})
	if err != nil {
		return false, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/verify", bytes.NewReader(payload))
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req)
	if err != nil {
		return false, err
	}

	var resp struct {
		Valid bool `json:"valid"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	return resp.Valid, nil
}

// Verify checks an inclusion proof locally. No network call is made; the
// check is the same one the server performs.
func Verify(leaf string, proof merkle.Proof, root string, index int) bool {
	return merkle.Verify([]byte(leaf), proof, root, index)
}

// do executes an HTTP request, attaching the bearer token if present.
func (c *Client) do(req *http.Request) ([]byte, error) {
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("not found: %s", req.URL.Path)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("unauthorized: %s", string(body))
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("server error %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
