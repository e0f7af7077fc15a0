package chain

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// WorkClient requests proof-of-work from the configured work server, which
// may be a different host than the ledger node.
type WorkClient struct {
	baseURL string
	client  *http.Client
}

func NewWorkClient(baseURL string) *WorkClient {
	return &WorkClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Generate computes work for the given input hash at the configured
// difficulty multiplier.
func (c *WorkClient) Generate(ctx context.Context, hash string, multiplier float64) (string, error) {
	req := workGenerateRequest{
		Action:     "work_generate",
		Hash:       hash,
		Multiplier: multiplier,
		UsePeers:   "true",
	}
	var resp workGenerateResponse
	if err := postJSON(ctx, c.client, c.baseURL, req, &resp); err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", fmt.Errorf("work_generate: %s", resp.Error)
	}
	if resp.Work == "" {
		return "", fmt.Errorf("work_generate: missing work in response")
	}
	return resp.Work, nil
}

type workGenerateRequest struct {
	Action     string  `json:"action"`
	Hash       string  `json:"hash"`
	Multiplier float64 `json:"multiplier"`
	UsePeers   string  `json:"use_peers"`
}

type workGenerateResponse struct {
	Work  string `json:"work"`
	Error string `json:"error"`
}
