package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sort"
	"strings"
	"time"

	"NanoTokenGate/internal/nano"
)

// NodeClient talks to a single ledger node over its JSON RPC endpoint. Every
// action is a typed request/response pair.
type NodeClient struct {
	baseURL string
	client  *http.Client
}

func NewNodeClient(baseURL string) *NodeClient {
	return &NodeClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *NodeClient) BaseURL() string {
	return c.baseURL
}

// AccountInfo queries frontier/balance/representative for an account. An
// unopened account is a valid outcome reported with Found=false, not an error.
func (c *NodeClient) AccountInfo(ctx context.Context, account string) (*AccountInfo, error) {
	req := accountInfoRequest{
		Action:         "account_info",
		Account:        account,
		Representative: "true",
	}
	var resp accountInfoResponse
	if err := postJSON(ctx, c.client, c.baseURL, req, &resp); err != nil {
		return nil, err
	}
	if resp.Error == "Account not found" {
		return &AccountInfo{Found: false}, nil
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("account_info: %s", resp.Error)
	}
	if resp.Frontier == "" {
		return nil, fmt.Errorf("account_info: missing frontier in response")
	}
	return &AccountInfo{
		Found:          true,
		Frontier:       resp.Frontier,
		Balance:        resp.Balance,
		Representative: resp.Representative,
	}, nil
}

// Receivable lists confirmed incoming payments above thresholdRaw, capped at
// count, sorted largest first.
func (c *NodeClient) Receivable(ctx context.Context, account string, count int, thresholdRaw string) ([]Receivable, error) {
	req := receivableRequest{
		Action:               "receivable",
		Account:              account,
		Count:                count,
		Source:               "true",
		Sorting:              "true",
		IncludeOnlyConfirmed: "true",
		Threshold:            thresholdRaw,
	}
	var resp receivableResponse
	if err := postJSON(ctx, c.client, c.baseURL, req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("receivable: %s", resp.Error)
	}
	return decodeReceivableBlocks(resp.Blocks)
}

// Process submits a signed block and returns the hash the node assigned.
func (c *NodeClient) Process(ctx context.Context, subtype string, block *nano.Block) (string, error) {
	req := processRequest{
		Action:    "process",
		JSONBlock: "true",
		Subtype:   subtype,
		WatchWork: "false",
		Block:     block,
	}
	var resp processResponse
	if err := postJSON(ctx, c.client, c.baseURL, req, &resp); err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", fmt.Errorf("process %s: %s", subtype, resp.Error)
	}
	if resp.Hash == "" {
		return "", fmt.Errorf("process %s: missing hash in response", subtype)
	}
	return strings.ToUpper(resp.Hash), nil
}

func postJSON(ctx context.Context, client *http.Client, endpoint string, in any, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(resp.Body)
		trimmed := strings.TrimSpace(string(msg))
		if trimmed != "" {
			return fmt.Errorf("rpc http status %d: %s", resp.StatusCode, trimmed)
		}
		return fmt.Errorf("rpc http status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// The node encodes "no receivables" as an empty string instead of an object,
// and JSON objects do not carry the node's largest-first ordering through
// decoding, so entries are re-sorted by raw amount here.
func decodeReceivableBlocks(blocks json.RawMessage) ([]Receivable, error) {
	trimmed := bytes.TrimSpace(blocks)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, nil
	}
	var entries map[string]receivableEntry
	if err := json.Unmarshal(trimmed, &entries); err != nil {
		return nil, fmt.Errorf("receivable: bad blocks payload: %w", err)
	}
	out := make([]Receivable, 0, len(entries))
	for hash, entry := range entries {
		out = append(out, Receivable{
			Hash:      strings.ToUpper(hash),
			AmountRaw: entry.Amount,
			Source:    entry.Source,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return compareRaw(out[i].AmountRaw, out[j].AmountRaw) > 0
	})
	return out, nil
}

func compareRaw(a, b string) int {
	ai, ok1 := new(big.Int).SetString(a, 10)
	bi, ok2 := new(big.Int).SetString(b, 10)
	if !ok1 || !ok2 {
		return 0
	}
	return ai.Cmp(bi)
}

// Request types

type accountInfoRequest struct {
	Action         string `json:"action"`
	Account        string `json:"account"`
	Representative string `json:"representative"`
}

type receivableRequest struct {
	Action               string `json:"action"`
	Account              string `json:"account"`
	Count                int    `json:"count"`
	Source               string `json:"source"`
	Sorting              string `json:"sorting"`
	IncludeOnlyConfirmed string `json:"include_only_confirmed"`
	Threshold            string `json:"threshold"`
}

type processRequest struct {
	Action    string      `json:"action"`
	JSONBlock string      `json:"json_block"`
	Subtype   string      `json:"subtype"`
	WatchWork string      `json:"watch_work"`
	Block     *nano.Block `json:"block"`
}

// Response types

type accountInfoResponse struct {
	Frontier       string `json:"frontier"`
	Balance        string `json:"balance"`
	Representative string `json:"representative"`
	Error          string `json:"error"`
}

type receivableResponse struct {
	Blocks json.RawMessage `json:"blocks"`
	Error  string          `json:"error"`
}

type receivableEntry struct {
	Amount string `json:"amount"`
	Source string `json:"source"`
}

type processResponse struct {
	Hash  string `json:"hash"`
	Error string `json:"error"`
}

// Parsed types

type AccountInfo struct {
	Found          bool
	Frontier       string
	Balance        string
	Representative string
}

// Receivable is one unclaimed incoming payment: Hash is the sending block
// hash (the payment id), AmountRaw the raw-unit amount.
type Receivable struct {
	Hash      string
	AmountRaw string
	Source    string
}
