package chain

import (
	"context"
	"errors"
	"strings"
	"sync"

	"NanoTokenGate/internal/nano"
)

// MultiNodeClient fans RPC calls over several node endpoints, rotating to the
// next endpoint after failThreshold consecutive failures.
type MultiNodeClient struct {
	clients       []*NodeClient
	index         int
	failCount     int
	failThreshold int
	mu            sync.Mutex
}

func NewMultiNodeClient(endpoints []string, failThreshold int) (*MultiNodeClient, error) {
	list := sanitizeEndpoints(endpoints)
	if len(list) == 0 {
		return nil, errors.New("node rpc endpoints is empty")
	}
	if failThreshold <= 0 {
		failThreshold = 3
	}
	clients := make([]*NodeClient, 0, len(list))
	for _, ep := range list {
		clients = append(clients, NewNodeClient(ep))
	}
	return &MultiNodeClient{
		clients:       clients,
		index:         0,
		failCount:     0,
		failThreshold: failThreshold,
	}, nil
}

func (m *MultiNodeClient) BaseURL() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clients[m.index].baseURL
}

func (m *MultiNodeClient) AccountInfo(ctx context.Context, account string) (*AccountInfo, error) {
	var out *AccountInfo
	err := m.do(func(c *NodeClient) error {
		info, err := c.AccountInfo(ctx, account)
		out = info
		return err
	})
	return out, err
}

func (m *MultiNodeClient) Receivable(ctx context.Context, account string, count int, thresholdRaw string) ([]Receivable, error) {
	var out []Receivable
	err := m.do(func(c *NodeClient) error {
		list, err := c.Receivable(ctx, account, count, thresholdRaw)
		out = list
		return err
	})
	return out, err
}

func (m *MultiNodeClient) Process(ctx context.Context, subtype string, block *nano.Block) (string, error) {
	var out string
	err := m.do(func(c *NodeClient) error {
		hash, err := c.Process(ctx, subtype, block)
		out = hash
		return err
	})
	return out, err
}

func (m *MultiNodeClient) do(call func(c *NodeClient) error) error {
	m.mu.Lock()
	start := m.index
	m.mu.Unlock()

	var lastErr error
	for attempts := 0; attempts < len(m.clients); attempts++ {
		client, idx := m.currentClient()
		err := call(client)
		if err == nil {
			m.resetFailures(idx)
			return nil
		}
		lastErr = err
		m.noteFailure(idx)
		if m.shouldRotate() || len(m.clients) > 1 {
			m.rotate()
		}
		if idx == start && attempts > 0 {
			break
		}
	}
	return lastErr
}

func (m *MultiNodeClient) currentClient() (*NodeClient, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clients[m.index], m.index
}

func (m *MultiNodeClient) resetFailures(idx int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.index == idx {
		m.failCount = 0
	}
}

func (m *MultiNodeClient) noteFailure(idx int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.index == idx {
		m.failCount++
	}
}

func (m *MultiNodeClient) shouldRotate() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failCount >= m.failThreshold
}

func (m *MultiNodeClient) rotate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.index = (m.index + 1) % len(m.clients)
	m.failCount = 0
}

func sanitizeEndpoints(endpoints []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(endpoints))
	for _, ep := range endpoints {
		ep = strings.TrimSpace(ep)
		if ep == "" {
			continue
		}
		ep = strings.TrimRight(ep, "/")
		if _, ok := seen[ep]; ok {
			continue
		}
		seen[ep] = struct{}{}
		out = append(out, ep)
	}
	return out
}
