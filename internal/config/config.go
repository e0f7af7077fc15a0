package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	DB struct {
		DSN string `yaml:"dsn"`
	} `yaml:"db"`
	Node struct {
		RPCEndpoints         []string `yaml:"rpc_endpoints"`
		WSEndpoint           string   `yaml:"ws_endpoint"`
		WorkServer           string   `yaml:"work_server"`
		RPCFailoverThreshold int      `yaml:"rpc_failover_threshold"`
		Representative       string   `yaml:"representative"`
		DifficultyMultiplier float64  `yaml:"difficulty_multiplier"`
		ReceivableThreshold  string   `yaml:"receivable_threshold"`
		ReceivableCount      int      `yaml:"receivable_count"`
	} `yaml:"node"`
	Tokens struct {
		Price                  float64 `yaml:"price"`
		MinAmount              int64   `yaml:"min_amount"`
		MaxAmount              int64   `yaml:"max_amount"`
		PaymentTimeoutSeconds  int64   `yaml:"payment_timeout_seconds"`
		PollIntervalSeconds    int64   `yaml:"poll_interval_seconds"`
		PayoutAccount          string  `yaml:"payout_account"`
		SweeperIntervalSeconds int64   `yaml:"sweeper_interval_seconds"`
	} `yaml:"tokens"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if cfg.Server.Addr == "" {
		return nil, errors.New("server.addr is required")
	}
	if cfg.DB.DSN == "" {
		return nil, errors.New("db.dsn is required")
	}
	if len(cfg.Node.RPCEndpoints) == 0 || cfg.Node.WorkServer == "" {
		return nil, errors.New("node config is incomplete")
	}
	if cfg.Node.Representative == "" {
		return nil, errors.New("node.representative is required")
	}
	if cfg.Tokens.Price <= 0 {
		return nil, errors.New("tokens.price must be positive")
	}
	if cfg.Tokens.MinAmount <= 0 || cfg.Tokens.MaxAmount < cfg.Tokens.MinAmount {
		return nil, errors.New("tokens.min_amount/max_amount are invalid")
	}
	if cfg.Tokens.PayoutAccount == "" {
		return nil, errors.New("tokens.payout_account is required")
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Node.DifficultyMultiplier <= 0 {
		cfg.Node.DifficultyMultiplier = 1.0
	}
	if cfg.Node.ReceivableThreshold == "" {
		// 0.000001 Nano in raw
		cfg.Node.ReceivableThreshold = "1000000000000000000000000"
	}
	if cfg.Node.ReceivableCount <= 0 {
		cfg.Node.ReceivableCount = 10
	}
	if cfg.Tokens.PaymentTimeoutSeconds <= 0 {
		cfg.Tokens.PaymentTimeoutSeconds = 180
	}
	if cfg.Tokens.PollIntervalSeconds <= 0 {
		cfg.Tokens.PollIntervalSeconds = 5
	}
	if cfg.Tokens.SweeperIntervalSeconds <= 0 {
		cfg.Tokens.SweeperIntervalSeconds = 300
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("DB_DSN"); v != "" {
		cfg.DB.DSN = v
	}
	if v := os.Getenv("NODE_RPC_ENDPOINTS"); v != "" {
		cfg.Node.RPCEndpoints = splitCommaList(v)
	}
	if v := os.Getenv("NODE_WS_ENDPOINT"); v != "" {
		cfg.Node.WSEndpoint = v
	}
	if v := os.Getenv("NODE_WORK_SERVER"); v != "" {
		cfg.Node.WorkServer = v
	}
	if v := os.Getenv("NODE_RPC_FAILOVER_THRESHOLD"); v != "" {
		cfg.Node.RPCFailoverThreshold = atoiOr(cfg.Node.RPCFailoverThreshold, v)
	}
	if v := os.Getenv("NODE_REPRESENTATIVE"); v != "" {
		cfg.Node.Representative = v
	}
	if v := os.Getenv("NODE_DIFFICULTY_MULTIPLIER"); v != "" {
		cfg.Node.DifficultyMultiplier = atofOr(cfg.Node.DifficultyMultiplier, v)
	}
	if v := os.Getenv("NODE_RECEIVABLE_THRESHOLD"); v != "" {
		cfg.Node.ReceivableThreshold = v
	}
	if v := os.Getenv("NODE_RECEIVABLE_COUNT"); v != "" {
		cfg.Node.ReceivableCount = atoiOr(cfg.Node.ReceivableCount, v)
	}
	if v := os.Getenv("TOKEN_PRICE"); v != "" {
		cfg.Tokens.Price = atofOr(cfg.Tokens.Price, v)
	}
	if v := os.Getenv("TOKEN_MIN_AMOUNT"); v != "" {
		cfg.Tokens.MinAmount = atoi64Or(cfg.Tokens.MinAmount, v)
	}
	if v := os.Getenv("TOKEN_MAX_AMOUNT"); v != "" {
		cfg.Tokens.MaxAmount = atoi64Or(cfg.Tokens.MaxAmount, v)
	}
	if v := os.Getenv("TOKEN_PAYMENT_TIMEOUT_SECONDS"); v != "" {
		cfg.Tokens.PaymentTimeoutSeconds = atoi64Or(cfg.Tokens.PaymentTimeoutSeconds, v)
	}
	if v := os.Getenv("TOKEN_POLL_INTERVAL_SECONDS"); v != "" {
		cfg.Tokens.PollIntervalSeconds = atoi64Or(cfg.Tokens.PollIntervalSeconds, v)
	}
	if v := os.Getenv("TOKEN_PAYOUT_ACCOUNT"); v != "" {
		cfg.Tokens.PayoutAccount = v
	}
	if v := os.Getenv("SWEEPER_INTERVAL_SECONDS"); v != "" {
		cfg.Tokens.SweeperIntervalSeconds = atoi64Or(cfg.Tokens.SweeperIntervalSeconds, v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

func splitCommaList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func atoiOr(fallback int, v string) int {
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func atoi64Or(fallback int64, v string) int64 {
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}

func atofOr(fallback float64, v string) float64 {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
