package indexer

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/rawblock/sanctions-screener/pkg/models"
)

// Blockchain Indexer Client
//
// Shields the screening core from the external indexer's wire format
// (esplora-compatible REST: /tx/:txid, /address/:addr, /address/:addr/txs)
// and normalizes everything into pkg/models shapes.
//
// A sliding fixed 60-second window caps outgoing requests. When the cap
// is reached the call fails with EXTERNAL_API carrying the observed
// count and the cap; callers are expected to degrade gracefully (the
// walker skips, the address screener drops the path analysis).

const (
	serviceLabel = "blockchain-indexer"

	// DefaultRateLimit is the per-minute request cap
	DefaultRateLimit = 60
	// DefaultAddressTxLimit clamps address-history pages
	DefaultAddressTxLimit = 25
)

// Config holds the client settings
type Config struct {
	BaseURL   string
	RateLimit int           // requests per 60s window, 0 = DefaultRateLimit
	Timeout   time.Duration // per-request, 0 = 15s
}

// Client talks to the external indexer over HTTP
type Client struct {
	baseURL string
	http    *http.Client
	limit   int

	mu          sync.Mutex
	windowStart time.Time
	count       int
}

// AddressInfo is the balance/tx-count summary used by health checks
type AddressInfo struct {
	Address     string `json:"address"`
	BalanceSats int64  `json:"balanceSats"`
	TxCount     int    `json:"txCount"`
	FundedSats  int64  `json:"fundedSats"`
	SpentSats   int64  `json:"spentSats"`
}

// RateLimitStatus reports the observed window counter
type RateLimitStatus struct {
	Requests   int   `json:"requests"`
	Limit      int   `json:"limit"`
	ResetEpoch int64 `json:"resetEpoch"` // unix seconds when the window rolls
}

// NewClient creates an indexer client
func NewClient(cfg Config) *Client {
	limit := cfg.RateLimit
	if limit <= 0 {
		limit = DefaultRateLimit
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: timeout},
		limit:   limit,
	}
}

// ── esplora wire shapes ─────────────────────────────────────────────

type esploraStatus struct {
	Confirmed   bool  `json:"confirmed"`
	BlockHeight int   `json:"block_height"`
	BlockTime   int64 `json:"block_time"`
}

type esploraVout struct {
	ScriptPubKey string `json:"scriptpubkey"`
	Address      string `json:"scriptpubkey_address"`
	Value        int64  `json:"value"`
}

type esploraVin struct {
	Txid       string       `json:"txid"`
	Vout       uint32       `json:"vout"`
	Prevout    *esploraVout `json:"prevout"`
	IsCoinbase bool         `json:"is_coinbase"`
}

type esploraTx struct {
	Txid   string        `json:"txid"`
	Size   int           `json:"size"`
	Weight int           `json:"weight"`
	Fee    int64         `json:"fee"`
	Vin    []esploraVin  `json:"vin"`
	Vout   []esploraVout `json:"vout"`
	Status esploraStatus `json:"status"`
}

type esploraAddress struct {
	Address    string `json:"address"`
	ChainStats struct {
		FundedSum int64 `json:"funded_txo_sum"`
		SpentSum  int64 `json:"spent_txo_sum"`
		TxCount   int   `json:"tx_count"`
	} `json:"chain_stats"`
}

// ── public operations ───────────────────────────────────────────────

// GetTransaction fetches and normalizes one transaction. Inputs with a
// missing prevout (coinbase, pruned) normalize to addresses=[], value=0.
func (c *Client) GetTransaction(ctx context.Context, txid string) (*models.Transaction, error) {
	hash, err := chainhash.NewHashFromStr(txid)
	if err != nil {
		return nil, models.WrapError(models.ErrValidation, err, "invalid transaction hash %q", txid)
	}
	canonical := hash.String()

	var wire esploraTx
	if err := c.getJSON(ctx, "/tx/"+canonical, canonical, &wire); err != nil {
		return nil, err
	}
	return normalizeTx(&wire), nil
}

// GetAddressTransactions returns up to limit recent txids for the
// address, most recent first. The limit is clamped to 25.
func (c *Client) GetAddressTransactions(ctx context.Context, addr string, limit int) ([]string, error) {
	if limit <= 0 || limit > DefaultAddressTxLimit {
		limit = DefaultAddressTxLimit
	}

	var wire []esploraTx
	if err := c.getJSON(ctx, "/address/"+addr+"/txs", addr, &wire); err != nil {
		return nil, err
	}

	txids := make([]string, 0, limit)
	for _, tx := range wire {
		if len(txids) >= limit {
			break
		}
		txids = append(txids, tx.Txid)
	}
	return txids, nil
}

// GetAddressInfo returns the balance/tx-count summary for an address
func (c *Client) GetAddressInfo(ctx context.Context, addr string) (*AddressInfo, error) {
	var wire esploraAddress
	if err := c.getJSON(ctx, "/address/"+addr, addr, &wire); err != nil {
		return nil, err
	}
	return &AddressInfo{
		Address:     wire.Address,
		BalanceSats: wire.ChainStats.FundedSum - wire.ChainStats.SpentSum,
		TxCount:     wire.ChainStats.TxCount,
		FundedSats:  wire.ChainStats.FundedSum,
		SpentSats:   wire.ChainStats.SpentSum,
	}, nil
}

// RateLimitStatus returns the current window counter
func (c *Client) RateLimitStatus() RateLimitStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	reset := c.windowStart.Add(time.Minute)
	if c.windowStart.IsZero() {
		reset = time.Now()
	}
	return RateLimitStatus{Requests: c.count, Limit: c.limit, ResetEpoch: reset.Unix()}
}

// ExtractAddresses returns the deduplicated union of all input and
// output addresses of a transaction, in first-seen order.
func ExtractAddresses(tx *models.Transaction) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(addrs []string) {
		for _, a := range addrs {
			if a == "" || seen[a] {
				continue
			}
			seen[a] = true
			out = append(out, a)
		}
	}
	for _, in := range tx.Inputs {
		add(in.Addresses)
	}
	for _, o := range tx.Outputs {
		add(o.Addresses)
	}
	return out
}

// ── internals ───────────────────────────────────────────────────────

// take consumes one rate-limit token or fails with EXTERNAL_API
func (c *Client) take() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if c.windowStart.IsZero() || now.Sub(c.windowStart) >= time.Minute {
		c.windowStart = now
		c.count = 0
	}
	if c.count >= c.limit {
		return models.NewError(models.ErrExternalAPI, "indexer rate limit reached").
			WithDetails(map[string]any{
				"requests":   c.count,
				"limit":      c.limit,
				"resetEpoch": c.windowStart.Add(time.Minute).Unix(),
				"service":    serviceLabel,
			})
	}
	c.count++
	return nil
}

func (c *Client) getJSON(ctx context.Context, path, ident string, out any) error {
	if err := c.take(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return models.WrapError(models.ErrExternalAPI, err, "%s: building request for %s", serviceLabel, ident)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return models.WrapError(models.ErrExternalAPI, err, "%s: request failed for %s", serviceLabel, ident)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return models.NewError(models.ErrDataNotFound, "%s: no data for %s", serviceLabel, ident)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return models.NewError(models.ErrExternalAPI, "%s: status %d for %s: %s",
			serviceLabel, resp.StatusCode, ident, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return models.WrapError(models.ErrExternalAPI, err, "%s: decoding response for %s", serviceLabel, ident)
	}
	return nil
}

func normalizeTx(wire *esploraTx) *models.Transaction {
	tx := &models.Transaction{
		Txid:    wire.Txid,
		Fee:     wire.Fee,
		Size:    wire.Size,
		Weight:  wire.Weight,
		Inputs:  make([]models.TxIn, len(wire.Vin)),
		Outputs: make([]models.TxOut, len(wire.Vout)),
	}
	if wire.Status.Confirmed {
		tx.BlockHeight = wire.Status.BlockHeight
		tx.BlockTime = wire.Status.BlockTime
	}

	for i, vin := range wire.Vin {
		in := models.TxIn{
			PrevTxid:  vin.Txid,
			PrevVout:  vin.Vout,
			Addresses: []string{},
		}
		if vin.Prevout != nil && !vin.IsCoinbase {
			in.Value = vin.Prevout.Value
			if vin.Prevout.Address != "" {
				in.Addresses = []string{vin.Prevout.Address}
			}
		}
		tx.Inputs[i] = in
	}

	for i, vout := range wire.Vout {
		out := models.TxOut{
			Value:        vout.Value,
			ScriptPubKey: vout.ScriptPubKey,
			Addresses:    []string{},
		}
		if vout.Address != "" {
			out.Addresses = []string{vout.Address}
		}
		tx.Outputs[i] = out
	}

	return tx
}
