package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"asset-settlement-go/internal/models"

	"github.com/shopspring/decimal"
	"golang.org/x/net/http2"
)

// HTTPScanner reads inbound transactions from a chain indexer API:
// GET /v1/addresses/{address}/transactions?since=<unix>.
type HTTPScanner struct {
	chain      string
	baseURL    string
	httpClient *http.Client
}

type indexerTransaction struct {
	TxId          string `json:"tx_id"`
	OutputIndex   int    `json:"output_index"`
	Asset         string `json:"asset"`
	FromAddress   string `json:"from_address"`
	ToAddress     string `json:"to_address"`
	Amount        string `json:"amount"`
	Confirmations int    `json:"confirmations"`
	BlockHeight   int64  `json:"block_height"`
}

type indexerResponse struct {
	Success      bool                 `json:"success"`
	Transactions []indexerTransaction `json:"transactions,omitempty"`
	Error        string               `json:"error,omitempty"`
}

func NewHTTPScanner(chain, baseURL string) (*HTTPScanner, error) {
	if chain == "" || baseURL == "" {
		return nil, fmt.Errorf("scanner chain and base URL cannot be empty")
	}

	tr := &http.Transport{
		ResponseHeaderTimeout: 30 * time.Second,
		Proxy:                 http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			KeepAlive: 30 * time.Second,
			Timeout:   15 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if err := http2.ConfigureTransport(tr); err != nil {
		return nil, fmt.Errorf("unable to configure http2: %w", err)
	}

	return &HTTPScanner{
		chain:      chain,
		baseURL:    baseURL,
		httpClient: &http.Client{Transport: tr},
	}, nil
}

func (s *HTTPScanner) Chain() string {
	return s.chain
}

func (s *HTTPScanner) AddressTransactions(ctx context.Context, address string, since time.Time) ([]models.TransactionInfo, error) {
	endpoint := fmt.Sprintf("%s/v1/addresses/%s/transactions?since=%s",
		s.baseURL, url.PathEscape(address), strconv.FormatInt(since.Unix(), 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("indexer request for %s failed: %w", s.chain, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("unable to read indexer response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("indexer for %s returned status %d: %s", s.chain, resp.StatusCode, string(raw))
	}

	var parsed indexerResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("unable to decode indexer response: %w", err)
	}
	if !parsed.Success {
		return nil, fmt.Errorf("indexer for %s reported failure: %s", s.chain, parsed.Error)
	}

	transactions := make([]models.TransactionInfo, 0, len(parsed.Transactions))
	for _, tx := range parsed.Transactions {
		amount, err := decimal.NewFromString(tx.Amount)
		if err != nil {
			return nil, fmt.Errorf("indexer returned invalid amount %q for tx %s: %w", tx.Amount, tx.TxId, err)
		}
		transactions = append(transactions, models.TransactionInfo{
			TxId:          tx.TxId,
			OutputIndex:   tx.OutputIndex,
			Asset:         tx.Asset,
			FromAddress:   tx.FromAddress,
			ToAddress:     tx.ToAddress,
			Amount:        amount,
			Confirmations: tx.Confirmations,
			BlockHeight:   tx.BlockHeight,
		})
	}
	return transactions, nil
}
