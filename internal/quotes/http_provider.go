package quotes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"asset-settlement-go/internal/models"

	"github.com/shopspring/decimal"
	"golang.org/x/net/http2"
)

// HTTPProvider talks to an external swap venue over a small JSON API:
// POST /v1/quote to price a pair and POST /v1/execute to fill a quote.
type HTTPProvider struct {
	name       string
	baseURL    string
	assets     map[string]bool
	quoteTTL   time.Duration
	httpClient *http.Client
}

type providerQuoteRequest struct {
	FromAsset  string `json:"from_asset"`
	ToAsset    string `json:"to_asset"`
	FromAmount string `json:"from_amount"`
}

type providerQuoteResponse struct {
	Success   bool   `json:"success"`
	ToAmount  string `json:"to_amount,omitempty"`
	FeeAsset  string `json:"fee_asset,omitempty"`
	FeeAmount string `json:"fee_amount,omitempty"`
	Slippage  string `json:"slippage,omitempty"`
	Route     string `json:"route,omitempty"`
	TTLMs     int64  `json:"ttl_ms,omitempty"`
	Error     string `json:"error,omitempty"`
}

type providerExecuteRequest struct {
	FromAsset  string `json:"from_asset"`
	ToAsset    string `json:"to_asset"`
	FromAmount string `json:"from_amount"`
	ToAmount   string `json:"to_amount"`
	Route      string `json:"route,omitempty"`
}

type providerExecuteResponse struct {
	Success        bool   `json:"success"`
	RealizedAmount string `json:"realized_amount,omitempty"`
	Error          string `json:"error,omitempty"`
}

func NewHTTPProvider(cfg models.ProviderConfig, quoteTTL time.Duration) (*HTTPProvider, error) {
	if cfg.Name == "" || cfg.BaseURL == "" {
		return nil, fmt.Errorf("provider name and base URL cannot be empty")
	}

	assets := make(map[string]bool, len(cfg.Assets))
	for _, symbol := range cfg.Assets {
		assets[symbol] = true
	}

	httpClient, err := newHTTPClient()
	if err != nil {
		return nil, fmt.Errorf("unable to create http client for provider %s: %w", cfg.Name, err)
	}

	return &HTTPProvider{
		name:       cfg.Name,
		baseURL:    cfg.BaseURL,
		assets:     assets,
		quoteTTL:   quoteTTL,
		httpClient: httpClient,
	}, nil
}

func newHTTPClient() (*http.Client, error) {
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
	return &http.Client{Transport: tr}, nil
}

func (p *HTTPProvider) Name() string {
	return p.name
}

func (p *HTTPProvider) Supports(fromAsset, toAsset string) bool {
	return p.assets[fromAsset] && p.assets[toAsset]
}

func (p *HTTPProvider) GetQuote(ctx context.Context, fromAsset, toAsset string, fromAmount decimal.Decimal) (*models.Quote, error) {
	reqBody := providerQuoteRequest{
		FromAsset:  fromAsset,
		ToAsset:    toAsset,
		FromAmount: fromAmount.String(),
	}

	var resp providerQuoteResponse
	if err := p.post(ctx, "/v1/quote", reqBody, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("provider %s rejected quote: %s", p.name, resp.Error)
	}

	toAmount, err := decimal.NewFromString(resp.ToAmount)
	if err != nil {
		return nil, fmt.Errorf("provider %s returned invalid amount %q: %w", p.name, resp.ToAmount, err)
	}
	if toAmount.IsZero() || toAmount.IsNegative() {
		return nil, fmt.Errorf("provider %s returned non-positive amount %s", p.name, toAmount)
	}

	quote := &models.Quote{
		Provider:   p.name,
		FromAsset:  fromAsset,
		ToAsset:    toAsset,
		FromAmount: fromAmount,
		ToAmount:   toAmount,
		FeeAsset:   resp.FeeAsset,
		Route:      resp.Route,
		CreatedAt:  time.Now(),
		TTL:        p.quoteTTL,
	}
	if resp.TTLMs > 0 {
		quote.TTL = time.Duration(resp.TTLMs) * time.Millisecond
	}
	if resp.FeeAmount != "" {
		quote.FeeAmount, err = decimal.NewFromString(resp.FeeAmount)
		if err != nil {
			return nil, fmt.Errorf("provider %s returned invalid fee %q: %w", p.name, resp.FeeAmount, err)
		}
	}
	if resp.Slippage != "" {
		quote.Slippage, err = decimal.NewFromString(resp.Slippage)
		if err != nil {
			return nil, fmt.Errorf("provider %s returned invalid slippage %q: %w", p.name, resp.Slippage, err)
		}
	}
	return quote, nil
}

func (p *HTTPProvider) ExecuteSwap(ctx context.Context, quote *models.Quote) (decimal.Decimal, error) {
	reqBody := providerExecuteRequest{
		FromAsset:  quote.FromAsset,
		ToAsset:    quote.ToAsset,
		FromAmount: quote.FromAmount.String(),
		ToAmount:   quote.ToAmount.String(),
		Route:      quote.Route,
	}

	var resp providerExecuteResponse
	if err := p.post(ctx, "/v1/execute", reqBody, &resp); err != nil {
		return decimal.Zero, err
	}
	if !resp.Success {
		return decimal.Zero, fmt.Errorf("provider %s rejected execution: %s", p.name, resp.Error)
	}

	realized, err := decimal.NewFromString(resp.RealizedAmount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("provider %s returned invalid realized amount %q: %w", p.name, resp.RealizedAmount, err)
	}
	if realized.IsZero() || realized.IsNegative() {
		return decimal.Zero, fmt.Errorf("provider %s returned non-positive realized amount %s", p.name, realized)
	}
	return realized, nil
}

func (p *HTTPProvider) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("unable to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("unable to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to provider %s failed: %w", p.name, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("unable to read provider %s response: %w", p.name, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("provider %s returned status %d: %s", p.name, resp.StatusCode, string(raw))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("unable to decode provider %s response: %w", p.name, err)
	}
	return nil
}
