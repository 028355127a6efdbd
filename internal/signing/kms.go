package signing

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"asset-settlement-go/internal/models"
	"asset-settlement-go/internal/store"

	"go.uber.org/zap"
	"golang.org/x/net/http2"
)

// KMSSigner delegates signing to a remote key-management service over
// HTTPS. Key material never leaves the KMS; only hashes travel.
type KMSSigner struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
}

type kmsSignRequest struct {
	KeyId          string `json:"key_id"`
	Chain          string `json:"chain"`
	MessageHash    string `json:"message_hash"`
	DerivationPath string `json:"derivation_path,omitempty"`
}

type kmsSignResponse struct {
	Success       bool   `json:"success"`
	Signature     string `json:"signature,omitempty"`
	RecoveryParam *int   `json:"recovery_param,omitempty"`
	PublicKey     string `json:"public_key,omitempty"`
	Error         string `json:"error,omitempty"`
}

type kmsAddressResponse struct {
	Success bool   `json:"success"`
	Address string `json:"address,omitempty"`
	Error   string `json:"error,omitempty"`
}

func NewKMSSigner(cfg models.SigningConfig) (*KMSSigner, error) {
	if cfg.KMSBaseURL == "" {
		return nil, fmt.Errorf("KMS base URL cannot be empty")
	}

	timeout := cfg.KMSTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	httpClient, err := newHTTPClient(timeout)
	if err != nil {
		return nil, fmt.Errorf("unable to create KMS http client: %w", err)
	}

	zap.L().Info("KMS signing backend initialized", zap.String("base_url", cfg.KMSBaseURL))
	return &KMSSigner{
		baseURL:    cfg.KMSBaseURL,
		authToken:  cfg.KMSToken,
		httpClient: httpClient,
	}, nil
}

func newHTTPClient(timeout time.Duration) (*http.Client, error) {
	tr := &http.Transport{
		ResponseHeaderTimeout: 30 * time.Second,
		Proxy:                 http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			KeepAlive: 30 * time.Second,
			Timeout:   15 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConnsPerHost:   5,
		ExpectContinueTimeout: 5 * time.Second,
	}

	if err := http2.ConfigureTransport(tr); err != nil {
		return nil, err
	}

	return &http.Client{
		Transport: tr,
		Timeout:   timeout,
	}, nil
}

func (k *KMSSigner) Sign(ctx context.Context, req Request) (*Result, error) {
	payload := kmsSignRequest{
		KeyId:          req.KeyId,
		Chain:          req.Chain,
		MessageHash:    hex.EncodeToString(req.MessageHash),
		DerivationPath: req.DerivationPath,
	}

	var resp kmsSignResponse
	if err := k.post(ctx, "/v1/sign", payload, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrSigningRejected, err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: %s", store.ErrSigningRejected, resp.Error)
	}

	signature, err := hex.DecodeString(resp.Signature)
	if err != nil {
		return nil, fmt.Errorf("invalid signature encoding from KMS: %w", err)
	}
	publicKey, err := hex.DecodeString(resp.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("invalid public key encoding from KMS: %w", err)
	}

	recovery := -1
	if resp.RecoveryParam != nil {
		recovery = *resp.RecoveryParam
	}

	return &Result{
		Signature:     signature,
		RecoveryParam: recovery,
		PublicKey:     publicKey,
	}, nil
}

func (k *KMSSigner) Address(ctx context.Context, keyId, chain string) (string, error) {
	var resp kmsAddressResponse
	err := k.get(ctx, fmt.Sprintf("/v1/keys/%s/address?chain=%s", keyId, chain), &resp)
	if err != nil {
		return "", fmt.Errorf("unable to resolve key address: %w", err)
	}
	if !resp.Success {
		return "", fmt.Errorf("%w: %s", store.ErrKeyNotFound, resp.Error)
	}
	return resp.Address, nil
}

func (k *KMSSigner) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode KMS request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, k.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build KMS request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return k.do(req, out)
}

func (k *KMSSigner) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build KMS request: %w", err)
	}
	return k.do(req, out)
}

func (k *KMSSigner) do(req *http.Request, out any) error {
	if k.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+k.authToken)
	}

	resp, err := k.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("KMS request failed: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			zap.L().Warn("Failed to close KMS response body", zap.Error(err))
		}
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read KMS response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("KMS returned status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse KMS response: %w", err)
	}
	return nil
}
