package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// ErrRejected marks a submission the execution layer refused.
var ErrRejected = errors.New("transaction rejected")

// RejectedError carries the backend's rejection message.
type RejectedError struct {
	Status  int
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("transaction rejected (%d): %s", e.Status, e.Message)
}

// Is matches ErrRejected.
func (e *RejectedError) Is(target error) bool {
	return target == ErrRejected
}

// Account is the execution layer's view of an account.
type Account struct {
	Nonce      uint64
	Registered bool
	Chips      uint64
	Name       string
}

// Config holds client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client submits transactions and reads account state over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new execution layer client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Submit posts one sealed transaction. A non-2xx answer is a *RejectedError.
func (c *Client) Submit(ctx context.Context, tx []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/submit", bytes.NewReader(EncodeSubmission(tx)))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(body))
	if errMsg := gjson.GetBytes(body, "error"); errMsg.Exists() {
		msg = errMsg.String()
	}
	if msg == "" {
		msg = resp.Status
	}
	return &RejectedError{Status: resp.StatusCode, Message: msg}
}

// Account fetches the account's nonce and casino registration.
// An unknown account reports nonce 0 and not registered.
func (c *Client) Account(ctx context.Context, publicKey string) (*Account, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/account/"+publicKey, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &Account{}, nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request failed: %s - %s", resp.Status, string(body))
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("decode response: invalid json")
	}
	return ParseAccount(body), nil
}

// Nonce returns the account's authoritative nonce.
func (c *Client) Nonce(ctx context.Context, publicKey string) (uint64, error) {
	acct, err := c.Account(ctx, publicKey)
	if err != nil {
		return 0, err
	}
	return acct.Nonce, nil
}

// ParseAccount reads {nonce, player?: {chips, name}} from an account document.
func ParseAccount(body []byte) *Account {
	doc := gjson.ParseBytes(body)
	acct := &Account{Nonce: doc.Get("nonce").Uint()}
	if player := doc.Get("player"); player.Exists() && player.Type != gjson.Null {
		acct.Registered = true
		acct.Chips = player.Get("chips").Uint()
		acct.Name = player.Get("name").String()
	}
	return acct
}
