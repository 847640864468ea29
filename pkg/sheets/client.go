package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/shunichi-ikebuchi/debt-tracker/pkg/idgen"
	"github.com/shunichi-ikebuchi/debt-tracker/pkg/model"
)

// ClientConfig represents the configuration for the script endpoint client.
type ClientConfig struct {
	Timeout    time.Duration // Default: 30 seconds
	HTTPClient *http.Client  // Optional; overrides Timeout
	Logger     *slog.Logger
}

// Client is an HTTP Gateway.
type Client struct {
	httpClient *http.Client
	nonces     *idgen.Generator
	logger     *slog.Logger
}

// NewClient creates a new script endpoint client.
func NewClient(config ClientConfig) *Client {
	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		httpClient: httpClient,
		nonces:     idgen.New("nc"),
		logger:     logger,
	}
}

// FetchSnapshot reads the full state of the store. Every request carries a
// unique cache-busting parameter so no intermediary can serve a stale copy.
func (c *Client) FetchSnapshot(ctx context.Context, cred Credential) (*model.Snapshot, error) {
	if cred.URL == "" {
		return nil, fmt.Errorf("%w: empty script URL", ErrInvalidCredential)
	}

	endpoint, err := url.Parse(cred.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	query := endpoint.Query()
	query.Set("action", ActionGetAll)
	query.Set("token", cred.Token)
	query.Set("_", c.nonces.Next())
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache, no-store")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrInvalidCredential
	case resp.StatusCode != http.StatusOK:
		return nil, c.parseError(resp)
	}

	return decodeSnapshot(resp.Body)
}

// SubmitMutation sends m to the store without waiting for it to be applied.
// The response is discarded: only transport failures are reported.
func (c *Client) SubmitMutation(ctx context.Context, cred Credential, m model.Mutation) error {
	if cred.URL == "" {
		return fmt.Errorf("%w: empty script URL", ErrInvalidCredential)
	}

	m.Token = cred.Token
	body, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode mutation: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cred.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	// A simple request body, as the browser client sends it in no-cors mode.
	req.Header.Set("Content-Type", "text/plain;charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	c.logger.Debug("mutation sent",
		"action", m.Action,
		"request_id", m.RequestID,
		"expense_id", m.Expense.ID,
		"http_status", resp.StatusCode,
	)
	return nil
}

// decodeSnapshot parses a snapshot envelope, rejecting unknown fields and
// missing collections.
func decodeSnapshot(r io.Reader) (*model.Snapshot, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var env SnapshotResponse
	if err := dec.Decode(&env); err != nil {
		return nil, &SchemaError{Err: err}
	}

	switch env.Status {
	case StatusOK:
	case StatusError:
		if env.Code == CodeInvalidCredential {
			return nil, ErrInvalidCredential
		}
		return nil, &APIError{Code: env.Code, Message: env.Message}
	default:
		return nil, &SchemaError{Err: fmt.Errorf("unknown status %q", env.Status)}
	}

	if env.PendingExpenses == nil || env.Transactions == nil || env.Accounts == nil {
		return nil, &SchemaError{Err: errors.New("pendingExpenses, transactions and accounts are required")}
	}

	return &model.Snapshot{
		PendingExpenses: *env.PendingExpenses,
		Transactions:    *env.Transactions,
		Accounts:        *env.Accounts,
	}, nil
}

// parseError parses an unexpected HTTP status from the store.
func (c *Client) parseError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("store error (status %d): failed to read error response", resp.StatusCode)
	}

	var env SnapshotResponse
	if err := json.Unmarshal(body, &env); err != nil || env.Code == "" {
		return fmt.Errorf("store error (status %d): %s", resp.StatusCode, string(body))
	}

	if env.Code == CodeInvalidCredential {
		return ErrInvalidCredential
	}
	return &APIError{Code: env.Code, Message: env.Message}
}
