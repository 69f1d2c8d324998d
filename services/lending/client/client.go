package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"shark/core/types"
	"shark/native/lending"
	"shark/services/lending/server"
)

// APIError is a non-2xx response from sharkd.
type APIError struct {
	Status  int
	Class   string
	Message string
}

func (e *APIError) Error() string {
	if e.Class != "" {
		return fmt.Sprintf("sharkd: %d %s: %s", e.Status, e.Class, e.Message)
	}
	return fmt.Sprintf("sharkd: %d: %s", e.Status, e.Message)
}

// IsClass reports whether err is an APIError of the given class.
func IsClass(err error, class string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Class == class
}

// Client provides a thin wrapper around the sharkd HTTP API.
type Client struct {
	base   string
	token  string
	sender string
	http   *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithToken authenticates mutating calls with a static token or JWT.
func WithToken(token string) Option {
	return func(c *Client) { c.token = strings.TrimSpace(token) }
}

// WithSender names the acting address on mutating calls. JWT callers may
// leave it empty.
func WithSender(sender string) Option {
	return func(c *Client) { c.sender = strings.TrimSpace(sender) }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// New returns a client for the API rooted at endpoint.
func New(endpoint string, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if base == "" {
		return nil, fmt.Errorf("client: endpoint required")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("client: invalid endpoint: %w", err)
	}
	c := &Client{
		base: base,
		http: &http.Client{Timeout: 15 * time.Second, Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Instantiate configures the pool.
func (c *Client) Instantiate(ctx context.Context, admin, fundsDenom, collateralDenom string) (*server.ResultView, error) {
	req := server.InstantiateRequest{Sender: c.sender, Admin: admin, FundsDenom: fundsDenom, CollateralDenom: collateralDenom}
	var out server.ResultView
	if err := c.do(ctx, http.MethodPost, "/v1/instantiate", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Execute submits msg with funds attached.
func (c *Client) Execute(ctx context.Context, funds types.Coins, msg lending.ExecuteMsg) (*server.ResultView, error) {
	req := server.ExecuteRequest{Sender: c.sender, Funds: funds, Msg: &msg}
	var out server.ResultView
	if err := c.do(ctx, http.MethodPost, "/v1/execute", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SupplyFunds deposits funds into the pool.
func (c *Client) SupplyFunds(ctx context.Context, funds types.Coin) (*server.ResultView, error) {
	return c.Execute(ctx, types.Coins{funds}, lending.ExecuteMsg{SupplyFunds: &lending.Empty{}})
}

// SupplyCollateral posts pool shares as collateral.
func (c *Client) SupplyCollateral(ctx context.Context, shares types.Coin) (*server.ResultView, error) {
	return c.Execute(ctx, types.Coins{shares}, lending.ExecuteMsg{SupplyCollateral: &lending.Empty{}})
}

// Borrow draws amount of the funds denom.
func (c *Client) Borrow(ctx context.Context, amount string) (*server.ResultView, error) {
	parsed, err := types.ParseAmount(amount)
	if err != nil {
		return nil, err
	}
	return c.Execute(ctx, nil, lending.ExecuteMsg{Borrow: &lending.BorrowMsg{Amount: parsed}})
}

// Mint credits coins to to.
func (c *Client) Mint(ctx context.Context, to string, coins types.Coins) (*server.ResultView, error) {
	req := server.MintRequest{Sender: c.sender, To: to, Coins: coins}
	var out server.ResultView
	if err := c.do(ctx, http.MethodPost, "/v1/mint", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Config(ctx context.Context) (*server.ConfigView, error) {
	var out server.ConfigView
	return &out, c.get(ctx, "/v1/config", &out)
}

func (c *Client) Contract(ctx context.Context) (*server.ContractView, error) {
	var out server.ContractView
	return &out, c.get(ctx, "/v1/contract", &out)
}

func (c *Client) Pool(ctx context.Context) (*server.PoolView, error) {
	var out server.PoolView
	return &out, c.get(ctx, "/v1/pool", &out)
}

func (c *Client) Lender(ctx context.Context, addr string) (*server.LenderView, error) {
	var out server.LenderView
	return &out, c.get(ctx, "/v1/lenders/"+url.PathEscape(addr), &out)
}

func (c *Client) Borrower(ctx context.Context, addr string) (*server.BorrowerView, error) {
	var out server.BorrowerView
	return &out, c.get(ctx, "/v1/borrowers/"+url.PathEscape(addr), &out)
}

func (c *Client) Capacity(ctx context.Context, addr string) (*server.CapacityView, error) {
	var out server.CapacityView
	return &out, c.get(ctx, "/v1/borrowers/"+url.PathEscape(addr)+"/capacity", &out)
}

func (c *Client) Balances(ctx context.Context, addr string) (*server.BalancesView, error) {
	var out server.BalancesView
	return &out, c.get(ctx, "/v1/accounts/"+url.PathEscape(addr)+"/balances", &out)
}

func (c *Client) Locks(ctx context.Context, addr string) (*server.LocksView, error) {
	var out server.LocksView
	return &out, c.get(ctx, "/v1/accounts/"+url.PathEscape(addr)+"/locks", &out)
}

// Actions lists journal entries. Empty filters are omitted.
func (c *Client) Actions(ctx context.Context, sender, action string, limit int) ([]server.ActionView, error) {
	q := url.Values{}
	if sender != "" {
		q.Set("sender", sender)
	}
	if action != "" {
		q.Set("action", action)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/v1/actions"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out struct {
		Actions []server.ActionView `json:"actions"`
	}
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Actions, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload struct {
			Error string `json:"error"`
			Class string `json:"class"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
			apiErr.Message = payload.Error
			apiErr.Class = payload.Class
		} else {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode response: %w", err)
	}
	return nil
}
