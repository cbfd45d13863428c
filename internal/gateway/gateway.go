// Package gateway is the typed client for the remote POS backend. The gateway
// owns every durable record and every business invariant (stock deduction,
// invoice numbering, payment ledger); this process only consumes its contract.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bumdespos/terminal/internal/domain"
)

var (
	ErrConflict          = errors.New("invoice number conflict")
	ErrValidation        = errors.New("validation rejected")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrNotFound          = errors.New("not found")
)

// TokenSource yields the bearer token for outgoing requests. An empty string
// means no session; the gateway will answer 401 and the UI forces a re-login.
type TokenSource interface {
	Token() string
}

// API is the logical surface the rest of the terminal depends on. Tests swap
// in a fake; Client is the HTTP implementation.
type API interface {
	Login(ctx context.Context, req domain.LoginRequest) (LoginResult, error)
	ListProducts(ctx context.Context, query string) ([]domain.Product, error)
	CreateProduct(ctx context.Context, req domain.ProductUpsertRequest) (domain.Product, error)
	UpdateProduct(ctx context.Context, id string, req domain.ProductUpsertRequest) (domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	AddStock(ctx context.Context, id string, req domain.AddStockRequest) error
	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	CreateCustomer(ctx context.Context, req domain.CustomerUpsertRequest) (domain.Customer, error)
	UpdateCustomer(ctx context.Context, id string, req domain.CustomerUpsertRequest) (domain.Customer, error)
	DeleteCustomer(ctx context.Context, id string) error
	CreateSale(ctx context.Context, req domain.SaleRequest) (domain.Sale, error)
	ListSales(ctx context.Context, status string) ([]domain.Sale, error)
	CreatePayment(ctx context.Context, req domain.PaymentRequest) (domain.Payment, error)
	SalesReport(ctx context.Context, from, to string) (domain.SalesReport, error)
	StockInReport(ctx context.Context, from, to string) (domain.StockInReport, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	CreateUser(ctx context.Context, req domain.UserCreateRequest) (domain.User, error)
	DeleteUser(ctx context.Context, id string) error
}

type LoginResult struct {
	Token    string `json:"token"`
	Role     string `json:"role"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
}

func NewClient(baseURL string, tokens TokenSource) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		tokens:  tokens,
	}
}

func (c *Client) Login(ctx context.Context, req domain.LoginRequest) (LoginResult, error) {
	var out LoginResult
	err := c.do(ctx, http.MethodPost, "/auth/login", nil, req, &out)
	return out, err
}

func (c *Client) ListProducts(ctx context.Context, query string) ([]domain.Product, error) {
	q := url.Values{}
	if strings.TrimSpace(query) != "" {
		q.Set("q", strings.TrimSpace(query))
	}
	var out []domain.Product
	if err := c.do(ctx, http.MethodGet, "/products", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateProduct(ctx context.Context, req domain.ProductUpsertRequest) (domain.Product, error) {
	var out domain.Product
	err := c.do(ctx, http.MethodPost, "/products", nil, req, &out)
	return out, err
}

func (c *Client) UpdateProduct(ctx context.Context, id string, req domain.ProductUpsertRequest) (domain.Product, error) {
	var out domain.Product
	err := c.do(ctx, http.MethodPut, "/products/"+url.PathEscape(id), nil, req, &out)
	return out, err
}

func (c *Client) DeleteProduct(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/products/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) AddStock(ctx context.Context, id string, req domain.AddStockRequest) error {
	return c.do(ctx, http.MethodPost, "/products/"+url.PathEscape(id)+"/add-stock", nil, req, nil)
}

func (c *Client) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	var out []domain.Customer
	if err := c.do(ctx, http.MethodGet, "/customers", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateCustomer(ctx context.Context, req domain.CustomerUpsertRequest) (domain.Customer, error) {
	var out domain.Customer
	err := c.do(ctx, http.MethodPost, "/customers", nil, req, &out)
	return out, err
}

func (c *Client) UpdateCustomer(ctx context.Context, id string, req domain.CustomerUpsertRequest) (domain.Customer, error) {
	var out domain.Customer
	err := c.do(ctx, http.MethodPut, "/customers/"+url.PathEscape(id), nil, req, &out)
	return out, err
}

func (c *Client) DeleteCustomer(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/customers/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) CreateSale(ctx context.Context, req domain.SaleRequest) (domain.Sale, error) {
	var out domain.Sale
	err := c.do(ctx, http.MethodPost, "/sales", nil, req, &out)
	return out, err
}

func (c *Client) ListSales(ctx context.Context, status string) ([]domain.Sale, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	var out []domain.Sale
	if err := c.do(ctx, http.MethodGet, "/sales", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreatePayment(ctx context.Context, req domain.PaymentRequest) (domain.Payment, error) {
	var out domain.Payment
	err := c.do(ctx, http.MethodPost, "/payments", nil, req, &out)
	return out, err
}

func (c *Client) SalesReport(ctx context.Context, from, to string) (domain.SalesReport, error) {
	q := url.Values{"from": {from}, "to": {to}}
	var out domain.SalesReport
	err := c.do(ctx, http.MethodGet, "/reports/sales", q, nil, &out)
	return out, err
}

func (c *Client) StockInReport(ctx context.Context, from, to string) (domain.StockInReport, error) {
	q := url.Values{"from": {from}, "to": {to}}
	var out domain.StockInReport
	err := c.do(ctx, http.MethodGet, "/reports/stock-in", q, nil, &out)
	return out, err
}

func (c *Client) ListUsers(ctx context.Context) ([]domain.User, error) {
	var out []domain.User
	if err := c.do(ctx, http.MethodGet, "/users", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateUser(ctx context.Context, req domain.UserCreateRequest) (domain.User, error) {
	var out domain.User
	err := c.do(ctx, http.MethodPost, "/users", nil, req, &out)
	return out, err
}

func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/users/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gateway unreachable: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("gateway response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return classify(resp.StatusCode, errorMessage(raw))
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("gateway response: %w", err)
	}
	return nil
}

// errorMessage pulls the human-readable message out of an error body. The
// gateway answers {"error": msg} but older deployments used "message".
func errorMessage(raw []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return strings.TrimSpace(string(raw))
}

// classify maps a gateway failure onto the client error taxonomy. Conflict is
// recognized by status 409 or by the invoice-collision message signature, since
// some deployments answer collisions with a generic 500.
func classify(status int, msg string) error {
	lower := strings.ToLower(msg)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return wrap(ErrUnauthorized, status, msg)
	case status == http.StatusNotFound:
		return wrap(ErrNotFound, status, msg)
	case strings.Contains(lower, "stok") || strings.Contains(lower, "stock"):
		return wrap(ErrInsufficientStock, status, msg)
	case status == http.StatusConflict,
		strings.Contains(lower, "invoice") && (strings.Contains(lower, "conflict") || strings.Contains(lower, "bentrok")):
		return wrap(ErrConflict, status, msg)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return wrap(ErrValidation, status, msg)
	default:
		return fmt.Errorf("gateway error (HTTP %d): %s", status, msg)
	}
}

func wrap(sentinel error, status int, msg string) error {
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d", status)
	}
	return fmt.Errorf("%w: %s", sentinel, msg)
}
