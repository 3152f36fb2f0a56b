// Package api implements the client for the remote giving backend.
//
// All exchanges are request/response over HTTPS with JSON bodies. The
// authentication token is supplied by a TokenSource collaborator and attached
// as a bearer credential to every request.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"altarfunds/internal/core"
)

// TokenSource supplies the bearer token attached to outgoing requests.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource returning a fixed token. An empty token
// leaves requests unauthenticated.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) { return string(t), nil }

// StatusError is returned for non-2xx responses, carrying the backend's
// error envelope when one could be decoded.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: status %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("api: status %d", e.Code)
}

// errorEnvelope is the backend's error response format.
type errorEnvelope struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
}

type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTokenSource sets the authentication collaborator.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		tokens:     StaticToken(""),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do issues a JSON request and decodes a JSON response into out (when non-nil).
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("resolve token: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		statusErr := &StatusError{Code: res.StatusCode}
		var envelope errorEnvelope
		if err := json.NewDecoder(res.Body).Decode(&envelope); err == nil && envelope.Message != "" {
			statusErr.Message = envelope.Message
		}
		slog.WarnContext(ctx, "API request rejected",
			"method", method, "path", path, "status", res.StatusCode)
		return statusErr
	}

	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	return nil
}

// Wire representations. The backend reports amounts as decimal strings.

type transactionRecord struct {
	ID       string `json:"transaction_id"`
	Category string `json:"category"`
	Amount   string `json:"amount"`
	Date     string `json:"transaction_date"`
	Status   string `json:"status"`
	Receipt  string `json:"receipt_number"`
}

func (r transactionRecord) toCore() core.Transaction {
	cents, err := core.ParseAmountToCents(r.Amount)
	if err != nil {
		cents = 0
	}
	return core.Transaction{
		ID:       r.ID,
		Category: r.Category,
		Amount:   core.Money{Cents: cents},
		Date:     r.Date,
		Status:   core.TransactionStatus(r.Status),
		Receipt:  r.Receipt,
	}
}

// GetProfile fetches the signed-in member's profile.
func (c *Client) GetProfile(ctx context.Context) (core.Profile, error) {
	var out struct {
		Name     string `json:"name"`
		Phone    string `json:"phone_number"`
		Email    string `json:"email"`
		ChurchID int64  `json:"church_id"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/accounts/profile/", nil, &out); err != nil {
		return core.Profile{}, err
	}
	return core.Profile{Name: out.Name, Phone: out.Phone, Email: out.Email, ChurchID: out.ChurchID}, nil
}

// GetFinancialSummary fetches the dashboard summary for the current period.
func (c *Client) GetFinancialSummary(ctx context.Context) (core.FinancialSummary, error) {
	var out struct {
		TotalIncome    int64 `json:"total_income"`
		TotalExpenses  int64 `json:"total_expenses"`
		YearlyIncome   int64 `json:"yearly_income"`
		YearlyExpenses int64 `json:"yearly_expenses"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/dashboard/summary/", nil, &out); err != nil {
		return core.FinancialSummary{}, err
	}
	return core.FinancialSummary{
		TotalIncome:    core.Money{Cents: out.TotalIncome},
		TotalExpenses:  core.Money{Cents: out.TotalExpenses},
		YearlyIncome:   core.Money{Cents: out.YearlyIncome},
		YearlyExpenses: core.Money{Cents: out.YearlyExpenses},
	}, nil
}

// ListTransactions fetches the giving history, newest first, capped at limit
// when limit is positive. Server order is preserved.
func (c *Client) ListTransactions(ctx context.Context, limit int) ([]core.Transaction, error) {
	path := "/api/giving/transactions/"
	if limit > 0 {
		path = fmt.Sprintf("%s?limit=%d", path, limit)
	}
	var out []transactionRecord
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	txs := make([]core.Transaction, 0, len(out))
	for _, r := range out {
		txs = append(txs, r.toCore())
	}
	if limit > 0 && len(txs) > limit {
		txs = txs[:limit]
	}
	return txs, nil
}

// ListCategories fetches the giving categories.
func (c *Client) ListCategories(ctx context.Context) ([]core.GivingCategory, error) {
	var out []struct {
		ID          int64  `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/giving/categories/", nil, &out); err != nil {
		return nil, err
	}
	cats := make([]core.GivingCategory, 0, len(out))
	for _, r := range out {
		cats = append(cats, core.GivingCategory{ID: r.ID, Name: r.Name, Description: r.Description})
	}
	return cats, nil
}

// GetChurch fetches a single church record.
func (c *Client) GetChurch(ctx context.Context, id int64) (core.Church, error) {
	var out struct {
		ID       int64  `json:"id"`
		Name     string `json:"name"`
		Location string `json:"location"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/churches/%d/", id), nil, &out); err != nil {
		return core.Church{}, err
	}
	return core.Church{ID: out.ID, Name: out.Name, Location: out.Location}, nil
}

// ListNotifications fetches the member's notifications.
func (c *Client) ListNotifications(ctx context.Context) ([]core.Notification, error) {
	var out []struct {
		ID        int64  `json:"id"`
		Title     string `json:"title"`
		Body      string `json:"body"`
		CreatedAt string `json:"created_at"`
		Read      bool   `json:"read"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/notifications/", nil, &out); err != nil {
		return nil, err
	}
	ns := make([]core.Notification, 0, len(out))
	for _, r := range out {
		ns = append(ns, core.Notification{ID: r.ID, Title: r.Title, Body: r.Body, CreatedAt: r.CreatedAt, Read: r.Read})
	}
	return ns, nil
}

// ListRecurring fetches the member's recurring giving schedules.
func (c *Client) ListRecurring(ctx context.Context) ([]core.RecurringGiving, error) {
	var out []struct {
		ID       int64  `json:"id"`
		Category string `json:"category"`
		Amount   string `json:"amount"`
		Every    string `json:"frequency"`
		NextDate string `json:"next_date"`
		Status   string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/giving/recurring/", nil, &out); err != nil {
		return nil, err
	}
	recs := make([]core.RecurringGiving, 0, len(out))
	for _, r := range out {
		cents, err := core.ParseAmountToCents(r.Amount)
		if err != nil {
			cents = 0
		}
		recs = append(recs, core.RecurringGiving{
			ID:       r.ID,
			Category: r.Category,
			Amount:   core.Money{Cents: cents},
			Every:    core.Frequency(r.Every),
			NextDate: r.NextDate,
			Status:   core.RecurringStatus(r.Status),
		})
	}
	return recs, nil
}

// SetRecurringStatus pauses or resumes a recurring giving schedule.
func (c *Client) SetRecurringStatus(ctx context.Context, id int64, status core.RecurringStatus) error {
	in := struct {
		Status string `json:"status"`
	}{Status: string(status)}
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/api/giving/recurring/%d/", id), in, nil)
}

// ListPledges fetches the member's pledges.
func (c *Client) ListPledges(ctx context.Context) ([]core.Pledge, error) {
	var out []struct {
		ID          int64  `json:"id"`
		Description string `json:"description"`
		Target      string `json:"amount"`
		Paid        string `json:"amount_paid"`
		TargetDate  string `json:"target_date"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/giving/pledges/", nil, &out); err != nil {
		return nil, err
	}
	pledges := make([]core.Pledge, 0, len(out))
	for _, r := range out {
		target, err := core.ParseAmountToCents(r.Target)
		if err != nil {
			target = 0
		}
		paid, err := core.ParseAmountToCents(r.Paid)
		if err != nil {
			paid = 0
		}
		pledges = append(pledges, core.Pledge{
			ID:          r.ID,
			Description: r.Description,
			Target:      core.Money{Cents: target},
			Paid:        core.Money{Cents: paid},
			TargetDate:  r.TargetDate,
		})
	}
	return pledges, nil
}
