package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"altarfunds/internal/core"
)

// PaymentSession is the server-side record for one initiated payment. The
// reference is the opaque handle used during verification; the redirect URL
// points at the external payment provider's page.
type PaymentSession struct {
	Reference   string
	RedirectURL string
}

// VerificationResult is the provider-resolved outcome for a session.
// Status mirrors transaction statuses: pending until the provider reports a
// terminal state.
type VerificationResult struct {
	Status  core.TransactionStatus
	Receipt string
}

// CreatePaymentSession asks the backend to open a payment session for the
// given gift against a church's payment account.
func (c *Client) CreatePaymentSession(ctx context.Context, gift core.Gift, churchID int64) (PaymentSession, error) {
	in := struct {
		Amount   string `json:"amount"`
		Category string `json:"category"`
		ChurchID int64  `json:"church_id"`
	}{
		Amount:   fmt.Sprintf("%d.%02d", gift.Amount.Cents/100, gift.Amount.Cents%100),
		Category: gift.Category,
		ChurchID: churchID,
	}
	var out struct {
		Reference   string `json:"reference"`
		RedirectURL string `json:"redirect_url"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/payments/sessions/", in, &out); err != nil {
		return PaymentSession{}, err
	}

	slog.InfoContext(ctx, "Payment session created",
		"session_ref", out.Reference,
		"church_id", churchID,
		"category", gift.Category,
		"amount_cents", gift.Amount.Cents)

	return PaymentSession{Reference: out.Reference, RedirectURL: out.RedirectURL}, nil
}

// VerifyPayment asks the backend for the resolved status of a session.
func (c *Client) VerifyPayment(ctx context.Context, reference string) (VerificationResult, error) {
	var out struct {
		Status  string `json:"status"`
		Receipt string `json:"receipt_number"`
	}
	path := fmt.Sprintf("/api/payments/sessions/%s/verify/", reference)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return VerificationResult{}, err
	}
	return VerificationResult{
		Status:  core.TransactionStatus(out.Status),
		Receipt: out.Receipt,
	}, nil
}
