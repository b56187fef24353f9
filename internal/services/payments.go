package services

import (
	"context"
	"net/url"
	"time"

	"github.com/O-G-W-A-L/doit-cli/internal/apiclient"
)

// Transaction is a payment record.
type Transaction struct {
	ID        string    `json:"id"`
	CourseID  int       `json:"course,omitempty"`
	Amount    string    `json:"amount"`
	Currency  string    `json:"currency"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Plan is a subscription tier.
type Plan struct {
	ID       int      `json:"id"`
	Name     string   `json:"name"`
	Price    string   `json:"price"`
	Interval string   `json:"interval"`
	Features []string `json:"features"`
}

// Payments handles the payment endpoints.
type Payments struct {
	client *apiclient.Client
}

// NewPayments creates a Payments service.
func NewPayments(client *apiclient.Client) *Payments {
	return &Payments{client: client}
}

// Transactions lists the current user's payment transactions.
func (p *Payments) Transactions(ctx context.Context) ([]Transaction, error) {
	return apiclient.Get[[]Transaction](ctx, p.client, "/api/payments/transactions/")
}

// Transaction returns a single transaction by id.
func (p *Payments) Transaction(ctx context.Context, id string) (*Transaction, error) {
	tx, err := apiclient.Get[Transaction](ctx, p.client, "/api/payments/transactions/"+url.PathEscape(id)+"/")
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// PurchaseCourse buys one course, optionally applying a coupon code.
func (p *Payments) PurchaseCourse(ctx context.Context, courseID int, couponCode string) (*Transaction, error) {
	payload := map[string]any{"course": courseID}
	if couponCode != "" {
		payload["coupon_code"] = couponCode
	}

	tx, err := apiclient.Post[Transaction](ctx, p.client, "/api/payments/course-purchase/", payload)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// Plans lists available subscription plans.
func (p *Payments) Plans(ctx context.Context) ([]Plan, error) {
	return apiclient.Get[[]Plan](ctx, p.client, "/api/payments/plans/")
}
