package backend

import (
	"context"
	"net/http"
	"net/url"
)

// Product is the kind of thing a payment intent pays for.
type Product string

const (
	ProductTicket Product = "ticket"
	ProductGuide  Product = "guide"
)

// CreatePaymentIntent asks the API for a Stripe payment intent for the
// given product and returns its client secret.
func (c *Client) CreatePaymentIntent(ctx context.Context, p Product, id string) (string, error) {
	var resp struct {
		ClientSecret string `json:"clientSecret"`
	}
	err := c.do(ctx, request{
		method: http.MethodPost,
		route:  "/stripe/payment-intent/" + string(p) + "/:id",
		path:   "/stripe/payment-intent/" + string(p) + "/" + url.PathEscape(id),
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.ClientSecret == "" {
		return "", &APIError{Status: http.StatusBadGateway, Message: "payment intent response carried no client secret"}
	}
	return resp.ClientSecret, nil
}

// ConfirmPurchase tells the API that the payment intent succeeded so it
// can fulfil the purchase.
func (c *Client) ConfirmPurchase(ctx context.Context, p Product, id, paymentIntentID string) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		route:  "/stripe/confirm/" + string(p) + "/:id",
		path:   "/stripe/confirm/" + string(p) + "/" + url.PathEscape(id),
		body:   map[string]string{"paymentIntentId": paymentIntentID},
	}, nil)
}
