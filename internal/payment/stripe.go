package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultStripeURL is Stripe's API base.
const DefaultStripeURL = "https://api.stripe.com"

// StripeSheet confirms a payment intent directly against Stripe with the
// publishable key, the way the hosted payment sheet does once the user has
// picked a payment method. An empty PaymentMethod stands for a dismissed
// sheet.
type StripeSheet struct {
	PublishableKey string
	PaymentMethod  string
	BaseURL        string
	HTTP           *http.Client
}

// NewStripeSheet returns a sheet that pays with paymentMethod.
func NewStripeSheet(publishableKey, paymentMethod string) *StripeSheet {
	return &StripeSheet{
		PublishableKey: publishableKey,
		PaymentMethod:  paymentMethod,
		BaseURL:        DefaultStripeURL,
		HTTP:           &http.Client{Timeout: 30 * time.Second},
	}
}

type stripeIntent struct {
	Status           string `json:"status"`
	LastPaymentError *struct {
		Message string `json:"message"`
	} `json:"last_payment_error"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Present confirms the intent behind clientSecret.
func (s *StripeSheet) Present(ctx context.Context, clientSecret string) error {
	if s.PaymentMethod == "" {
		return ErrCanceled
	}
	if s.PublishableKey == "" {
		return errors.New("stripe publishable key is not configured")
	}
	intent := IntentID(clientSecret)
	if intent == "" || intent == clientSecret {
		return fmt.Errorf("malformed client secret")
	}

	form := url.Values{
		"client_secret":  {clientSecret},
		"payment_method": {s.PaymentMethod},
	}
	base := s.BaseURL
	if base == "" {
		base = DefaultStripeURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(base, "/")+"/v1/payment_intents/"+url.PathEscape(intent)+"/confirm",
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build stripe request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+s.PublishableKey)

	client := s.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("reach stripe: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read stripe response: %w", err)
	}
	var body stripeIntent
	_ = json.Unmarshal(raw, &body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if body.Error != nil && body.Error.Message != "" {
			return errors.New(body.Error.Message)
		}
		return fmt.Errorf("stripe returned %d", resp.StatusCode)
	}

	switch body.Status {
	case "succeeded", "processing", "requires_capture":
		return nil
	case "canceled":
		return ErrCanceled
	case "requires_action":
		return errors.New("this payment needs additional authentication")
	default:
		if body.LastPaymentError != nil && body.LastPaymentError.Message != "" {
			return errors.New(body.LastPaymentError.Message)
		}
		return fmt.Errorf("payment not completed (status %q)", body.Status)
	}
}
