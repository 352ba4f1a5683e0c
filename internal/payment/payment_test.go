package payment

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nightvibe/nightvibe/internal/backend"
	"github.com/nightvibe/nightvibe/internal/bus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	secret     string
	intentErr  error
	confirmErr error
	confirms   []string
}

func (f *fakeAPI) CreatePaymentIntent(context.Context, backend.Product, string) (string, error) {
	return f.secret, f.intentErr
}

func (f *fakeAPI) ConfirmPurchase(_ context.Context, p backend.Product, id, intent string) error {
	f.confirms = append(f.confirms, string(p)+"/"+id+"/"+intent)
	return f.confirmErr
}

type sheetFunc func(context.Context, string) error

func (f sheetFunc) Present(ctx context.Context, secret string) error { return f(ctx, secret) }

type fakeTickets struct{ issued []string }

func (f *fakeTickets) Issue(eventID, intent string) (string, error) {
	f.issued = append(f.issued, eventID+"/"+intent)
	return "/tmp/" + eventID + ".png", nil
}

func paid(context.Context, string) error { return nil }

func TestIntentID(t *testing.T) {
	tests := []struct{ in, want string }{
		{"pi_123_secret_abc", "pi_123"},
		{"pi_456", "pi_456"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IntentID(tt.in), tt.in)
	}
}

func TestPayForTicket(t *testing.T) {
	tests := []struct {
		name  string
		api   *fakeAPI
		sheet sheetFunc
		want  Result
	}{
		{
			name:  "success",
			api:   &fakeAPI{secret: "pi_1_secret_x"},
			sheet: paid,
			want:  Result{Success: true, PaymentIntentID: "pi_1"},
		},
		{
			name:  "user cancels",
			api:   &fakeAPI{secret: "pi_1_secret_x"},
			sheet: func(context.Context, string) error { return ErrCanceled },
			want:  Result{Canceled: true},
		},
		{
			name:  "sheet processing error",
			api:   &fakeAPI{secret: "pi_1_secret_x"},
			sheet: func(context.Context, string) error { return errors.New("Your card was declined.") },
			want:  Result{Error: "Your card was declined."},
		},
		{
			name:  "server rejects intent",
			api:   &fakeAPI{intentErr: &backend.APIError{Status: 409, Message: "Event is sold out"}},
			sheet: paid,
			want:  Result{Error: "Event is sold out"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewController(tt.api, tt.sheet, nil, nil, nil)
			assert.Equal(t, tt.want, c.PayForTicket(context.Background(), "e1"))
		})
	}
}

func TestPurchaseTicketRendersQR(t *testing.T) {
	api := &fakeAPI{secret: "pi_9_secret_x"}
	tk := &fakeTickets{}
	b := bus.New()
	events, unsub := b.Subscribe(bus.KindPaymentOutcome, 1)
	defer unsub()

	got := NewController(api, sheetFunc(paid), tk, b, nil).PurchaseTicket(context.Background(), "e1")

	assert.Equal(t, Purchased, got.Outcome)
	assert.Equal(t, "/tmp/e1.png", got.TicketPath)
	assert.Equal(t, []string{"ticket/e1/pi_9"}, api.confirms)
	assert.Equal(t, []string{"e1/pi_9"}, tk.issued)
	evt := <-events
	assert.Equal(t, Purchased, evt.Payload.(Purchase).Outcome)
}

func TestPurchaseConfirmFailureIsFulfillmentFailed(t *testing.T) {
	api := &fakeAPI{secret: "pi_9_secret_x", confirmErr: &backend.NetworkError{Op: "POST", Err: errors.New("timeout")}}
	tk := &fakeTickets{}
	c := NewController(api, sheetFunc(paid), tk, nil, nil)

	got := c.PurchaseGuide(context.Background(), "g1")
	assert.Equal(t, FulfillmentFailed, got.Outcome)
	assert.Equal(t, "pi_9", got.PaymentIntentID)
	assert.Contains(t, got.Message, "support")
	assert.Contains(t, got.Message, "pi_9")
	assert.Empty(t, tk.issued)

	paymentFailed := NewController(&fakeAPI{secret: "pi_1_secret_x"}, sheetFunc(func(context.Context, string) error {
		return errors.New("declined")
	}), nil, nil, nil).PurchaseGuide(context.Background(), "g1")
	assert.NotEqual(t, paymentFailed.Message, got.Message, "fulfillment failures need distinct text")

	api.confirmErr = nil
	retried := c.RetryConfirm(context.Background(), backend.ProductGuide, "g1", "pi_9")
	assert.Equal(t, Purchased, retried.Outcome)
	assert.Len(t, api.confirms, 2)
}

func TestPurchaseCanceled(t *testing.T) {
	api := &fakeAPI{secret: "pi_1_secret_x"}
	got := NewController(api, nil, nil, nil, nil).
		WithSheet(sheetFunc(func(context.Context, string) error { return ErrCanceled })).
		PurchaseTicket(context.Background(), "e1")
	assert.Equal(t, Canceled, got.Outcome)
	assert.Empty(t, got.Message)
	assert.Empty(t, api.confirms)
}

func TestFulfillmentErrorUserMessage(t *testing.T) {
	err := &FulfillmentError{Product: backend.ProductTicket, ItemID: "e1", PaymentIntentID: "pi_1", Err: errors.New("x")}
	assert.Contains(t, backend.UserMessage(err), "contact support")
}

func TestStripeSheet(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"succeeded", 200, `{"status":"succeeded"}`, ""},
		{"needs action", 200, `{"status":"requires_action"}`, "additional authentication"},
		{"declined", 402, `{"error":{"message":"Your card was declined."}}`, "Your card was declined."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v1/payment_intents/pi_1/confirm", r.URL.Path)
				assert.Equal(t, "Bearer pk_test", r.Header.Get("Authorization"))
				require.NoError(t, r.ParseForm())
				assert.Equal(t, "pi_1_secret_x", r.PostForm.Get("client_secret"))
				assert.Equal(t, "pm_card_visa", r.PostForm.Get("payment_method"))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			s := NewStripeSheet("pk_test", "pm_card_visa")
			s.BaseURL = srv.URL
			err := s.Present(context.Background(), "pi_1_secret_x")
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.wantErr), err.Error())
		})
	}
}

func TestStripeSheetWithoutPaymentMethodIsCanceled(t *testing.T) {
	err := NewStripeSheet("pk_test", "").Present(context.Background(), "pi_1_secret_x")
	assert.ErrorIs(t, err, ErrCanceled)
}
