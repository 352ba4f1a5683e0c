// Package payment drives the purchase flow: create a payment intent on the
// API, present the payment sheet, then confirm the purchase so the API can
// fulfil it.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nightvibe/nightvibe/internal/backend"
	"github.com/nightvibe/nightvibe/internal/bus"
	"github.com/nightvibe/nightvibe/internal/metrics"
	"go.uber.org/zap"
)

// ErrCanceled is returned by a Sheet when the user dismisses it.
var ErrCanceled = errors.New("payment canceled")

// Sheet presents the payment UI for a client secret. It returns nil once
// the payment succeeded, ErrCanceled when the user backed out, and any
// other error when processing failed.
type Sheet interface {
	Present(ctx context.Context, clientSecret string) error
}

// API is the REST surface of the payment flow.
type API interface {
	CreatePaymentIntent(ctx context.Context, p backend.Product, id string) (string, error)
	ConfirmPurchase(ctx context.Context, p backend.Product, id, paymentIntentID string) error
}

// TicketIssuer renders a ticket once its purchase is fulfilled.
type TicketIssuer interface {
	Issue(eventID, paymentIntentID string) (string, error)
}

// Result is the outcome of the payment step alone.
type Result struct {
	Success         bool
	Canceled        bool
	Error           string
	PaymentIntentID string
}

// Outcome classifies a full purchase.
type Outcome string

const (
	Purchased         Outcome = "purchased"
	Canceled          Outcome = "canceled"
	PaymentFailed     Outcome = "payment_failed"
	FulfillmentFailed Outcome = "fulfillment_failed"
)

// Purchase is the outcome of pay-then-confirm.
type Purchase struct {
	Product         backend.Product
	ItemID          string
	Outcome         Outcome
	PaymentIntentID string
	// Message is the user-facing text; empty for a cancellation.
	Message string
	// TicketPath is the rendered QR code of a purchased ticket, if any.
	TicketPath string
}

// FulfillmentError means the card was charged but the purchase could not be
// confirmed with the API.
type FulfillmentError struct {
	Product         backend.Product
	ItemID          string
	PaymentIntentID string
	Err             error
}

func (e *FulfillmentError) Error() string {
	return fmt.Sprintf("confirm %s %s (intent %s): %v", e.Product, e.ItemID, e.PaymentIntentID, e.Err)
}

func (e *FulfillmentError) Unwrap() error { return e.Err }

// UserMessage points the user at support; the payment itself went through.
func (e *FulfillmentError) UserMessage() string {
	return "Your payment was received but we could not complete your purchase. " +
		"Please contact support and quote reference " + e.PaymentIntentID + "."
}

// Controller runs purchases. It is safe for concurrent use.
type Controller struct {
	api     API
	sheet   Sheet
	tickets TicketIssuer
	bus     *bus.Bus
	logger  *zap.Logger
}

// NewController creates a controller. tickets may be nil.
func NewController(api API, sheet Sheet, tickets TicketIssuer, b *bus.Bus, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{api: api, sheet: sheet, tickets: tickets, bus: b, logger: logger}
}

// WithSheet returns a copy of c presenting s instead of the default sheet.
func (c *Controller) WithSheet(s Sheet) *Controller {
	cp := *c
	cp.sheet = s
	return &cp
}

// PayForTicket runs the payment step for an event ticket.
func (c *Controller) PayForTicket(ctx context.Context, eventID string) Result {
	return c.pay(ctx, backend.ProductTicket, eventID)
}

// PayForGuide runs the payment step for a city guide.
func (c *Controller) PayForGuide(ctx context.Context, guideID string) Result {
	return c.pay(ctx, backend.ProductGuide, guideID)
}

// PurchaseTicket pays for and confirms an event ticket, then renders its
// QR code.
func (c *Controller) PurchaseTicket(ctx context.Context, eventID string) Purchase {
	return c.purchase(ctx, backend.ProductTicket, eventID)
}

// PurchaseGuide pays for and confirms a city guide.
func (c *Controller) PurchaseGuide(ctx context.Context, guideID string) Purchase {
	return c.purchase(ctx, backend.ProductGuide, guideID)
}

// RetryConfirm re-issues the confirm call of a purchase that ended in
// FulfillmentFailed. The API is expected to treat repeated confirms of the
// same intent as one.
func (c *Controller) RetryConfirm(ctx context.Context, p backend.Product, itemID, paymentIntentID string) Purchase {
	out := c.confirm(ctx, p, itemID, paymentIntentID)
	c.record(out)
	return out
}

// IntentID extracts the payment-intent id from a client secret of the
// form "<id>_secret_<nonce>".
func IntentID(clientSecret string) string {
	id, _, _ := strings.Cut(clientSecret, "_secret_")
	return id
}

func (c *Controller) pay(ctx context.Context, p backend.Product, id string) Result {
	log := c.logger.With(zap.String("product", string(p)), zap.String("item", id))

	secret, err := c.api.CreatePaymentIntent(ctx, p, id)
	if err != nil {
		log.Warn("create payment intent failed", zap.Error(err))
		return Result{Error: backend.UserMessage(err)}
	}

	if c.sheet == nil {
		return Result{Error: "Payments are not available on this device."}
	}
	if err := c.sheet.Present(ctx, secret); err != nil {
		if errors.Is(err, ErrCanceled) {
			log.Info("payment sheet dismissed")
			return Result{Canceled: true}
		}
		log.Warn("payment sheet failed", zap.Error(err))
		return Result{Error: err.Error()}
	}

	intent := IntentID(secret)
	log.Info("payment succeeded", zap.String("payment_intent", intent))
	return Result{Success: true, PaymentIntentID: intent}
}

func (c *Controller) purchase(ctx context.Context, p backend.Product, id string) Purchase {
	r := c.pay(ctx, p, id)
	var out Purchase
	switch {
	case r.Success:
		out = c.confirm(ctx, p, id, r.PaymentIntentID)
	case r.Canceled:
		out = Purchase{Product: p, ItemID: id, Outcome: Canceled}
	default:
		out = Purchase{Product: p, ItemID: id, Outcome: PaymentFailed, Message: r.Error}
	}
	c.record(out)
	return out
}

func (c *Controller) confirm(ctx context.Context, p backend.Product, id, intent string) Purchase {
	out := Purchase{Product: p, ItemID: id, PaymentIntentID: intent}
	if err := c.api.ConfirmPurchase(ctx, p, id, intent); err != nil {
		ferr := &FulfillmentError{Product: p, ItemID: id, PaymentIntentID: intent, Err: err}
		c.logger.Error("purchase confirmation failed after successful payment", zap.Error(ferr))
		out.Outcome = FulfillmentFailed
		out.Message = ferr.UserMessage()
		return out
	}

	out.Outcome = Purchased
	out.Message = "Purchase complete."
	if p == backend.ProductTicket && c.tickets != nil {
		path, err := c.tickets.Issue(id, intent)
		if err != nil {
			c.logger.Warn("render ticket failed", zap.Error(err))
		} else {
			out.TicketPath = path
		}
	}
	return out
}

func (c *Controller) record(out Purchase) {
	metrics.IncPayment(string(out.Product), string(out.Outcome))
	c.bus.Emit(bus.KindPaymentOutcome, out)
}
