package api

import (
	"context"

	"github.com/nightvibe/nightvibe/internal/backend"
	"github.com/nightvibe/nightvibe/internal/payment"
	"google.golang.org/grpc"
)

// SheetFactory builds the payment sheet of one purchase from the payment
// method the caller picked.
type SheetFactory func(paymentMethod string) payment.Sheet

// PaymentServer is the purchase half of the control API.
type PaymentServer interface {
	PurchaseTicket(context.Context, *PurchaseRequest) (*PurchaseResponse, error)
	PurchaseGuide(context.Context, *PurchaseRequest) (*PurchaseResponse, error)
	RetryConfirm(context.Context, *RetryConfirmRequest) (*PurchaseResponse, error)
}

// PaymentService implements PaymentServer.
type PaymentService struct {
	ctrl     *payment.Controller
	newSheet SheetFactory
}

// NewPaymentService creates a new payment service.
func NewPaymentService(ctrl *payment.Controller, newSheet SheetFactory) *PaymentService {
	return &PaymentService{ctrl: ctrl, newSheet: newSheet}
}

func (s *PaymentService) PurchaseTicket(ctx context.Context, req *PurchaseRequest) (*PurchaseResponse, error) {
	if req.ItemID == "" {
		return nil, invalid("event id is required")
	}
	return purchaseOf(s.forRequest(req).PurchaseTicket(ctx, req.ItemID)), nil
}

func (s *PaymentService) PurchaseGuide(ctx context.Context, req *PurchaseRequest) (*PurchaseResponse, error) {
	if req.ItemID == "" {
		return nil, invalid("guide id is required")
	}
	return purchaseOf(s.forRequest(req).PurchaseGuide(ctx, req.ItemID)), nil
}

func (s *PaymentService) RetryConfirm(ctx context.Context, req *RetryConfirmRequest) (*PurchaseResponse, error) {
	p := backend.Product(req.Product)
	if p != backend.ProductTicket && p != backend.ProductGuide {
		return nil, invalid("product must be ticket or guide")
	}
	if req.ItemID == "" || req.PaymentIntentID == "" {
		return nil, invalid("item id and payment intent id are required")
	}
	return purchaseOf(s.ctrl.RetryConfirm(ctx, p, req.ItemID, req.PaymentIntentID)), nil
}

func (s *PaymentService) forRequest(req *PurchaseRequest) *payment.Controller {
	if s.newSheet == nil {
		return s.ctrl
	}
	return s.ctrl.WithSheet(s.newSheet(req.PaymentMethod))
}

func purchaseOf(p payment.Purchase) *PurchaseResponse {
	return &PurchaseResponse{
		Outcome:         p.Outcome,
		PaymentIntentID: p.PaymentIntentID,
		Message:         p.Message,
		TicketPath:      p.TicketPath,
	}
}

const paymentServiceName = "PaymentService"

// PaymentServiceDesc describes PaymentServer to grpc.Server.RegisterService.
var PaymentServiceDesc = grpc.ServiceDesc{
	ServiceName: servicePrefix + paymentServiceName,
	HandlerType: (*PaymentServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(paymentServiceName, "PurchaseTicket", PaymentServer.PurchaseTicket),
		unary(paymentServiceName, "PurchaseGuide", PaymentServer.PurchaseGuide),
		unary(paymentServiceName, "RetryConfirm", PaymentServer.RetryConfirm),
	},
}
