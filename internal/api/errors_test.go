package api

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/nightvibe/nightvibe/internal/backend"
	"github.com/nightvibe/nightvibe/internal/chat"
	"github.com/nightvibe/nightvibe/internal/payment"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

func TestToStatus(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    codes.Code
		message string
	}{
		{"no token", backend.ErrUnauthenticated, codes.Unauthenticated, "Please log in to continue."},
		{"server 401", &backend.APIError{Status: 401}, codes.Unauthenticated, "Please log in to continue."},
		{"server message verbatim", &backend.APIError{Status: 409, Message: "Event is sold out"}, codes.FailedPrecondition, "Event is sold out"},
		{"server 500", &backend.APIError{Status: 502}, codes.Unavailable, "Something went wrong. Please try again."},
		{"network", &backend.NetworkError{Op: "GET /chats", Err: errors.New("refused")}, codes.Unavailable, "Network error. Check your connection and try again."},
		{"wrapped local", fmt.Errorf("chat c1: %w", chat.ErrNotOpen), codes.FailedPrecondition, chat.ErrNotOpen.Error()},
		{"empty message", chat.ErrEmptyMessage, codes.InvalidArgument, chat.ErrEmptyMessage.Error()},
		{"canceled", context.Canceled, codes.Canceled, "Something went wrong. Please try again."},
		{
			"fulfillment",
			&payment.FulfillmentError{PaymentIntentID: "pi_1", Err: errors.New("x")},
			codes.Internal,
			"Your payment was received but we could not complete your purchase. Please contact support and quote reference pi_1.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := grpcstatus.Convert(toStatus(tt.err))
			if st.Code() != tt.code {
				t.Errorf("code = %v, want %v", st.Code(), tt.code)
			}
			if st.Message() != tt.message {
				t.Errorf("message = %q, want %q", st.Message(), tt.message)
			}
		})
	}
	if toStatus(nil) != nil {
		t.Error("toStatus(nil) must be nil")
	}
}

func TestFullMethod(t *testing.T) {
	if got := FullMethod("ChatService", "Send"); got != "/nightvibe.v1.ChatService/Send" {
		t.Errorf("FullMethod = %q", got)
	}
}
