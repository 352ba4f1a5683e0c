package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestSplitFullMethod(t *testing.T) {
	tests := []struct {
		in            string
		service, meth string
	}{
		{"/nightvibe.v1.ChatService/Send", "nightvibe.v1.ChatService", "Send"},
		{"bogus", "unknown", "unknown"},
	}
	for _, tt := range tests {
		s, m := splitFullMethod(tt.in)
		assert.Equal(t, tt.service, s)
		assert.Equal(t, tt.meth, m)
	}
}

func TestMergeCounters(t *testing.T) {
	before := testutil.ToFloat64(transcriptMergesTotal.WithLabelValues("push", "duplicate"))
	IncMerge("push", true)
	after := testutil.ToFloat64(transcriptMergesTotal.WithLabelValues("push", "duplicate"))
	assert.Equal(t, before+1, after)
}

func TestObserveBackendRequestWithoutStatus(t *testing.T) {
	before := testutil.ToFloat64(backendRequestsTotal.WithLabelValues("GET", "/chats", "error"))
	ObserveBackendRequest("GET", "/chats", 0, time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(backendRequestsTotal.WithLabelValues("GET", "/chats", "error")))
}

func TestRealtimeGauge(t *testing.T) {
	SetRealtimeConnected(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(realtimeConnected))
	SetRealtimeConnected(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(realtimeConnected))
}

func TestUnaryInterceptorRecordsCode(t *testing.T) {
	icpt := UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/nightvibe.v1.PaymentService/PurchaseTicket"}
	counter := grpcServerHandledTotal.WithLabelValues("nightvibe.v1.PaymentService", "PurchaseTicket", codes.Unavailable.String())
	before := testutil.ToFloat64(counter)

	_, err := icpt(context.Background(), nil, info, func(context.Context, any) (any, error) {
		return nil, status.Error(codes.Unavailable, "down")
	})
	require.Error(t, err)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))

	_, err = icpt(context.Background(), nil, info, func(context.Context, any) (any, error) {
		return nil, errors.New("plain")
	})
	require.Error(t, err)
}

func TestHTTPMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(HTTPMiddleware())
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	counter := httpRequestsTotal.WithLabelValues("GET", "/healthz", "204")
	before := testutil.ToFloat64(counter)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}
