// Package metrics holds the daemon's Prometheus collectors.
package metrics

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

var (
	backendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nightvibe_backend_requests_total",
			Help: "Total number of REST requests issued to the NightVibe API.",
		},
		[]string{"method", "route", "status"},
	)
	backendRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nightvibe_backend_request_duration_seconds",
			Help:    "REST request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	realtimeConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nightvibe_realtime_connected",
			Help: "1 while the realtime channel is connected.",
		},
	)
	realtimeReconnectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nightvibe_realtime_reconnects_total",
			Help: "Reconnect attempts after an unexpected drop, by result.",
		},
		[]string{"result"},
	)
	realtimeEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nightvibe_realtime_events_total",
			Help: "Realtime frames by direction and event name.",
		},
		[]string{"direction", "event"},
	)
	transcriptMergesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nightvibe_transcript_merges_total",
			Help: "Messages merged into transcripts, by source and result.",
		},
		[]string{"source", "result"},
	)
	messagesSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nightvibe_messages_sent_total",
			Help: "Outgoing messages by outcome.",
		},
		[]string{"outcome"},
	)
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nightvibe_payments_total",
			Help: "Payment flows by product and outcome.",
		},
		[]string{"product", "outcome"},
	)
	busDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nightvibe_bus_dropped_events_total",
			Help: "Events dropped because a subscriber was slow.",
		},
	)
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nightvibe_http_requests_total",
			Help: "Requests served by the daemon's metrics/health endpoint.",
		},
		[]string{"method", "route", "status"},
	)
	grpcServerHandledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grpc_server_handled_total",
			Help: "Total number of gRPC requests handled by the control server.",
		},
		[]string{"grpc_service", "grpc_method", "grpc_code"},
	)
)

func init() {
	prometheus.MustRegister(
		backendRequestsTotal,
		backendRequestDuration,
		realtimeConnected,
		realtimeReconnectsTotal,
		realtimeEventsTotal,
		transcriptMergesTotal,
		messagesSentTotal,
		paymentsTotal,
		busDroppedTotal,
		httpRequestsTotal,
		grpcServerHandledTotal,
	)
}

func ObserveBackendRequest(method, route string, status int, d time.Duration) {
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	backendRequestsTotal.WithLabelValues(method, route, code).Inc()
	backendRequestDuration.WithLabelValues(route).Observe(d.Seconds())
}

func SetRealtimeConnected(up bool) {
	if up {
		realtimeConnected.Set(1)
		return
	}
	realtimeConnected.Set(0)
}

func IncReconnect(result string) {
	realtimeReconnectsTotal.WithLabelValues(result).Inc()
}

func IncRealtimeEvent(direction, event string) {
	realtimeEventsTotal.WithLabelValues(direction, event).Inc()
}

// IncMerge records a merge; duplicate is true when the id was already present.
func IncMerge(source string, duplicate bool) {
	result := "added"
	if duplicate {
		result = "duplicate"
	}
	transcriptMergesTotal.WithLabelValues(source, result).Inc()
}

func IncSend(outcome string) {
	messagesSentTotal.WithLabelValues(outcome).Inc()
}

func IncPayment(product, outcome string) {
	paymentsTotal.WithLabelValues(product, outcome).Inc()
}

func AddBusDropped(n int) {
	if n > 0 {
		busDroppedTotal.Add(float64(n))
	}
}

// HTTPMiddleware counts requests served by a gin router.
func HTTPMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

// UnaryServerInterceptor counts handled control-API calls by status code.
func UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		service, method := splitFullMethod(info.FullMethod)
		grpcServerHandledTotal.WithLabelValues(service, method, status.Convert(err).Code().String()).Inc()
		return resp, err
	}
}

// StreamServerInterceptor counts handled streaming calls by status code.
func StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		err := handler(srv, ss)
		service, method := splitFullMethod(info.FullMethod)
		grpcServerHandledTotal.WithLabelValues(service, method, status.Convert(err).Code().String()).Inc()
		return err
	}
}

func splitFullMethod(fullMethod string) (string, string) {
	parts := strings.Split(fullMethod, "/")
	if len(parts) < 3 {
		return "unknown", "unknown"
	}
	return parts[1], parts[2]
}
