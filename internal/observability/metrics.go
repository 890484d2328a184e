package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatclient_ws_events_total",
			Help: "Total number of websocket events by type.",
		},
		[]string{"event"},
	)
	reconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatclient_reconnects_total",
			Help: "Total number of reconnect attempts after a transport drop.",
		},
	)
	connectionState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatclient_connection_state",
			Help: "Connection state (0 disconnected, 1 connecting, 2 connected, 3 reconnecting).",
		},
	)
	unreadTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatclient_unread_total",
			Help: "Sum of unread counts across all tracked rooms.",
		},
	)
	pendingMessages = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatclient_pending_messages",
			Help: "Number of optimistic messages awaiting server confirmation.",
		},
	)
	sendConfirmDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chatclient_send_confirm_duration_seconds",
			Help:    "Time from optimistic append to server confirmation.",
			Buckets: prometheus.DefBuckets,
		},
	)
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatclient_http_requests_total",
			Help: "Total number of HTTP requests served by the monitor surface.",
		},
		[]string{"method", "route", "status"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatclient_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		wsEventsTotal,
		reconnectsTotal,
		connectionState,
		unreadTotal,
		pendingMessages,
		sendConfirmDuration,
		httpRequestsTotal,
		amqpPublishErrorsTotal,
	)
}

// HTTPMetricsMiddleware records request counts for the monitor router.
func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

func IncWSEvent(event string) {
	wsEventsTotal.WithLabelValues(event).Inc()
}

func IncReconnect() {
	reconnectsTotal.Inc()
}

func SetConnectionState(state int) {
	connectionState.Set(float64(state))
}

func SetUnreadTotal(total int) {
	unreadTotal.Set(float64(total))
}

func SetPendingMessages(n int) {
	pendingMessages.Set(float64(n))
}

func ObserveSendConfirm(d time.Duration) {
	sendConfirmDuration.Observe(d.Seconds())
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
