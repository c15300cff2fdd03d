// Package metrics holds the Prometheus collectors shared across the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swap_events_published_total",
		Help: "Realtime events handed to the publisher, by kind.",
	}, []string{"kind"})

	PublishFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swap_publish_failures_total",
		Help: "Realtime events the publisher failed to deliver, by kind.",
	}, []string{"kind"})

	EventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swap_events_dropped_total",
		Help: "Events dropped because a queue or session buffer was full.",
	}, []string{"stage"})

	SocketSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "swap_socket_sessions",
		Help: "Open realtime socket sessions.",
	})

	PushNotifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swap_push_notifications_total",
		Help: "Web push deliveries, by result.",
	}, []string{"result"})

	OrderDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swap_order_decisions_total",
		Help: "Subscription enforcement decisions, by outcome.",
	}, []string{"outcome"})

	SubscriptionsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swap_subscriptions_expired_total",
		Help: "Subscriptions deactivated by the expiry sweep.",
	})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swap_http_requests_total",
		Help: "HTTP requests by route and status.",
	}, []string{"method", "route", "status"})
)
