package notification

import (
	"context"
	"net/http"
	"sync"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/rs/zerolog/log"

	"battery-swap-backend/internal/broadcast"
	"battery-swap-backend/internal/metrics"
	"battery-swap-backend/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// PushStore is the slice of the store the pool needs to mirror private events.
type PushStore interface {
	PushSubscriptions(ctx context.Context, userID int64) ([]model.PushSubscription, error)
	DeletePushSubscription(ctx context.Context, endpoint string) error
}

// WorkerPool publishes queued deliveries off the request path. Deliveries
// addressed to a user are also sent to that user's web push endpoints.
type WorkerPool struct {
	size      int
	jobs      chan broadcast.Delivery
	publisher broadcast.Publisher
	pushes    PushStore
	webpush   *webpush.Options
	sender    NotificationSender
	wg        sync.WaitGroup
}

// NewWorkerPool creates a new worker pool. pushes or webpushOptions may be
// nil, which disables the web push mirror.
func NewWorkerPool(size, queue int, publisher broadcast.Publisher, pushes PushStore, webpushOptions *webpush.Options) *WorkerPool {
	if size < 1 {
		size = 1
	}
	if queue < 1 {
		queue = size
	}
	return &WorkerPool{
		size:      size,
		jobs:      make(chan broadcast.Delivery, queue),
		publisher: publisher,
		pushes:    pushes,
		webpush:   webpushOptions,
		sender:    &WebPushSender{}, // Use the real sender by default
	}
}

// Start launches the worker goroutines. They exit when ctx is cancelled.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
}

// Wait blocks until every worker has returned.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()
	log.Debug().Int("worker", id).Msg("notification worker started")
	for {
		select {
		case d := <-wp.jobs:
			wp.process(ctx, d)
		case <-ctx.Done():
			log.Debug().Int("worker", id).Msg("notification worker shutting down")
			return
		}
	}
}

// Dispatch queues a delivery without blocking. When the queue is full the
// delivery is dropped and counted.
func (wp *WorkerPool) Dispatch(d broadcast.Delivery) {
	select {
	case wp.jobs <- d:
	default:
		metrics.EventsDropped.WithLabelValues("dispatch").Inc()
		log.Warn().Str("group", d.Group).Str("kind", string(d.Event.Kind())).Msg("notification queue full, dropping event")
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan broadcast.Delivery {
	return wp.jobs
}

func (wp *WorkerPool) process(ctx context.Context, d broadcast.Delivery) {
	broadcast.Deliver(ctx, wp.publisher, d)
	if d.UserID != 0 {
		wp.pushToUser(ctx, d.UserID, d.Event)
	}
}

// pushToUser mirrors a private event to every push endpoint the user registered.
func (wp *WorkerPool) pushToUser(ctx context.Context, userID int64, ev broadcast.Event) {
	if wp.pushes == nil || wp.webpush == nil {
		return
	}
	subscriptions, err := wp.pushes.PushSubscriptions(ctx, userID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("failed to load push subscriptions")
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	payload, err := broadcast.Encode(ev)
	if err != nil {
		log.Error().Err(err).Str("kind", string(ev.Kind())).Msg("failed to encode push payload")
		return
	}
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		metrics.PushNotifications.WithLabelValues("error").Inc()
		log.Warn().Err(err).Str("endpoint", sub.Endpoint).Msg("error sending push notification")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		metrics.PushNotifications.WithLabelValues("gone").Inc()
		log.Info().Str("endpoint", sub.Endpoint).Msg("push subscription expired, deleting")
		if err := wp.pushes.DeletePushSubscription(ctx, sub.Endpoint); err != nil {
			log.Error().Err(err).Str("endpoint", sub.Endpoint).Msg("failed to delete expired push subscription")
		}
		return
	}
	metrics.PushNotifications.WithLabelValues("sent").Inc()
}
