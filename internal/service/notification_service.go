package service

import (
	"context"
	"sync"
	"time"

	"github.com/nithin1018/Village-Banking-App/config"
	"github.com/nithin1018/Village-Banking-App/internal/core/domain"
	"github.com/nithin1018/Village-Banking-App/internal/core/ports"

	"github.com/rs/zerolog"
)

// NotificationDispatcher implements ports.Notifier with a bounded queue
// drained by a fixed set of worker goroutines.
type NotificationDispatcher struct {
	sender      ports.MailSender
	queue       chan domain.Notification
	workers     int
	maxAttempts int
	backoff     time.Duration
	sendTimeout time.Duration
	log         zerolog.Logger
}

// NewNotificationDispatcher creates a dispatcher. Call Run to start delivering.
func NewNotificationDispatcher(sender ports.MailSender, cfg config.NotificationConfig, log zerolog.Logger) *NotificationDispatcher {
	d := &NotificationDispatcher{
		sender:      sender,
		queue:       make(chan domain.Notification, max(cfg.QueueSize, 1)),
		workers:     max(cfg.Workers, 1),
		maxAttempts: max(cfg.MaxAttempts, 1),
		backoff:     cfg.Backoff,
		sendTimeout: cfg.SendTimeout,
		log:         log,
	}
	return d
}

// Notify enqueues n without blocking. When the queue is full the notification is dropped.
func (d *NotificationDispatcher) Notify(ctx context.Context, n domain.Notification) {
	select {
	case d.queue <- n:
	default:
		d.log.Warn().Str("recipient", n.Recipient).Str("subject", n.Subject).Msg("notification queue full, dropping")
	}
}

// Run starts the workers and blocks until ctx is cancelled and they have exited.
func (d *NotificationDispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			d.work(ctx, id)
		}(i)
	}
	wg.Wait()

	if pending := len(d.queue); pending > 0 {
		d.log.Warn().Int("pending", pending).Msg("notification dispatcher stopped with undelivered messages")
	}
}

func (d *NotificationDispatcher) work(ctx context.Context, id int) {
	log := d.log.With().Int("worker", id).Logger()
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-d.queue:
			d.deliver(ctx, log, n)
		}
	}
}

func (d *NotificationDispatcher) deliver(ctx context.Context, log zerolog.Logger, n domain.Notification) {
	var err error
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		err = d.send(ctx, n)
		if err == nil {
			log.Debug().Str("recipient", n.Recipient).Int("attempt", attempt).Msg("notification delivered")
			return
		}
		log.Warn().Err(err).Str("recipient", n.Recipient).Int("attempt", attempt).Msg("notification attempt failed")

		if attempt == d.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.backoff * time.Duration(attempt)):
		}
	}

	log.Error().Err(err).
		Str("recipient", n.Recipient).
		Int("attempts", d.maxAttempts).
		Msg("notification delivery failed")
}

func (d *NotificationDispatcher) send(ctx context.Context, n domain.Notification) error {
	if d.sendTimeout <= 0 {
		return d.sender.Send(ctx, n)
	}
	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()
	return d.sender.Send(sendCtx, n)
}
