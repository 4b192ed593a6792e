package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"slot-auction/internal/domain"
	"slot-auction/pkg/logger"
	"slot-auction/pkg/metrics"
)

// NotificationSink is one delivery target of the outbox relay.
type NotificationSink struct {
	Name      string
	Publisher domain.NotificationPublisher
}

type OutboxRelayConfig struct {
	Schedule   string
	BatchSize  int
	InstanceID string
}

// OutboxRelay hands committed notifications to the messaging sinks on its own
// cron schedule, apart from any bidding path. Only the elected leader relays,
// so each notification is published by one instance in sequence order.
type OutboxRelay struct {
	cron    *cron.Cron
	outbox  domain.NotificationOutbox
	sinks   []NotificationSink
	leader  domain.LeaderElection
	clock   domain.Clock
	cfg     OutboxRelayConfig
	metrics *metrics.Metrics
	log     logger.Logger

	// running keeps scheduled runs from overlapping.
	running sync.Mutex
}

func NewOutboxRelay(
	outbox domain.NotificationOutbox,
	sinks []NotificationSink,
	leader domain.LeaderElection,
	clock domain.Clock,
	cfg OutboxRelayConfig,
	m *metrics.Metrics,
	log logger.Logger,
) *OutboxRelay {
	return &OutboxRelay{
		cron:    cron.New(cron.WithSeconds()),
		outbox:  outbox,
		sinks:   sinks,
		leader:  leader,
		clock:   clock,
		cfg:     cfg,
		metrics: m,
		log:     log,
	}
}

func (r *OutboxRelay) Start(ctx context.Context) error {
	r.log.Info("Starting outbox relay", "schedule", r.cfg.Schedule, "batch_size", r.cfg.BatchSize)

	_, err := r.cron.AddFunc(r.cfg.Schedule, func() {
		if _, err := r.RelayOnce(ctx); err != nil {
			r.log.Error("Outbox relay run failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("relay: schedule %q: %w", r.cfg.Schedule, err)
	}

	r.cron.Start()
	return nil
}

func (r *OutboxRelay) Stop() error {
	r.log.Info("Stopping outbox relay")
	<-r.cron.Stop().Done()
	return nil
}

// RelayOnce publishes one batch of pending notifications and returns how many
// were marked dispatched. A sink failure stops the batch at that notification
// so later ones are never delivered ahead of it.
func (r *OutboxRelay) RelayOnce(ctx context.Context) (int, error) {
	if !r.running.TryLock() {
		return 0, nil
	}
	defer r.running.Unlock()

	leading, err := r.ensureLeader(ctx)
	if err != nil || !leading {
		return 0, err
	}

	pending, err := r.outbox.PendingNotifications(ctx, r.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("relay: read outbox: %w", err)
	}

	var delivered []string
	var failure error
	for _, n := range pending {
		if err := r.publish(ctx, n); err != nil {
			failure = err
			break
		}
		delivered = append(delivered, n.ID)
	}

	if len(delivered) > 0 {
		if err := r.outbox.MarkDispatched(ctx, delivered, r.clock.Now()); err != nil {
			return 0, fmt.Errorf("relay: mark dispatched: %w", err)
		}
		r.log.Debug("Relayed notifications", "count", len(delivered))
	}
	return len(delivered), failure
}

func (r *OutboxRelay) publish(ctx context.Context, n *domain.Notification) error {
	for _, sink := range r.sinks {
		err := sink.Publisher.PublishNotification(ctx, n)
		r.metrics.RecordNotificationRelayed(sink.Name, err)
		if err != nil {
			return fmt.Errorf("relay: publish %s to %s: %w", n.ID, sink.Name, err)
		}
	}
	return nil
}

func (r *OutboxRelay) ensureLeader(ctx context.Context) (bool, error) {
	if r.leader == nil {
		return true, nil
	}

	isLeader, err := r.leader.IsLeader(ctx, r.cfg.InstanceID)
	if err != nil {
		return false, fmt.Errorf("relay: check leadership: %w", err)
	}
	if isLeader {
		return true, nil
	}

	became, err := r.leader.BecomeLeader(ctx, r.cfg.InstanceID)
	if err != nil {
		return false, fmt.Errorf("relay: acquire leadership: %w", err)
	}
	if became {
		r.log.Info("Acquired outbox relay leadership", "instance_id", r.cfg.InstanceID)
	}
	return became, nil
}
