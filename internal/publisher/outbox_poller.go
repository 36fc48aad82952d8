package publisher

import (
	"context"
	"errors"
	"time"

	"github.com/DagmTesfu/ntt-business-launchpad/internal/domain"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

type OutboxStore interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]domain.OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id string) error
}

// OutboxPoller moves committed outbox rows to the publisher. An event is
// marked processed only after it was published, so delivery is at least
// once.
type OutboxPoller struct {
	repo      OutboxStore
	publisher Publisher
	eventTick time.Duration
	batchSize int
	log       *zap.Logger
}

func NewOutboxPoller(repo OutboxStore, publisher Publisher, eventTick time.Duration, batchSize int, log *zap.Logger) *OutboxPoller {
	if eventTick <= 0 {
		eventTick = time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OutboxPoller{
		repo:      repo,
		publisher: publisher,
		eventTick: eventTick,
		batchSize: batchSize,
		log:       log,
	}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.eventTick)
	defer eventTicker.Stop()

	p.log.Info("outbox poller started", zap.Duration("interval", p.eventTick))
	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-ctx.Done():
			p.log.Info("outbox poller stopped")
			return
		}
	}
}

// processUnpublishedEvents returns how many events were published and marked.
func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) int {
	events, err := p.repo.GetUnprocessedEvents(ctx, p.batchSize)
	if err != nil {
		p.log.Error("failed to fetch outbox events", zap.Error(err))
		return 0
	}

	processed := 0
	for i, event := range events {
		if err := p.publisher.Publish(ctx, event); err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				p.log.Warn("publisher unavailable, deferring outbox batch", zap.Int("pending", len(events)-i))
				return processed
			}
			p.log.Error("failed to publish outbox event", zap.String("event_id", event.ID), zap.Error(err))
			continue
		}

		if err := p.repo.MarkEventAsProcessed(ctx, event.ID); err != nil {
			p.log.Error("failed to mark outbox event as processed", zap.String("event_id", event.ID), zap.Error(err))
			continue
		}
		processed++
	}
	return processed
}
