// Package event はドメインイベントの配送先を提供します。
package event

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	coreevent "github.com/ogurasousui/codex-hr-lifecycle/internal/core/event"
)

// LogPublisher はイベントを構造化ログとして出力します。
type LogPublisher struct {
	log zerolog.Logger
}

// NewLogPublisher は LogPublisher を生成します。
func NewLogPublisher(log zerolog.Logger) *LogPublisher {
	return &LogPublisher{log: log.With().Str("component", "events").Logger()}
}

// Publish はイベントを info レベルで出力します。
func (p *LogPublisher) Publish(_ context.Context, events ...coreevent.Event) error {
	for _, ev := range events {
		p.log.Info().
			Str("event_id", ev.ID).
			Str("event_type", string(ev.Type)).
			Str("aggregate_type", ev.AggregateType).
			Str("aggregate_id", ev.AggregateID).
			Time("occurred_at", ev.OccurredAt).
			Fields(ev.Payload).
			Msg("domain event")
	}
	return nil
}

// FanOut は複数の Publisher に順に配送します。
type FanOut []coreevent.Publisher

// Publish はすべての配送先に配送し、失敗をまとめて返します。
func (f FanOut) Publish(ctx context.Context, events ...coreevent.Event) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, events...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
