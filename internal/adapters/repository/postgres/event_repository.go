package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ogurasousui/codex-hr-lifecycle/internal/core/event"
	pgdb "github.com/ogurasousui/codex-hr-lifecycle/internal/platform/db/postgres"
)

// EventOutbox はドメインイベントを domain_events テーブルへ書き込む Publisher です。
// 呼び出し元のトランザクション内で書き込まれるため、状態変更と同時にコミットされます。
type EventOutbox struct {
	pool pgdb.Queryer
}

// NewEventOutbox は EventOutbox を生成します。
func NewEventOutbox(pool pgdb.Queryer) *EventOutbox {
	return &EventOutbox{pool: pool}
}

// Publish はイベントを outbox に追加します。
func (o *EventOutbox) Publish(ctx context.Context, events ...event.Event) error {
	exec := pgdb.QueryerFromContext(ctx, o.pool)
	for _, ev := range events {
		payload, err := json.Marshal(ev.Payload)
		if err != nil {
			return fmt.Errorf("outbox: encode %s payload: %w", ev.Type, err)
		}
		if _, err := exec.Exec(ctx, `
        INSERT INTO domain_events (id, event_type, aggregate_type, aggregate_id, payload, occurred_at)
        VALUES ($1, $2, $3, $4, $5::jsonb, $6)`,
			ev.ID,
			string(ev.Type),
			ev.AggregateType,
			ev.AggregateID,
			string(payload),
			ev.OccurredAt.UTC(),
		); err != nil {
			return fmt.Errorf("outbox: insert %s: %w", ev.Type, err)
		}
	}
	return nil
}

// ListUnpublished は未配送のイベントを発生順に取得します。
func (o *EventOutbox) ListUnpublished(ctx context.Context, limit int) ([]event.Event, error) {
	exec := pgdb.QueryerFromContext(ctx, o.pool)
	rows, err := exec.Query(ctx, `
        SELECT id, event_type, aggregate_type, aggregate_id, payload::text, occurred_at
          FROM domain_events
         WHERE published_at IS NULL
         ORDER BY occurred_at, id
         LIMIT $1
           FOR UPDATE SKIP LOCKED`, limit)
	if err != nil {
		return nil, fmt.Errorf("outbox: list unpublished: %w", err)
	}
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		var (
			ev      event.Event
			typ     string
			payload string
		)
		if err := rows.Scan(&ev.ID, &typ, &ev.AggregateType, &ev.AggregateID, &payload, &ev.OccurredAt); err != nil {
			return nil, fmt.Errorf("outbox: scan: %w", err)
		}
		ev.Type = event.Type(typ)
		if err := json.Unmarshal([]byte(payload), &ev.Payload); err != nil {
			return nil, fmt.Errorf("outbox: decode %s payload: %w", ev.ID, err)
		}
		ev.OccurredAt = ev.OccurredAt.UTC()
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("outbox: list unpublished: %w", err)
	}
	return events, nil
}

// MarkPublished はイベントを配送済みにします。
func (o *EventOutbox) MarkPublished(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	exec := pgdb.QueryerFromContext(ctx, o.pool)
	if _, err := exec.Exec(ctx, `
        UPDATE domain_events
           SET published_at = $1
         WHERE id = ANY($2) AND published_at IS NULL`, at.UTC(), ids); err != nil {
		return fmt.Errorf("outbox: mark published: %w", err)
	}
	return nil
}
