package worker

import (
	"context"
	"time"

	"github.com/ogurasousui/codex-hr-lifecycle/internal/core/event"
)

const relayBatchSize = 100

// Outbox は未配送イベントの取り出しと配送済み記録を行います。
type Outbox interface {
	ListUnpublished(ctx context.Context, limit int) ([]event.Event, error)
	MarkPublished(ctx context.Context, ids []string, at time.Time) error
}

// TransactionManager は読み書きトランザクションを提供します。
type TransactionManager interface {
	WithinReadWrite(ctx context.Context, fn func(context.Context) error) error
}

// OutboxRelay は outbox に溜まったイベントを target に配送する Task を返します。
// 配送と配送済み記録は同じトランザクションで行われ、失敗時は次回に再配送されます。
func OutboxRelay(outbox Outbox, target event.Publisher, tx TransactionManager) Task {
	return Task{
		Name: "outbox-relay",
		Run: func(ctx context.Context) (int, error) {
			total := 0
			for {
				var n int
				err := tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
					events, err := outbox.ListUnpublished(txCtx, relayBatchSize)
					if err != nil || len(events) == 0 {
						return err
					}
					if err := target.Publish(txCtx, events...); err != nil {
						return err
					}
					ids := make([]string, 0, len(events))
					for _, ev := range events {
						ids = append(ids, ev.ID)
					}
					n = len(ids)
					return outbox.MarkPublished(txCtx, ids, time.Now().UTC())
				})
				if err != nil {
					return total, err
				}
				total += n
				if n < relayBatchSize {
					return total, nil
				}
			}
		},
	}
}
