// Package worker は定期実行するバックグラウンド処理を提供します。
package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Task は定期実行される処理です。Run は処理した件数を返します。
type Task struct {
	Name string
	Run  func(ctx context.Context) (int, error)
}

// Runner は Task を一定間隔で順に実行します。
type Runner struct {
	interval time.Duration
	tasks    []Task
	log      zerolog.Logger
}

// New は Runner を生成します。interval が 0 以下の場合 Run は何もしません。
func New(interval time.Duration, log zerolog.Logger, tasks ...Task) *Runner {
	return &Runner{
		interval: interval,
		tasks:    tasks,
		log:      log.With().Str("component", "worker").Logger(),
	}
}

// Run はコンテキストがキャンセルされるまで Task を実行し続けます。
func (r *Runner) Run(ctx context.Context) error {
	if r.interval <= 0 {
		r.log.Info().Msg("periodic sweep disabled")
		return nil
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce はすべての Task を 1 回ずつ実行します。失敗はログに記録し、残りの Task は続行します。
func (r *Runner) RunOnce(ctx context.Context) {
	for _, task := range r.tasks {
		if ctx.Err() != nil {
			return
		}
		started := time.Now()
		n, err := task.Run(ctx)
		if err != nil {
			r.log.Error().Err(err).Str("task", task.Name).Msg("task failed")
			continue
		}
		if n > 0 {
			r.log.Info().Str("task", task.Name).Int("processed", n).Dur("elapsed", time.Since(started)).Msg("task completed")
		}
	}
}
