// Package memory はプロセス内で完結するリポジトリ実装です。PostgreSQL 実装と同じ compare-and-set の意味論を持ちます。
package memory

import (
	"context"
	"fmt"
	"maps"
	"strconv"
	"sync"

	"github.com/ogurasousui/codex-hr-lifecycle/internal/core/contract"
	"github.com/ogurasousui/codex-hr-lifecycle/internal/core/employee"
	"github.com/ogurasousui/codex-hr-lifecycle/internal/core/event"
	"github.com/ogurasousui/codex-hr-lifecycle/internal/core/extension"
	"github.com/ogurasousui/codex-hr-lifecycle/internal/core/resignation"
)

type txContextKey struct{}

type tables struct {
	employees    map[string]employee.Employee
	contracts    map[string]contract.Contract
	extensions   map[string]extension.Extension
	resignations map[string]resignation.Resignation
	events       []event.Event
}

func (t *tables) clone() tables {
	return tables{
		employees:    maps.Clone(t.employees),
		contracts:    maps.Clone(t.contracts),
		extensions:   maps.Clone(t.extensions),
		resignations: maps.Clone(t.resignations),
		events:       append([]event.Event(nil), t.events...),
	}
}

// Store は全集約のデータを保持します。読み書きトランザクションは直列化され、失敗時はスナップショットに戻します。
type Store struct {
	mu   sync.Mutex
	data tables
}

// NewStore は空の Store を生成します。
func NewStore() *Store {
	return &Store{data: tables{
		employees:    make(map[string]employee.Employee),
		contracts:    make(map[string]contract.Contract),
		extensions:   make(map[string]extension.Extension),
		resignations: make(map[string]resignation.Resignation),
	}}
}

// WithinReadOnly は fn をロックを取得した状態で実行します。
func (s *Store) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	return s.within(ctx, false, fn)
}

// WithinReadWrite は fn をロックを取得した状態で実行し、エラー時は変更を破棄します。
func (s *Store) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	return s.within(ctx, true, fn)
}

func (s *Store) within(ctx context.Context, write bool, fn func(context.Context) error) error {
	if fn == nil {
		return fmt.Errorf("memory: transaction function is required")
	}
	if s.inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var snapshot tables
	if write {
		snapshot = s.data.clone()
	}
	if err := fn(context.WithValue(ctx, txContextKey{}, s)); err != nil {
		if write {
			s.data = snapshot
		}
		return err
	}
	return nil
}

// run はトランザクション外から呼ばれた場合のみロックを取得します。
func (s *Store) run(ctx context.Context, fn func(*tables) error) error {
	if s.inTx(ctx) {
		return fn(&s.data)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&s.data)
}

func (s *Store) inTx(ctx context.Context) bool {
	owner, ok := ctx.Value(txContextKey{}).(*Store)
	return ok && owner == s
}

// Events は記録されたイベントの写しを返します。
func (s *Store) Events() []event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event.Event(nil), s.data.events...)
}

// Publish はイベントを Store に記録します。トランザクションが失敗した場合は破棄されます。
func (s *Store) Publish(ctx context.Context, events ...event.Event) error {
	return s.run(ctx, func(t *tables) error {
		t.events = append(t.events, events...)
		return nil
	})
}

func paginate[T any](items []T, limit, offset int) ([]T, string) {
	if offset > len(items) {
		return []T{}, ""
	}
	end := offset + limit
	if limit <= 0 || end > len(items) {
		end = len(items)
	}
	next := ""
	if end < len(items) {
		next = strconv.Itoa(end)
	}
	return items[offset:end], next
}
