// Package event はワークフローが発行するドメインイベントを定義します。
package event

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Type はイベント種別です。
type Type string

const (
	ContractCreated      Type = "contract.created"
	ContractActivated    Type = "contract.activated"
	ContractExtended     Type = "contract.extended"
	ContractExpired      Type = "contract.expired"
	ContractTerminated   Type = "contract.terminated"
	ExtensionProposed    Type = "extension.proposed"
	ExtensionAccepted    Type = "extension.accepted"
	ExtensionRejected    Type = "extension.rejected"
	ExtensionExpired     Type = "extension.expired"
	ResignationSubmitted Type = "resignation.submitted"
	ResignationApproved  Type = "resignation.approved"
	ResignationCompleted Type = "resignation.completed"
	ResignationWithdrawn Type = "resignation.withdrawn"
	EmployeeSeparated    Type = "employee.separated"
)

// Event はドメインイベントです。
type Event struct {
	ID            string
	Type          Type
	AggregateType string
	AggregateID   string
	OccurredAt    time.Time
	Payload       map[string]any
}

// New は ID を採番したイベントを生成します。
func New(typ Type, aggregateType, aggregateID string, occurredAt time.Time, payload map[string]any) Event {
	if payload == nil {
		payload = map[string]any{}
	}
	return Event{
		ID:            uuid.NewString(),
		Type:          typ,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		OccurredAt:    occurredAt,
		Payload:       payload,
	}
}

// Publisher はイベントの配送先です。トランザクション内で呼び出されます。
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
}

// PublisherFunc は関数を Publisher として扱うためのアダプタです。
type PublisherFunc func(ctx context.Context, events ...Event) error

// Publish は f を呼び出します。
func (f PublisherFunc) Publish(ctx context.Context, events ...Event) error {
	return f(ctx, events...)
}

// Noop は何もしない Publisher を返します。
func Noop() Publisher {
	return PublisherFunc(func(context.Context, ...Event) error { return nil })
}
