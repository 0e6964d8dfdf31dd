package event

import (
	"context"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	first := New(ContractExtended, "contract", "C-1", at, nil)
	second := New(ContractExtended, "contract", "C-1", at, map[string]any{"sequence": 1})

	if first.ID == "" || first.ID == second.ID {
		t.Fatalf("expected unique ids, got %q and %q", first.ID, second.ID)
	}
	if first.Payload == nil {
		t.Fatalf("expected nil payload to be replaced with an empty map")
	}
	if second.Payload["sequence"] != 1 {
		t.Fatalf("unexpected payload: %v", second.Payload)
	}
}

func TestPublisherFunc(t *testing.T) {
	t.Parallel()

	var got []Event
	p := PublisherFunc(func(_ context.Context, events ...Event) error {
		got = append(got, events...)
		return nil
	})

	if err := p.Publish(context.Background(), New(EmployeeSeparated, "employee", "emp-1", time.Now(), nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Type != EmployeeSeparated {
		t.Fatalf("unexpected events: %+v", got)
	}
	if err := Noop().Publish(context.Background(), got...); err != nil {
		t.Fatalf("noop publisher returned %v", err)
	}
}
