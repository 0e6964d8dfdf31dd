package extension

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var sweepBase = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func genStatus() gopter.Gen {
	return gen.OneConstOf(StatusPending, StatusAccepted, StatusExpired, StatusRejected)
}

func TestSweep_Boundary(t *testing.T) {
	t.Parallel()

	ext := Extension{Status: StatusPending, ExpiresAt: sweepBase}

	if _, changed := Sweep(ext, sweepBase); changed {
		t.Fatalf("expected no change at the deadline")
	}
	swept, changed := Sweep(ext, sweepBase.Add(time.Nanosecond))
	if !changed || swept.Status != StatusExpired {
		t.Fatalf("expected EXPIRED just after the deadline, got %s", swept.Status)
	}
	if !swept.UpdatedAt.Equal(sweepBase.Add(time.Nanosecond)) {
		t.Fatalf("expected updated_at to be now")
	}
	if ext.Status != StatusPending {
		t.Fatalf("expected input to be left untouched")
	}
}

func TestSweep_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("sweep is idempotent", prop.ForAll(
		func(status Status, expiresOffset, nowOffset int64) bool {
			ext := Extension{Status: status, ExpiresAt: sweepBase.Add(time.Duration(expiresOffset) * time.Minute)}
			now := sweepBase.Add(time.Duration(nowOffset) * time.Minute)

			once, _ := Sweep(ext, now)
			twice, changed := Sweep(once, now)
			return !changed && once.Status == twice.Status
		},
		genStatus(),
		gen.Int64Range(-20000, 20000),
		gen.Int64Range(-20000, 20000),
	))

	properties.Property("only overdue pending extensions expire", prop.ForAll(
		func(status Status, expiresOffset, nowOffset int64) bool {
			ext := Extension{Status: status, ExpiresAt: sweepBase.Add(time.Duration(expiresOffset) * time.Minute)}
			now := sweepBase.Add(time.Duration(nowOffset) * time.Minute)

			swept, changed := Sweep(ext, now)
			overdue := status == StatusPending && now.After(ext.ExpiresAt)
			if changed != overdue {
				return false
			}
			if overdue {
				return swept.Status == StatusExpired
			}
			return swept.Status == status
		},
		genStatus(),
		gen.Int64Range(-20000, 20000),
		gen.Int64Range(-20000, 20000),
	))

	properties.Property("terminal states never change", prop.ForAll(
		func(status Status, nowOffset int64) bool {
			if !status.IsTerminal() {
				return true
			}
			ext := Extension{Status: status, ExpiresAt: sweepBase}
			_, changed := Sweep(ext, sweepBase.Add(time.Duration(nowOffset)*time.Hour))
			return !changed
		},
		genStatus(),
		gen.Int64Range(-1000, 1000),
	))

	properties.TestingRun(t)
}
