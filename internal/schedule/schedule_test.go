package schedule

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func melbourne(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Australia/Melbourne")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	return loc
}

func TestDailySpec(t *testing.T) {
	spec, err := DailySpec("08:00")
	if err != nil {
		t.Fatal(err)
	}
	if spec != "0 8 * * *" {
		t.Errorf("got %q", spec)
	}

	spec, _ = DailySpec("18:45")
	if spec != "45 18 * * *" {
		t.Errorf("got %q", spec)
	}

	for _, bad := range []string{"8am", "25:00", ""} {
		if _, err := DailySpec(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestNext(t *testing.T) {
	loc := melbourne(t)
	s, err := New(context.Background(), "0 8 * * *", loc, func(context.Context) {})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"before send time", time.Date(2025, time.May, 6, 7, 0, 0, 0, loc), time.Date(2025, time.May, 6, 8, 0, 0, 0, loc)},
		{"at send time", time.Date(2025, time.May, 6, 8, 0, 0, 0, loc), time.Date(2025, time.May, 7, 8, 0, 0, 0, loc)},
		{"evening", time.Date(2025, time.May, 6, 21, 30, 0, 0, loc), time.Date(2025, time.May, 7, 8, 0, 0, 0, loc)},
		// 21:00 UTC on 5 May is 07:00 on 6 May in Melbourne.
		{"given in UTC", time.Date(2025, time.May, 5, 21, 0, 0, 0, time.UTC), time.Date(2025, time.May, 6, 8, 0, 0, 0, loc)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Next(tt.now)
			if !got.Equal(tt.want) {
				t.Errorf("Next(%v) = %v, want %v", tt.now, got, tt.want)
			}
			if got.Location() != loc {
				t.Errorf("expected result in %v, got %v", loc, got.Location())
			}
		})
	}
}

func TestNewRejectsBadSpec(t *testing.T) {
	if _, err := New(context.Background(), "every morning", time.UTC, func(context.Context) {}); err == nil {
		t.Error("expected error")
	}
}

func TestSchedulerFiresJob(t *testing.T) {
	type ctxKey struct{}
	ctx := context.WithValue(context.Background(), ctxKey{}, "cycle")

	var runs atomic.Int32
	var sawCtx atomic.Bool
	s, err := New(ctx, "@every 1s", time.UTC, func(ctx context.Context) {
		runs.Add(1)
		sawCtx.Store(ctx.Value(ctxKey{}) == "cycle")
	})
	if err != nil {
		t.Fatal(err)
	}
	s.Start()
	defer func() { <-s.Stop().Done() }()

	deadline := time.Now().Add(5 * time.Second)
	for runs.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if runs.Load() == 0 {
		t.Fatal("job never ran")
	}
	if !sawCtx.Load() {
		t.Error("job did not receive the scheduler context")
	}
}

func TestSchedulerRecoversPanics(t *testing.T) {
	var runs atomic.Int32
	s, err := New(context.Background(), "@every 1s", time.UTC, func(context.Context) {
		runs.Add(1)
		panic("boom")
	})
	if err != nil {
		t.Fatal(err)
	}
	s.Start()
	defer func() { <-s.Stop().Done() }()

	deadline := time.Now().Add(5 * time.Second)
	for runs.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if runs.Load() < 2 {
		t.Fatalf("expected the scheduler to keep firing after a panic, ran %d times", runs.Load())
	}
}

func TestLocalClock(t *testing.T) {
	loc := melbourne(t)
	if got := (LocalClock{Location: loc}).Now().Location(); got != loc {
		t.Errorf("got location %v", got)
	}
}

func TestSchedulerLocation(t *testing.T) {
	loc := melbourne(t)
	s, err := New(context.Background(), "0 8 * * *", loc, func(context.Context) {})
	if err != nil {
		t.Fatal(err)
	}
	if s.Location() != loc {
		t.Errorf("Location() = %v, want %v", s.Location(), loc)
	}
}
