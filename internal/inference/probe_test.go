package inference

import (
	"context"
	"testing"
	"time"
)

func TestNextCronDuration(t *testing.T) {
	// Every-minute schedule fires within the next 60 seconds.
	d := nextCronDuration("* * * * *")
	if d <= 0 || d > time.Minute {
		t.Errorf("duration = %v, want in (0, 1m]", d)
	}

	if d := nextCronDuration("not a cron expr"); d != 0 {
		t.Errorf("invalid expr duration = %v, want 0", d)
	}
}

func TestProbe_InvalidSchedule(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", time.Second)
	if err := Probe(context.Background(), c, "bogus"); err == nil {
		t.Error("expected error for invalid schedule")
	}
}

func TestProbe_StopsOnCancel(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Probe(ctx, c, "* * * * *") }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("probe: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("probe did not stop after cancel")
	}
}
