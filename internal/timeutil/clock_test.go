package timeutil

import (
	"testing"
	"time"
)

func TestRealClock(t *testing.T) {
	var c Clock = RealClock{}
	start := c.Now()
	c.Sleep(time.Millisecond)
	if c.Since(start) < time.Millisecond {
		t.Errorf("Since() = %v, want >= 1ms", c.Since(start))
	}

	tk := c.NewTicker(time.Millisecond)
	defer tk.Stop()
	select {
	case <-tk.C():
	case <-time.After(time.Second):
		t.Fatal("ticker did not fire")
	}
}

func TestMockClockSleepAdvances(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMockClock(base)

	c.Sleep(900 * time.Millisecond)
	c.Sleep(100 * time.Millisecond)

	if got := c.Since(base); got != time.Second {
		t.Errorf("Since() = %v, want 1s", got)
	}
	sleeps := c.Sleeps()
	if len(sleeps) != 2 || sleeps[0] != 900*time.Millisecond {
		t.Errorf("Sleeps() = %v", sleeps)
	}
}

func TestMockTicker(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMockClock(base)
	tk := c.NewTicker(100 * time.Millisecond)

	c.Advance(50 * time.Millisecond)
	select {
	case <-tk.C():
		t.Fatal("ticker fired early")
	default:
	}

	c.Advance(50 * time.Millisecond)
	select {
	case got := <-tk.C():
		if !got.Equal(base.Add(100 * time.Millisecond)) {
			t.Errorf("tick at %v", got)
		}
	default:
		t.Fatal("ticker did not fire")
	}

	tk.Stop()
	c.Advance(time.Second)
	select {
	case <-tk.C():
		t.Fatal("stopped ticker fired")
	default:
	}
}

func TestMockTickerKeepsScheduleAndCountsDrops(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMockClock(base)
	tk := c.NewTicker(100 * time.Millisecond).(*MockTicker)

	// three periods in one jump: one tick delivered, two dropped
	c.Advance(350 * time.Millisecond)
	select {
	case got := <-tk.C():
		if !got.Equal(base.Add(100 * time.Millisecond)) {
			t.Errorf("tick at %v, want the first due time", got)
		}
	default:
		t.Fatal("ticker did not fire")
	}
	if tk.Dropped() != 2 {
		t.Errorf("Dropped() = %d, want 2", tk.Dropped())
	}

	// next tick stays on the 100ms grid
	c.Advance(50 * time.Millisecond)
	select {
	case got := <-tk.C():
		if !got.Equal(base.Add(400 * time.Millisecond)) {
			t.Errorf("tick at %v, want 400ms", got)
		}
	default:
		t.Fatal("ticker did not fire at 400ms")
	}

	// unread tick: the following one is dropped
	c.Advance(100 * time.Millisecond)
	c.Advance(100 * time.Millisecond)
	if tk.Dropped() != 3 {
		t.Errorf("Dropped() = %d, want 3", tk.Dropped())
	}
}

func TestFrameInterval(t *testing.T) {
	tests := []struct {
		fps  int
		want time.Duration
	}{
		{30, time.Second / 30},
		{10, 100 * time.Millisecond},
		{1, time.Second},
		{0, time.Second},
		{-5, time.Second},
	}
	for _, tt := range tests {
		if got := FrameInterval(tt.fps); got != tt.want {
			t.Errorf("FrameInterval(%d) = %v, want %v", tt.fps, got, tt.want)
		}
	}
}
