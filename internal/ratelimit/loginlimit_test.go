package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeClock is a controllable time source for deterministic tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// newTestLimiter creates a LoginLimiter wired to the given fake clock.
func newTestLimiter(maxAttempts int, window time.Duration, clock *fakeClock) *LoginLimiter {
	l := NewLoginLimiter(maxAttempts, window)
	l.now = clock.Now
	return l
}

func TestCheckFreshIPAllowed(t *testing.T) {
	clock := newFakeClock(time.Now())
	l := newTestLimiter(5, 15*time.Minute, clock)

	res := l.Check("10.0.0.1")
	if !res.Allowed {
		t.Fatal("fresh IP should be allowed")
	}
	if res.Limit != 5 {
		t.Fatalf("expected limit 5, got %d", res.Limit)
	}
}

func TestLockoutAfterThreshold(t *testing.T) {
	clock := newFakeClock(time.Now())
	l := newTestLimiter(3, 15*time.Minute, clock)

	for i := 0; i < 3; i++ {
		if res := l.Check("ip"); !res.Allowed {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
		locked := l.RecordFailure("ip")
		if want := i == 2; locked != want {
			t.Fatalf("attempt %d: locked = %v, want %v", i+1, locked, want)
		}
	}

	// The attempt after the threshold is denied with a positive retry-after,
	// independent of whether the credentials would have been correct.
	res := l.Check("ip")
	if res.Allowed {
		t.Fatal("attempt after threshold should be denied")
	}
	if res.RetryAfter <= 0 {
		t.Fatalf("expected positive retry-after, got %v", res.RetryAfter)
	}
}

func TestLockoutExpires(t *testing.T) {
	clock := newFakeClock(time.Now())
	l := newTestLimiter(3, 15*time.Minute, clock)

	for i := 0; i < 3; i++ {
		l.RecordFailure("ip")
	}
	if l.Check("ip").Allowed {
		t.Fatal("should be locked")
	}

	clock.Advance(15*time.Minute + time.Second)
	if !l.Check("ip").Allowed {
		t.Fatal("lockout should expire after the window")
	}
}

func TestWindowSlides(t *testing.T) {
	clock := newFakeClock(time.Now())
	l := newTestLimiter(3, 15*time.Minute, clock)

	l.RecordFailure("ip")
	l.RecordFailure("ip")

	// Let the window elapse; old failures no longer count.
	clock.Advance(16 * time.Minute)
	l.RecordFailure("ip")
	l.RecordFailure("ip")

	if !l.Check("ip").Allowed {
		t.Fatal("failures across windows should not accumulate")
	}
}

func TestResetClearsFailures(t *testing.T) {
	clock := newFakeClock(time.Now())
	l := newTestLimiter(3, 15*time.Minute, clock)

	for i := 0; i < 3; i++ {
		l.RecordFailure("ip")
	}
	if l.Check("ip").Allowed {
		t.Fatal("should be locked before reset")
	}

	l.Reset("ip")
	if !l.Check("ip").Allowed {
		t.Fatal("reset should clear lockout and counter")
	}
}

func TestIndependentIPs(t *testing.T) {
	clock := newFakeClock(time.Now())
	l := newTestLimiter(2, 15*time.Minute, clock)

	l.RecordFailure("a")
	l.RecordFailure("a")
	if l.Check("a").Allowed {
		t.Fatal("IP a should be locked")
	}
	if !l.Check("b").Allowed {
		t.Fatal("IP b should be unaffected")
	}
}

func TestRetryAfterShrinks(t *testing.T) {
	clock := newFakeClock(time.Now())
	l := newTestLimiter(1, 10*time.Minute, clock)

	l.RecordFailure("ip")

	first := l.Check("ip")
	if first.Allowed {
		t.Fatal("should be locked")
	}

	clock.Advance(4 * time.Minute)
	second := l.Check("ip")
	if second.Allowed {
		t.Fatal("should still be locked")
	}
	if second.RetryAfter >= first.RetryAfter {
		t.Fatalf("retry-after should shrink over time: %v then %v", first.RetryAfter, second.RetryAfter)
	}
}

func TestConcurrentFailuresCannotEvadeThreshold(t *testing.T) {
	clock := newFakeClock(time.Now())
	l := newTestLimiter(10, 15*time.Minute, clock)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.RecordFailure("burst")
		}()
	}
	wg.Wait()

	if l.Check("burst").Allowed {
		t.Fatal("a concurrent burst past the threshold must be locked out")
	}
}

func TestManyIPsStayIsolated(t *testing.T) {
	clock := newFakeClock(time.Now())
	l := newTestLimiter(2, 15*time.Minute, clock)

	for i := 0; i < 20; i++ {
		ip := fmt.Sprintf("10.0.0.%d", i)
		l.RecordFailure(ip)
		if !l.Check(ip).Allowed {
			t.Fatalf("single failure should not lock %s", ip)
		}
	}
}
