package ratelimit

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestLimiter(max int, window, ban time.Duration) (*Limiter, *time.Time) {
	l := New(max, window, ban)
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return current }
	return l, &current
}

func TestCheck_AllowsUpToLimit(t *testing.T) {
	l, _ := newTestLimiter(10, 10*time.Second, 30*time.Second)

	for i := 0; i < 10; i++ {
		res := l.Check("alice")
		if !res.Allowed {
			t.Fatalf("message %d should be allowed", i+1)
		}
		if res.Remaining != 10-(i+1) {
			t.Errorf("message %d: remaining = %d, want %d", i+1, res.Remaining, 10-(i+1))
		}
	}
}

func TestCheck_OverflowBansUser(t *testing.T) {
	l, clock := newTestLimiter(10, 10*time.Second, 30*time.Second)

	for i := 0; i < 10; i++ {
		if res := l.Check("alice"); !res.Allowed {
			t.Fatalf("message %d should be allowed", i+1)
		}
	}

	res := l.Check("alice")
	if res.Allowed {
		t.Fatal("11th message within window should be refused")
	}
	if !res.Banned {
		t.Error("overflow should escalate to a ban")
	}
	if want := clock.Add(30 * time.Second); !res.BannedUntil.Equal(want) {
		t.Errorf("BannedUntil = %v, want %v", res.BannedUntil, want)
	}
	if !strings.Contains(res.Reason, "Rate limit exceeded") {
		t.Errorf("unexpected reason: %q", res.Reason)
	}

	// Every further attempt until the ban expires is refused.
	for i := 0; i < 5; i++ {
		*clock = clock.Add(time.Second)
		res := l.Check("alice")
		if res.Allowed {
			t.Fatalf("attempt %d during ban should be refused", i+1)
		}
		if !res.Banned {
			t.Errorf("attempt %d: expected Banned", i+1)
		}
		if !strings.Contains(res.Reason, "banned") {
			t.Errorf("attempt %d: unexpected reason %q", i+1, res.Reason)
		}
	}
}

func TestCheck_BanExpiryClearsHistory(t *testing.T) {
	l, clock := newTestLimiter(3, 10*time.Second, 30*time.Second)

	for i := 0; i < 3; i++ {
		l.Check("alice")
	}
	if res := l.Check("alice"); res.Allowed {
		t.Fatal("overflow should be refused")
	}

	// Past the ban expiry the next check runs against an empty history.
	*clock = clock.Add(31 * time.Second)
	res := l.Check("alice")
	if !res.Allowed {
		t.Fatalf("first message after ban expiry should be allowed: %+v", res)
	}
	if res.Remaining != 2 {
		t.Errorf("remaining = %d, want 2 (history cleared)", res.Remaining)
	}
}

func TestCheck_WindowPruning(t *testing.T) {
	l, clock := newTestLimiter(3, 10*time.Second, 30*time.Second)

	l.Check("alice")
	l.Check("alice")

	// Both timestamps age out of the window.
	*clock = clock.Add(11 * time.Second)
	res := l.Check("alice")
	if !res.Allowed {
		t.Fatal("message after window elapsed should be allowed")
	}
	if res.Remaining != 2 {
		t.Errorf("remaining = %d, want 2 after pruning", res.Remaining)
	}
}

func TestCheck_UsersAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(2, 10*time.Second, 30*time.Second)

	l.Check("alice")
	l.Check("alice")
	if res := l.Check("alice"); res.Allowed {
		t.Fatal("alice should be over her limit")
	}

	if res := l.Check("bob"); !res.Allowed {
		t.Fatal("bob's quota must not be affected by alice's ban")
	}
}

func TestReset_LiftsBan(t *testing.T) {
	l, _ := newTestLimiter(1, 10*time.Second, 30*time.Second)

	l.Check("alice")
	if res := l.Check("alice"); res.Allowed {
		t.Fatal("second message should trigger ban")
	}

	l.Reset("alice")
	if res := l.Check("alice"); !res.Allowed {
		t.Fatal("check after reset should be allowed")
	}
}

func TestCleanup_DropsStaleRecords(t *testing.T) {
	l, clock := newTestLimiter(5, 10*time.Second, 30*time.Second)

	l.Check("stale")
	l.Check("banned")
	for i := 0; i < 5; i++ {
		l.Check("banned")
	}

	*clock = clock.Add(15 * time.Second)
	l.Cleanup()

	l.mu.RLock()
	_, staleKept := l.users["stale"]
	_, bannedKept := l.users["banned"]
	l.mu.RUnlock()

	if staleKept {
		t.Error("record with no live state should be dropped")
	}
	if !bannedKept {
		t.Error("record with an active ban must be kept")
	}
}

func TestCheck_ConcurrentUsers(t *testing.T) {
	l := New(100, 10*time.Second, 30*time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			user := fmt.Sprintf("user%d", n)
			for j := 0; j < 50; j++ {
				l.Check(user)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 8; i++ {
		res := l.Check(fmt.Sprintf("user%d", i))
		if !res.Allowed {
			t.Errorf("user%d should still have quota", i)
		}
		if res.Remaining != 100-51 {
			t.Errorf("user%d remaining = %d, want %d", i, res.Remaining, 100-51)
		}
	}
}
